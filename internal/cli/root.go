package cli

import (
	"github.com/spf13/cobra"

	"foodgram/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath   string
	LogLevel string
}

// NewRootCommand creates the foodgramctl command tree.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "foodgramctl",
		Short:         "Foodgram maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", cfg.SQLiteDBPath, "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewLoadIngredientsCommand(opts))
	cmd.AddCommand(NewLoadTagsCommand(opts))

	return cmd
}
