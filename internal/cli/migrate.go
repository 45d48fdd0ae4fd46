package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"foodgram/internal/storage"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			SetupLogger(rootOpts.LogLevel, "cli")
			if err := os.MkdirAll(filepath.Dir(rootOpts.DBPath), 0755); err != nil {
				return fmt.Errorf("create db directory: %w", err)
			}
			version, err := storage.RunMigrations(rootOpts.DBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date (schema version %d)\n", rootOpts.DBPath, version)
			return nil
		},
	}
}
