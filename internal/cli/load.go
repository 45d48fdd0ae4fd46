package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"foodgram/internal/core"
	"foodgram/internal/storage"
)

// LoadOptions holds flags for the load commands.
type LoadOptions struct {
	*RootOptions
	File string
}

// NewLoadIngredientsCommand creates the load-ingredients command. Rows are
// name,measurement_unit; names already present are skipped.
func NewLoadIngredientsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load-ingredients",
		Short: "Load ingredients from a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readCSVFile(opts.File, ReadIngredientsCSV)
			if err != nil {
				return err
			}
			return withRepository(opts, func(repo *storage.SQLiteRepository) error {
				n, err := repo.ImportIngredients(cmd.Context(), items)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Successfully loaded %d ingredients (%d new)\n", len(items), n)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "data/ingredients.csv", "CSV file with name,measurement_unit rows")
	return cmd
}

// NewLoadTagsCommand creates the load-tags command. Rows are
// name,color,slug; color may be empty.
func NewLoadTagsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load-tags",
		Short: "Load tags from a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readCSVFile(opts.File, ReadTagsCSV)
			if err != nil {
				return err
			}
			return withRepository(opts, func(repo *storage.SQLiteRepository) error {
				n, err := repo.ImportTags(cmd.Context(), items)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Successfully loaded %d tags (%d new)\n", len(items), n)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "data/tags.csv", "CSV file with name,color,slug rows")
	return cmd
}

func withRepository(opts *LoadOptions, fn func(*storage.SQLiteRepository) error) error {
	SetupLogger(opts.LogLevel, "cli")
	repo, err := storage.NewSQLiteRepository(opts.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(repo)
}

func readCSVFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s does not exist", path)
		}
		return nil, err
	}
	defer f.Close()
	items, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// ReadIngredientsCSV parses name,measurement_unit rows. Blank rows are
// skipped.
func ReadIngredientsCSV(r io.Reader) ([]core.Ingredient, error) {
	rows, err := readRows(r, 2, 2)
	if err != nil {
		return nil, err
	}
	out := make([]core.Ingredient, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Ingredient{Name: row[0], MeasurementUnit: row[1]})
	}
	return out, nil
}

// ReadTagsCSV parses name,color,slug rows. The color column may be empty
// or missing.
func ReadTagsCSV(r io.Reader) ([]core.Tag, error) {
	rows, err := readRows(r, 2, 3)
	if err != nil {
		return nil, err
	}
	out := make([]core.Tag, 0, len(rows))
	for _, row := range rows {
		tag := core.Tag{Name: row[0]}
		if len(row) == 3 {
			tag.Color, tag.Slug = row[1], row[2]
		} else {
			tag.Slug = row[1]
		}
		if tag.Slug == "" {
			return nil, fmt.Errorf("tag %q: slug is required", tag.Name)
		}
		out = append(out, tag)
	}
	return out, nil
}

func readRows(r io.Reader, minCols, maxCols int) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < minCols || len(rec) > maxCols {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d to %d columns, got %d", line, minCols, maxCols, len(rec))
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		if rec[0] == "" {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: name is required", line)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
