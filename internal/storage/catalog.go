package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"foodgram/internal/core"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func toCoreTag(t Tag) core.Tag {
	return core.Tag{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
}

func toCoreIngredient(i Ingredient) core.Ingredient {
	return core.Ingredient{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func (r *SQLiteRepository) ListTags(ctx context.Context) ([]core.Tag, error) {
	rows, err := r.queries.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make([]core.Tag, 0, len(rows))
	for _, t := range rows {
		out = append(out, toCoreTag(t))
	}
	return out, nil
}

func (r *SQLiteRepository) GetTag(ctx context.Context, id int64) (core.Tag, error) {
	t, err := r.queries.GetTag(ctx, id)
	if err != nil {
		return core.Tag{}, notFound(err, "get tag")
	}
	return toCoreTag(t), nil
}

// SearchIngredients returns ingredients whose name starts with prefix,
// ignoring case. An empty prefix lists the whole catalog.
func (r *SQLiteRepository) SearchIngredients(ctx context.Context, prefix string) ([]core.Ingredient, error) {
	rows, err := r.queries.SearchIngredients(ctx, likeEscaper.Replace(strings.ToLower(prefix))+"%")
	if err != nil {
		return nil, fmt.Errorf("search ingredients: %w", err)
	}
	out := make([]core.Ingredient, 0, len(rows))
	for _, i := range rows {
		out = append(out, toCoreIngredient(i))
	}
	return out, nil
}

func (r *SQLiteRepository) GetIngredient(ctx context.Context, id int64) (core.Ingredient, error) {
	i, err := r.queries.GetIngredient(ctx, id)
	if err != nil {
		return core.Ingredient{}, notFound(err, "get ingredient")
	}
	return toCoreIngredient(i), nil
}

// ImportIngredients inserts the catalog rows in one transaction, skipping
// pairs of name and unit that already exist. It returns how many were new.
func (r *SQLiteRepository) ImportIngredients(ctx context.Context, items []core.Ingredient) (int, error) {
	inserted := 0
	err := r.inTx(ctx, func(q *Queries) error {
		for _, it := range items {
			n, err := q.InsertIngredient(ctx, it.Name, it.MeasurementUnit)
			if err != nil {
				return fmt.Errorf("insert ingredient %q: %w", it.Name, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Ingredients imported", "received", len(items), "inserted", inserted)
	return inserted, nil
}

// ImportTags is the tag counterpart of ImportIngredients.
func (r *SQLiteRepository) ImportTags(ctx context.Context, items []core.Tag) (int, error) {
	inserted := 0
	err := r.inTx(ctx, func(q *Queries) error {
		for _, t := range items {
			n, err := q.InsertTag(ctx, t.Name, t.Color, t.Slug)
			if err != nil {
				return fmt.Errorf("insert tag %q: %w", t.Name, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Tags imported", "received", len(items), "inserted", inserted)
	return inserted, nil
}
