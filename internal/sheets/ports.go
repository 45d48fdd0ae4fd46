// Package sheets exports shopping lists to spreadsheets.
package sheets

import (
	"context"
	"time"

	"foodgram/internal/core"
)

// ShoppingListExporter writes a user's shopping list somewhere outside the
// API. It returns a reference to the written range.
type ShoppingListExporter interface {
	Export(ctx context.Context, userID int64, list core.ShoppingList) (ref string, err error)
}

// Rows lays out a list as spreadsheet rows: export time, user id, name,
// total and unit, one row per line.
func Rows(userID int64, at time.Time, list core.ShoppingList) [][]any {
	stamp := at.UTC().Format(time.RFC3339)
	rows := make([][]any, 0, len(list.Lines))
	for _, l := range list.Lines {
		rows = append(rows, []any{stamp, userID, l.Name, l.Total, l.Unit})
	}
	return rows
}
