package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"foodgram/internal/core"
	"foodgram/internal/sheets"
)

var _ sheets.ShoppingListExporter = (*Exporter)(nil)

// Export is one recorded shopping list export.
type Export struct {
	UserID int64
	At     time.Time
	Rows   [][]any
}

// Exporter keeps exports in memory. It stands in for Google Sheets when no
// credentials are configured.
type Exporter struct {
	mu    sync.Mutex
	items []Export
	now   func() time.Time
}

func New() *Exporter {
	return &Exporter{now: time.Now}
}

// Export records the list and returns a synthetic reference.
func (e *Exporter) Export(_ context.Context, userID int64, list core.ShoppingList) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	at := e.now()
	e.items = append(e.items, Export{UserID: userID, At: at, Rows: sheets.Rows(userID, at, list)})
	return fmt.Sprintf("mem:%d", len(e.items)), nil
}

// Exports returns the exports recorded for userID, oldest first.
func (e *Exporter) Exports(userID int64) []Export {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Export
	for _, it := range e.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out
}
