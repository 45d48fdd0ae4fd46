package google

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"foodgram/internal/core"
)

type fakeValues struct {
	calls int
	rng   string
	rows  [][]any
	err   error
}

func (f *fakeValues) Append(_ context.Context, _ string, rng string, rows [][]any) (string, error) {
	f.calls++
	f.rng = rng
	f.rows = rows
	if f.err != nil {
		return "", f.err
	}
	return rng + "1:5", nil
}

func testList() core.ShoppingList {
	return core.NewShoppingList([]core.IngredientTotal{
		{Name: "Salt", Unit: "g", Total: 5},
		{Name: "Flour", Unit: "g", Total: 500},
	})
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet", CredentialsFile: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestClient_Export(t *testing.T) {
	fv := &fakeValues{}
	c := newClient(fv, Options{SpreadsheetID: "id"})
	c.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	ref, err := c.Export(context.Background(), 42, testList())
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if fv.rng != "Shopping!A:E" {
		t.Errorf("range = %q, want Shopping!A:E", fv.rng)
	}
	if ref != "Shopping!A:E1:5" {
		t.Errorf("ref = %q", ref)
	}
	if len(fv.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(fv.rows))
	}
	want := []any{"2024-01-02T03:04:05Z", int64(42), "Flour", int64(500), "g"}
	for i, v := range want {
		if fv.rows[0][i] != v {
			t.Errorf("row[0][%d] = %v, want %v", i, fv.rows[0][i], v)
		}
	}
}

func TestClient_ExportEmptyListSkipsAPI(t *testing.T) {
	fv := &fakeValues{}
	c := newClient(fv, Options{SpreadsheetID: "id", SheetName: "Lists"})

	ref, err := c.Export(context.Background(), 1, core.ShoppingList{})
	if err != nil || ref != "" {
		t.Fatalf("Export = %q, %v", ref, err)
	}
	if fv.calls != 0 {
		t.Errorf("expected no API calls, got %d", fv.calls)
	}
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	fv := &fakeValues{err: errors.New("quota exceeded")}
	c := newClient(fv, Options{SpreadsheetID: "id"})

	for i := 0; i < 5; i++ {
		if _, err := c.Export(context.Background(), 1, testList()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	_, err := c.Export(context.Background(), 1, testList())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if fv.calls != 5 {
		t.Errorf("API calls = %d, want 5", fv.calls)
	}
}
