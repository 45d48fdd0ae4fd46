package services

import (
	"context"
	"errors"
	"testing"

	"foodgram/internal/core"
)

type fakeTotals struct {
	totals map[int64][]core.IngredientTotal
	err    error
	calls  []int64
}

func (f *fakeTotals) SumIngredientsForUserCart(_ context.Context, userID int64) ([]core.IngredientTotal, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return nil, f.err
	}
	return f.totals[userID], nil
}

type fakePublisher struct {
	published []int64
	exports   []int64
	err       error
}

func (f *fakePublisher) PublishRecipePublished(_ context.Context, recipeID, _ int64) error {
	f.published = append(f.published, recipeID)
	return f.err
}

func (f *fakePublisher) PublishShoppingListExport(_ context.Context, userID int64) error {
	f.exports = append(f.exports, userID)
	return f.err
}

func TestShoppingListBuild(t *testing.T) {
	store := &fakeTotals{totals: map[int64][]core.IngredientTotal{
		1: {
			{Name: "Sugar", Unit: "g", Total: 50},
			{Name: "Flour", Unit: "g", Total: 500},
			{Name: "Salt", Unit: "g", Total: 5},
		},
	}}
	svc := NewShoppingListService(store, nil)

	file, err := svc.Build(context.Background(), 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "Flour - 500 g\nSalt - 5 g\nSugar - 50 g"
	if string(file.Content) != want {
		t.Fatalf("content:\n got %q\nwant %q", file.Content, want)
	}
	if file.Filename != "shopping_list.txt" || file.ContentType != "text/plain" {
		t.Fatalf("unexpected file metadata: %q %q", file.Filename, file.ContentType)
	}
	if len(store.calls) != 1 || store.calls[0] != 1 {
		t.Fatalf("store called with %v, want [1]", store.calls)
	}
}

func TestShoppingListBuildEmptyCart(t *testing.T) {
	svc := NewShoppingListService(&fakeTotals{}, nil)
	file, err := svc.Build(context.Background(), 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(file.Content) != 0 {
		t.Fatalf("expected empty content, got %q", file.Content)
	}
	if file.Filename != "shopping_list.txt" {
		t.Fatalf("filename = %q", file.Filename)
	}
}

func TestShoppingListBuildPropagatesStoreError(t *testing.T) {
	boom := errors.New("database is locked")
	svc := NewShoppingListService(&fakeTotals{err: boom}, nil)
	_, err := svc.Build(context.Background(), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestShoppingListIsPerUser(t *testing.T) {
	store := &fakeTotals{totals: map[int64][]core.IngredientTotal{
		1: {{Name: "Flour", Unit: "g", Total: 200}},
		2: {{Name: "Eggs", Unit: "pcs", Total: 3}},
	}}
	svc := NewShoppingListService(store, nil)
	a, _ := svc.Build(context.Background(), 1)
	b, _ := svc.Build(context.Background(), 2)
	if string(a.Content) != "Flour - 200 g" || string(b.Content) != "Eggs - 3 pcs" {
		t.Fatalf("lists leaked across users: %q / %q", a.Content, b.Content)
	}
}

func TestShoppingListRequestExport(t *testing.T) {
	if err := NewShoppingListService(&fakeTotals{}, nil).RequestExport(context.Background(), 1); !errors.Is(err, ErrExportUnavailable) {
		t.Fatalf("expected ErrExportUnavailable, got %v", err)
	}
	pub := &fakePublisher{}
	if err := NewShoppingListService(&fakeTotals{}, pub).RequestExport(context.Background(), 9); err != nil {
		t.Fatalf("RequestExport: %v", err)
	}
	if len(pub.exports) != 1 || pub.exports[0] != 9 {
		t.Fatalf("exports = %v", pub.exports)
	}
}
