package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodgram/internal/amqp"
	"foodgram/internal/core"
	"foodgram/internal/sheets/memory"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type fakeNotifier struct {
	recipeID, authorID int64
	err                error
}

func (f *fakeNotifier) FanOut(_ context.Context, recipeID, authorID int64) (int, error) {
	f.recipeID, f.authorID = recipeID, authorID
	return 2, f.err
}

type fakeLists struct {
	lists map[int64]core.ShoppingList
	err   error
}

func (f *fakeLists) List(_ context.Context, userID int64) (core.ShoppingList, error) {
	return f.lists[userID], f.err
}

func TestEventWorker_RecipePublished(t *testing.T) {
	n := &fakeNotifier{}
	w := NewEventWorker(n, &fakeLists{}, memory.New())

	require.NoError(t, w.Handle(context.Background(), amqp.NewRecipePublished(5, 9)))
	assert.Equal(t, int64(5), n.recipeID)
	assert.Equal(t, int64(9), n.authorID)
}

func TestEventWorker_RecipePublishedFailure(t *testing.T) {
	n := &fakeNotifier{err: core.ErrNotFound}
	w := NewEventWorker(n, &fakeLists{}, memory.New())

	err := w.Handle(context.Background(), amqp.NewRecipePublished(5, 9))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEventWorker_Export(t *testing.T) {
	exp := memory.New()
	lists := &fakeLists{lists: map[int64]core.ShoppingList{
		3: core.NewShoppingList([]core.IngredientTotal{{Name: "Flour", Unit: "g", Total: 500}}),
	}}
	w := NewEventWorker(&fakeNotifier{}, lists, exp)

	require.NoError(t, w.Handle(context.Background(), amqp.NewShoppingListExport(3)))

	got := exp.Exports(3)
	require.Len(t, got, 1)
	require.Len(t, got[0].Rows, 1)
	assert.Equal(t, "Flour", got[0].Rows[0][2])
}

func TestEventWorker_ExportStoreError(t *testing.T) {
	exp := memory.New()
	w := NewEventWorker(&fakeNotifier{}, &fakeLists{err: errors.New("db down")}, exp)

	assert.Error(t, w.Handle(context.Background(), amqp.NewShoppingListExport(3)))
	assert.Empty(t, exp.Exports(3))
}

func TestEventWorker_UnknownType(t *testing.T) {
	w := NewEventWorker(&fakeNotifier{}, &fakeLists{}, memory.New())
	err := w.Handle(context.Background(), amqp.Event{Type: "nope"})
	assert.ErrorIs(t, err, amqp.ErrInvalidEvent)
}
