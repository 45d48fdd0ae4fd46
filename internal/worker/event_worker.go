// Package worker handles the events consumed from the queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"foodgram/internal/amqp"
	"foodgram/internal/core"
	applog "foodgram/internal/log"
	"foodgram/internal/sheets"
)

type (
	// Notifier fans a published recipe out to the author's followers.
	Notifier interface {
		FanOut(ctx context.Context, recipeID, authorID int64) (int, error)
	}

	// ShoppingLists builds the aggregated list of a user's cart.
	ShoppingLists interface {
		List(ctx context.Context, userID int64) (core.ShoppingList, error)
	}
)

// EventWorker dispatches queue events to the services.
type EventWorker struct {
	notifier Notifier
	lists    ShoppingLists
	exporter sheets.ShoppingListExporter
}

func NewEventWorker(notifier Notifier, lists ShoppingLists, exporter sheets.ShoppingListExporter) *EventWorker {
	return &EventWorker{notifier: notifier, lists: lists, exporter: exporter}
}

// Handle satisfies amqp.Handler.
func (w *EventWorker) Handle(ctx context.Context, e amqp.Event) error {
	switch e.Type {
	case amqp.EventRecipePublished:
		return w.handleRecipePublished(ctx, e)
	case amqp.EventShoppingListExport:
		return w.handleExport(ctx, e)
	default:
		return fmt.Errorf("%w: unknown type %q", amqp.ErrInvalidEvent, e.Type)
	}
}

func (w *EventWorker) handleRecipePublished(ctx context.Context, e amqp.Event) error {
	n, err := w.notifier.FanOut(ctx, e.RecipeID, e.AuthorID)
	if err != nil {
		return fmt.Errorf("fan out recipe %d: %w", e.RecipeID, err)
	}
	fields := applog.NewFields().WithRecipe(e.RecipeID).WithUser(e.AuthorID)
	slog.InfoContext(ctx, "Processed recipe.published", append(fields.ToSlice(), "notifications", n)...)
	return nil
}

func (w *EventWorker) handleExport(ctx context.Context, e amqp.Event) error {
	list, err := w.lists.List(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("build shopping list: %w", err)
	}
	ref, err := w.exporter.Export(ctx, e.UserID, list)
	if err != nil {
		return fmt.Errorf("export shopping list of user %d: %w", e.UserID, err)
	}
	fields := applog.NewFields().WithUser(e.UserID).WithComponent(applog.ComponentSheets)
	slog.InfoContext(ctx, "Exported shopping list", append(fields.ToSlice(), "lines", len(list.Lines), "ref", ref)...)
	return nil
}
