package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"foodgram/internal/core"
	"foodgram/internal/metrics"
)

// ErrExportUnavailable is returned when no event publisher is configured.
var ErrExportUnavailable = errors.New("shopping list export is not available")

// ShoppingListFile is a ready to download shopping list.
type ShoppingListFile struct {
	Content     []byte
	Filename    string
	ContentType string
}

// ShoppingListService aggregates the ingredients of every recipe in a
// user's cart. It only reads.
type ShoppingListService struct {
	totals    CartTotals
	publisher EventPublisher
}

func NewShoppingListService(totals CartTotals, publisher EventPublisher) *ShoppingListService {
	return &ShoppingListService{totals: totals, publisher: publisher}
}

// List returns the sorted shopping list of userID.
func (s *ShoppingListService) List(ctx context.Context, userID int64) (core.ShoppingList, error) {
	totals, err := s.totals.SumIngredientsForUserCart(ctx, userID)
	if err != nil {
		return core.ShoppingList{}, fmt.Errorf("sum cart ingredients for user %d: %w", userID, err)
	}
	return core.NewShoppingList(totals), nil
}

// Build renders the shopping list of userID as a text file. An empty cart
// yields an empty file.
func (s *ShoppingListService) Build(ctx context.Context, userID int64) (ShoppingListFile, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return ShoppingListFile{}, err
	}

	metrics.ShoppingListDownloads.Inc()
	metrics.ShoppingListLines.Observe(float64(len(list.Lines)))
	slog.DebugContext(ctx, "Shopping list built", "user_id", userID, "lines", len(list.Lines))

	return ShoppingListFile{
		Content:     []byte(list.Render()),
		Filename:    core.ShoppingListFilename,
		ContentType: core.ShoppingListContentType,
	}, nil
}

// RequestExport enqueues an asynchronous export of the user's list.
func (s *ShoppingListService) RequestExport(ctx context.Context, userID int64) error {
	if s.publisher == nil {
		return ErrExportUnavailable
	}
	if err := s.publisher.PublishShoppingListExport(ctx, userID); err != nil {
		return fmt.Errorf("publish export request: %w", err)
	}
	return nil
}
