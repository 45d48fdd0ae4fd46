package services

import (
	"context"
	"fmt"
	"log/slog"

	"foodgram/internal/core"
)

const notificationPageSize = 50

type NotificationService struct {
	store   NotificationStore
	recipes RecipeStore
}

func NewNotificationService(store NotificationStore, recipes RecipeStore) *NotificationService {
	return &NotificationService{store: store, recipes: recipes}
}

// FanOut notifies every follower of authorID about a new recipe. Repeated
// calls for the same recipe do not duplicate notifications.
func (s *NotificationService) FanOut(ctx context.Context, recipeID, authorID int64) (int, error) {
	rec, err := s.recipes.GetRecipe(ctx, recipeID)
	if err != nil {
		return 0, fmt.Errorf("load recipe %d: %w", recipeID, err)
	}
	followers, err := s.store.FollowerIDs(ctx, authorID)
	if err != nil {
		return 0, err
	}
	if len(followers) == 0 {
		return 0, nil
	}
	msg := fmt.Sprintf("%s published a new recipe: %s", rec.Author.Username, rec.Name)
	n, err := s.store.CreateNotifications(ctx, recipeID, followers, msg)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Recipe notifications created",
		"recipe_id", recipeID, "followers", len(followers), "created", n)
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID int64) ([]core.Notification, error) {
	return s.store.ListNotifications(ctx, userID, notificationPageSize)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID int64) error {
	_, err := s.store.MarkNotificationsRead(ctx, userID)
	return err
}
