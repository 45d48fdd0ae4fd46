package storage

import (
	"context"
	"fmt"

	"foodgram/internal/core"
)

// CreateNotifications records one notification per follower. Re-delivered
// events for the same recipe are ignored, so the call is idempotent.
func (r *SQLiteRepository) CreateNotifications(ctx context.Context, recipeID int64, userIDs []int64, message string) (int, error) {
	created := 0
	err := r.inTx(ctx, func(q *Queries) error {
		now := r.now()
		for _, uid := range userIDs {
			n, err := q.CreateNotification(ctx, uid, recipeID, message, now)
			if err != nil {
				return fmt.Errorf("create notification for user %d: %w", uid, err)
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID int64, limit int) ([]core.Notification, error) {
	rows, err := r.queries.ListNotifications(ctx, userID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]core.Notification, 0, len(rows))
	for _, n := range rows {
		out = append(out, core.Notification{
			ID:        n.ID,
			UserID:    n.UserID,
			RecipeID:  n.RecipeID,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) MarkNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	n, err := r.queries.MarkNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return n, nil
}
