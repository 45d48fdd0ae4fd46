package services

import (
	"context"
	"time"

	"foodgram/internal/core"
)

// Ports the services depend on. storage.SQLiteRepository satisfies all of
// the store interfaces; tests use in-memory fakes.
type (
	// CartTotals is the single read the shopping list needs.
	CartTotals interface {
		SumIngredientsForUserCart(ctx context.Context, userID int64) ([]core.IngredientTotal, error)
	}

	RecipeStore interface {
		ListRecipes(ctx context.Context, q core.RecipeQuery) ([]core.Recipe, int64, error)
		GetRecipe(ctx context.Context, id int64) (core.Recipe, error)
		RecipeAuthor(ctx context.Context, id int64) (int64, error)
		CreateRecipe(ctx context.Context, authorID int64, d core.RecipeDraft) (int64, error)
		UpdateRecipe(ctx context.Context, id int64, d core.RecipeDraft) error
		DeleteRecipe(ctx context.Context, id int64) error
		RecipeFlags(ctx context.Context, userID int64, recipeIDs []int64) (favorited, inCart map[int64]bool, err error)
		FollowingAmong(ctx context.Context, userID int64, authorIDs []int64) (map[int64]bool, error)
		AddFavorite(ctx context.Context, userID, recipeID int64) error
		RemoveFavorite(ctx context.Context, userID, recipeID int64) error
		AddToCart(ctx context.Context, userID, recipeID int64) error
		RemoveFromCart(ctx context.Context, userID, recipeID int64) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		ListUsers(ctx context.Context, limit, offset int) ([]core.User, int64, error)
		UpdatePassword(ctx context.Context, userID int64, hash string) error
		SetAvatar(ctx context.Context, userID int64, key string) error
		Follow(ctx context.Context, userID, authorID int64) error
		Unfollow(ctx context.Context, userID, authorID int64) error
		IsFollowing(ctx context.Context, userID, authorID int64) (bool, error)
		FollowingAmong(ctx context.Context, userID int64, authorIDs []int64) (map[int64]bool, error)
		ListFollowing(ctx context.Context, userID int64, limit, offset int) ([]core.User, int64, error)
		RecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]core.Recipe, int64, error)
	}

	TokenStore interface {
		SaveToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
		TokenUser(ctx context.Context, jti string) (int64, error)
		RevokeToken(ctx context.Context, jti string) error
		PurgeExpiredTokens(ctx context.Context) (int64, error)
	}

	CatalogStore interface {
		ListTags(ctx context.Context) ([]core.Tag, error)
		GetTag(ctx context.Context, id int64) (core.Tag, error)
		SearchIngredients(ctx context.Context, prefix string) ([]core.Ingredient, error)
		GetIngredient(ctx context.Context, id int64) (core.Ingredient, error)
	}

	NotificationStore interface {
		FollowerIDs(ctx context.Context, authorID int64) ([]int64, error)
		CreateNotifications(ctx context.Context, recipeID int64, userIDs []int64, message string) (int, error)
		ListNotifications(ctx context.Context, userID int64, limit int) ([]core.Notification, error)
		MarkNotificationsRead(ctx context.Context, userID int64) (int64, error)
	}

	// EventPublisher is implemented by the AMQP client. A nil publisher
	// disables events.
	EventPublisher interface {
		PublishRecipePublished(ctx context.Context, recipeID, authorID int64) error
		PublishShoppingListExport(ctx context.Context, userID int64) error
	}
)
