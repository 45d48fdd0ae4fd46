package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"foodgram/internal/core"
	"foodgram/internal/media"
)

// RecipeView is a recipe seen by a particular viewer.
type RecipeView struct {
	core.Recipe
	IsFavorited      bool
	IsInShoppingCart bool
	AuthorSubscribed bool
}

// RecipeInput is a create or update request. ImageData, when set, is a
// base64 data URI that replaces the stored image.
type RecipeInput struct {
	Draft     core.RecipeDraft
	ImageData string
}

type RecipeService struct {
	store     RecipeStore
	media     media.Store
	publisher EventPublisher
}

func NewRecipeService(store RecipeStore, mediaStore media.Store, publisher EventPublisher) *RecipeService {
	return &RecipeService{store: store, media: mediaStore, publisher: publisher}
}

func (s *RecipeService) List(ctx context.Context, viewerID int64, q core.RecipeQuery) ([]RecipeView, int64, error) {
	if viewerID == 0 {
		q.FavoritedBy, q.InCartOf = 0, 0
	}
	recipes, total, err := s.store.ListRecipes(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.decorate(ctx, viewerID, recipes)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *RecipeService) Get(ctx context.Context, viewerID, id int64) (RecipeView, error) {
	rec, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return RecipeView{}, err
	}
	views, err := s.decorate(ctx, viewerID, []core.Recipe{rec})
	if err != nil {
		return RecipeView{}, err
	}
	return views[0], nil
}

func (s *RecipeService) decorate(ctx context.Context, viewerID int64, recipes []core.Recipe) ([]RecipeView, error) {
	views := make([]RecipeView, len(recipes))
	if len(recipes) == 0 {
		return views, nil
	}
	ids := make([]int64, len(recipes))
	authors := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
		authors[i] = r.Author.ID
	}
	fav, cart, err := s.store.RecipeFlags(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	following, err := s.store.FollowingAmong(ctx, viewerID, authors)
	if err != nil {
		return nil, err
	}
	for i, r := range recipes {
		views[i] = RecipeView{
			Recipe:           r,
			IsFavorited:      fav[r.ID],
			IsInShoppingCart: cart[r.ID],
			AuthorSubscribed: following[r.Author.ID],
		}
	}
	return views, nil
}

// saveImage stores in.ImageData, if any, and points the draft at it.
func (s *RecipeService) saveImage(ctx context.Context, in *RecipeInput) error {
	if in.ImageData == "" {
		return nil
	}
	key, err := media.SaveDataURI(ctx, s.media, media.RecipeImagesDir, in.ImageData)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) {
			return core.NewValidationError("image", "Upload a valid image.")
		}
		return err
	}
	in.Draft.Image = key
	return nil
}

func (s *RecipeService) Create(ctx context.Context, authorID int64, in RecipeInput) (RecipeView, error) {
	check := in.Draft
	if in.ImageData != "" {
		check.Image = "pending"
	}
	if err := check.ValidateCreate(); err != nil {
		return RecipeView{}, err
	}
	if err := s.saveImage(ctx, &in); err != nil {
		return RecipeView{}, err
	}

	id, err := s.store.CreateRecipe(ctx, authorID, in.Draft)
	if err != nil {
		s.discardImage(ctx, in.Draft.Image)
		return RecipeView{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRecipePublished(ctx, id, authorID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish recipe event", "recipe_id", id, "error", err)
		}
	}
	return s.Get(ctx, authorID, id)
}

// Update applies a partial change. Only the author may edit a recipe.
func (s *RecipeService) Update(ctx context.Context, userID, id int64, in RecipeInput) (RecipeView, error) {
	if err := s.authorize(ctx, userID, id); err != nil {
		return RecipeView{}, err
	}
	if err := in.Draft.ValidateUpdate(); err != nil {
		return RecipeView{}, err
	}
	var old string
	if in.ImageData != "" {
		cur, err := s.store.GetRecipe(ctx, id)
		if err != nil {
			return RecipeView{}, err
		}
		old = cur.Image
		if err := s.saveImage(ctx, &in); err != nil {
			return RecipeView{}, err
		}
	}
	if err := s.store.UpdateRecipe(ctx, id, in.Draft); err != nil {
		s.discardImage(ctx, in.Draft.Image)
		return RecipeView{}, err
	}
	s.discardImage(ctx, old)
	return s.Get(ctx, userID, id)
}

func (s *RecipeService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.authorize(ctx, userID, id); err != nil {
		return err
	}
	rec, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRecipe(ctx, id); err != nil {
		return err
	}
	s.discardImage(ctx, rec.Image)
	return nil
}

func (s *RecipeService) authorize(ctx context.Context, userID, id int64) error {
	authorID, err := s.store.RecipeAuthor(ctx, id)
	if err != nil {
		return err
	}
	if authorID != userID {
		return core.ErrForbidden
	}
	return nil
}

func (s *RecipeService) discardImage(ctx context.Context, key string) {
	if key == "" || s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "Failed to delete media file", "key", key, "error", err)
	}
}

// AddFavorite marks a recipe as a favorite of userID and returns it.
func (s *RecipeService) AddFavorite(ctx context.Context, userID, recipeID int64) (core.Recipe, error) {
	return s.relate(ctx, recipeID, func() error { return s.store.AddFavorite(ctx, userID, recipeID) })
}

func (s *RecipeService) RemoveFavorite(ctx context.Context, userID, recipeID int64) error {
	if _, err := s.store.RecipeAuthor(ctx, recipeID); err != nil {
		return err
	}
	return s.store.RemoveFavorite(ctx, userID, recipeID)
}

// AddToCart puts a recipe into the shopping cart of userID and returns it.
func (s *RecipeService) AddToCart(ctx context.Context, userID, recipeID int64) (core.Recipe, error) {
	return s.relate(ctx, recipeID, func() error { return s.store.AddToCart(ctx, userID, recipeID) })
}

func (s *RecipeService) RemoveFromCart(ctx context.Context, userID, recipeID int64) error {
	if _, err := s.store.RecipeAuthor(ctx, recipeID); err != nil {
		return err
	}
	return s.store.RemoveFromCart(ctx, userID, recipeID)
}

func (s *RecipeService) relate(ctx context.Context, recipeID int64, add func() error) (core.Recipe, error) {
	rec, err := s.store.GetRecipe(ctx, recipeID)
	if err != nil {
		return core.Recipe{}, err
	}
	if err := add(); err != nil {
		return core.Recipe{}, fmt.Errorf("recipe %d: %w", recipeID, err)
	}
	return rec, nil
}
