package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"foodgram/internal/cache"
	"foodgram/internal/core"
)

// CatalogService serves tags and ingredients through an LRU cache.
type CatalogService struct {
	store       CatalogStore
	tags        *cache.LRUCache[[]core.Tag]
	ingredients *cache.LRUCache[[]core.Ingredient]
}

func NewCatalogService(store CatalogStore, ttl time.Duration) *CatalogService {
	return &CatalogService{
		store:       store,
		tags:        cache.NewLRUCache[[]core.Tag](1, ttl),
		ingredients: cache.NewLRUCache[[]core.Ingredient](512, ttl),
	}
}

// Caches exposes the caches so a cache.Manager can sweep them.
func (s *CatalogService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.tags, s.ingredients}
}

// Invalidate drops cached catalog data after a bulk load.
func (s *CatalogService) Invalidate() {
	s.tags.Purge()
	s.ingredients.Purge()
}

func (s *CatalogService) Tags(ctx context.Context) ([]core.Tag, error) {
	return s.tags.GetOrLoad(ctx, "all", s.store.ListTags)
}

func (s *CatalogService) Tag(ctx context.Context, id int64) (core.Tag, error) {
	tags, err := s.Tags(ctx)
	if err != nil {
		return core.Tag{}, err
	}
	for _, t := range tags {
		if t.ID == id {
			return t, nil
		}
	}
	return s.store.GetTag(ctx, id)
}

// Ingredients returns ingredients whose name starts with prefix, ignoring
// case.
func (s *CatalogService) Ingredients(ctx context.Context, prefix string) ([]core.Ingredient, error) {
	key := strings.ToLower(strings.TrimSpace(prefix))
	return s.ingredients.GetOrLoad(ctx, "q:"+key, func(ctx context.Context) ([]core.Ingredient, error) {
		return s.store.SearchIngredients(ctx, key)
	})
}

func (s *CatalogService) Ingredient(ctx context.Context, id int64) (core.Ingredient, error) {
	items, err := s.ingredients.GetOrLoad(ctx, "id:"+strconv.FormatInt(id, 10), func(ctx context.Context) ([]core.Ingredient, error) {
		i, err := s.store.GetIngredient(ctx, id)
		if err != nil {
			return nil, err
		}
		return []core.Ingredient{i}, nil
	})
	if err != nil {
		return core.Ingredient{}, err
	}
	return items[0], nil
}
