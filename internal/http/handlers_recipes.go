package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"foodgram/internal/auth"
	"foodgram/internal/core"
	"foodgram/internal/services"
)

type ingredientAmountRequest struct {
	ID     int64 `json:"id"`
	Amount int64 `json:"amount"`
}

// recipeRequest is shared by create and partial update. Absent fields
// decode to zero values, which the update keeps unchanged.
type recipeRequest struct {
	Ingredients []ingredientAmountRequest `json:"ingredients"`
	Tags        []int64                   `json:"tags"`
	Image       string                    `json:"image"`
	Name        string                    `json:"name"`
	Text        string                    `json:"text"`
	CookingTime int64                     `json:"cooking_time"`
}

func (req recipeRequest) input() services.RecipeInput {
	d := core.RecipeDraft{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		TagIDs:      req.Tags,
	}
	if req.Ingredients != nil {
		d.Ingredients = make([]core.IngredientAmount, len(req.Ingredients))
		for i, it := range req.Ingredients {
			d.Ingredients[i] = core.IngredientAmount{ID: it.ID, Amount: it.Amount}
		}
	}
	return services.RecipeInput{Draft: d, ImageData: req.Image}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true":
		return true
	}
	return false
}

// recipeQuery builds the listing filter. Unknown authors simply match
// nothing; favorites and cart filters apply to the viewer only.
func recipeQuery(r *http.Request, viewerID int64, p pageParams) core.RecipeQuery {
	q := r.URL.Query()
	rq := core.RecipeQuery{Limit: p.Size, Offset: p.Offset()}
	if v := strings.TrimSpace(q.Get("author")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			rq.AuthorID = id
		} else {
			rq.AuthorID = -1
		}
	}
	for _, slug := range q["tags"] {
		if slug = strings.TrimSpace(slug); slug != "" {
			rq.TagSlugs = append(rq.TagSlugs, slug)
		}
	}
	if truthy(q.Get("is_favorited")) {
		rq.FavoritedBy = viewerID
	}
	if truthy(q.Get("is_in_shopping_cart")) {
		rq.InCartOf = viewerID
	}
	return rq
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r, s.opts.PageSize)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	viewer := auth.UserID(r.Context())
	views, total, err := s.recipes.List(r.Context(), viewer, recipeQuery(r, viewer, p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, r, s.opts.BaseURL, p, total, s.present.recipes(views))
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	v, err := s.recipes.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present.recipe(v))
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.recipes.Create(r.Context(), principal(r).User.ID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.present.recipe(v))
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	var req recipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.recipes.Update(r.Context(), principal(r).User.ID, id, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present.recipe(v))
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	if err := s.recipes.Delete(r.Context(), principal(r).User.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	if _, err := s.recipes.Get(r.Context(), 0, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"short-link": fmt.Sprintf("%s/s/%d", s.opts.BaseURL, id),
	})
}

// handleShortLink redirects a short link to the frontend recipe page.
func (s *Server) handleShortLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/recipes/%d/", id), http.StatusFound)
}

type relationFunc func(r *http.Request, userID, recipeID int64) (core.Recipe, error)

func (s *Server) addRelation(add relationFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, core.ErrNotFound)
			return
		}
		rec, err := add(r, principal(r).User.ID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.present.recipeMin(rec))
	}
}

func (s *Server) removeRelation(remove func(r *http.Request, userID, recipeID int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, core.ErrNotFound)
			return
		}
		if err := remove(r, principal(r).User.ID, id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	s.addRelation(func(r *http.Request, userID, recipeID int64) (core.Recipe, error) {
		return s.recipes.AddFavorite(r.Context(), userID, recipeID)
	})(w, r)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.removeRelation(func(r *http.Request, userID, recipeID int64) error {
		return s.recipes.RemoveFavorite(r.Context(), userID, recipeID)
	})(w, r)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	s.addRelation(func(r *http.Request, userID, recipeID int64) (core.Recipe, error) {
		return s.recipes.AddToCart(r.Context(), userID, recipeID)
	})(w, r)
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	s.removeRelation(func(r *http.Request, userID, recipeID int64) error {
		return s.recipes.RemoveFromCart(r.Context(), userID, recipeID)
	})(w, r)
}
