package http

import (
	"net/http"

	"foodgram/internal/core"
)

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.catalog.Tags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagsJSON(tags))
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	t, err := s.catalog.Tag(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagsJSON([]core.Tag{t})[0])
}

// handleListIngredients filters by ?name prefix, case-insensitively.
func (s *Server) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.Ingredients(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredientsJSON(items))
}

func (s *Server) handleGetIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	it, err := s.catalog.Ingredient(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredientsJSON([]core.Ingredient{it})[0])
}
