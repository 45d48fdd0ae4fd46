package http

import (
	"net/http"
	"strconv"
	"strings"

	"foodgram/internal/auth"
	"foodgram/internal/core"
	"foodgram/internal/validation"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email      string  `json:"email"`
	Username   string  `json:"username"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Password   string  `json:"password"`
	RePassword *string `json:"re_password"`
}

type setPasswordRequest struct {
	NewPassword     string `json:"new_password" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

type avatarRequest struct {
	Avatar string `json:"avatar" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Logout(r.Context(), principal(r).TokenID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RePassword != nil && *req.RePassword != req.Password {
		writeError(w, r, core.NewValidationError("re_password", "The two password fields didn't match."))
		return
	}
	u, err := s.users.Register(r.Context(), core.NewUser{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.present.user(u, false))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r, s.opts.PageSize)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	views, total, err := s.users.List(r.Context(), auth.UserID(r.Context()), p.Size, p.Offset())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, r, s.opts.BaseURL, p, total, s.present.users(views))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	v, err := s.users.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present.user(v.User, v.IsSubscribed))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.present.user(principal(r).User, false))
}

func (s *Server) handleSetAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	key, err := s.users.SetAvatar(r.Context(), principal(r).User, req.Avatar)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar": s.present.mediaURL(key)})
}

func (s *Server) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := s.users.DeleteAvatar(r.Context(), principal(r).User); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.users.SetPassword(r.Context(), principal(r).User, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recipesLimit reads ?recipes_limit. Absent or malformed means no limit.
func recipesLimit(r *http.Request) int {
	v := strings.TrimSpace(r.URL.Query().Get("recipes_limit"))
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r, s.opts.PageSize)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	subs, total, err := s.users.Subscriptions(r.Context(), principal(r).User.ID, p.Size, p.Offset(), recipesLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]subscriptionJSON, len(subs))
	for i, sub := range subs {
		out[i] = s.present.subscription(sub)
	}
	writePage(w, r, s.opts.BaseURL, p, total, out)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	sub, err := s.users.Subscribe(r.Context(), principal(r).User.ID, id, recipesLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.present.subscription(sub))
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, core.ErrNotFound)
		return
	}
	if err := s.users.Unsubscribe(r.Context(), principal(r).User.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
