package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"foodgram/internal/auth"
	"foodgram/internal/core"
	"foodgram/internal/media"
)

// UserView is a user as seen by the viewer.
type UserView struct {
	core.User
	IsSubscribed bool
}

// Subscription is a followed author with a preview of their recipes.
type Subscription struct {
	UserView
	Recipes      []core.Recipe
	RecipesCount int64
}

type UserService struct {
	users  UserStore
	tokens TokenStore
	issuer *auth.TokenManager
	media  media.Store
}

func NewUserService(users UserStore, tokens TokenStore, issuer *auth.TokenManager, mediaStore media.Store) *UserService {
	return &UserService{users: users, tokens: tokens, issuer: issuer, media: mediaStore}
}

func (s *UserService) Register(ctx context.Context, in core.NewUser) (core.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return core.User{}, err
	}
	return s.users.CreateUser(ctx, core.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	})
}

// Login checks the credentials and issues a persisted token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.ErrInvalidCredentials
		}
		return "", err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", core.ErrInvalidCredentials
	}
	issued, err := s.issuer.Issue(u.ID)
	if err != nil {
		return "", err
	}
	if err := s.tokens.SaveToken(ctx, issued.ID, u.ID, issued.ExpiresAt); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "User logged in", "user_id", u.ID)
	return issued.Token, nil
}

func (s *UserService) Logout(ctx context.Context, tokenID string) error {
	return s.tokens.RevokeToken(ctx, tokenID)
}

// Authenticate resolves a raw token to its principal. Revoked, expired or
// forged tokens yield auth.ErrInvalidToken.
func (s *UserService) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	userID, jti, err := s.issuer.Parse(token)
	if err != nil {
		return auth.Principal{}, err
	}
	owner, err := s.tokens.TokenUser(ctx, jti)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return auth.Principal{}, auth.ErrInvalidToken
		}
		return auth.Principal{}, err
	}
	if owner != userID {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return auth.Principal{}, auth.ErrInvalidToken
		}
		return auth.Principal{}, err
	}
	return auth.Principal{User: u, TokenID: jti}, nil
}

func (s *UserService) SetPassword(ctx context.Context, u core.User, current, next string) error {
	if !auth.CheckPassword(u.PasswordHash, current) {
		return core.NewValidationError("current_password", "Invalid password.")
	}
	if next == "" {
		return core.NewValidationError("new_password", "This field is required.")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, u.ID, hash)
}

// SetAvatar stores a data URI image as the user's avatar and returns the key.
func (s *UserService) SetAvatar(ctx context.Context, u core.User, dataURI string) (string, error) {
	if dataURI == "" {
		return "", core.NewValidationError("avatar", "This field is required.")
	}
	key, err := media.SaveDataURI(ctx, s.media, media.AvatarsDir, dataURI)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) {
			return "", core.NewValidationError("avatar", "Upload a valid image.")
		}
		return "", err
	}
	if err := s.users.SetAvatar(ctx, u.ID, key); err != nil {
		return "", err
	}
	s.dropMedia(ctx, u.Avatar)
	return key, nil
}

func (s *UserService) DeleteAvatar(ctx context.Context, u core.User) error {
	if err := s.users.SetAvatar(ctx, u.ID, ""); err != nil {
		return err
	}
	s.dropMedia(ctx, u.Avatar)
	return nil
}

func (s *UserService) dropMedia(ctx context.Context, key string) {
	if key == "" || s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "Failed to delete media file", "key", key, "error", err)
	}
}

func (s *UserService) Get(ctx context.Context, viewerID, id int64) (UserView, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	following, err := s.users.IsFollowing(ctx, viewerID, id)
	if err != nil {
		return UserView{}, err
	}
	return UserView{User: u, IsSubscribed: following}, nil
}

func (s *UserService) List(ctx context.Context, viewerID int64, limit, offset int) ([]UserView, int64, error) {
	users, total, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	following, err := s.users.FollowingAmong(ctx, viewerID, ids)
	if err != nil {
		return nil, 0, err
	}
	views := make([]UserView, len(users))
	for i, u := range users {
		views[i] = UserView{User: u, IsSubscribed: following[u.ID]}
	}
	return views, total, nil
}

// Subscribe makes viewerID follow authorID and returns the author with a
// preview of up to recipesLimit recipes (negative means all).
func (s *UserService) Subscribe(ctx context.Context, viewerID, authorID int64, recipesLimit int) (Subscription, error) {
	author, err := s.users.GetUser(ctx, authorID)
	if err != nil {
		return Subscription{}, err
	}
	if err := s.users.Follow(ctx, viewerID, authorID); err != nil {
		return Subscription{}, err
	}
	return s.subscription(ctx, UserView{User: author, IsSubscribed: true}, recipesLimit)
}

func (s *UserService) Unsubscribe(ctx context.Context, viewerID, authorID int64) error {
	if _, err := s.users.GetUser(ctx, authorID); err != nil {
		return err
	}
	return s.users.Unfollow(ctx, viewerID, authorID)
}

func (s *UserService) Subscriptions(ctx context.Context, viewerID int64, limit, offset, recipesLimit int) ([]Subscription, int64, error) {
	authors, total, err := s.users.ListFollowing(ctx, viewerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Subscription, 0, len(authors))
	for _, a := range authors {
		sub, err := s.subscription(ctx, UserView{User: a, IsSubscribed: true}, recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sub)
	}
	return out, total, nil
}

func (s *UserService) subscription(ctx context.Context, author UserView, recipesLimit int) (Subscription, error) {
	recipes, count, err := s.users.RecipesByAuthor(ctx, author.ID, recipesLimit)
	if err != nil {
		return Subscription{}, fmt.Errorf("load recipes of %d: %w", author.ID, err)
	}
	return Subscription{UserView: author, Recipes: recipes, RecipesCount: count}, nil
}
