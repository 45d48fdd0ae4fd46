package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"foodgram/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	// now is truncated to whole seconds so stored timestamps share one
	// fixed-width text layout and compare correctly as strings.
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// notFound turns sql.ErrNoRows into core.ErrNotFound and wraps the rest.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func toCoreUser(u User) core.User {
	return core.User{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt,
	}
}

func toCoreUsers(rows []User) []core.User {
	out := make([]core.User, 0, len(rows))
	for _, u := range rows {
		out = append(out, toCoreUser(u))
	}
	return out
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row, err := r.queries.CreateUser(ctx, CreateUserParams{
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		CreatedAt:    r.now(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "users.email") {
				return core.User{}, core.NewValidationError("email", "A user with that email already exists.")
			}
			return core.User{}, core.NewValidationError("username", "A user with that username already exists.")
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "id", row.ID, "username", row.Username)
	return toCoreUser(row), nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, notFound(err, "get user")
	}
	return toCoreUser(row), nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return core.User{}, notFound(err, "get user by email")
	}
	return toCoreUser(row), nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context, limit, offset int) ([]core.User, int64, error) {
	total, err := r.queries.CountUsers(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := r.queries.ListUsers(ctx, int64(limit), int64(offset))
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return toCoreUsers(rows), total, nil
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	n, err := r.queries.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetAvatar(ctx context.Context, userID int64, key string) error {
	n, err := r.queries.UpdateAvatar(ctx, userID, key)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Tokens

func (r *SQLiteRepository) SaveToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	if err := r.queries.CreateAuthToken(ctx, jti, userID, expiresAt.UTC().Truncate(time.Second), r.now()); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// TokenUser returns the owner of a live token, or core.ErrNotFound when the
// token was revoked or has expired.
func (r *SQLiteRepository) TokenUser(ctx context.Context, jti string) (int64, error) {
	userID, err := r.queries.GetAuthTokenUser(ctx, jti, r.now())
	if err != nil {
		return 0, notFound(err, "get token")
	}
	return userID, nil
}

func (r *SQLiteRepository) RevokeToken(ctx context.Context, jti string) error {
	if _, err := r.queries.DeleteAuthToken(ctx, jti); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteExpiredAuthTokens(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Expired tokens purged", "count", n)
	}
	return n, nil
}

// Subscriptions

func (r *SQLiteRepository) Follow(ctx context.Context, userID, authorID int64) error {
	if userID == authorID {
		return core.ErrSelfFollow
	}
	err := r.queries.CreateFollow(ctx, userID, authorID, r.now())
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return core.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return core.ErrNotFound
	default:
		return fmt.Errorf("create follow: %w", err)
	}
}

func (r *SQLiteRepository) Unfollow(ctx context.Context, userID, authorID int64) error {
	n, err := r.queries.DeleteFollow(ctx, userID, authorID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) IsFollowing(ctx context.Context, userID, authorID int64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	ok, err := r.queries.IsFollowing(ctx, userID, authorID)
	if err != nil {
		return false, fmt.Errorf("is following: %w", err)
	}
	return ok, nil
}

// FollowingAmong reports which of authorIDs userID follows.
func (r *SQLiteRepository) FollowingAmong(ctx context.Context, userID int64, authorIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	if userID == 0 || len(authorIDs) == 0 {
		return out, nil
	}
	query := `SELECT following_id FROM follows WHERE user_id = ? AND following_id IN (` + placeholders(len(authorIDs)) + `)`
	args := append([]any{userID}, int64Args(authorIDs)...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("following among: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("following among: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *SQLiteRepository) ListFollowing(ctx context.Context, userID int64, limit, offset int) ([]core.User, int64, error) {
	total, err := r.queries.CountFollowing(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("count following: %w", err)
	}
	rows, err := r.queries.ListFollowing(ctx, userID, int64(limit), int64(offset))
	if err != nil {
		return nil, 0, fmt.Errorf("list following: %w", err)
	}
	return toCoreUsers(rows), total, nil
}

func (r *SQLiteRepository) FollowerIDs(ctx context.Context, authorID int64) ([]int64, error) {
	ids, err := r.queries.ListFollowerIDs(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return ids, nil
}
