package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the static statements; dynamic list filters are built in
// the repository.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Rows mirror the table layout.

type User struct {
	ID           int64
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
}

type Recipe struct {
	ID          int64
	AuthorID    int64
	Name        string
	Image       string
	Text        string
	CookingTime int64
	CreatedAt   time.Time
}

type Tag struct {
	ID    int64
	Name  string
	Color string
	Slug  string
}

type Ingredient struct {
	ID              int64
	Name            string
	MeasurementUnit string
}

type RecipeIngredientRow struct {
	RecipeID        int64
	IngredientID    int64
	Name            string
	MeasurementUnit string
	Amount          int64
}

type RecipeTagRow struct {
	RecipeID int64
	Tag      Tag
}

type CartIngredientSum struct {
	Name            string
	MeasurementUnit string
	TotalAmount     int64
}

type Notification struct {
	ID        int64
	UserID    int64
	RecipeID  int64
	Message   string
	Read      bool
	CreatedAt time.Time
}

const userColumns = `id, email, username, first_name, last_name, password_hash, avatar, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Avatar, &u.CreatedAt)
	return u, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, username, first_name, last_name, password_hash, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Email, arg.Username, arg.FirstName, arg.LastName, arg.PasswordHash, arg.CreatedAt)
	return scanUser(row)
}

const getUser = `-- name: GetUser :one
SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE email = ? COLLATE NOCASE`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT ? OFFSET ?`

func (q *Queries) ListUsers(ctx context.Context, limit, offset int64) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

const countUsers = `-- name: CountUsers :one
SELECT COUNT(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, err
}

const updatePassword = `-- name: UpdatePassword :execrows
UPDATE users SET password_hash = ? WHERE id = ?`

func (q *Queries) UpdatePassword(ctx context.Context, id int64, hash string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updatePassword, hash, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateAvatar = `-- name: UpdateAvatar :execrows
UPDATE users SET avatar = ? WHERE id = ?`

func (q *Queries) UpdateAvatar(ctx context.Context, id int64, avatar string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateAvatar, avatar, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createAuthToken = `-- name: CreateAuthToken :exec
INSERT INTO auth_tokens (jti, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateAuthToken(ctx context.Context, jti string, userID int64, expiresAt, createdAt time.Time) error {
	_, err := q.db.ExecContext(ctx, createAuthToken, jti, userID, expiresAt, createdAt)
	return err
}

const getAuthTokenUser = `-- name: GetAuthTokenUser :one
SELECT user_id FROM auth_tokens WHERE jti = ? AND expires_at > ?`

func (q *Queries) GetAuthTokenUser(ctx context.Context, jti string, now time.Time) (int64, error) {
	var userID int64
	err := q.db.QueryRowContext(ctx, getAuthTokenUser, jti, now).Scan(&userID)
	return userID, err
}

const deleteAuthToken = `-- name: DeleteAuthToken :execrows
DELETE FROM auth_tokens WHERE jti = ?`

func (q *Queries) DeleteAuthToken(ctx context.Context, jti string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAuthToken, jti)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpiredAuthTokens = `-- name: DeleteExpiredAuthTokens :execrows
DELETE FROM auth_tokens WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredAuthTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredAuthTokens, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createFollow = `-- name: CreateFollow :exec
INSERT INTO follows (user_id, following_id, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreateFollow(ctx context.Context, userID, followingID int64, createdAt time.Time) error {
	_, err := q.db.ExecContext(ctx, createFollow, userID, followingID, createdAt)
	return err
}

const deleteFollow = `-- name: DeleteFollow :execrows
DELETE FROM follows WHERE user_id = ? AND following_id = ?`

func (q *Queries) DeleteFollow(ctx context.Context, userID, followingID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteFollow, userID, followingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const isFollowing = `-- name: IsFollowing :one
SELECT EXISTS(SELECT 1 FROM follows WHERE user_id = ? AND following_id = ?)`

func (q *Queries) IsFollowing(ctx context.Context, userID, followingID int64) (bool, error) {
	var ok bool
	err := q.db.QueryRowContext(ctx, isFollowing, userID, followingID).Scan(&ok)
	return ok, err
}

const listFollowing = `-- name: ListFollowing :many
SELECT u.id, u.email, u.username, u.first_name, u.last_name, u.password_hash, u.avatar, u.created_at
FROM follows f JOIN users u ON u.id = f.following_id
WHERE f.user_id = ?
ORDER BY f.created_at DESC, f.id DESC
LIMIT ? OFFSET ?`

func (q *Queries) ListFollowing(ctx context.Context, userID, limit, offset int64) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listFollowing, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

const countFollowing = `-- name: CountFollowing :one
SELECT COUNT(*) FROM follows WHERE user_id = ?`

func (q *Queries) CountFollowing(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countFollowing, userID).Scan(&n)
	return n, err
}

const listFollowerIDs = `-- name: ListFollowerIDs :many
SELECT user_id FROM follows WHERE following_id = ? ORDER BY user_id`

func (q *Queries) ListFollowerIDs(ctx context.Context, followingID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listFollowerIDs, followingID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

const listTags = `-- name: ListTags :many
SELECT id, name, color, slug FROM tags ORDER BY id`

func (q *Queries) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := q.db.QueryContext(ctx, listTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.Slug); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTag = `-- name: GetTag :one
SELECT id, name, color, slug FROM tags WHERE id = ?`

func (q *Queries) GetTag(ctx context.Context, id int64) (Tag, error) {
	var t Tag
	err := q.db.QueryRowContext(ctx, getTag, id).Scan(&t.ID, &t.Name, &t.Color, &t.Slug)
	return t, err
}

const insertTag = `-- name: InsertTag :execrows
INSERT OR IGNORE INTO tags (name, color, slug) VALUES (?, ?, ?)`

func (q *Queries) InsertTag(ctx context.Context, name, color, slug string) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertTag, name, color, slug)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const searchIngredients = `-- name: SearchIngredients :many
SELECT id, name, measurement_unit FROM ingredients
WHERE unicode_lower(name) LIKE ? ESCAPE '\'
ORDER BY name, measurement_unit`

func (q *Queries) SearchIngredients(ctx context.Context, pattern string) ([]Ingredient, error) {
	rows, err := q.db.QueryContext(ctx, searchIngredients, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Ingredient
	for rows.Next() {
		var i Ingredient
		if err := rows.Scan(&i.ID, &i.Name, &i.MeasurementUnit); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getIngredient = `-- name: GetIngredient :one
SELECT id, name, measurement_unit FROM ingredients WHERE id = ?`

func (q *Queries) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	var i Ingredient
	err := q.db.QueryRowContext(ctx, getIngredient, id).Scan(&i.ID, &i.Name, &i.MeasurementUnit)
	return i, err
}

const insertIngredient = `-- name: InsertIngredient :execrows
INSERT OR IGNORE INTO ingredients (name, measurement_unit) VALUES (?, ?)`

func (q *Queries) InsertIngredient(ctx context.Context, name, unit string) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertIngredient, name, unit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createRecipe = `-- name: CreateRecipe :one
INSERT INTO recipes (author_id, name, image, text, cooking_time, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateRecipeParams struct {
	AuthorID    int64
	Name        string
	Image       string
	Text        string
	CookingTime int64
	CreatedAt   time.Time
}

func (q *Queries) CreateRecipe(ctx context.Context, arg CreateRecipeParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createRecipe,
		arg.AuthorID, arg.Name, arg.Image, arg.Text, arg.CookingTime, arg.CreatedAt).Scan(&id)
	return id, err
}

const getRecipeRow = `-- name: GetRecipeRow :one
SELECT id, author_id, name, image, text, cooking_time, created_at FROM recipes WHERE id = ?`

func (q *Queries) GetRecipeRow(ctx context.Context, id int64) (Recipe, error) {
	var r Recipe
	err := q.db.QueryRowContext(ctx, getRecipeRow, id).
		Scan(&r.ID, &r.AuthorID, &r.Name, &r.Image, &r.Text, &r.CookingTime, &r.CreatedAt)
	return r, err
}

const updateRecipe = `-- name: UpdateRecipe :exec
UPDATE recipes SET name = ?, image = ?, text = ?, cooking_time = ? WHERE id = ?`

func (q *Queries) UpdateRecipe(ctx context.Context, r Recipe) error {
	_, err := q.db.ExecContext(ctx, updateRecipe, r.Name, r.Image, r.Text, r.CookingTime, r.ID)
	return err
}

const deleteRecipe = `-- name: DeleteRecipe :execrows
DELETE FROM recipes WHERE id = ?`

func (q *Queries) DeleteRecipe(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRecipe, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertRecipeTag = `-- name: InsertRecipeTag :exec
INSERT INTO recipe_tags (recipe_id, tag_id) VALUES (?, ?)`

func (q *Queries) InsertRecipeTag(ctx context.Context, recipeID, tagID int64) error {
	_, err := q.db.ExecContext(ctx, insertRecipeTag, recipeID, tagID)
	return err
}

const deleteRecipeTags = `-- name: DeleteRecipeTags :exec
DELETE FROM recipe_tags WHERE recipe_id = ?`

func (q *Queries) DeleteRecipeTags(ctx context.Context, recipeID int64) error {
	_, err := q.db.ExecContext(ctx, deleteRecipeTags, recipeID)
	return err
}

const insertRecipeIngredient = `-- name: InsertRecipeIngredient :exec
INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount) VALUES (?, ?, ?)`

func (q *Queries) InsertRecipeIngredient(ctx context.Context, recipeID, ingredientID, amount int64) error {
	_, err := q.db.ExecContext(ctx, insertRecipeIngredient, recipeID, ingredientID, amount)
	return err
}

const deleteRecipeIngredients = `-- name: DeleteRecipeIngredients :exec
DELETE FROM recipe_ingredients WHERE recipe_id = ?`

func (q *Queries) DeleteRecipeIngredients(ctx context.Context, recipeID int64) error {
	_, err := q.db.ExecContext(ctx, deleteRecipeIngredients, recipeID)
	return err
}

const countRecipesByAuthor = `-- name: CountRecipesByAuthor :one
SELECT COUNT(*) FROM recipes WHERE author_id = ?`

func (q *Queries) CountRecipesByAuthor(ctx context.Context, authorID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countRecipesByAuthor, authorID).Scan(&n)
	return n, err
}

const createFavorite = `-- name: CreateFavorite :exec
INSERT INTO favorites (user_id, recipe_id, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreateFavorite(ctx context.Context, userID, recipeID int64, createdAt time.Time) error {
	_, err := q.db.ExecContext(ctx, createFavorite, userID, recipeID, createdAt)
	return err
}

const deleteFavorite = `-- name: DeleteFavorite :execrows
DELETE FROM favorites WHERE user_id = ? AND recipe_id = ?`

func (q *Queries) DeleteFavorite(ctx context.Context, userID, recipeID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteFavorite, userID, recipeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createCartEntry = `-- name: CreateCartEntry :exec
INSERT INTO shopping_cart (user_id, recipe_id, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreateCartEntry(ctx context.Context, userID, recipeID int64, createdAt time.Time) error {
	_, err := q.db.ExecContext(ctx, createCartEntry, userID, recipeID, createdAt)
	return err
}

const deleteCartEntry = `-- name: DeleteCartEntry :execrows
DELETE FROM shopping_cart WHERE user_id = ? AND recipe_id = ?`

func (q *Queries) DeleteCartEntry(ctx context.Context, userID, recipeID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCartEntry, userID, recipeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const sumCartIngredients = `-- name: SumCartIngredients :many
SELECT i.name, i.measurement_unit, SUM(ri.amount) AS total_amount
FROM shopping_cart sc
JOIN recipe_ingredients ri ON ri.recipe_id = sc.recipe_id
JOIN ingredients i ON i.id = ri.ingredient_id
WHERE sc.user_id = ?
GROUP BY i.name, i.measurement_unit
ORDER BY i.name, i.measurement_unit`

func (q *Queries) SumCartIngredients(ctx context.Context, userID int64) ([]CartIngredientSum, error) {
	rows, err := q.db.QueryContext(ctx, sumCartIngredients, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartIngredientSum
	for rows.Next() {
		var s CartIngredientSum
		if err := rows.Scan(&s.Name, &s.MeasurementUnit, &s.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const createNotification = `-- name: CreateNotification :execrows
INSERT OR IGNORE INTO notifications (user_id, recipe_id, message, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateNotification(ctx context.Context, userID, recipeID int64, message string, createdAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, createNotification, userID, recipeID, message, createdAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listNotifications = `-- name: ListNotifications :many
SELECT id, user_id, recipe_id, message, read, created_at FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`

func (q *Queries) ListNotifications(ctx context.Context, userID, limit int64) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.RecipeID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

const markNotificationsRead = `-- name: MarkNotificationsRead :execrows
UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`

func (q *Queries) MarkNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markNotificationsRead, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
