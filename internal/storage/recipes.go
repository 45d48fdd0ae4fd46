package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"foodgram/internal/core"
)

const recipeSelect = `SELECT r.id, r.name, r.image, r.text, r.cooking_time, r.created_at,
	u.id, u.email, u.username, u.first_name, u.last_name, u.password_hash, u.avatar, u.created_at
FROM recipes r JOIN users u ON u.id = r.author_id`

type rowScanner interface{ Scan(...any) error }

func scanRecipe(row rowScanner) (core.Recipe, error) {
	var rec core.Recipe
	a := &rec.Author
	err := row.Scan(&rec.ID, &rec.Name, &rec.Image, &rec.Text, &rec.CookingTime, &rec.CreatedAt,
		&a.ID, &a.Email, &a.Username, &a.FirstName, &a.LastName, &a.PasswordHash, &a.Avatar, &a.CreatedAt)
	return rec, err
}

// recipeWhere renders the filter part of a listing query.
func recipeWhere(q core.RecipeQuery) (string, []any) {
	var conds []string
	var args []any
	if q.AuthorID != 0 {
		conds = append(conds, "r.author_id = ?")
		args = append(args, q.AuthorID)
	}
	if len(q.TagSlugs) > 0 {
		conds = append(conds, `r.id IN (SELECT rt.recipe_id FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id WHERE t.slug IN (`+placeholders(len(q.TagSlugs))+`))`)
		for _, s := range q.TagSlugs {
			args = append(args, s)
		}
	}
	if q.FavoritedBy != 0 {
		conds = append(conds, "r.id IN (SELECT recipe_id FROM favorites WHERE user_id = ?)")
		args = append(args, q.FavoritedBy)
	}
	if q.InCartOf != 0 {
		conds = append(conds, "r.id IN (SELECT recipe_id FROM shopping_cart WHERE user_id = ?)")
		args = append(args, q.InCartOf)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListRecipes returns one page of recipes, newest first, with authors, tags
// and ingredients loaded, plus the total number of matches.
func (r *SQLiteRepository) ListRecipes(ctx context.Context, q core.RecipeQuery) ([]core.Recipe, int64, error) {
	where, args := recipeWhere(q)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	query := recipeSelect + where + ` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []core.Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}

	if err := r.hydrate(ctx, recipes); err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

func (r *SQLiteRepository) GetRecipe(ctx context.Context, id int64) (core.Recipe, error) {
	rec, err := scanRecipe(r.db.QueryRowContext(ctx, recipeSelect+` WHERE r.id = ?`, id))
	if err != nil {
		return core.Recipe{}, notFound(err, "get recipe")
	}
	list := []core.Recipe{rec}
	if err := r.hydrate(ctx, list); err != nil {
		return core.Recipe{}, err
	}
	return list[0], nil
}

// RecipeAuthor returns the author id of a recipe.
func (r *SQLiteRepository) RecipeAuthor(ctx context.Context, id int64) (int64, error) {
	row, err := r.queries.GetRecipeRow(ctx, id)
	if err != nil {
		return 0, notFound(err, "get recipe")
	}
	return row.AuthorID, nil
}

// RecipesByAuthor returns up to limit of the author's newest recipes, without
// tags or ingredients, and the author's total recipe count. A negative limit
// means no limit.
func (r *SQLiteRepository) RecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]core.Recipe, int64, error) {
	recipes, total, err := r.ListRecipes(ctx, core.RecipeQuery{AuthorID: authorID, Limit: limit})
	if err != nil {
		return nil, 0, fmt.Errorf("recipes by author %d: %w", authorID, err)
	}
	return recipes, total, nil
}

// hydrate loads tags and ingredients for every recipe in place.
func (r *SQLiteRepository) hydrate(ctx context.Context, recipes []core.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]int64, len(recipes))
	index := make(map[int64]int, len(recipes))
	for i, rec := range recipes {
		ids[i] = rec.ID
		index[rec.ID] = i
	}
	in := placeholders(len(ids))
	args := int64Args(ids)

	tagRows, err := r.db.QueryContext(ctx, `SELECT rt.recipe_id, t.id, t.name, t.color, t.slug
FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id
WHERE rt.recipe_id IN (`+in+`) ORDER BY t.id`, args...)
	if err != nil {
		return fmt.Errorf("load recipe tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var row RecipeTagRow
		if err := tagRows.Scan(&row.RecipeID, &row.Tag.ID, &row.Tag.Name, &row.Tag.Color, &row.Tag.Slug); err != nil {
			return fmt.Errorf("scan recipe tag: %w", err)
		}
		rec := &recipes[index[row.RecipeID]]
		rec.Tags = append(rec.Tags, toCoreTag(row.Tag))
	}
	if err := tagRows.Err(); err != nil {
		return fmt.Errorf("load recipe tags: %w", err)
	}

	ingRows, err := r.db.QueryContext(ctx, `SELECT ri.recipe_id, i.id, i.name, i.measurement_unit, ri.amount
FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
WHERE ri.recipe_id IN (`+in+`) ORDER BY ri.id`, args...)
	if err != nil {
		return fmt.Errorf("load recipe ingredients: %w", err)
	}
	defer ingRows.Close()
	for ingRows.Next() {
		var row RecipeIngredientRow
		if err := ingRows.Scan(&row.RecipeID, &row.IngredientID, &row.Name, &row.MeasurementUnit, &row.Amount); err != nil {
			return fmt.Errorf("scan recipe ingredient: %w", err)
		}
		rec := &recipes[index[row.RecipeID]]
		rec.Ingredients = append(rec.Ingredients, core.RecipeIngredient{
			Ingredient: core.Ingredient{ID: row.IngredientID, Name: row.Name, MeasurementUnit: row.MeasurementUnit},
			Amount:     row.Amount,
		})
	}
	return ingRows.Err()
}

// checkRefs rejects drafts that point at missing tags or ingredients.
func checkRefs(ctx context.Context, q *Queries, d core.RecipeDraft) error {
	ve := &core.ValidationError{}
	for _, id := range d.TagIDs {
		if _, err := q.GetTag(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				ve.Add("tags", fmt.Sprintf("Tag %d does not exist.", id))
				continue
			}
			return fmt.Errorf("get tag: %w", err)
		}
	}
	for _, it := range d.Ingredients {
		if _, err := q.GetIngredient(ctx, it.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				ve.Add("ingredients", fmt.Sprintf("Ingredient %d does not exist.", it.ID))
				continue
			}
			return fmt.Errorf("get ingredient: %w", err)
		}
	}
	return ve.OrNil()
}

func replaceLinks(ctx context.Context, q *Queries, recipeID int64, d core.RecipeDraft) error {
	if d.TagIDs != nil {
		if err := q.DeleteRecipeTags(ctx, recipeID); err != nil {
			return fmt.Errorf("clear recipe tags: %w", err)
		}
		for _, id := range d.TagIDs {
			if err := q.InsertRecipeTag(ctx, recipeID, id); err != nil {
				return fmt.Errorf("insert recipe tag: %w", err)
			}
		}
	}
	if d.Ingredients != nil {
		if err := q.DeleteRecipeIngredients(ctx, recipeID); err != nil {
			return fmt.Errorf("clear recipe ingredients: %w", err)
		}
		for _, it := range d.Ingredients {
			if err := q.InsertRecipeIngredient(ctx, recipeID, it.ID, it.Amount); err != nil {
				return fmt.Errorf("insert recipe ingredient: %w", err)
			}
		}
	}
	return nil
}

// CreateRecipe stores a validated draft with its tags and ingredients in one
// transaction and returns the new id.
func (r *SQLiteRepository) CreateRecipe(ctx context.Context, authorID int64, d core.RecipeDraft) (int64, error) {
	var id int64
	err := r.inTx(ctx, func(q *Queries) error {
		if err := checkRefs(ctx, q, d); err != nil {
			return err
		}
		var err error
		id, err = q.CreateRecipe(ctx, CreateRecipeParams{
			AuthorID:    authorID,
			Name:        d.Name,
			Image:       d.Image,
			Text:        d.Text,
			CookingTime: d.CookingTime,
			CreatedAt:   r.now(),
		})
		if err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}
		return replaceLinks(ctx, q, id, d)
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Recipe created", "id", id, "author_id", authorID, "ingredients", len(d.Ingredients))
	return id, nil
}

// UpdateRecipe applies a partial draft. Empty scalar fields and nil slices
// keep their stored values.
func (r *SQLiteRepository) UpdateRecipe(ctx context.Context, id int64, d core.RecipeDraft) error {
	return r.inTx(ctx, func(q *Queries) error {
		cur, err := q.GetRecipeRow(ctx, id)
		if err != nil {
			return notFound(err, "get recipe")
		}
		if err := checkRefs(ctx, q, d); err != nil {
			return err
		}
		if d.Name != "" {
			cur.Name = d.Name
		}
		if d.Text != "" {
			cur.Text = d.Text
		}
		if d.CookingTime != 0 {
			cur.CookingTime = d.CookingTime
		}
		if d.Image != "" {
			cur.Image = d.Image
		}
		if err := q.UpdateRecipe(ctx, cur); err != nil {
			return fmt.Errorf("update recipe: %w", err)
		}
		return replaceLinks(ctx, q, id, d)
	})
}

func (r *SQLiteRepository) DeleteRecipe(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteRecipe(ctx, id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Recipe deleted", "id", id)
	return nil
}

// RecipeFlags reports, for the viewer, which recipes are favorited and
// which are in the shopping cart. Both lookups run concurrently.
func (r *SQLiteRepository) RecipeFlags(ctx context.Context, userID int64, recipeIDs []int64) (favorited, inCart map[int64]bool, err error) {
	favorited, inCart = map[int64]bool{}, map[int64]bool{}
	if userID == 0 || len(recipeIDs) == 0 {
		return favorited, inCart, nil
	}
	in := placeholders(len(recipeIDs))
	args := append([]any{userID}, int64Args(recipeIDs)...)

	g, gctx := errgroup.WithContext(ctx)
	load := func(table string, dst map[int64]bool) func() error {
		return func() error {
			rows, err := r.db.QueryContext(gctx,
				`SELECT recipe_id FROM `+table+` WHERE user_id = ? AND recipe_id IN (`+in+`)`, args...)
			if err != nil {
				return fmt.Errorf("load %s flags: %w", table, err)
			}
			ids, err := collectIDs(rows)
			if err != nil {
				return fmt.Errorf("load %s flags: %w", table, err)
			}
			for _, id := range ids {
				dst[id] = true
			}
			return nil
		}
	}
	g.Go(load("favorites", favorited))
	g.Go(load("shopping_cart", inCart))
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return favorited, inCart, nil
}

func relationErr(err error, what string) error {
	switch {
	case isUniqueViolation(err):
		return core.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return core.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func (r *SQLiteRepository) AddFavorite(ctx context.Context, userID, recipeID int64) error {
	if err := r.queries.CreateFavorite(ctx, userID, recipeID, r.now()); err != nil {
		return relationErr(err, "add favorite")
	}
	return nil
}

func (r *SQLiteRepository) RemoveFavorite(ctx context.Context, userID, recipeID int64) error {
	n, err := r.queries.DeleteFavorite(ctx, userID, recipeID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) AddToCart(ctx context.Context, userID, recipeID int64) error {
	if err := r.queries.CreateCartEntry(ctx, userID, recipeID, r.now()); err != nil {
		return relationErr(err, "add to cart")
	}
	return nil
}

func (r *SQLiteRepository) RemoveFromCart(ctx context.Context, userID, recipeID int64) error {
	n, err := r.queries.DeleteCartEntry(ctx, userID, recipeID)
	if err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumIngredientsForUserCart totals every ingredient over the recipes in the
// user's cart, one row per name and unit, ordered by name.
func (r *SQLiteRepository) SumIngredientsForUserCart(ctx context.Context, userID int64) ([]core.IngredientTotal, error) {
	rows, err := r.queries.SumCartIngredients(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum cart ingredients: %w", err)
	}
	out := make([]core.IngredientTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.IngredientTotal{Name: row.Name, Unit: row.MeasurementUnit, Total: row.TotalAmount})
	}
	return out, nil
}
