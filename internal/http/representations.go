package http

import (
	"foodgram/internal/core"
	"foodgram/internal/media"
	"foodgram/internal/services"
)

type userJSON struct {
	Email        string  `json:"email"`
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	IsSubscribed bool    `json:"is_subscribed"`
	Avatar       *string `json:"avatar"`
}

type tagJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Slug  string `json:"slug"`
}

type ingredientJSON struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

type recipeIngredientJSON struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int64  `json:"amount"`
}

type recipeJSON struct {
	ID               int64                  `json:"id"`
	Tags             []tagJSON              `json:"tags"`
	Author           userJSON               `json:"author"`
	Ingredients      []recipeIngredientJSON `json:"ingredients"`
	IsFavorited      bool                   `json:"is_favorited"`
	IsInShoppingCart bool                   `json:"is_in_shopping_cart"`
	Name             string                 `json:"name"`
	Image            string                 `json:"image"`
	Text             string                 `json:"text"`
	CookingTime      int64                  `json:"cooking_time"`
}

// recipeMinJSON is the short form used by favorites, cart and
// subscriptions.
type recipeMinJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int64  `json:"cooking_time"`
}

type subscriptionJSON struct {
	userJSON
	Recipes      []recipeMinJSON `json:"recipes"`
	RecipesCount int64           `json:"recipes_count"`
}

type notificationJSON struct {
	ID        int64  `json:"id"`
	RecipeID  int64  `json:"recipe_id"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// presenter turns domain values into API representations. Media keys
// become absolute URLs.
type presenter struct {
	media media.Store
}

func (p presenter) mediaURL(key string) string {
	if key == "" || p.media == nil {
		return ""
	}
	return p.media.URL(key)
}

func (p presenter) user(u core.User, subscribed bool) userJSON {
	out := userJSON{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
	if u.Avatar != "" {
		url := p.mediaURL(u.Avatar)
		out.Avatar = &url
	}
	return out
}

func (p presenter) users(views []services.UserView) []userJSON {
	out := make([]userJSON, len(views))
	for i, v := range views {
		out[i] = p.user(v.User, v.IsSubscribed)
	}
	return out
}

func tagsJSON(tags []core.Tag) []tagJSON {
	out := make([]tagJSON, len(tags))
	for i, t := range tags {
		out[i] = tagJSON{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
	}
	return out
}

func ingredientsJSON(items []core.Ingredient) []ingredientJSON {
	out := make([]ingredientJSON, len(items))
	for i, it := range items {
		out[i] = ingredientJSON{ID: it.ID, Name: it.Name, MeasurementUnit: it.MeasurementUnit}
	}
	return out
}

func (p presenter) recipe(v services.RecipeView) recipeJSON {
	ings := make([]recipeIngredientJSON, len(v.Ingredients))
	for i, ri := range v.Ingredients {
		ings[i] = recipeIngredientJSON{
			ID:              ri.Ingredient.ID,
			Name:            ri.Ingredient.Name,
			MeasurementUnit: ri.Ingredient.MeasurementUnit,
			Amount:          ri.Amount,
		}
	}
	return recipeJSON{
		ID:               v.ID,
		Tags:             tagsJSON(v.Tags),
		Author:           p.user(v.Author, v.AuthorSubscribed),
		Ingredients:      ings,
		IsFavorited:      v.IsFavorited,
		IsInShoppingCart: v.IsInShoppingCart,
		Name:             v.Name,
		Image:            p.mediaURL(v.Image),
		Text:             v.Text,
		CookingTime:      v.CookingTime,
	}
}

func (p presenter) recipes(views []services.RecipeView) []recipeJSON {
	out := make([]recipeJSON, len(views))
	for i, v := range views {
		out[i] = p.recipe(v)
	}
	return out
}

func (p presenter) recipeMin(r core.Recipe) recipeMinJSON {
	return recipeMinJSON{ID: r.ID, Name: r.Name, Image: p.mediaURL(r.Image), CookingTime: r.CookingTime}
}

func (p presenter) subscription(s services.Subscription) subscriptionJSON {
	recipes := make([]recipeMinJSON, len(s.Recipes))
	for i, r := range s.Recipes {
		recipes[i] = p.recipeMin(r)
	}
	return subscriptionJSON{
		userJSON:     p.user(s.User, s.IsSubscribed),
		Recipes:      recipes,
		RecipesCount: s.RecipesCount,
	}
}

func notificationsJSON(items []core.Notification) []notificationJSON {
	out := make([]notificationJSON, len(items))
	for i, n := range items {
		out[i] = notificationJSON{
			ID:        n.ID,
			RecipeID:  n.RecipeID,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return out
}
