package core

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const (
	MinAmount      = 1
	MaxAmount      = 32000
	MinCookingTime = 1
	MaxCookingTime = 32000

	MaxRecipeNameLength = 256
	MaxEmailLength      = 254
	MaxUsernameLength   = 150
	MaxPersonNameLength = 150
	MaxTagNameLength    = 200
	MaxIngredientName   = 128
	MaxUnitLength       = 64
)

type (
	Tag struct {
		ID    int64
		Name  string
		Color string // #RRGGBB or empty
		Slug  string
	}

	Ingredient struct {
		ID              int64
		Name            string
		MeasurementUnit string
	}

	User struct {
		ID           int64
		Email        string
		Username     string
		FirstName    string
		LastName     string
		PasswordHash string
		Avatar       string // media key, empty when unset
		CreatedAt    time.Time
	}

	// RecipeIngredient is one ingredient line of a recipe.
	RecipeIngredient struct {
		Ingredient Ingredient
		Amount     int64
	}

	Recipe struct {
		ID          int64
		Author      User
		Name        string
		Image       string // media key
		Text        string
		CookingTime int64
		Tags        []Tag
		Ingredients []RecipeIngredient
		CreatedAt   time.Time
	}

	// IngredientAmount references a catalog ingredient by id, as sent by clients.
	IngredientAmount struct {
		ID     int64
		Amount int64
	}

	// RecipeDraft carries the writable fields of a recipe. On update nil
	// slices and empty strings mean "keep the current value".
	RecipeDraft struct {
		Name        string
		Text        string
		CookingTime int64
		Image       string
		TagIDs      []int64
		Ingredients []IngredientAmount
	}

	Notification struct {
		ID        int64
		UserID    int64
		RecipeID  int64
		Message   string
		Read      bool
		CreatedAt time.Time
	}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrSelfFollow         = errors.New("cannot subscribe to yourself")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	colorPattern    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// ValidationError maps field names to human readable problems.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, field+": "+strings.Join(msgs, ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, msg string) *ValidationError {
	ve := &ValidationError{}
	ve.Add(field, msg)
	return ve
}

// NewUser holds registration input.
type NewUser struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

func (u NewUser) Validate() error {
	ve := &ValidationError{}
	email := strings.TrimSpace(u.Email)
	switch {
	case email == "":
		ve.Add("email", "This field is required.")
	case len(email) > MaxEmailLength:
		ve.Add("email", "Ensure this field has no more than 254 characters.")
	default:
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			ve.Add("email", "Enter a valid email address.")
		}
	}
	switch {
	case strings.TrimSpace(u.Username) == "":
		ve.Add("username", "This field is required.")
	case len(u.Username) > MaxUsernameLength:
		ve.Add("username", "Ensure this field has no more than 150 characters.")
	case !usernamePattern.MatchString(u.Username):
		ve.Add("username", "Enter a valid username.")
	}
	validatePersonName(ve, "first_name", u.FirstName)
	validatePersonName(ve, "last_name", u.LastName)
	if u.Password == "" {
		ve.Add("password", "This field is required.")
	}
	return ve.OrNil()
}

func validatePersonName(ve *ValidationError, field, v string) {
	if strings.TrimSpace(v) == "" {
		ve.Add(field, "This field is required.")
		return
	}
	if len(v) > MaxPersonNameLength {
		ve.Add(field, "Ensure this field has no more than 150 characters.")
	}
}

func (t Tag) Validate() error {
	ve := &ValidationError{}
	if strings.TrimSpace(t.Name) == "" || len(t.Name) > MaxTagNameLength {
		ve.Add("name", "Tag name must be 1-200 characters.")
	}
	if strings.TrimSpace(t.Slug) == "" || len(t.Slug) > MaxTagNameLength {
		ve.Add("slug", "Tag slug must be 1-200 characters.")
	}
	if t.Color != "" && !colorPattern.MatchString(t.Color) {
		ve.Add("color", "Color must be a #RRGGBB hex code.")
	}
	return ve.OrNil()
}

func (i Ingredient) Validate() error {
	ve := &ValidationError{}
	if strings.TrimSpace(i.Name) == "" || len(i.Name) > MaxIngredientName {
		ve.Add("name", "Ingredient name must be 1-128 characters.")
	}
	if strings.TrimSpace(i.MeasurementUnit) == "" || len(i.MeasurementUnit) > MaxUnitLength {
		ve.Add("measurement_unit", "Measurement unit must be 1-64 characters.")
	}
	return ve.OrNil()
}

// ValidateCreate checks a draft used to create a new recipe.
func (d RecipeDraft) ValidateCreate() error {
	ve := &ValidationError{}
	if d.Image == "" {
		ve.Add("image", "An image is required when creating a recipe.")
	}
	d.validateCommon(ve, true)
	return ve.OrNil()
}

// ValidateUpdate checks a partial draft; only present fields are checked.
func (d RecipeDraft) ValidateUpdate() error {
	ve := &ValidationError{}
	d.validateCommon(ve, false)
	return ve.OrNil()
}

func (d RecipeDraft) validateCommon(ve *ValidationError, create bool) {
	if create || d.Name != "" {
		switch {
		case strings.TrimSpace(d.Name) == "":
			ve.Add("name", "This field is required.")
		case len([]rune(d.Name)) > MaxRecipeNameLength:
			ve.Add("name", "Ensure this field has no more than 256 characters.")
		}
	}
	if create && strings.TrimSpace(d.Text) == "" {
		ve.Add("text", "This field is required.")
	}
	if create || d.CookingTime != 0 {
		if d.CookingTime < MinCookingTime || d.CookingTime > MaxCookingTime {
			ve.Add("cooking_time", "Cooking time must be between 1 and 32000.")
		}
	}
	if create || d.Ingredients != nil {
		validateIngredients(ve, d.Ingredients)
	}
	if create || d.TagIDs != nil {
		validateTags(ve, d.TagIDs)
	}
}

func validateIngredients(ve *ValidationError, items []IngredientAmount) {
	if len(items) == 0 {
		ve.Add("ingredients", "At least one ingredient is required.")
		return
	}
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			ve.Add("ingredients", "Ingredients must not repeat.")
			return
		}
		seen[it.ID] = struct{}{}
		if it.Amount < MinAmount || it.Amount > MaxAmount {
			ve.Add("ingredients", "Amount must be between 1 and 32000.")
			return
		}
	}
}

func validateTags(ve *ValidationError, ids []int64) {
	if len(ids) == 0 {
		ve.Add("tags", "At least one tag is required.")
		return
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			ve.Add("tags", "Tags must not repeat.")
			return
		}
		seen[id] = struct{}{}
	}
}

// RecipeQuery filters and pages a recipe listing. Zero values disable a
// filter.
type RecipeQuery struct {
	AuthorID    int64
	TagSlugs    []string
	FavoritedBy int64
	InCartOf    int64
	Limit       int
	Offset      int
}
