package amqp

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const (
	EventRecipePublished    = "recipe.published"
	EventShoppingListExport = "shopping_list.export"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is the message carried on the queue. Only the ids are sent; the
// worker loads everything else from the database.
type Event struct {
	Type      string    `json:"type"`
	RecipeID  int64     `json:"recipe_id,omitempty"`
	AuthorID  int64     `json:"author_id,omitempty"`
	UserID    int64     `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecipePublished(recipeID, authorID int64) Event {
	return Event{Type: EventRecipePublished, RecipeID: recipeID, AuthorID: authorID, Timestamp: time.Now().UTC()}
}

func NewShoppingListExport(userID int64) Event {
	return Event{Type: EventShoppingListExport, UserID: userID, Timestamp: time.Now().UTC()}
}

// Validate checks that the ids required by the event type are present.
func (e Event) Validate() error {
	switch e.Type {
	case EventRecipePublished:
		if e.RecipeID <= 0 || e.AuthorID <= 0 {
			return fmt.Errorf("%w: %s needs recipe_id and author_id", ErrInvalidEvent, e.Type)
		}
	case EventShoppingListExport:
		if e.UserID <= 0 {
			return fmt.Errorf("%w: %s needs user_id", ErrInvalidEvent, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and validates a message body.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
