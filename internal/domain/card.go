package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Card is a single front/back flashcard.
// Scheduling is nil until the card has been reviewed once.
type Card struct {
	ID         string      `json:"id,omitempty"`
	Front      string      `json:"front" validate:"required,notblank"`
	Back       string      `json:"back" validate:"required,notblank"`
	Context    string      `json:"context,omitempty"`
	Hash       string      `json:"hash,omitempty"`
	Scheduling *Scheduling `json:"scheduling,omitempty"`
}

// Scheduling is the spaced repetition state of a reviewed card.
type Scheduling struct {
	Interval   int       `json:"interval" validate:"gte=0"`
	EaseFactor float64   `json:"easeFactor" validate:"gte=1.3"`
	DueDate    time.Time `json:"dueDate"`
}

func init() {
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// NewCard builds an unscheduled card with a fresh ID.
func NewCard(front, back string) (Card, error) {
	c := Card{ID: NewID(), Front: front, Back: back}
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	return c, nil
}

// NewID returns a stable opaque card identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the card's fields.
func (c Card) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: card %q: %v", ErrValidation, c.Front, err)
	}
	return nil
}

// IsDue reports whether the card should be reviewed on the given day.
// Unscheduled cards are always due.
func (c Card) IsDue(today time.Time) bool {
	if c.Scheduling == nil {
		return true
	}
	return SameOrBefore(c.Scheduling.DueDate, today)
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	if c.Scheduling != nil {
		s := *c.Scheduling
		c.Scheduling = &s
	}
	return c
}

// Deck is the ordered collection of cards, persisted as a whole.
type Deck []Card

// Clone returns a deep copy of the deck.
func (d Deck) Clone() Deck {
	if d == nil {
		return nil
	}
	out := make(Deck, len(d))
	for i, c := range d {
		out[i] = c.Clone()
	}
	return out
}

// IndexOf returns the position of the card with the given ID, or -1.
func (d Deck) IndexOf(id string) int {
	for i, c := range d {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// MarshalDeck serializes the deck as a JSON array.
func MarshalDeck(d Deck) ([]byte, error) {
	if d == nil {
		d = Deck{}
	}
	return json.Marshal(d)
}

// UnmarshalDeck parses a JSON array of cards.
func UnmarshalDeck(data []byte) (Deck, error) {
	var d Deck
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: deck: %v", ErrInvalidFormat, err)
	}
	return d, nil
}

// DateOf truncates t to its calendar date, expressed as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameOrBefore compares two instants by calendar date only.
func SameOrBefore(a, b time.Time) bool {
	return !DateOf(a).After(DateOf(b))
}
