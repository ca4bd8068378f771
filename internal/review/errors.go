package review

import (
	"fmt"

	"github.com/conorfennell/studydeck/internal/domain"
)

// Errors returned by the controller.
var (
	// ErrEmptySession is returned by Grade when the session has no current card.
	ErrEmptySession = domain.ErrEmptySession

	// ErrCardNotFound is returned when a session card is no longer in the deck.
	ErrCardNotFound = fmt.Errorf("%w: card", domain.ErrNotFound)
)

// PersistenceError reports a deck write that did not reach the store. The
// in-memory change it describes has still been applied.
type PersistenceError struct {
	Operation string // "grade", "add", "remove_all", "load"
	Key       string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: writing %s failed: %v", e.Operation, e.Key, e.Err)
}

// Unwrap exposes both the sentinel and the store's error to errors.Is.
func (e *PersistenceError) Unwrap() []error {
	return []error{domain.ErrPersistence, e.Err}
}
