package domain

import "errors"

// Errors shared by the scheduler, the review controller and the stores.
var (
	// ErrInvalidArgument is returned for out-of-contract input, such as a grade outside 0..5.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptySession is returned when grading with no current card.
	ErrEmptySession = errors.New("no current card in session")

	// ErrPersistence is returned when a durable write did not succeed.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when a key or card does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when an entity fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when stored or imported data cannot be decoded.
	ErrInvalidFormat = errors.New("invalid format")
)
