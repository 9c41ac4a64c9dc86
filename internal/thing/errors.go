package thing

import "errors"

// Domain-specific errors for description handling.
var (
	// ErrInvalidDescription is returned when a document is not a Thing
	// description (malformed JSON, wrong top-level shape, empty array).
	ErrInvalidDescription = errors.New("thing: invalid description")

	// ErrInvalidForm is returned when a form's href cannot be resolved.
	ErrInvalidForm = errors.New("thing: invalid form")
)
