package settings

import "errors"

var (
	// ErrURLExists is returned when adding a URL that is already stored.
	ErrURLExists = errors.New("settings: url already stored")

	// ErrURLNotFound is returned when removing a URL that is not stored.
	ErrURLNotFound = errors.New("settings: url not found")

	// ErrInvalidURL is returned for empty URLs.
	ErrInvalidURL = errors.New("settings: invalid url")
)
