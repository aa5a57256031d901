package store

import "errors"

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidInput is returned when a required argument is missing.
	ErrInvalidInput = errors.New("invalid input")
)
