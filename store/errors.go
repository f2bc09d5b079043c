package store

import "errors"

// Error Handling Guidelines:
// - Stores: wrap with fmt.Errorf("context: %w", err), using the sentinels below
// - Handlers: map sentinels to HTTP status via apperrors

// Predefined errors for the store layer.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden indicates that the user is not authorized to perform the requested action.
	ErrForbidden = errors.New("forbidden")
)
