package errors

import "errors"

var (
	ErrNotFound = errors.New("absence not found")

	ErrInvalidID = errors.New("invalid absence ID format")

	// ErrStatusChanged means the absence left the expected status before
	// the update applied.
	ErrStatusChanged = errors.New("absence status changed")
)
