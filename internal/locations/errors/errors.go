package errors

import "errors"

var (
	ErrNotFound = errors.New("location entry not found")

	ErrInvalidID = errors.New("invalid location entry ID format")
)
