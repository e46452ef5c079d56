package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrLockHeld is returned when another reservation holds the resource lock.
	ErrLockHeld = errors.New("reservation lock is held")

	// ErrLockLost is returned when a lock expired or changed owner before
	// the holder could commit under it.
	ErrLockLost = errors.New("reservation lock lost")

	// ErrStatusChanged is returned when a conditional status update finds the
	// booking in a status it was not expected to be in.
	ErrStatusChanged = errors.New("booking status changed concurrently")
)
