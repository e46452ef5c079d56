package model

import "time"

// ReservationLock is an advisory lock on a single resource key. Its _id is
// the resource key, so a second insert fails with a duplicate key error
// while the lock is held.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	// FencedAt is written by the holder inside its commit transaction.
	FencedAt *time.Time `bson:"fenced_at,omitempty" json:"fenced_at,omitempty"`
}
