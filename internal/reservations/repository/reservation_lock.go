package repository

import (
	"context"
	"fmt"
	reservationerrors "medisched/internal/reservations/errors"
	"medisched/pkg/config"
	"medisched/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Reservation_locks"

// LockRepository stores advisory per-resource locks.
type LockRepository interface {
	// Acquire inserts the lock, replacing an expired holder. Returns
	// ErrLockHeld if a live lock already exists for the same key.
	Acquire(ctx context.Context, lock *model.ReservationLock) error
	Release(ctx context.Context, key, owner string) error
	// Fence confirms that owner still holds a live lock on key at the given
	// time. Called inside the commit transaction, it writes the lock document
	// so a concurrent takeover conflicts with the commit. Returns ErrLockLost
	// if the lock expired or belongs to someone else.
	Fence(ctx context.Context, key, owner string, at time.Time) error
}

type mongoLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoLockRepository(cfg *config.Config) LockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoLockRepository) Acquire(ctx context.Context, lock *model.ReservationLock) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	// The TTL monitor runs once a minute, so stale locks are cleared here too.
	_, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":        lock.ID,
		"expires_at": bson.M{"$lte": lock.CreatedAt},
	})
	if err != nil {
		return fmt.Errorf("failed to clear expired lock: %w", err)
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationerrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (r *mongoLockRepository) Fence(ctx context.Context, key, owner string, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":        key,
			"owner":      owner,
			"expires_at": bson.M{"$gt": at},
		},
		bson.M{"$set": bson.M{"fenced_at": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to fence lock: %w", err)
	}
	if result.MatchedCount != 1 {
		return reservationerrors.ErrLockLost
	}
	return nil
}

func (r *mongoLockRepository) Release(ctx context.Context, key, owner string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
