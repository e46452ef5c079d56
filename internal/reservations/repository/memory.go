package repository

import (
	"context"
	reservationerrors "medisched/internal/reservations/errors"
	mongotx "medisched/pkg/db/mongo"
	"medisched/pkg/model"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryBookingRepository keeps bookings in process. It backs tests and
// single-node tooling; mutual exclusion comes from the lock repository just
// as it does for the Mongo implementation.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[string]*model.Booking)}
}

func (r *MemoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	booking.ID = primitive.NewObjectID().Hex()
	stored := *booking
	r.bookings[booking.ID] = &stored
	return nil
}

func (r *MemoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, reservationerrors.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r *MemoryBookingRepository) FindActiveOverlapping(ctx context.Context, refs []model.ResourceRef, start, end time.Time) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.filter(func(b *model.Booking) bool {
		if !b.Status.Active() || !b.StartTime.Before(end) || !b.EndTime.After(start) {
			return false
		}
		for _, ref := range refs {
			if slices.Contains(b.Resources, ref) {
				return true
			}
		}
		return false
	}), nil
}

func (r *MemoryBookingRepository) FindByStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.StaffID == staffID && b.StartTime.Before(end) && b.EndTime.After(start)
	}), nil
}

func (r *MemoryBookingRepository) filter(keep func(*model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Booking
	for _, b := range r.bookings {
		if keep(b) {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *MemoryBookingRepository) UpdateStatus(ctx context.Context, id string, change StatusChange) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, reservationerrors.ErrNotFound
	}
	if !slices.Contains(change.From, b.Status) {
		return nil, reservationerrors.ErrStatusChanged
	}
	b.Status = change.To
	b.UpdatedAt = change.At
	if change.To == model.BookingCancelled {
		at := change.At
		b.CancelledAt = &at
		b.CancelledBy = change.ActorID
		b.CancellationReason = change.CancellationReason
	}
	out := *b
	return &out, nil
}

func (r *MemoryBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return mongotx.NoopTransactionManager{}.ExecuteTransaction(ctx, fn)
}

type MemoryLockRepository struct {
	mu    sync.Mutex
	locks map[string]model.ReservationLock
}

func NewMemoryLockRepository() *MemoryLockRepository {
	return &MemoryLockRepository{locks: make(map[string]model.ReservationLock)}
}

func (r *MemoryLockRepository) Acquire(ctx context.Context, lock *model.ReservationLock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.locks[lock.ID]; ok && held.ExpiresAt.After(lock.CreatedAt) {
		return reservationerrors.ErrLockHeld
	}
	r.locks[lock.ID] = *lock
	return nil
}

func (r *MemoryLockRepository) Release(ctx context.Context, key, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.locks[key]; ok && held.Owner == owner {
		delete(r.locks, key)
	}
	return nil
}

func (r *MemoryLockRepository) Fence(ctx context.Context, key, owner string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.locks[key]
	if !ok || held.Owner != owner || !held.ExpiresAt.After(at) {
		return reservationerrors.ErrLockLost
	}
	fenced := at
	held.FencedAt = &fenced
	r.locks[key] = held
	return nil
}

// Held reports how many locks are currently stored.
func (r *MemoryLockRepository) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
