package service

import (
	"context"
	"errors"
	"fmt"
	reservationerrors "medisched/internal/reservations/errors"
	"medisched/internal/reservations/repository"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/interval"
	"medisched/pkg/model"
	"medisched/pkg/sanitizer"
	"medisched/pkg/tracing"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const lockRetryInterval = 25 * time.Millisecond

// leaseMarginDivisor reserves a tenth of the lock TTL as slack between the
// commit deadline and lock expiry.
const leaseMarginDivisor = 10

// ResourcePool is a set of interchangeable rooms or devices of which
// Quantity members must be free for the requested window.
type ResourcePool struct {
	Type     model.ResourceType
	Members  []string
	Quantity int
}

type ReserveRequest struct {
	Booking model.Booking
	Pools   []ResourcePool
}

// ReservationService is the only component that commits bookings.
type ReservationService interface {
	BusyIntervals(ctx context.Context, ref model.ResourceRef, start, end time.Time) ([]interval.Interval, error)
	BusyByResource(ctx context.Context, refs []model.ResourceRef, start, end time.Time) (map[model.ResourceRef][]interval.Interval, error)
	Reserve(ctx context.Context, req *ReserveRequest) (*model.Booking, error)
	Release(ctx context.Context, id, actorID, reason string) (*model.Booking, error)
	Transition(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, actorID string) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.Booking, error)
}

type reservationService struct {
	repo  repository.BookingRepository
	locks repository.LockRepository
	clock clock.Clock
	cfg   *config.Config
}

func NewReservationService(
	repo repository.BookingRepository,
	locks repository.LockRepository,
	clk clock.Clock,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:  repo,
		locks: locks,
		clock: clk,
		cfg:   cfg,
	}
}

func (s *reservationService) BusyIntervals(ctx context.Context, ref model.ResourceRef, start, end time.Time) ([]interval.Interval, error) {
	busy, err := s.BusyByResource(ctx, []model.ResourceRef{ref}, start, end)
	if err != nil {
		return nil, err
	}
	return busy[ref], nil
}

func (s *reservationService) BusyByResource(ctx context.Context, refs []model.ResourceRef, start, end time.Time) (map[model.ResourceRef][]interval.Interval, error) {
	bookings, err := s.repo.FindActiveOverlapping(ctx, refs, start, end)
	if err != nil {
		s.cfg.Log.ErrorContext(ctx, "Failed to load busy intervals", "resources", len(refs), "error", err)
		return nil, apperrors.Internal("Failed to load existing bookings", err)
	}

	wanted := make(map[model.ResourceRef]bool, len(refs))
	for _, ref := range refs {
		wanted[ref] = true
	}

	raw := make(map[model.ResourceRef][]interval.Interval, len(refs))
	for _, b := range bookings {
		iv := interval.New(b.StartTime, b.EndTime)
		for _, ref := range b.Resources {
			if wanted[ref] {
				raw[ref] = append(raw[ref], iv)
			}
		}
	}

	out := make(map[model.ResourceRef][]interval.Interval, len(raw))
	for ref, ivs := range raw {
		out[ref] = interval.IntersectRange(interval.Union(ivs), start, end)
	}
	return out, nil
}

func (s *reservationService) Reserve(ctx context.Context, req *ReserveRequest) (*model.Booking, error) {
	ctx, span := tracing.Start(ctx, "reservations.Reserve")
	defer span.End()

	booking := req.Booking
	if !booking.EndTime.After(booking.StartTime) {
		return nil, apperrors.InvalidRange("end time must be after start time")
	}
	span.SetAttributes(attribute.String("staff_id", booking.StaffID))

	pools, err := normalizePools(req.Pools)
	if err != nil {
		return nil, err
	}

	candidates := []model.ResourceRef{model.StaffRef(booking.StaffID)}
	for _, p := range pools {
		for _, id := range p.Members {
			candidates = append(candidates, model.ResourceRef{Type: p.Type, ID: id})
		}
	}

	owner := uuid.NewString()
	acquiredFrom := time.Now()
	held, err := s.acquireLocks(ctx, candidates, owner)
	defer s.releaseLocks(context.WithoutCancel(ctx), held, owner)
	if err != nil {
		return nil, err
	}

	// The commit has to finish while the earliest lock is still live.
	leaseCtx, cancelLease := context.WithTimeout(ctx, s.leaseRemaining(acquiredFrom))
	defer cancelLease()

	err = s.repo.ExecuteTransaction(leaseCtx, func(txCtx context.Context) error {
		existing, err := s.repo.FindActiveOverlapping(txCtx, candidates, booking.StartTime, booking.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}

		taken := make(map[model.ResourceRef]*model.Booking)
		for _, b := range existing {
			for _, ref := range b.Resources {
				if _, seen := taken[ref]; !seen {
					taken[ref] = b
				}
			}
		}

		staff := model.StaffRef(booking.StaffID)
		if b, ok := taken[staff]; ok {
			return Conflict([]model.Collision{bookingCollision(staff, b)})
		}

		booking.RoomIDs = nil
		booking.DeviceIDs = nil
		for _, p := range pools {
			chosen := pickFree(p, taken)
			if len(chosen) < p.Quantity {
				return apperrors.ResourceExhausted(
					fmt.Sprintf("only %d of %d required %s(s) are free", len(chosen), p.Quantity, p.Type),
					map[string]any{
						"resource_type": p.Type,
						"required":      p.Quantity,
						"free":          len(chosen),
					},
				)
			}
			switch p.Type {
			case model.ResourceRoom:
				booking.RoomIDs = append(booking.RoomIDs, chosen...)
			case model.ResourceDevice:
				booking.DeviceIDs = append(booking.DeviceIDs, chosen...)
			}
		}

		now := s.clock.Now()
		if err := s.fence(txCtx, held, owner, now); err != nil {
			return err
		}

		booking.Resources = booking.ResourceRefs()
		if booking.Status == "" {
			booking.Status = model.BookingScheduled
		}
		booking.CreatedAt = now
		booking.UpdatedAt = now

		if err := s.repo.Create(txCtx, &booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, apperrors.Timeout("reservation aborted: " + ctxErr.Error())
			}
			if leaseCtx.Err() != nil {
				s.cfg.Log.WarnContext(ctx, "Reservation lease ran out before commit", "staff_id", booking.StaffID)
				return nil, apperrors.Timeout("reservation lease expired before commit")
			}
			return nil, apperrors.Internal("Failed to reserve resources", err)
		}
		return nil, err
	}

	s.cfg.Log.InfoContext(ctx, "Booking reserved",
		"booking_id", booking.ID,
		"staff_id", booking.StaffID,
		"rooms", booking.RoomIDs,
		"devices", booking.DeviceIDs,
		"start_time", booking.StartTime,
	)
	return &booking, nil
}

func (s *reservationService) Release(ctx context.Context, id, actorID, reason string) (*model.Booking, error) {
	booking, err := s.repo.UpdateStatus(ctx, id, repository.StatusChange{
		From:               model.CancellableBookingStatuses,
		To:                 model.BookingCancelled,
		ActorID:            actorID,
		CancellationReason: reason,
		At:                 s.clock.Now(),
	})
	if err != nil {
		return nil, s.translateStatusError(ctx, id, model.BookingCancelled, err)
	}
	s.cfg.Log.InfoContext(ctx, "Booking released", "booking_id", id, "actor_id", actorID)
	return booking, nil
}

func (s *reservationService) Transition(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, actorID string) (*model.Booking, error) {
	booking, err := s.repo.UpdateStatus(ctx, id, repository.StatusChange{
		From:    from,
		To:      to,
		ActorID: actorID,
		At:      s.clock.Now(),
	})
	if err != nil {
		return nil, s.translateStatusError(ctx, id, to, err)
	}
	return booking, nil
}

func (s *reservationService) translateStatusError(ctx context.Context, id string, to model.BookingStatus, err error) error {
	switch {
	case errors.Is(err, reservationerrors.ErrNotFound), errors.Is(err, reservationerrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, reservationerrors.ErrStatusChanged):
		current, findErr := s.repo.FindByID(ctx, id)
		if findErr != nil {
			return apperrors.Conflict("booking status changed concurrently")
		}
		return apperrors.InvalidTransition(string(current.Status), string(to))
	default:
		s.cfg.Log.ErrorContext(ctx, "Failed to update booking status", "booking_id", id, "error", err)
		return apperrors.Internal("Failed to update booking status", err)
	}
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, sanitizer.NormalizeID(id))
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) || errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to load booking", err)
	}
	return booking, nil
}

func (s *reservationService) ListByStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.Booking, error) {
	bookings, err := s.repo.FindByStaff(ctx, staffID, start, end)
	if err != nil {
		return nil, apperrors.Internal("Failed to list bookings", err)
	}
	return bookings, nil
}

// acquireLocks takes one advisory lock per resource in key order so that
// concurrent reservations over overlapping resource sets cannot deadlock.
// It returns the keys it holds even on failure so the caller can release them.
func (s *reservationService) acquireLocks(ctx context.Context, refs []model.ResourceRef, owner string) ([]string, error) {
	keys := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if k := ref.Key(); !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	deadline := time.Now().Add(s.cfg.ReservationLockWait)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		for {
			now := s.clock.Now()
			err := s.locks.Acquire(ctx, &model.ReservationLock{
				ID:        key,
				Owner:     owner,
				ExpiresAt: now.Add(s.cfg.ReservationLockTTL),
				CreatedAt: now,
			})
			if err == nil {
				held = append(held, key)
				break
			}
			if !errors.Is(err, reservationerrors.ErrLockHeld) {
				if ctx.Err() != nil {
					return held, apperrors.Timeout("reservation aborted: " + ctx.Err().Error())
				}
				return held, apperrors.Internal("Failed to lock resource", err)
			}
			if time.Now().After(deadline) {
				s.cfg.Log.WarnContext(ctx, "Resource lock contention", "resource", key)
				return held, apperrors.Conflict("resource is being reserved by another request").
					WithDetails(map[string]any{"resource": key})
			}
			select {
			case <-ctx.Done():
				return held, apperrors.Timeout("reservation aborted: " + ctx.Err().Error())
			case <-time.After(lockRetryInterval):
			}
		}
	}
	return held, nil
}

func (s *reservationService) leaseRemaining(acquiredFrom time.Time) time.Duration {
	ttl := s.cfg.ReservationLockTTL
	return ttl - ttl/leaseMarginDivisor - time.Since(acquiredFrom)
}

// fence re-confirms every held lock inside the commit transaction. A lock
// that expired and was taken over means another reservation may already
// have committed on the same resource.
func (s *reservationService) fence(ctx context.Context, keys []string, owner string, at time.Time) error {
	for _, key := range keys {
		err := s.locks.Fence(ctx, key, owner, at)
		if errors.Is(err, reservationerrors.ErrLockLost) {
			s.cfg.Log.WarnContext(ctx, "Reservation lock lost before commit", "resource", key)
			return apperrors.Conflict("resource lock expired before commit").
				WithDetails(map[string]any{"resource": key})
		}
		if err != nil {
			return apperrors.Internal("Failed to confirm resource lock", err)
		}
	}
	return nil
}

func (s *reservationService) releaseLocks(ctx context.Context, keys []string, owner string) {
	for _, key := range keys {
		if err := s.locks.Release(ctx, key, owner); err != nil {
			s.cfg.Log.WarnContext(ctx, "Failed to release reservation lock", "resource", key, "error", err)
		}
	}
}

func normalizePools(pools []ResourcePool) ([]ResourcePool, error) {
	out := make([]ResourcePool, 0, len(pools))
	for _, p := range pools {
		if p.Quantity <= 0 {
			continue
		}
		members := sanitizer.NormalizeIDs(p.Members)
		if len(members) < p.Quantity {
			return nil, apperrors.ResourceExhausted(
				fmt.Sprintf("service requires %d %s(s) but only %d are assigned", p.Quantity, p.Type, len(members)),
				map[string]any{
					"resource_type": p.Type,
					"required":      p.Quantity,
					"free":          len(members),
				},
			)
		}
		sort.Strings(members)
		out = append(out, ResourcePool{Type: p.Type, Members: members, Quantity: p.Quantity})
	}
	return out, nil
}

func pickFree(p ResourcePool, taken map[model.ResourceRef]*model.Booking) []string {
	chosen := make([]string, 0, p.Quantity)
	for _, id := range p.Members {
		if _, busy := taken[model.ResourceRef{Type: p.Type, ID: id}]; busy {
			continue
		}
		chosen = append(chosen, id)
		if len(chosen) == p.Quantity {
			break
		}
	}
	return chosen
}

func bookingCollision(ref model.ResourceRef, b *model.Booking) model.Collision {
	return model.Collision{
		Resource: ref,
		Kind:     model.CollisionBooking,
		SourceID: b.ID,
		Start:    b.StartTime,
		End:      b.EndTime,
	}
}

// Conflict builds the CONFLICT error carrying every collision.
func Conflict(collisions []model.Collision) *apperrors.AppError {
	details := make([]map[string]any, 0, len(collisions))
	for _, c := range collisions {
		details = append(details, map[string]any{
			"resource":  c.Resource.Key(),
			"kind":      c.Kind,
			"source_id": c.SourceID,
			"start":     c.Start,
			"end":       c.End,
		})
	}
	msg := "requested window collides with existing commitments"
	if len(collisions) > 0 {
		msg = fmt.Sprintf("requested window collides with %s on %s", collisions[0].Kind, collisions[0].Resource.Key())
	}
	return apperrors.Conflict(msg).WithDetails(map[string]any{"collisions": details})
}
