package service

import (
	"context"
	"fmt"
	"io"
	"medisched/internal/reservations/repository"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/interval"
	"medisched/pkg/logger"
	"medisched/pkg/model"
	"sync"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func testConfig() *config.Config {
	return &config.Config{
		ReservationLockTTL:  5 * time.Second,
		ReservationLockWait: 300 * time.Millisecond,
		Log:                 logger.New(logger.Config{Output: io.Discard}),
	}
}

type fixture struct {
	svc   ReservationService
	repo  *repository.MemoryBookingRepository
	locks *repository.MemoryLockRepository
	clock *clock.Fake
}

func newFixture() *fixture {
	repo := repository.NewMemoryBookingRepository()
	locks := repository.NewMemoryLockRepository()
	clk := clock.NewFake(base.Add(-24 * time.Hour))
	return &fixture{
		svc:   NewReservationService(repo, locks, clk, testConfig()),
		repo:  repo,
		locks: locks,
		clock: clk,
	}
}

func request(staffID string, start, end time.Time, pools ...ResourcePool) *ReserveRequest {
	return &ReserveRequest{
		Booking: model.Booking{
			ServiceID: "svc-1",
			PatientID: "patient-1",
			StaffID:   staffID,
			StartTime: start,
			EndTime:   end,
		},
		Pools: pools,
	}
}

func TestReserve(t *testing.T) {
	tests := []struct {
		name     string
		existing []*ReserveRequest
		req      *ReserveRequest
		wantCode string
		check    func(t *testing.T, b *model.Booking)
	}{
		{
			name: "staff only booking succeeds",
			req:  request("staff-1", at(9, 0), at(9, 30)),
			check: func(t *testing.T, b *model.Booking) {
				if b.Status != model.BookingScheduled {
					t.Errorf("status = %s, want scheduled", b.Status)
				}
				if len(b.Resources) != 1 || b.Resources[0] != model.StaffRef("staff-1") {
					t.Errorf("resources = %v", b.Resources)
				}
			},
		},
		{
			name:     "overlapping staff booking conflicts",
			existing: []*ReserveRequest{request("staff-1", at(9, 0), at(10, 0))},
			req:      request("staff-1", at(9, 30), at(10, 30)),
			wantCode: apperrors.CodeConflict,
		},
		{
			name:     "touching bookings do not conflict",
			existing: []*ReserveRequest{request("staff-1", at(9, 0), at(10, 0))},
			req:      request("staff-1", at(10, 0), at(10, 30)),
		},
		{
			name:     "different staff same time succeeds",
			existing: []*ReserveRequest{request("staff-1", at(9, 0), at(10, 0))},
			req:      request("staff-2", at(9, 0), at(10, 0)),
		},
		{
			name:     "inverted window is rejected",
			req:      request("staff-1", at(10, 0), at(9, 0)),
			wantCode: apperrors.CodeInvalidRange,
		},
		{
			name: "two of two rooms with one taken is exhausted",
			existing: []*ReserveRequest{
				request("staff-2", at(14, 0), at(15, 0), ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a"}, Quantity: 1}),
			},
			req:      request("staff-1", at(14, 0), at(15, 0), ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a", "room-b"}, Quantity: 2}),
			wantCode: apperrors.CodeResourceExhausted,
		},
		{
			name: "one of two rooms with one taken uses the free room",
			existing: []*ReserveRequest{
				request("staff-2", at(14, 0), at(15, 0), ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a"}, Quantity: 1}),
			},
			req: request("staff-1", at(14, 0), at(15, 0), ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a", "room-b"}, Quantity: 1}),
			check: func(t *testing.T, b *model.Booking) {
				if len(b.RoomIDs) != 1 || b.RoomIDs[0] != "room-b" {
					t.Errorf("rooms = %v, want [room-b]", b.RoomIDs)
				}
			},
		},
		{
			name:     "pool smaller than quantity is exhausted",
			req:      request("staff-1", at(9, 0), at(10, 0), ResourcePool{Type: model.ResourceDevice, Members: []string{"xray"}, Quantity: 2}),
			wantCode: apperrors.CodeResourceExhausted,
		},
		{
			name: "room and device together",
			req: request("staff-1", at(9, 0), at(10, 0),
				ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a"}, Quantity: 1},
				ResourcePool{Type: model.ResourceDevice, Members: []string{"ecg-1", "ecg-2"}, Quantity: 1},
			),
			check: func(t *testing.T, b *model.Booking) {
				if len(b.Resources) != 3 {
					t.Errorf("expected staff, room and device refs, got %v", b.Resources)
				}
				if b.DeviceIDs[0] != "ecg-1" {
					t.Errorf("devices = %v, want [ecg-1]", b.DeviceIDs)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			for _, e := range tt.existing {
				if _, err := f.svc.Reserve(ctx, e); err != nil {
					t.Fatalf("seeding booking: %v", err)
				}
			}

			got, err := f.svc.Reserve(ctx, tt.req)
			if tt.wantCode != "" {
				if !apperrors.Is(err, tt.wantCode) {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID == "" {
				t.Errorf("expected an id to be assigned")
			}
			if tt.check != nil {
				tt.check(t, got)
			}
			if f.locks.Held() != 0 {
				t.Errorf("expected all locks released, %d held", f.locks.Held())
			}
		})
	}
}

func TestReserveConflictDetails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, err := f.svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("seeding booking: %v", err)
	}

	_, err = f.svc.Reserve(ctx, request("staff-1", at(9, 15), at(9, 45)))
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	collisions, ok := appErr.Details["collisions"].([]map[string]any)
	if !ok || len(collisions) != 1 {
		t.Fatalf("expected one collision in details, got %v", appErr.Details)
	}
	if collisions[0]["source_id"] != first.ID {
		t.Errorf("collision source = %v, want %s", collisions[0]["source_id"], first.ID)
	}
	if collisions[0]["resource"] != "staff:staff-1" {
		t.Errorf("collision resource = %v", collisions[0]["resource"])
	}
}

func TestReserveRaceExactlyOneWins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request("staff-1", at(11, 0), at(11, 30))
			req.Booking.PatientID = fmt.Sprintf("patient-%d", i)
			_, err := f.svc.Reserve(ctx, req)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperrors.Is(err, apperrors.CodeConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != attempts-1 {
		t.Errorf("wins = %d, conflicts = %d; want 1 and %d", wins, conflicts, attempts-1)
	}
}

func TestReserveNeverDoubleBooks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pool := ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a", "room-b"}, Quantity: 1}

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(8, 0).Add(time.Duration(i%6) * 20 * time.Minute)
			staff := fmt.Sprintf("staff-%d", i%3)
			_, _ = f.svc.Reserve(ctx, request(staff, start, start.Add(45*time.Minute), pool))
		}(i)
	}
	wg.Wait()

	all, err := f.repo.FindActiveOverlapping(ctx, []model.ResourceRef{
		model.StaffRef("staff-0"), model.StaffRef("staff-1"), model.StaffRef("staff-2"),
		model.RoomRef("room-a"), model.RoomRef("room-b"),
	}, at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("listing bookings: %v", err)
	}
	if len(all) == 0 {
		t.Fatalf("expected at least one committed booking")
	}

	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if !interval.Overlaps(interval.New(a.StartTime, a.EndTime), interval.New(b.StartTime, b.EndTime)) {
				continue
			}
			for _, ref := range a.Resources {
				if b.Holds(ref) {
					t.Errorf("bookings %s and %s both hold %s", a.ID, b.ID, ref.Key())
				}
			}
		}
	}
}

func TestReserveLockContention(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	foreign := &model.ReservationLock{
		ID:        model.StaffRef("staff-1").Key(),
		Owner:     "someone-else",
		ExpiresAt: f.clock.Now().Add(time.Minute),
		CreatedAt: f.clock.Now(),
	}
	if err := f.locks.Acquire(ctx, foreign); err != nil {
		t.Fatalf("seeding lock: %v", err)
	}

	_, err := f.svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0), ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a"}, Quantity: 1}))
	if !apperrors.Is(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict on lock contention, got %v", err)
	}
	if f.locks.Held() != 1 {
		t.Errorf("expected only the foreign lock to remain, %d held", f.locks.Held())
	}
}

func TestReserveExpiredLockIsTakenOver(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	stale := &model.ReservationLock{
		ID:        model.StaffRef("staff-1").Key(),
		Owner:     "crashed",
		ExpiresAt: f.clock.Now().Add(-time.Second),
		CreatedAt: f.clock.Now().Add(-time.Minute),
	}
	if err := f.locks.Acquire(ctx, stale); err != nil {
		t.Fatalf("seeding lock: %v", err)
	}

	if _, err := f.svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0))); err != nil {
		t.Fatalf("expected expired lock to be replaced, got %v", err)
	}
}

func TestReserveCancelledContextLeavesNothing(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0)))
	if err == nil {
		t.Fatalf("expected an error for a cancelled context")
	}
	if apperrors.Is(err, apperrors.CodeConflict) {
		t.Errorf("cancellation must not be reported as a conflict: %v", err)
	}

	busy, err := f.svc.BusyIntervals(context.Background(), model.StaffRef("staff-1"), at(0, 0), at(23, 0))
	if err != nil {
		t.Fatalf("BusyIntervals: %v", err)
	}
	if len(busy) != 0 {
		t.Errorf("expected no partial reservation, got %v", busy)
	}
}

func TestReleaseFreesCapacity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b, err := f.svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	released, err := f.svc.Release(ctx, b.ID, "frontdesk", "patient request")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.Status != model.BookingCancelled || released.CancelledAt == nil {
		t.Errorf("expected cancelled booking with timestamp, got %+v", released)
	}

	busy, err := f.svc.BusyIntervals(ctx, model.StaffRef("staff-1"), at(0, 0), at(23, 0))
	if err != nil {
		t.Fatalf("BusyIntervals: %v", err)
	}
	if len(busy) != 0 {
		t.Errorf("expected freed staff time, got %v", busy)
	}

	if _, err := f.svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0))); err != nil {
		t.Errorf("expected the released window to be bookable again, got %v", err)
	}

	_, err = f.svc.Release(ctx, b.ID, "frontdesk", "again")
	if !apperrors.Is(err, apperrors.CodeInvalidTransition) {
		t.Errorf("expected invalid transition on second release, got %v", err)
	}
}

func TestReleaseUnknownBooking(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Release(context.Background(), "missing", "frontdesk", "")
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, err := f.svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	got, err := f.svc.Transition(ctx, b.ID, []model.BookingStatus{model.BookingScheduled}, model.BookingConfirmed, "nurse-1")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != model.BookingConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}

	_, err = f.svc.Transition(ctx, b.ID, []model.BookingStatus{model.BookingScheduled}, model.BookingConfirmed, "nurse-1")
	if !apperrors.Is(err, apperrors.CodeInvalidTransition) {
		t.Errorf("expected invalid transition from confirmed, got %v", err)
	}
}

func TestBusyByResourceClipsAndGroups(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pool := ResourcePool{Type: model.ResourceRoom, Members: []string{"room-a"}, Quantity: 1}
	if _, err := f.svc.Reserve(ctx, request("staff-1", at(8, 0), at(10, 0), pool)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := f.svc.Reserve(ctx, request("staff-2", at(10, 0), at(11, 0), pool)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	busy, err := f.svc.BusyByResource(ctx, []model.ResourceRef{model.StaffRef("staff-1"), model.RoomRef("room-a")}, at(9, 0), at(12, 0))
	if err != nil {
		t.Fatalf("BusyByResource: %v", err)
	}

	staff := busy[model.StaffRef("staff-1")]
	if len(staff) != 1 || !staff[0].Start.Equal(at(9, 0)) || !staff[0].End.Equal(at(10, 0)) {
		t.Errorf("staff busy = %v, want [09:00,10:00)", staff)
	}
	room := busy[model.RoomRef("room-a")]
	if len(room) != 1 || !room[0].Start.Equal(at(9, 0)) || !room[0].End.Equal(at(11, 0)) {
		t.Errorf("room busy = %v, want merged [09:00,11:00)", room)
	}
	if _, ok := busy[model.StaffRef("staff-2")]; ok {
		t.Errorf("unrequested resources must not be reported")
	}
}

// pausingBookingRepository parks the first overlap read until resume is
// closed, keeping that caller inside its commit transaction.
type pausingBookingRepository struct {
	*repository.MemoryBookingRepository
	once    sync.Once
	reached chan struct{}
	resume  chan struct{}
}

func (r *pausingBookingRepository) FindActiveOverlapping(ctx context.Context, refs []model.ResourceRef, start, end time.Time) ([]*model.Booking, error) {
	pause := false
	r.once.Do(func() { pause = true })
	if pause {
		close(r.reached)
		<-r.resume
	}
	return r.MemoryBookingRepository.FindActiveOverlapping(ctx, refs, start, end)
}

func TestReserveLockTakenOverBeforeCommit(t *testing.T) {
	repo := &pausingBookingRepository{
		MemoryBookingRepository: repository.NewMemoryBookingRepository(),
		reached:                 make(chan struct{}),
		resume:                  make(chan struct{}),
	}
	locks := repository.NewMemoryLockRepository()
	clk := clock.NewFake(base.Add(-24 * time.Hour))
	cfg := testConfig()
	svc := NewReservationService(repo, locks, clk, cfg)
	ctx := context.Background()

	type result struct {
		booking *model.Booking
		err     error
	}
	first := make(chan result, 1)
	go func() {
		b, err := svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0)))
		first <- result{b, err}
	}()

	<-repo.reached
	clk.Advance(cfg.ReservationLockTTL + time.Second)

	second, err := svc.Reserve(ctx, request("staff-1", at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("expected the expired lock to be taken over, got %v", err)
	}

	close(repo.resume)
	res := <-first
	if !apperrors.Is(res.err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict for the holder whose lock lapsed, got booking=%v err=%v", res.booking, res.err)
	}

	active, err := repo.MemoryBookingRepository.FindActiveOverlapping(ctx, []model.ResourceRef{model.StaffRef("staff-1")}, at(9, 0), at(10, 0))
	if err != nil {
		t.Fatalf("FindActiveOverlapping: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("expected only the second booking to be active, got %d", len(active))
	}
	if locks.Held() != 0 {
		t.Errorf("expected all locks released, %d held", locks.Held())
	}
}

func TestFenceRejectsExpiredOrForeignLock(t *testing.T) {
	locks := repository.NewMemoryLockRepository()
	ctx := context.Background()
	now := base

	if err := locks.Acquire(ctx, &model.ReservationLock{ID: "staff:s1", Owner: "a", CreatedAt: now, ExpiresAt: now.Add(time.Second)}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	tests := []struct {
		name    string
		owner   string
		at      time.Time
		wantErr bool
	}{
		{"live lock of owner", "a", now, false},
		{"other owner", "b", now, true},
		{"expired lease", "a", now.Add(time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := locks.Fence(ctx, "staff:s1", tt.owner, tt.at)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fence() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
