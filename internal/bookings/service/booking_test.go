package service

import (
	"context"
	"io"
	absencerepo "medisched/internal/absences/repository"
	absencevalidator "medisched/internal/absences/validator"
	absences "medisched/internal/absences/service"
	"medisched/internal/audit"
	availability "medisched/internal/availability/service"
	"medisched/internal/bookings/validator"
	directoryrepo "medisched/internal/directory/repository"
	directoryvalidator "medisched/internal/directory/validator"
	directory "medisched/internal/directory/service"
	"medisched/internal/locations/recurrence"
	locationrepo "medisched/internal/locations/repository"
	locationvalidator "medisched/internal/locations/validator"
	locations "medisched/internal/locations/service"
	"medisched/internal/notifications"
	reservationrepo "medisched/internal/reservations/repository"
	reservations "medisched/internal/reservations/service"
	schedulerepo "medisched/internal/schedules/repository"
	schedulevalidator "medisched/internal/schedules/validator"
	schedules "medisched/internal/schedules/service"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/logger"
	"medisched/pkg/model"
	"sync"
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func on(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	svc       BookingService
	directory *directoryrepo.MemoryDirectoryRepository
	bookings  *reservationrepo.MemoryBookingRepository
	locks     *reservationrepo.MemoryLockRepository
	audit     *audit.MemorySink
	notified  *notifications.Recorder
	clock     *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		SlotGranularity:     15 * time.Minute,
		CancellationWindow:  2 * time.Hour,
		MaxQuerySpan:        31 * 24 * time.Hour,
		MaxSlotsPerRequest:  500,
		NextSlotHorizonDays: 14,
		ReservationLockTTL:  5 * time.Second,
		ReservationLockWait: 500 * time.Millisecond,
		Log:                 logger.New(logger.Config{Output: io.Discard}),
	}
	clk := clock.NewFake(monday.Add(-12 * time.Hour))
	ctx := context.Background()

	expander, err := recurrence.NewExpander(64)
	if err != nil {
		t.Fatalf("NewExpander: %v", err)
	}

	dirRepo := directoryrepo.NewMemoryDirectoryRepository()
	bookingRepo := reservationrepo.NewMemoryBookingRepository()
	lockRepo := reservationrepo.NewMemoryLockRepository()

	dir := directory.NewDirectoryService(dirRepo, directoryvalidator.NewDirectoryValidator(), clk, cfg)
	sched := schedules.NewScheduleService(
		schedulerepo.NewMemoryScheduleRepository(), schedulevalidator.NewScheduleValidator(cfg.Log), clk, cfg)
	locs := locations.NewLocationService(
		locationrepo.NewMemoryLocationRepository(), locationvalidator.NewLocationValidator(cfg.Log), expander, clk, cfg)
	abs := absences.NewAbsenceService(
		absencerepo.NewMemoryAbsenceRepository(), absencevalidator.NewAbsenceValidator(cfg.Log), clk, cfg)
	res := reservations.NewReservationService(bookingRepo, lockRepo, clk, cfg)
	avail := availability.NewAvailabilityService(dir, sched, locs, abs, res, clk, cfg)

	f := &fixture{
		directory: dirRepo,
		bookings:  bookingRepo,
		locks:     lockRepo,
		audit:     &audit.MemorySink{},
		notified:  &notifications.Recorder{},
		clock:     clk,
	}
	f.svc = NewBookingService(avail, res, dir, validator.NewBookingValidator(cfg.Log), f.audit, f.notified, clk, cfg)

	mustDo(t, dirRepo.CreateLocation(ctx, &model.Location{ID: "loc-1", Name: "Main clinic"}))
	mustDo(t, locs.AddHours(ctx, &model.LocationHours{
		LocationID:  "loc-1",
		RRule:       "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR",
		StartTime:   "08:00",
		DurationMin: 600,
	}))

	for _, st := range []*model.Staff{
		{ID: "dr-house", Name: "Dr House", Role: model.RolePhysician, LocationID: "loc-1", Active: true},
		{ID: "nurse-joy", Name: "Nurse Joy", Role: model.RoleNurse, LocationID: "loc-1", Active: true},
	} {
		mustDo(t, dirRepo.CreateStaff(ctx, st))
		mustDo(t, sched.Create(ctx, &model.WeeklySchedule{
			StaffID:   st.ID,
			ValidFrom: monday,
			Days:      weekdays(),
		}))
	}

	for _, svc := range []*model.ServiceDefinition{
		{ID: "consult", Name: "Consultation", BaseDurationMin: 30, Active: true},
		{ID: "physician-consult", Name: "Physician review", BaseDurationMin: 30, RequiredRole: model.RolePhysician, Active: true},
		{ID: "injection", Name: "Injection", BaseDurationMin: 30, RequiresConsent: true, Active: true},
		{ID: "op-2", Name: "Two room procedure", BaseDurationMin: 60, Active: true,
			AssignedRooms: []string{"room-a", "room-b"}, RoomQuantityRequired: 2},
		{ID: "op-1", Name: "One room procedure", BaseDurationMin: 60, Active: true,
			AssignedRooms: []string{"room-a", "room-b"}, RoomQuantityRequired: 1},
	} {
		mustDo(t, dirRepo.CreateService(ctx, svc))
	}
	return f
}

func weekdays() []model.DaySchedule {
	var days []model.DaySchedule
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		days = append(days, model.DaySchedule{Day: d, IsWorking: true, StartTime: "09:00", EndTime: "17:00"})
	}
	return days
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture setup: %v", err)
	}
}

func request(staffID, serviceID string, start time.Time) *model.BookingRequest {
	return &model.BookingRequest{
		ServiceID: serviceID,
		PatientID: "patient-1",
		StaffID:   staffID,
		StartTime: start,
		ActorID:   "frontdesk-1",
	}
}

func TestBook_Success(t *testing.T) {
	f := newFixture(t)

	booking, err := f.svc.Book(context.Background(), request("dr-house", "consult", on(monday, 10, 0)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if booking.ID == "" || booking.Status != model.BookingScheduled {
		t.Errorf("unexpected booking: %+v", booking)
	}
	if !booking.EndTime.Equal(on(monday, 10, 30)) {
		t.Errorf("end time = %s, want service duration applied", booking.EndTime)
	}
	if booking.BookingType != model.BookingInPerson || booking.LocationID != "loc-1" {
		t.Errorf("defaults not applied: %+v", booking)
	}

	events := f.audit.Events()
	if len(events) != 1 || events[0].Action != model.AuditBookingCreated || events[0].ActorID != "frontdesk-1" {
		t.Errorf("audit events = %+v", events)
	}
	sent := f.notified.Sent()
	if len(sent) != 1 || sent[0].Kind != model.NotifyBookingConfirmed || sent[0].BookingID != booking.ID {
		t.Errorf("notifications = %+v", sent)
	}
}

func TestBook_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		req   func() *model.BookingRequest
		code  string
	}{
		{
			name: "missing patient",
			req: func() *model.BookingRequest {
				r := request("dr-house", "consult", on(monday, 10, 0))
				r.PatientID = ""
				return r
			},
			code: apperrors.CodeValidation,
		},
		{
			name: "end before start",
			req: func() *model.BookingRequest {
				r := request("dr-house", "consult", on(monday, 10, 0))
				r.EndTime = on(monday, 9, 0)
				return r
			},
			code: apperrors.CodeInvalidRange,
		},
		{
			name: "start in the past",
			req:  func() *model.BookingRequest { return request("dr-house", "consult", monday.AddDate(0, 0, -7)) },
			code: apperrors.CodeInvalidRange,
		},
		{
			name: "unknown staff",
			req:  func() *model.BookingRequest { return request("ghost", "consult", on(monday, 10, 0)) },
			code: apperrors.CodeNotFound,
		},
		{
			name: "unknown service",
			req:  func() *model.BookingRequest { return request("dr-house", "ghost", on(monday, 10, 0)) },
			code: apperrors.CodeNotFound,
		},
		{
			name: "outside working hours",
			req:  func() *model.BookingRequest { return request("dr-house", "consult", on(monday, 17, 30)) },
			code: apperrors.CodeConflict,
		},
		{
			name: "role mismatch",
			req:  func() *model.BookingRequest { return request("nurse-joy", "physician-consult", on(monday, 10, 0)) },
			code: apperrors.CodeRoleMismatch,
		},
		{
			name: "consent missing",
			req:  func() *model.BookingRequest { return request("dr-house", "injection", on(monday, 10, 0)) },
			code: apperrors.CodeConsentRequired,
		},
		{
			name: "staff already booked",
			setup: func(t *testing.T, f *fixture) {
				if _, err := f.svc.Book(context.Background(), request("dr-house", "consult", on(monday, 10, 0))); err != nil {
					t.Fatalf("first booking: %v", err)
				}
			},
			req:  func() *model.BookingRequest { return request("dr-house", "consult", on(monday, 10, 15)) },
			code: apperrors.CodeConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			before := len(f.audit.Events())

			_, err := f.svc.Book(context.Background(), tt.req())
			if !apperrors.Is(err, tt.code) {
				t.Fatalf("got %v, want %s", err, tt.code)
			}

			events := f.audit.Events()[before:]
			if len(events) != 1 || events[0].Action != model.AuditBookingRejected {
				t.Fatalf("expected one rejection audit event, got %+v", events)
			}
			if events[0].Details["code"] != tt.code {
				t.Errorf("audit code = %v, want %s", events[0].Details["code"], tt.code)
			}
		})
	}
}

func TestBook_ConflictNamesCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Book(ctx, request("dr-house", "consult", on(monday, 10, 0)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	_, err = f.svc.Book(ctx, request("dr-house", "consult", on(monday, 10, 0)))
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict {
		t.Fatalf("got %v, want CONFLICT", err)
	}
	collisions, ok := appErr.Details["collisions"].([]map[string]any)
	if !ok || len(collisions) != 1 || collisions[0]["source_id"] != first.ID {
		t.Errorf("collisions = %+v", appErr.Details["collisions"])
	}
}

func TestBook_ConsentGiven(t *testing.T) {
	f := newFixture(t)
	req := request("dr-house", "injection", on(monday, 10, 0))
	req.ConsentGiven = true

	booking, err := f.svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !booking.ConsentGiven {
		t.Error("consent flag not stored")
	}
}

func TestBook_RoomQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Book(ctx, request("nurse-joy", "op-1", on(monday, 14, 0))); err != nil {
		t.Fatalf("occupying one room: %v", err)
	}

	_, err := f.svc.Book(ctx, request("dr-house", "op-2", on(monday, 14, 0)))
	if !apperrors.Is(err, apperrors.CodeResourceExhausted) {
		t.Fatalf("got %v, want RESOURCE_EXHAUSTED", err)
	}

	booking, err := f.svc.Book(ctx, request("dr-house", "op-1", on(monday, 14, 0)))
	if err != nil {
		t.Fatalf("Book with one free room: %v", err)
	}
	if len(booking.RoomIDs) != 1 {
		t.Errorf("rooms = %v, want exactly one", booking.RoomIDs)
	}
}

func TestBook_ConcurrentRequestsOneWins(t *testing.T) {
	f := newFixture(t)
	const attempts = 8

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Book(context.Background(), request("dr-house", "consult", on(monday, 11, 0)))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !apperrors.Is(err, apperrors.CodeConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d bookings committed, want exactly 1", succeeded)
	}
	if f.locks.Held() != 0 {
		t.Errorf("%d locks leaked", f.locks.Held())
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		code string
	}{
		{name: "well ahead of start", now: on(monday, 7, 0)},
		{name: "inside the window", now: on(monday, 9, 0), code: apperrors.CodeCancellationWindowExpired},
		{name: "exactly at the window edge", now: on(monday, 8, 0), code: apperrors.CodeCancellationWindowExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			booking, err := f.svc.Book(ctx, request("dr-house", "consult", on(monday, 10, 0)))
			if err != nil {
				t.Fatalf("Book: %v", err)
			}

			f.clock.Set(tt.now)
			cancelled, err := f.svc.Cancel(ctx, booking.ID, &model.CancelRequest{ActorID: "patient-1", Reason: "Feeling better"})
			if tt.code != "" {
				if !apperrors.Is(err, tt.code) {
					t.Fatalf("got %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel: %v", err)
			}
			if cancelled.Status != model.BookingCancelled || cancelled.CancellationReason != "Feeling better" {
				t.Errorf("unexpected booking: %+v", cancelled)
			}

			sent := f.notified.Sent()
			if last := sent[len(sent)-1]; last.Kind != model.NotifyBookingCancelled {
				t.Errorf("last notification = %+v", last)
			}

			if _, err := f.svc.Book(ctx, request("dr-house", "consult", on(monday, 10, 0))); err != nil {
				t.Errorf("freed slot not bookable: %v", err)
			}
		})
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Book(ctx, request("dr-house", "consult", on(monday, 10, 0)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, booking.ID, nil); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, booking.ID, nil); !apperrors.Is(err, apperrors.CodeInvalidTransition) {
		t.Errorf("got %v, want INVALID_TRANSITION", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []model.BookingStatus
		code  string
	}{
		{name: "full visit", steps: []model.BookingStatus{model.BookingConfirmed, model.BookingInProgress, model.BookingCompleted}},
		{name: "no show", steps: []model.BookingStatus{model.BookingConfirmed, model.BookingNoShow}},
		{name: "skip confirmation", steps: []model.BookingStatus{model.BookingInProgress}, code: apperrors.CodeInvalidTransition},
		{name: "complete too early", steps: []model.BookingStatus{model.BookingCompleted}, code: apperrors.CodeInvalidTransition},
		{name: "cancel in progress", steps: []model.BookingStatus{model.BookingConfirmed, model.BookingInProgress, model.BookingCancelled}, code: apperrors.CodeInvalidTransition},
		{name: "unknown status", steps: []model.BookingStatus{"teleported"}, code: apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			booking, err := f.svc.Book(ctx, request("dr-house", "consult", on(monday, 10, 0)))
			if err != nil {
				t.Fatalf("Book: %v", err)
			}

			var lastErr error
			for _, status := range tt.steps {
				var updated *model.Booking
				updated, lastErr = f.svc.UpdateStatus(ctx, booking.ID, &model.StatusUpdate{Status: status, ActorID: "dr-house"})
				if lastErr != nil {
					break
				}
				if updated.Status != status {
					t.Fatalf("status = %s, want %s", updated.Status, status)
				}
			}

			if tt.code == "" {
				if lastErr != nil {
					t.Fatalf("UpdateStatus: %v", lastErr)
				}
				return
			}
			if !apperrors.Is(lastErr, tt.code) {
				t.Errorf("got %v, want %s", lastErr, tt.code)
			}
		})
	}
}

func TestListByStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, hour := range []int{9, 11, 15} {
		if _, err := f.svc.Book(ctx, request("dr-house", "consult", on(monday, hour, 0))); err != nil {
			t.Fatalf("Book: %v", err)
		}
	}

	got, err := f.svc.ListByStaff(ctx, "dr-house", on(monday, 10, 0), on(monday, 16, 0))
	if err != nil {
		t.Fatalf("ListByStaff: %v", err)
	}
	if len(got) != 2 || !got[0].StartTime.Equal(on(monday, 11, 0)) {
		t.Errorf("got %d bookings: %+v", len(got), got)
	}

	if _, err := f.svc.ListByStaff(ctx, "dr-house", monday, monday.AddDate(0, 3, 0)); !apperrors.Is(err, apperrors.CodeInvalidRange) {
		t.Errorf("got %v, want INVALID_RANGE", err)
	}
}
