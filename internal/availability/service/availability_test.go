package service

import (
	"context"
	"io"
	absencerepo "medisched/internal/absences/repository"
	absencevalidator "medisched/internal/absences/validator"
	absences "medisched/internal/absences/service"
	directoryrepo "medisched/internal/directory/repository"
	directoryvalidator "medisched/internal/directory/validator"
	directory "medisched/internal/directory/service"
	"medisched/internal/locations/recurrence"
	locationrepo "medisched/internal/locations/repository"
	locationvalidator "medisched/internal/locations/validator"
	locations "medisched/internal/locations/service"
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
	"reflect"
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func on(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	svc          AvailabilityService
	directory    *directoryrepo.MemoryDirectoryRepository
	schedules    schedules.ScheduleService
	locations    locations.LocationService
	absences     absences.AbsenceService
	reservations reservations.ReservationService
	clock        *clock.Fake
	cfg          *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		SlotGranularity:     15 * time.Minute,
		MaxQuerySpan:        31 * 24 * time.Hour,
		MaxSlotsPerRequest:  500,
		NextSlotHorizonDays: 14,
		ReservationLockTTL:  5 * time.Second,
		ReservationLockWait: 300 * time.Millisecond,
		Log:                 logger.New(logger.Config{Output: io.Discard}),
	}
	clk := clock.NewFake(monday.Add(-12 * time.Hour))

	expander, err := recurrence.NewExpander(64)
	if err != nil {
		t.Fatalf("NewExpander: %v", err)
	}

	dirRepo := directoryrepo.NewMemoryDirectoryRepository()
	f := &fixture{
		directory: dirRepo,
		schedules: schedules.NewScheduleService(
			schedulerepo.NewMemoryScheduleRepository(), schedulevalidator.NewScheduleValidator(cfg.Log), clk, cfg),
		locations: locations.NewLocationService(
			locationrepo.NewMemoryLocationRepository(), locationvalidator.NewLocationValidator(cfg.Log), expander, clk, cfg),
		absences: absences.NewAbsenceService(
			absencerepo.NewMemoryAbsenceRepository(), absencevalidator.NewAbsenceValidator(cfg.Log), clk, cfg),
		reservations: reservations.NewReservationService(
			reservationrepo.NewMemoryBookingRepository(), reservationrepo.NewMemoryLockRepository(), clk, cfg),
		clock: clk,
		cfg:   cfg,
	}
	dir := directory.NewDirectoryService(dirRepo, directoryvalidator.NewDirectoryValidator(), clk, cfg)
	f.svc = NewAvailabilityService(dir, f.schedules, f.locations, f.absences, f.reservations, clk, cfg)

	ctx := context.Background()
	mustDo(t, dirRepo.CreateLocation(ctx, &model.Location{ID: "loc-1", Name: "Main clinic"}))
	mustDo(t, f.locations.AddHours(ctx, &model.LocationHours{
		LocationID:  "loc-1",
		RRule:       "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR",
		StartTime:   "08:00",
		DurationMin: 600,
	}))
	mustDo(t, dirRepo.CreateService(ctx, &model.ServiceDefinition{
		ID: "consult-30", Name: "Consultation", BaseDurationMin: 30, Active: true,
	}))
	mustDo(t, dirRepo.CreateService(ctx, &model.ServiceDefinition{
		ID: "exam-60", Name: "Examination", BaseDurationMin: 60, Active: true,
	}))
	f.addStaff(t, "staff-1")
	return f
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture setup: %v", err)
	}
}

// addStaff registers a physician working weekdays 09:00-17:00 with a
// Monday lunch break 12:00-13:00.
func (f *fixture) addStaff(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	mustDo(t, f.directory.CreateStaff(ctx, &model.Staff{
		ID: id, Name: "Dr " + id, Role: model.RolePhysician, LocationID: "loc-1", Active: true,
	}))

	days := []model.DaySchedule{{
		Day: "monday", IsWorking: true, StartTime: "09:00", EndTime: "17:00",
		BreakStart: "12:00", BreakEnd: "13:00",
	}}
	for _, d := range []string{"tuesday", "wednesday", "thursday", "friday"} {
		days = append(days, model.DaySchedule{Day: d, IsWorking: true, StartTime: "09:00", EndTime: "17:00"})
	}
	mustDo(t, f.schedules.Create(ctx, &model.WeeklySchedule{
		StaffID:   id,
		ValidFrom: monday,
		Days:      days,
	}))
}

func starts(slots []model.Slot) map[time.Time]bool {
	out := make(map[time.Time]bool, len(slots))
	for _, s := range slots {
		out[s.Start] = true
	}
	return out
}

func TestSlots_BreakExcluded(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.Slots(context.Background(), "staff-1", "consult-30", monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	got := starts(slots)

	for _, want := range []time.Time{on(monday, 9, 0), on(monday, 11, 30), on(monday, 13, 0), on(monday, 16, 30)} {
		if !got[want] {
			t.Errorf("missing slot at %s", want.Format("15:04"))
		}
	}
	for _, s := range slots {
		if s.Start.Before(on(monday, 13, 0)) && s.End.After(on(monday, 12, 0)) {
			t.Errorf("slot %s-%s overlaps the break", s.Start.Format("15:04"), s.End.Format("15:04"))
		}
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Errorf("slot %s has duration %s", s.Start.Format("15:04"), s.End.Sub(s.Start))
		}
	}
	// 09:00-11:30 and 13:00-16:30 in 15 minute steps.
	if len(slots) != 11+15 {
		t.Errorf("got %d slots, want 26", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].Start.Before(slots[i].Start) {
			t.Fatalf("slots not ascending at %d", i)
		}
	}
}

func TestSlots_LocationClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wednesday := monday.AddDate(0, 0, 2)

	mustDo(t, f.locations.AddClosure(ctx, &model.LocationClosure{
		LocationID: "loc-1",
		StartsAt:   wednesday,
		EndsAt:     wednesday.AddDate(0, 0, 1),
		Reason:     "Maintenance",
	}))

	slots, err := f.svc.Slots(ctx, "staff-1", "consult-30", wednesday, wednesday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots on a closed day, got %d", len(slots))
	}

	thursday := wednesday.AddDate(0, 0, 1)
	slots, err = f.svc.Slots(ctx, "staff-1", "consult-30", thursday, thursday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) == 0 {
		t.Error("closure leaked into the next day")
	}
}

func TestSlots_ApprovedAbsence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tuesday := monday.AddDate(0, 0, 1)

	absence := &model.Absence{StaffID: "staff-1", StartsAt: on(tuesday, 10, 0), EndsAt: on(tuesday, 12, 0)}
	mustDo(t, f.absences.Request(ctx, absence))
	if _, err := f.absences.Approve(ctx, absence.ID, "manager-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	slots, err := f.svc.Slots(ctx, "staff-1", "exam-60", tuesday, tuesday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	got := starts(slots)
	if !got[on(tuesday, 9, 0)] || !got[on(tuesday, 12, 0)] {
		t.Errorf("expected 09:00 and 12:00 to remain available")
	}
	for _, s := range slots {
		if s.Start.Before(on(tuesday, 12, 0)) && s.End.After(on(tuesday, 10, 0)) {
			t.Errorf("slot %s overlaps the absence", s.Start.Format("15:04"))
		}
	}
}

func TestSlots_PendingAbsenceIgnoredByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tuesday := monday.AddDate(0, 0, 1)

	mustDo(t, f.absences.Request(ctx, &model.Absence{
		StaffID: "staff-1", StartsAt: on(tuesday, 9, 0), EndsAt: on(tuesday, 17, 0),
	}))

	slots, err := f.svc.Slots(ctx, "staff-1", "exam-60", tuesday, tuesday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) == 0 {
		t.Error("pending absence should not block availability")
	}

	f.cfg.IncludePendingAbsences = true
	slots, err = f.svc.Slots(ctx, "staff-1", "exam-60", tuesday, tuesday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("pending absence should block when configured, got %d slots", len(slots))
	}
}

func TestSlots_RoomPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addStaff(t, "staff-2")

	for _, svc := range []*model.ServiceDefinition{
		{ID: "surgery-2", Name: "Two room procedure", BaseDurationMin: 60, Active: true,
			AssignedRooms: []string{"room-a", "room-b"}, RoomQuantityRequired: 2},
		{ID: "surgery-1", Name: "One room procedure", BaseDurationMin: 60, Active: true,
			AssignedRooms: []string{"room-a", "room-b"}, RoomQuantityRequired: 1},
	} {
		mustDo(t, f.directory.CreateService(ctx, svc))
	}

	_, err := f.reservations.Reserve(ctx, &reservations.ReserveRequest{
		Booking: model.Booking{StaffID: "staff-2", StartTime: on(monday, 14, 0), EndTime: on(monday, 15, 0)},
		Pools: []reservations.ResourcePool{
			{Type: model.ResourceRoom, Members: []string{"room-a"}, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	tests := []struct {
		name      string
		serviceID string
		want      bool
	}{
		{name: "both rooms required", serviceID: "surgery-2", want: false},
		{name: "one room required", serviceID: "surgery-1", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := f.svc.Slots(ctx, "staff-1", tt.serviceID, monday, monday.AddDate(0, 0, 1))
			if err != nil {
				t.Fatalf("Slots: %v", err)
			}
			if got := starts(slots)[on(monday, 14, 0)]; got != tt.want {
				t.Errorf("14:00 available = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlots_IdempotentAndReleasedOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dayEnd := monday.AddDate(0, 0, 1)

	first, err := f.svc.Slots(ctx, "staff-1", "consult-30", monday, dayEnd)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	second, err := f.svc.Slots(ctx, "staff-1", "consult-30", monday, dayEnd)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated reads returned different slots")
	}

	booking, err := f.reservations.Reserve(ctx, &reservations.ReserveRequest{
		Booking: model.Booking{StaffID: "staff-1", StartTime: on(monday, 10, 0), EndTime: on(monday, 10, 30)},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	booked, err := f.svc.Slots(ctx, "staff-1", "consult-30", monday, dayEnd)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if got := starts(booked); got[on(monday, 10, 0)] || got[on(monday, 9, 45)] || got[on(monday, 10, 15)] {
		t.Error("slots overlapping the booking are still offered")
	}

	if _, err := f.reservations.Release(ctx, booking.ID, "staff-1", "patient request"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	released, err := f.svc.Slots(ctx, "staff-1", "consult-30", monday, dayEnd)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if !reflect.DeepEqual(first, released) {
		t.Error("cancellation did not restore the original slots")
	}
}

func TestSlots_SkipsPastStarts(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(on(monday, 10, 5))

	slots, err := f.svc.Slots(context.Background(), "staff-1", "consult-30", monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) == 0 || !slots[0].Start.Equal(on(monday, 10, 15)) {
		t.Errorf("first slot = %v, want 10:15", slots)
	}
}

func TestSlots_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		staffID   string
		serviceID string
		start     time.Time
		end       time.Time
		code      string
	}{
		{name: "inverted range", staffID: "staff-1", serviceID: "consult-30",
			start: monday.AddDate(0, 0, 1), end: monday, code: apperrors.CodeInvalidRange},
		{name: "span too long", staffID: "staff-1", serviceID: "consult-30",
			start: monday, end: monday.AddDate(0, 2, 0), code: apperrors.CodeInvalidRange},
		{name: "unknown staff", staffID: "ghost", serviceID: "consult-30",
			start: monday, end: monday.AddDate(0, 0, 1), code: apperrors.CodeNotFound},
		{name: "unknown service", staffID: "staff-1", serviceID: "ghost",
			start: monday, end: monday.AddDate(0, 0, 1), code: apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Slots(ctx, tt.staffID, tt.serviceID, tt.start, tt.end)
			if !apperrors.Is(err, tt.code) {
				t.Errorf("got %v, want %s", err, tt.code)
			}
		})
	}
}

func TestNextAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saturday := monday.AddDate(0, 0, -2)
	slot, err := f.svc.NextAvailable(ctx, "staff-1", "consult-30", saturday)
	if err != nil {
		t.Fatalf("NextAvailable: %v", err)
	}
	if !slot.Start.Equal(on(monday, 9, 0)) {
		t.Errorf("got %s, want Monday 09:00", slot.Start)
	}

	f.clock.Set(on(monday, 16, 50))
	slot, err = f.svc.NextAvailable(ctx, "staff-1", "consult-30", saturday)
	if err != nil {
		t.Fatalf("NextAvailable: %v", err)
	}
	if want := on(monday.AddDate(0, 0, 1), 9, 0); !slot.Start.Equal(want) {
		t.Errorf("got %s, want %s", slot.Start, want)
	}
}

func TestNextAvailable_HorizonExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cfg.NextSlotHorizonDays = 3
	mustDo(t, f.directory.CreateStaff(ctx, &model.Staff{
		ID: "idle", Name: "No schedule", Role: model.RoleNurse, LocationID: "loc-1", Active: true,
	}))

	_, err := f.svc.NextAvailable(ctx, "idle", "consult-30", monday)
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("got %v, want NOT_FOUND", err)
	}
}

func TestMultiStaff_MergedOrder(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "staff-0")

	slots, err := f.svc.MultiStaff(context.Background(), []string{"staff-1", "staff-0"}, "consult-30", monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("MultiStaff: %v", err)
	}
	if len(slots) != 52 {
		t.Fatalf("got %d slots, want 52", len(slots))
	}
	if slots[0].StaffID != "staff-0" || slots[1].StaffID != "staff-1" || !slots[0].Start.Equal(slots[1].Start) {
		t.Errorf("unexpected head order: %+v %+v", slots[0], slots[1])
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Start.Before(slots[i-1].Start) {
			t.Fatalf("merged slots out of order at %d", i)
		}
	}

	_, err = f.svc.MultiStaff(context.Background(), []string{"staff-1", "ghost"}, "consult-30", monday, monday.AddDate(0, 0, 1))
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("got %v, want NOT_FOUND for unknown staff", err)
	}
}

func TestUtilization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dayEnd := monday.AddDate(0, 0, 1)

	u, err := f.svc.Utilization(ctx, "staff-1", monday, dayEnd)
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.OpenTime != 7*time.Hour || u.BusyTime != 0 || u.Percent != 0 {
		t.Errorf("empty day: %+v", u)
	}

	_, err = f.reservations.Reserve(ctx, &reservations.ReserveRequest{
		Booking: model.Booking{StaffID: "staff-1", StartTime: on(monday, 9, 0), EndTime: on(monday, 10, 45)},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	u, err = f.svc.Utilization(ctx, "staff-1", monday, dayEnd)
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.BusyTime != 105*time.Minute {
		t.Errorf("busy time = %s, want 1h45m", u.BusyTime)
	}
	if u.Percent != 25 {
		t.Errorf("percent = %v, want 25", u.Percent)
	}
}

func TestUtilization_CountsApprovedAbsences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dayEnd := monday.AddDate(0, 0, 1)

	for _, a := range []*model.Absence{
		{StaffID: "staff-1", StartsAt: on(monday, 9, 0), EndsAt: on(monday, 10, 45)},
		{StaffID: "staff-1", StartsAt: on(monday, 19, 0), EndsAt: on(monday, 21, 0)},
	} {
		mustDo(t, f.absences.Request(ctx, a))
		if _, err := f.absences.Approve(ctx, a.ID, "manager-1"); err != nil {
			t.Fatalf("Approve: %v", err)
		}
	}

	u, err := f.svc.Utilization(ctx, "staff-1", monday, dayEnd)
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.BusyTime != 105*time.Minute {
		t.Errorf("busy time = %s, want 1h45m", u.BusyTime)
	}
	if u.Percent != 25 {
		t.Errorf("percent = %v, want 25", u.Percent)
	}
}

func TestUtilization_NoOpenTime(t *testing.T) {
	f := newFixture(t)
	saturday := monday.AddDate(0, 0, 5)

	u, err := f.svc.Utilization(context.Background(), "staff-1", saturday, saturday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.OpenTime != 0 || u.Percent != 0 {
		t.Errorf("weekend utilization: %+v", u)
	}
}

func TestCollisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tuesday := monday.AddDate(0, 0, 1)

	booking, err := f.reservations.Reserve(ctx, &reservations.ReserveRequest{
		Booking: model.Booking{StaffID: "staff-1", StartTime: on(monday, 10, 0), EndTime: on(monday, 11, 0)},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	absence := &model.Absence{StaffID: "staff-1", StartsAt: on(tuesday, 14, 0), EndsAt: on(tuesday, 16, 0)}
	mustDo(t, f.absences.Request(ctx, absence))
	if _, err := f.absences.Approve(ctx, absence.ID, "manager-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		kind     model.CollisionKind
		sourceID string
	}{
		{name: "booking", start: on(monday, 10, 30), end: on(monday, 11, 30), kind: model.CollisionBooking, sourceID: booking.ID},
		{name: "absence", start: on(tuesday, 15, 0), end: on(tuesday, 15, 30), kind: model.CollisionAbsence, sourceID: absence.ID},
		{name: "after hours", start: on(monday, 18, 0), end: on(monday, 18, 30), kind: model.CollisionOutsideOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := f.svc.Window(ctx, "staff-1", tt.start, tt.end)
			if err != nil {
				t.Fatalf("Window: %v", err)
			}
			got, err := f.svc.Collisions(ctx, w, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Collisions: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d collisions, want 1: %+v", len(got), got)
			}
			if got[0].Kind != tt.kind || got[0].SourceID != tt.sourceID {
				t.Errorf("got %+v", got[0])
			}
		})
	}
}
