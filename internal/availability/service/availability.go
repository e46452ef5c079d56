package service

import (
	"context"
	"fmt"
	absences "medisched/internal/absences/service"
	directory "medisched/internal/directory/service"
	locations "medisched/internal/locations/service"
	reservations "medisched/internal/reservations/service"
	schedules "medisched/internal/schedules/service"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/interval"
	"medisched/pkg/model"
	"medisched/pkg/tracing"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Window is the availability picture of one staff member over a range.
type Window struct {
	Staff    *model.Staff
	Location *model.Location
	Zone     *time.Location
	// Open is working time intersected with location opening hours.
	Open []interval.Interval
	// Busy is approved absences plus active bookings.
	Busy []interval.Interval
	Free []interval.Interval
}

type AvailabilityService interface {
	Window(ctx context.Context, staffID string, start, end time.Time) (*Window, error)
	Slots(ctx context.Context, staffID, serviceID string, start, end time.Time) ([]model.Slot, error)
	NextAvailable(ctx context.Context, staffID, serviceID string, from time.Time) (*model.Slot, error)
	MultiStaff(ctx context.Context, staffIDs []string, serviceID string, start, end time.Time) ([]model.StaffSlot, error)
	Utilization(ctx context.Context, staffID string, start, end time.Time) (*model.Utilization, error)
	// Collisions explains why [start, end) is not free for the staff member.
	Collisions(ctx context.Context, w *Window, start, end time.Time) ([]model.Collision, error)
}

type availabilityService struct {
	directory    directory.DirectoryService
	schedules    schedules.ScheduleService
	locations    locations.LocationService
	absences     absences.AbsenceService
	reservations reservations.ReservationService
	clock        clock.Clock
	cfg          *config.Config
}

func NewAvailabilityService(
	dir directory.DirectoryService,
	sched schedules.ScheduleService,
	loc locations.LocationService,
	abs absences.AbsenceService,
	res reservations.ReservationService,
	clk clock.Clock,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		directory:    dir,
		schedules:    sched,
		locations:    loc,
		absences:     abs,
		reservations: res,
		clock:        clk,
		cfg:          cfg,
	}
}

func (s *availabilityService) checkRange(start, end time.Time) error {
	if !end.After(start) {
		return apperrors.InvalidRange("end must be after start")
	}
	if s.cfg.MaxQuerySpan > 0 && end.Sub(start) > s.cfg.MaxQuerySpan {
		return apperrors.InvalidRange(fmt.Sprintf("range exceeds the maximum span of %s", s.cfg.MaxQuerySpan))
	}
	return nil
}

func (s *availabilityService) Window(ctx context.Context, staffID string, start, end time.Time) (*Window, error) {
	if err := s.checkRange(start, end); err != nil {
		return nil, err
	}
	staff, err := s.directory.Staff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return s.window(ctx, staff, start, end)
}

func (s *availabilityService) window(ctx context.Context, staff *model.Staff, start, end time.Time) (*Window, error) {
	loc, err := s.directory.Location(ctx, staff.LocationID)
	if err != nil {
		return nil, err
	}
	zone := s.directory.Zone(loc)

	working, err := s.schedules.OpenIntervals(ctx, staff.ID, zone, start, end)
	if err != nil {
		return nil, err
	}
	opening, err := s.locations.OpenIntervals(ctx, loc.ID, zone, start, end)
	if err != nil {
		return nil, err
	}
	absent, err := s.absences.BusyIntervals(ctx, staff.ID, start, end)
	if err != nil {
		return nil, err
	}
	booked, err := s.reservations.BusyIntervals(ctx, model.StaffRef(staff.ID), start, end)
	if err != nil {
		return nil, err
	}

	open := interval.Intersect(working, opening)
	busy := interval.Union(append(absent, booked...))
	return &Window{
		Staff:    staff,
		Location: loc,
		Zone:     zone,
		Open:     open,
		Busy:     busy,
		Free:     interval.Subtract(open, busy),
	}, nil
}

func (s *availabilityService) Slots(ctx context.Context, staffID, serviceID string, start, end time.Time) ([]model.Slot, error) {
	ctx, span := tracing.Start(ctx, "availability.Slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("staff_id", staffID),
		attribute.String("service_id", serviceID),
	)

	if err := s.checkRange(start, end); err != nil {
		return nil, err
	}
	staff, err := s.directory.Staff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	svc, err := s.directory.Service(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots(ctx, staff, svc, start, end)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, nil
}

func (s *availabilityService) slots(ctx context.Context, staff *model.Staff, svc *model.ServiceDefinition, start, end time.Time) ([]model.Slot, error) {
	w, err := s.window(ctx, staff, start, end)
	if err != nil {
		return nil, err
	}

	pools := Pools(svc)
	poolBusy, err := s.poolBusy(ctx, pools, start, end)
	if err != nil {
		return nil, err
	}

	duration := svc.Duration()
	step := s.cfg.SlotGranularity
	if step <= 0 {
		step = config.DefaultSlotGranularity
	}
	now := s.clock.Now()
	limit := s.cfg.MaxSlotsPerRequest

	var out []model.Slot
	for _, free := range w.Free {
		if free.Duration() < duration {
			continue
		}
		for t := alignUp(free.Start, step, w.Zone); !t.Add(duration).After(free.End); t = t.Add(step) {
			if t.Before(now) {
				continue
			}
			candidate := interval.New(t, t.Add(duration))
			if !poolsSatisfied(pools, poolBusy, candidate) {
				continue
			}
			out = append(out, model.Slot{Start: candidate.Start, End: candidate.End})
			if limit > 0 && len(out) >= limit {
				s.cfg.Log.Debug("Slot cap reached", "staff_id", staff.ID, "limit", limit)
				return out, nil
			}
		}
	}
	return out, nil
}

// Pools converts the service's room and device requirements into
// reservation pools.
func Pools(svc *model.ServiceDefinition) []reservations.ResourcePool {
	var pools []reservations.ResourcePool
	if svc.RoomQuantityRequired > 0 {
		pools = append(pools, reservations.ResourcePool{
			Type:     model.ResourceRoom,
			Members:  svc.AssignedRooms,
			Quantity: svc.RoomQuantityRequired,
		})
	}
	if svc.DeviceQuantityRequired > 0 {
		pools = append(pools, reservations.ResourcePool{
			Type:     model.ResourceDevice,
			Members:  svc.AssignedDevices,
			Quantity: svc.DeviceQuantityRequired,
		})
	}
	return pools
}

func (s *availabilityService) poolBusy(ctx context.Context, pools []reservations.ResourcePool, start, end time.Time) (map[model.ResourceRef][]interval.Interval, error) {
	var refs []model.ResourceRef
	for _, p := range pools {
		for _, id := range p.Members {
			refs = append(refs, model.ResourceRef{Type: p.Type, ID: id})
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return s.reservations.BusyByResource(ctx, refs, start, end)
}

func poolsSatisfied(pools []reservations.ResourcePool, busy map[model.ResourceRef][]interval.Interval, candidate interval.Interval) bool {
	for _, p := range pools {
		free := 0
		for _, id := range p.Members {
			if len(interval.OverlappingAny(busy[model.ResourceRef{Type: p.Type, ID: id}], candidate)) == 0 {
				free++
			}
		}
		if free < p.Quantity {
			return false
		}
	}
	return true
}

// alignUp rounds t up to the next multiple of step counted from local
// midnight in zone.
func alignUp(t time.Time, step time.Duration, zone *time.Location) time.Time {
	midnight := model.DateOf(t.In(zone))
	offset := t.Sub(midnight)
	if rem := offset % step; rem != 0 {
		offset += step - rem
	}
	return midnight.Add(offset)
}

func (s *availabilityService) NextAvailable(ctx context.Context, staffID, serviceID string, from time.Time) (*model.Slot, error) {
	ctx, span := tracing.Start(ctx, "availability.NextAvailable")
	defer span.End()
	span.SetAttributes(attribute.String("staff_id", staffID))

	staff, err := s.directory.Staff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	svc, err := s.directory.Service(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	cursor := from
	if now := s.clock.Now(); cursor.Before(now) {
		cursor = now
	}
	horizon := cursor.AddDate(0, 0, s.cfg.NextSlotHorizonDays)

	for cursor.Before(horizon) {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Timeout("next slot search aborted: " + err.Error())
		}
		dayEnd := cursor.AddDate(0, 0, 1)
		if dayEnd.After(horizon) {
			dayEnd = horizon
		}
		slots, err := s.slots(ctx, staff, svc, cursor, dayEnd)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			return &slots[0], nil
		}
		cursor = dayEnd
	}

	return nil, apperrors.NotFound("Available slot").WithDetails(map[string]any{
		"staff_id":     staffID,
		"service_id":   serviceID,
		"horizon_days": s.cfg.NextSlotHorizonDays,
	})
}

func (s *availabilityService) MultiStaff(ctx context.Context, staffIDs []string, serviceID string, start, end time.Time) ([]model.StaffSlot, error) {
	ctx, span := tracing.Start(ctx, "availability.MultiStaff")
	defer span.End()
	span.SetAttributes(attribute.Int("staff_count", len(staffIDs)))

	if err := s.checkRange(start, end); err != nil {
		return nil, err
	}
	staff, err := s.directory.StaffByIDs(ctx, staffIDs)
	if err != nil {
		return nil, err
	}
	svc, err := s.directory.Service(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	results := make([][]model.Slot, len(staff))
	errs := make([]error, len(staff))
	var wg sync.WaitGroup
	for i, st := range staff {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.slots(ctx, st, svc, start, end)
		}()
	}
	wg.Wait()

	var merged []model.StaffSlot
	for i, st := range staff {
		if errs[i] != nil {
			return nil, errs[i]
		}
		for _, slot := range results[i] {
			merged = append(merged, model.StaffSlot{StaffID: st.ID, Start: slot.Start, End: slot.End})
		}
	}
	sort.SliceStable(merged, func(a, b int) bool {
		if !merged[a].Start.Equal(merged[b].Start) {
			return merged[a].Start.Before(merged[b].Start)
		}
		return merged[a].StaffID < merged[b].StaffID
	})
	return merged, nil
}

func (s *availabilityService) Utilization(ctx context.Context, staffID string, start, end time.Time) (*model.Utilization, error) {
	ctx, span := tracing.Start(ctx, "availability.Utilization")
	defer span.End()

	w, err := s.Window(ctx, staffID, start, end)
	if err != nil {
		return nil, err
	}

	// Busy time outside open hours does not count against capacity.
	openTime := interval.Total(w.Open)
	busyTime := interval.Total(interval.Intersect(w.Busy, w.Open))

	u := &model.Utilization{
		StaffID:    w.Staff.ID,
		RangeStart: start,
		RangeEnd:   end,
		OpenTime:   openTime,
		BusyTime:   busyTime,
	}
	if openTime > 0 {
		u.Percent = float64(busyTime) / float64(openTime) * 100
	}
	return u, nil
}

func (s *availabilityService) Collisions(ctx context.Context, w *Window, start, end time.Time) ([]model.Collision, error) {
	target := interval.New(start, end)
	staff := model.StaffRef(w.Staff.ID)
	var out []model.Collision

	closures, err := s.locations.ListClosures(ctx, w.Location.ID, start, end)
	if err != nil {
		return nil, err
	}
	for _, c := range closures {
		out = append(out, model.Collision{
			Resource: model.ResourceRef{Type: model.ResourceLocation, ID: w.Location.ID},
			Kind:     model.CollisionClosure,
			SourceID: c.ID,
			Start:    c.StartsAt,
			End:      c.EndsAt,
		})
	}

	blocking, err := s.absences.Blocking(ctx, w.Staff.ID, start, end)
	if err != nil {
		return nil, err
	}
	for _, a := range blocking {
		out = append(out, model.Collision{
			Resource: staff,
			Kind:     model.CollisionAbsence,
			SourceID: a.ID,
			Start:    a.StartsAt,
			End:      a.EndsAt,
		})
	}

	bookings, err := s.reservations.ListByStaff(ctx, w.Staff.ID, start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		out = append(out, model.Collision{
			Resource: staff,
			Kind:     model.CollisionBooking,
			SourceID: b.ID,
			Start:    b.StartTime,
			End:      b.EndTime,
		})
	}

	if len(out) == 0 && !interval.Contains(w.Open, target) {
		out = append(out, model.Collision{
			Resource: staff,
			Kind:     model.CollisionOutsideOpen,
			Start:    start,
			End:      end,
		})
	}
	return out, nil
}
