package service

import (
	"context"
	"errors"
	scheduleserrors "medisched/internal/schedules/errors"
	"medisched/internal/schedules/repository"
	"medisched/internal/schedules/validator"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/interval"
	"medisched/pkg/model"
	"medisched/pkg/sanitizer"
	"sync"
	"time"
)

type ScheduleService interface {
	Create(ctx context.Context, sc *model.WeeklySchedule) error
	GetByID(ctx context.Context, id string) (*model.WeeklySchedule, error)
	ListByStaff(ctx context.Context, staffID string, limit int, offset int64) ([]*model.WeeklySchedule, int64, error)
	Update(ctx context.Context, id string, updates *model.WeeklyScheduleUpdate) error
	Delete(ctx context.Context, id string) error
	// OpenIntervals resolves the staff member's working time inside
	// [start, end), evaluating clock times in loc.
	OpenIntervals(ctx context.Context, staffID string, loc *time.Location, start, end time.Time) ([]interval.Interval, error)
}

type scheduleService struct {
	repo      repository.ScheduleRepository
	validator *validator.ScheduleValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewScheduleService(
	repo repository.ScheduleRepository,
	validator *validator.ScheduleValidator,
	clk clock.Clock,
	cfg *config.Config,
) ScheduleService {
	return &scheduleService{
		repo:      repo,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *scheduleService) Create(ctx context.Context, sc *model.WeeklySchedule) error {
	s.sanitize(sc)
	s.applyDefaults(sc)

	if err := s.validator.Validate(sc); err != nil {
		s.cfg.Log.Warn("Schedule validation failed",
			"staff_id", sc.StaffID,
			"error", err,
		)
		return apperrors.Validation("Schedule validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	now := s.clock.Now()
	sc.IsActive = true
	sc.CreatedAt = now
	sc.UpdatedAt = now

	if err := s.repo.Create(ctx, sc); err != nil {
		s.cfg.Log.Error("Failed to create schedule",
			"staff_id", sc.StaffID,
			"error", err,
		)
		return apperrors.Internal("Failed to create schedule", err)
	}

	s.cfg.Log.Info("Schedule created successfully",
		"id", sc.ID,
		"staff_id", sc.StaffID,
		"valid_from", sc.ValidFrom,
	)
	return nil
}

func (s *scheduleService) GetByID(ctx context.Context, id string) (*model.WeeklySchedule, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Schedule ID cannot be empty")
	}

	sc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateRepoError(id, "Failed to retrieve schedule", err)
	}
	return sc, nil
}

func (s *scheduleService) ListByStaff(ctx context.Context, staffID string, limit int, offset int64) ([]*model.WeeklySchedule, int64, error) {
	staffID = sanitizer.NormalizeID(staffID)
	if staffID == "" {
		return nil, 0, apperrors.InvalidInput("staff_id must be provided")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var schedules []*model.WeeklySchedule
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByStaff(sharedCtx, staffID)
		if err != nil {
			s.cfg.Log.Error("Failed to count schedules", "staff_id", staffID, "error", err)
			errCount = apperrors.Internal("Failed to count schedules", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		schedules, err = s.repo.FindByStaff(sharedCtx, staffID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list schedules",
				"staff_id", staffID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve schedules", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return schedules, count, nil
}

func (s *scheduleService) Update(ctx context.Context, id string, updates *model.WeeklyScheduleUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Schedule ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.translateRepoError(id, "Failed to check schedule existence", err)
	}

	s.sanitizeUpdate(updates)
	merged := s.mergeScheduleUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Schedule validation failed",
			"id", id,
			"staff_id", merged.StaffID,
			"error", err,
		)
		return apperrors.Validation("Schedule validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	merged.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, id, merged); err != nil {
		return s.translateRepoError(id, "Failed to update schedule", err)
	}

	s.cfg.Log.Info("Schedule updated successfully", "id", id, "staff_id", merged.StaffID)
	return nil
}

func (s *scheduleService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Schedule ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translateRepoError(id, "Failed to delete schedule", err)
	}
	s.cfg.Log.Info("Schedule deleted successfully", "id", id)
	return nil
}

func (s *scheduleService) OpenIntervals(ctx context.Context, staffID string, loc *time.Location, start, end time.Time) ([]interval.Interval, error) {
	if !end.After(start) {
		return nil, apperrors.InvalidRange("end must be after start")
	}
	if loc == nil {
		loc = s.cfg.Location()
	}

	schedules, err := s.repo.FindActiveForStaff(ctx, staffID, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to load schedules",
			"staff_id", staffID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to load staff schedules", err)
	}
	if len(schedules) == 0 {
		return nil, nil
	}

	return Resolve(schedules, loc, start, end), nil
}

// Resolve expands weekly schedules into concrete working intervals within
// [start, end). Overlapping schedules contribute the union of their hours.
func Resolve(schedules []*model.WeeklySchedule, loc *time.Location, start, end time.Time) []interval.Interval {
	var open []interval.Interval
	last := model.DateOf(end.In(loc))
	for day := model.DateOf(start.In(loc)); !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, sc := range schedules {
			if !sc.CoversDate(day) {
				continue
			}
			entry, ok := sc.DayFor(day.Weekday())
			if !ok || !entry.IsWorking {
				continue
			}
			open = append(open, workingIntervals(day, entry)...)
		}
	}
	return interval.IntersectRange(interval.Union(open), start, end)
}

func workingIntervals(day time.Time, entry model.DaySchedule) []interval.Interval {
	from, okFrom := model.ClockOn(day, entry.StartTime)
	to, okTo := model.ClockOn(day, entry.EndTime)
	if !okFrom || !okTo || !to.After(from) {
		return nil
	}
	hours := []interval.Interval{interval.New(from, to)}

	breakFrom, okBF := model.ClockOn(day, entry.BreakStart)
	breakTo, okBT := model.ClockOn(day, entry.BreakEnd)
	if !okBF || !okBT || !breakTo.After(breakFrom) {
		return hours
	}
	return interval.Subtract(hours, []interval.Interval{interval.New(breakFrom, breakTo)})
}

func (s *scheduleService) translateRepoError(id, msg string, err error) error {
	if errors.Is(err, scheduleserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Schedule", id)
	}
	if errors.Is(err, scheduleserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid schedule ID format")
	}
	s.cfg.Log.Error(msg, "id", id, "error", err)
	return apperrors.Internal(msg, err)
}

func (s *scheduleService) sanitize(sc *model.WeeklySchedule) {
	sc.StaffID = sanitizer.NormalizeID(sc.StaffID)
	sanitizeDays(sc.Days)
}

func (s *scheduleService) sanitizeUpdate(updates *model.WeeklyScheduleUpdate) {
	if updates.Days != nil {
		sanitizeDays(*updates.Days)
	}
}

func sanitizeDays(days []model.DaySchedule) {
	for i := range days {
		days[i].Day = sanitizer.NormalizeDay(days[i].Day)
		days[i].StartTime = sanitizer.NormalizeClock(days[i].StartTime)
		days[i].EndTime = sanitizer.NormalizeClock(days[i].EndTime)
		days[i].BreakStart = sanitizer.NormalizeClock(days[i].BreakStart)
		days[i].BreakEnd = sanitizer.NormalizeClock(days[i].BreakEnd)
	}
}

func (s *scheduleService) applyDefaults(sc *model.WeeklySchedule) {
	if sc.ValidFrom.IsZero() {
		y, m, d := s.clock.Now().In(s.cfg.Location()).Date()
		sc.ValidFrom = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

func (s *scheduleService) mergeScheduleUpdates(existing *model.WeeklySchedule, updates *model.WeeklyScheduleUpdate) *model.WeeklySchedule {
	merged := *existing

	if updates.ValidFrom != nil {
		merged.ValidFrom = *updates.ValidFrom
	}
	if updates.ValidTo != nil {
		merged.ValidTo = updates.ValidTo
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}
	if updates.Days != nil {
		merged.Days = *updates.Days
	}

	merged.ID = existing.ID
	merged.StaffID = existing.StaffID
	merged.CreatedAt = existing.CreatedAt
	return &merged
}
