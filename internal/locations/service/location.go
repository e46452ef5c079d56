package service

import (
	"context"
	"errors"
	locationerrors "medisched/internal/locations/errors"
	"medisched/internal/locations/recurrence"
	"medisched/internal/locations/repository"
	"medisched/internal/locations/validator"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/interval"
	"medisched/pkg/model"
	"medisched/pkg/sanitizer"
	"time"
)

type LocationService interface {
	AddHours(ctx context.Context, h *model.LocationHours) error
	ListHours(ctx context.Context, locationID string) ([]*model.LocationHours, error)
	DeleteHours(ctx context.Context, locationID, id string) error
	AddClosure(ctx context.Context, c *model.LocationClosure) error
	ListClosures(ctx context.Context, locationID string, start, end time.Time) ([]*model.LocationClosure, error)
	DeleteClosure(ctx context.Context, locationID, id string) error
	// OpenIntervals is the location calendar: opening hours inside
	// [start, end) minus closures. loc is the location's own zone and
	// applies to hours entries that do not name one.
	OpenIntervals(ctx context.Context, locationID string, loc *time.Location, start, end time.Time) ([]interval.Interval, error)
}

type locationService struct {
	repo      repository.LocationRepository
	validator *validator.LocationValidator
	expander  *recurrence.Expander
	clock     clock.Clock
	cfg       *config.Config
}

func NewLocationService(
	repo repository.LocationRepository,
	validator *validator.LocationValidator,
	expander *recurrence.Expander,
	clk clock.Clock,
	cfg *config.Config,
) LocationService {
	return &locationService{
		repo:      repo,
		validator: validator,
		expander:  expander,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *locationService) AddHours(ctx context.Context, h *model.LocationHours) error {
	h.LocationID = sanitizer.NormalizeID(h.LocationID)
	h.RRule = sanitizer.TrimAndNormalize(h.RRule)
	h.StartTime = sanitizer.NormalizeClock(h.StartTime)
	h.TimeZone = sanitizer.TrimAndNormalize(h.TimeZone)
	h.Label = sanitizer.NormalizeText(h.Label)

	if err := s.validator.ValidateHours(h); err != nil {
		s.cfg.Log.Warn("Location hours validation failed",
			"location_id", h.LocationID,
			"rrule", h.RRule,
			"error", err,
		)
		return apperrors.Validation("Location hours validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	now := s.clock.Now()
	h.CreatedAt = now
	h.UpdatedAt = now
	if err := s.repo.CreateHours(ctx, h); err != nil {
		s.cfg.Log.Error("Failed to create location hours", "location_id", h.LocationID, "error", err)
		return apperrors.Internal("Failed to create location hours", err)
	}

	s.cfg.Log.Info("Location hours created", "id", h.ID, "location_id", h.LocationID, "label", h.Label)
	return nil
}

func (s *locationService) ListHours(ctx context.Context, locationID string) ([]*model.LocationHours, error) {
	hours, err := s.repo.FindHours(ctx, sanitizer.NormalizeID(locationID))
	if err != nil {
		s.cfg.Log.Error("Failed to list location hours", "location_id", locationID, "error", err)
		return nil, apperrors.Internal("Failed to list location hours", err)
	}
	return hours, nil
}

func (s *locationService) DeleteHours(ctx context.Context, locationID, id string) error {
	if err := s.repo.DeleteHours(ctx, sanitizer.NormalizeID(locationID), id); err != nil {
		return s.translateRepoError("Location hours", id, err)
	}
	s.cfg.Log.Info("Location hours deleted", "id", id, "location_id", locationID)
	return nil
}

func (s *locationService) AddClosure(ctx context.Context, c *model.LocationClosure) error {
	c.LocationID = sanitizer.NormalizeID(c.LocationID)
	c.Reason = sanitizer.NormalizeText(c.Reason)

	if !c.StartsAt.IsZero() && !c.EndsAt.After(c.StartsAt) {
		return apperrors.InvalidRange("closure must end after it starts")
	}
	if err := s.validator.ValidateClosure(c); err != nil {
		s.cfg.Log.Warn("Location closure validation failed", "location_id", c.LocationID, "error", err)
		return apperrors.Validation("Location closure validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	c.CreatedAt = s.clock.Now()
	if err := s.repo.CreateClosure(ctx, c); err != nil {
		s.cfg.Log.Error("Failed to create location closure", "location_id", c.LocationID, "error", err)
		return apperrors.Internal("Failed to create location closure", err)
	}

	s.cfg.Log.Info("Location closure created",
		"id", c.ID,
		"location_id", c.LocationID,
		"starts_at", c.StartsAt,
		"ends_at", c.EndsAt,
	)
	return nil
}

func (s *locationService) ListClosures(ctx context.Context, locationID string, start, end time.Time) ([]*model.LocationClosure, error) {
	if !end.After(start) {
		return nil, apperrors.InvalidRange("end must be after start")
	}
	closures, err := s.repo.FindClosures(ctx, sanitizer.NormalizeID(locationID), start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to list location closures", "location_id", locationID, "error", err)
		return nil, apperrors.Internal("Failed to list location closures", err)
	}
	return closures, nil
}

func (s *locationService) DeleteClosure(ctx context.Context, locationID, id string) error {
	if err := s.repo.DeleteClosure(ctx, sanitizer.NormalizeID(locationID), id); err != nil {
		return s.translateRepoError("Location closure", id, err)
	}
	s.cfg.Log.Info("Location closure deleted", "id", id, "location_id", locationID)
	return nil
}

func (s *locationService) OpenIntervals(ctx context.Context, locationID string, loc *time.Location, start, end time.Time) ([]interval.Interval, error) {
	if !end.After(start) {
		return nil, apperrors.InvalidRange("end must be after start")
	}
	if loc == nil {
		loc = s.cfg.Location()
	}

	hours, err := s.repo.FindHours(ctx, locationID)
	if err != nil {
		s.cfg.Log.Error("Failed to load location hours", "location_id", locationID, "error", err)
		return nil, apperrors.Internal("Failed to load location hours", err)
	}

	var open []interval.Interval
	if len(hours) == 0 {
		if !s.cfg.OpenWhenNoLocationHours {
			return nil, nil
		}
		open = []interval.Interval{interval.New(start, end)}
	}
	for _, h := range hours {
		ivs, err := s.expander.Range(h, hoursLocation(h, loc), start, end)
		if err != nil {
			s.cfg.Log.Warn("Skipping unparsable location hours",
				"id", h.ID,
				"location_id", locationID,
				"rrule", h.RRule,
				"error", err,
			)
			continue
		}
		open = append(open, ivs...)
	}

	closures, err := s.repo.FindClosures(ctx, locationID, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to load location closures", "location_id", locationID, "error", err)
		return nil, apperrors.Internal("Failed to load location closures", err)
	}

	return interval.Subtract(interval.Union(open), ClosureIntervals(closures)), nil
}

func ClosureIntervals(closures []*model.LocationClosure) []interval.Interval {
	out := make([]interval.Interval, 0, len(closures))
	for _, c := range closures {
		out = append(out, interval.New(c.StartsAt, c.EndsAt))
	}
	return out
}

func hoursLocation(h *model.LocationHours, fallback *time.Location) *time.Location {
	if h.TimeZone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(h.TimeZone)
	if err != nil {
		return fallback
	}
	return loc
}

func (s *locationService) translateRepoError(resource, id string, err error) error {
	if errors.Is(err, locationerrors.ErrNotFound) {
		return apperrors.NotFoundWithID(resource, id)
	}
	if errors.Is(err, locationerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid " + resource + " ID format")
	}
	s.cfg.Log.Error("Failed to delete "+resource, "id", id, "error", err)
	return apperrors.Internal("Failed to delete "+resource, err)
}
