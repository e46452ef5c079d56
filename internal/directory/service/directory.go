package service

import (
	"context"
	"errors"
	"fmt"
	directoryerrors "medisched/internal/directory/errors"
	"medisched/internal/directory/repository"
	"medisched/internal/directory/validator"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/model"
	"medisched/pkg/sanitizer"
	"strings"
	"time"
)

// DirectoryService answers identity and role questions for the engine.
// Inactive staff and services are reported as not found.
type DirectoryService interface {
	Staff(ctx context.Context, id string) (*model.Staff, error)
	StaffByIDs(ctx context.Context, ids []string) ([]*model.Staff, error)
	Service(ctx context.Context, id string) (*model.ServiceDefinition, error)
	Location(ctx context.Context, id string) (*model.Location, error)
	// Zone resolves the location's time zone, falling back to the
	// configured default.
	Zone(loc *model.Location) *time.Location

	RegisterStaff(ctx context.Context, s *model.Staff) error
	RegisterLocation(ctx context.Context, l *model.Location) error
	RegisterService(ctx context.Context, s *model.ServiceDefinition) error
}

type directoryService struct {
	repo      repository.DirectoryRepository
	validator *validator.DirectoryValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewDirectoryService(
	repo repository.DirectoryRepository,
	validator *validator.DirectoryValidator,
	clk clock.Clock,
	cfg *config.Config,
) DirectoryService {
	return &directoryService{
		repo:      repo,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *directoryService) Staff(ctx context.Context, id string) (*model.Staff, error) {
	id = sanitizer.NormalizeID(id)
	staff, err := s.repo.FindStaff(ctx, id)
	if err != nil {
		return nil, s.translate("Staff", id, err)
	}
	if !staff.Active {
		return nil, apperrors.NotFoundWithID("Staff", id)
	}
	return staff, nil
}

func (s *directoryService) StaffByIDs(ctx context.Context, ids []string) ([]*model.Staff, error) {
	ids = sanitizer.NormalizeIDs(ids)
	if len(ids) == 0 {
		return nil, apperrors.InvalidInput("at least one staff ID is required")
	}

	found, err := s.repo.FindStaffByIDs(ctx, ids)
	if err != nil {
		return nil, s.translate("Staff", strings.Join(ids, ","), err)
	}

	byID := make(map[string]*model.Staff, len(found))
	for _, st := range found {
		if st.Active {
			byID[st.ID] = st
		}
	}

	out := make([]*model.Staff, 0, len(ids))
	var missing []string
	for _, id := range ids {
		st, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, st)
	}
	if len(missing) > 0 {
		return nil, apperrors.NotFound("Staff").WithDetails(map[string]any{"missing_ids": missing})
	}
	return out, nil
}

func (s *directoryService) Service(ctx context.Context, id string) (*model.ServiceDefinition, error) {
	id = sanitizer.NormalizeID(id)
	svc, err := s.repo.FindService(ctx, id)
	if err != nil {
		return nil, s.translate("Service", id, err)
	}
	if !svc.Active {
		return nil, apperrors.NotFoundWithID("Service", id)
	}
	return svc, nil
}

func (s *directoryService) Location(ctx context.Context, id string) (*model.Location, error) {
	id = sanitizer.NormalizeID(id)
	loc, err := s.repo.FindLocation(ctx, id)
	if err != nil {
		return nil, s.translate("Location", id, err)
	}
	return loc, nil
}

func (s *directoryService) Zone(loc *model.Location) *time.Location {
	if loc == nil || loc.TimeZone == "" {
		return s.cfg.Location()
	}
	zone, err := time.LoadLocation(loc.TimeZone)
	if err != nil {
		s.cfg.Log.Warn("Unknown location time zone, using default",
			"location_id", loc.ID,
			"time_zone", loc.TimeZone,
		)
		return s.cfg.Location()
	}
	return zone
}

func (s *directoryService) RegisterStaff(ctx context.Context, st *model.Staff) error {
	st.Name = sanitizer.NormalizeText(st.Name)
	st.LocationID = sanitizer.NormalizeID(st.LocationID)
	st.Role = model.Role(sanitizer.NormalizeDay(string(st.Role)))

	if err := s.validator.ValidateStaff(st); err != nil {
		return s.validationFailed("Staff", err)
	}
	if _, err := s.Location(ctx, st.LocationID); err != nil {
		return err
	}

	st.CreatedAt = s.clock.Now()
	if err := s.repo.CreateStaff(ctx, st); err != nil {
		s.cfg.Log.Error("Failed to create staff", "name", st.Name, "error", err)
		return apperrors.Internal("Failed to create staff", err)
	}
	s.cfg.Log.Info("Staff registered", "id", st.ID, "role", st.Role, "location_id", st.LocationID)
	return nil
}

func (s *directoryService) RegisterLocation(ctx context.Context, l *model.Location) error {
	l.Name = sanitizer.NormalizeText(l.Name)
	l.TimeZone = strings.TrimSpace(l.TimeZone)

	if err := s.validator.ValidateLocation(l); err != nil {
		return s.validationFailed("Location", err)
	}

	l.CreatedAt = s.clock.Now()
	if err := s.repo.CreateLocation(ctx, l); err != nil {
		s.cfg.Log.Error("Failed to create location", "name", l.Name, "error", err)
		return apperrors.Internal("Failed to create location", err)
	}
	s.cfg.Log.Info("Location registered", "id", l.ID, "time_zone", l.TimeZone)
	return nil
}

func (s *directoryService) RegisterService(ctx context.Context, svc *model.ServiceDefinition) error {
	svc.Name = sanitizer.NormalizeText(svc.Name)
	svc.RequiredRole = model.Role(sanitizer.NormalizeDay(string(svc.RequiredRole)))
	svc.AssignedRooms = sanitizer.NormalizeIDs(svc.AssignedRooms)
	svc.AssignedDevices = sanitizer.NormalizeIDs(svc.AssignedDevices)

	if err := s.validator.ValidateService(svc); err != nil {
		return s.validationFailed("Service", err)
	}

	svc.CreatedAt = s.clock.Now()
	if err := s.repo.CreateService(ctx, svc); err != nil {
		s.cfg.Log.Error("Failed to create service", "name", svc.Name, "error", err)
		return apperrors.Internal("Failed to create service", err)
	}
	s.cfg.Log.Info("Service registered",
		"id", svc.ID,
		"duration_min", svc.BaseDurationMin,
		"required_role", svc.RequiredRole,
	)
	return nil
}

func (s *directoryService) validationFailed(resource string, err error) error {
	s.cfg.Log.Warn(resource+" validation failed", "error", err)
	return apperrors.Validation(fmt.Sprintf("%s validation failed", resource), map[string]any{
		"error": err.Error(),
	})
}

func (s *directoryService) translate(resource, id string, err error) error {
	if errors.Is(err, directoryerrors.ErrNotFound) || errors.Is(err, directoryerrors.ErrInvalidID) {
		return apperrors.NotFoundWithID(resource, id)
	}
	s.cfg.Log.Error("Directory lookup failed", "resource", resource, "id", id, "error", err)
	return apperrors.Internal("Failed to load "+strings.ToLower(resource), err)
}
