package service

import (
	"context"
	"errors"
	absenceerrors "medisched/internal/absences/errors"
	"medisched/internal/absences/repository"
	"medisched/internal/absences/validator"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/interval"
	"medisched/pkg/model"
	"medisched/pkg/sanitizer"
	"time"
)

type AbsenceService interface {
	Request(ctx context.Context, a *model.Absence) error
	Approve(ctx context.Context, id, approverID string) (*model.Absence, error)
	Reject(ctx context.Context, id, approverID string) (*model.Absence, error)
	Cancel(ctx context.Context, id, actorID string) (*model.Absence, error)
	GetByID(ctx context.Context, id string) (*model.Absence, error)
	// Blocking returns the absences that remove availability inside
	// [start, end): approved ones, plus pending ones when configured.
	Blocking(ctx context.Context, staffID string, start, end time.Time) ([]*model.Absence, error)
	BusyIntervals(ctx context.Context, staffID string, start, end time.Time) ([]interval.Interval, error)
}

type absenceService struct {
	repo      repository.AbsenceRepository
	validator *validator.AbsenceValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewAbsenceService(
	repo repository.AbsenceRepository,
	validator *validator.AbsenceValidator,
	clk clock.Clock,
	cfg *config.Config,
) AbsenceService {
	return &absenceService{
		repo:      repo,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *absenceService) Request(ctx context.Context, a *model.Absence) error {
	a.StaffID = sanitizer.NormalizeID(a.StaffID)
	a.Reason = sanitizer.NormalizeText(a.Reason)
	a.Status = model.AbsencePending
	a.ApprovedBy = ""
	a.DecidedAt = nil

	if !a.EndsAt.After(a.StartsAt) {
		return apperrors.InvalidRange("absence must end after it starts")
	}
	if err := s.validator.Validate(a); err != nil {
		s.cfg.Log.Warn("Absence validation failed", "staff_id", a.StaffID, "error", err)
		return apperrors.Validation("Absence validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkApprovedOverlap(txCtx, a); err != nil {
			return err
		}
		a.CreatedAt = s.clock.Now()
		if err := s.repo.Create(txCtx, a); err != nil {
			s.cfg.Log.Error("Failed to create absence", "staff_id", a.StaffID, "error", err)
			return apperrors.Internal("Failed to create absence", err)
		}
		s.cfg.Log.Info("Absence requested",
			"id", a.ID,
			"staff_id", a.StaffID,
			"starts_at", a.StartsAt,
			"ends_at", a.EndsAt,
		)
		return nil
	})
}

func (s *absenceService) Approve(ctx context.Context, id, approverID string) (*model.Absence, error) {
	approverID = sanitizer.NormalizeID(approverID)
	if approverID == "" {
		return nil, apperrors.InvalidInput("approver ID is required")
	}

	var approved *model.Absence
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.find(txCtx, id)
		if err != nil {
			return err
		}
		if current.Status != model.AbsencePending {
			return apperrors.InvalidTransition(string(current.Status), string(model.AbsenceApproved))
		}
		if err := s.checkApprovedOverlap(txCtx, current); err != nil {
			return err
		}
		approved, err = s.decide(txCtx, id, repository.Decision{
			From:       []model.AbsenceStatus{model.AbsencePending},
			To:         model.AbsenceApproved,
			ApprovedBy: approverID,
			At:         s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Absence approved", "id", id, "staff_id", approved.StaffID, "approved_by", approverID)
	return approved, nil
}

func (s *absenceService) Reject(ctx context.Context, id, approverID string) (*model.Absence, error) {
	approverID = sanitizer.NormalizeID(approverID)
	if approverID == "" {
		return nil, apperrors.InvalidInput("approver ID is required")
	}

	rejected, err := s.decide(ctx, id, repository.Decision{
		From:       []model.AbsenceStatus{model.AbsencePending},
		To:         model.AbsenceRejected,
		ApprovedBy: approverID,
		At:         s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Absence rejected", "id", id, "staff_id", rejected.StaffID, "decided_by", approverID)
	return rejected, nil
}

func (s *absenceService) Cancel(ctx context.Context, id, actorID string) (*model.Absence, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.clock.Now().Before(current.StartsAt) {
		return nil, apperrors.InvalidTransition(string(current.Status), string(model.AbsenceCancelled)).
			WithDetails(map[string]any{
				"from":   current.Status,
				"to":     model.AbsenceCancelled,
				"reason": "absence has already started",
			})
	}

	cancelled, err := s.decide(ctx, id, repository.Decision{
		From: []model.AbsenceStatus{model.AbsencePending, model.AbsenceApproved},
		To:   model.AbsenceCancelled,
		At:   s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Absence cancelled", "id", id, "staff_id", cancelled.StaffID, "actor_id", actorID)
	return cancelled, nil
}

func (s *absenceService) GetByID(ctx context.Context, id string) (*model.Absence, error) {
	return s.find(ctx, id)
}

func (s *absenceService) Blocking(ctx context.Context, staffID string, start, end time.Time) ([]*model.Absence, error) {
	statuses := []model.AbsenceStatus{model.AbsenceApproved}
	if s.cfg.IncludePendingAbsences {
		statuses = append(statuses, model.AbsencePending)
	}

	absences, err := s.repo.FindOverlapping(ctx, staffID, statuses, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to load absences", "staff_id", staffID, "error", err)
		return nil, apperrors.Internal("Failed to load absences", err)
	}
	return absences, nil
}

func (s *absenceService) BusyIntervals(ctx context.Context, staffID string, start, end time.Time) ([]interval.Interval, error) {
	absences, err := s.Blocking(ctx, staffID, start, end)
	if err != nil {
		return nil, err
	}
	busy := make([]interval.Interval, 0, len(absences))
	for _, a := range absences {
		busy = append(busy, interval.New(a.StartsAt, a.EndsAt))
	}
	return interval.IntersectRange(interval.Union(busy), start, end), nil
}

func (s *absenceService) checkApprovedOverlap(ctx context.Context, a *model.Absence) error {
	approved, err := s.repo.FindOverlapping(ctx, a.StaffID, []model.AbsenceStatus{model.AbsenceApproved}, a.StartsAt, a.EndsAt)
	if err != nil {
		return apperrors.Internal("Failed to check overlapping absences", err)
	}
	for _, other := range approved {
		if other.ID == a.ID {
			continue
		}
		s.cfg.Log.Warn("Absence overlaps an approved absence",
			"staff_id", a.StaffID,
			"conflicting_id", other.ID,
		)
		return apperrors.Conflict("absence overlaps an approved absence").WithDetails(map[string]any{
			"conflicting_absence_id": other.ID,
			"starts_at":              other.StartsAt,
			"ends_at":                other.EndsAt,
		})
	}
	return nil
}

func (s *absenceService) decide(ctx context.Context, id string, d repository.Decision) (*model.Absence, error) {
	a, err := s.repo.UpdateStatus(ctx, id, d)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, absenceerrors.ErrStatusChanged) {
		current, findErr := s.repo.FindByID(ctx, id)
		if findErr != nil {
			return nil, apperrors.Conflict("absence status changed concurrently")
		}
		return nil, apperrors.InvalidTransition(string(current.Status), string(d.To))
	}
	return nil, s.translateRepoError(id, err)
}

func (s *absenceService) find(ctx context.Context, id string) (*model.Absence, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Absence ID cannot be empty")
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateRepoError(id, err)
	}
	return a, nil
}

func (s *absenceService) translateRepoError(id string, err error) error {
	switch {
	case errors.Is(err, absenceerrors.ErrNotFound), errors.Is(err, absenceerrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Absence", id)
	default:
		s.cfg.Log.Error("Absence repository failure", "id", id, "error", err)
		return apperrors.Internal("Failed to access absence", err)
	}
}
