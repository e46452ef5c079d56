package service

import (
	"context"
	"fmt"
	"medisched/internal/audit"
	availability "medisched/internal/availability/service"
	"medisched/internal/bookings/validator"
	directory "medisched/internal/directory/service"
	"medisched/internal/notifications"
	reservations "medisched/internal/reservations/service"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
	"medisched/pkg/interval"
	"medisched/pkg/model"
	"medisched/pkg/sanitizer"
	"medisched/pkg/tracing"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// transitions lists the statuses reachable from each booking status.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingScheduled:  {model.BookingConfirmed, model.BookingCancelled, model.BookingNoShow},
	model.BookingConfirmed:  {model.BookingInProgress, model.BookingCancelled, model.BookingNoShow},
	model.BookingInProgress: {model.BookingCompleted},
}

type BookingService interface {
	Book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	Cancel(ctx context.Context, id string, req *model.CancelRequest) (*model.Booking, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	ListByStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, update *model.StatusUpdate) (*model.Booking, error)
}

type bookingService struct {
	availability availability.AvailabilityService
	reservations reservations.ReservationService
	directory    directory.DirectoryService
	validator    *validator.BookingValidator
	audit        audit.Sink
	notifier     notifications.Dispatcher
	clock        clock.Clock
	cfg          *config.Config
}

func NewBookingService(
	avail availability.AvailabilityService,
	res reservations.ReservationService,
	dir directory.DirectoryService,
	validator *validator.BookingValidator,
	sink audit.Sink,
	notifier notifications.Dispatcher,
	clk clock.Clock,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		availability: avail,
		reservations: res,
		directory:    dir,
		validator:    validator,
		audit:        sink,
		notifier:     notifier,
		clock:        clk,
		cfg:          cfg,
	}
}

func (s *bookingService) Book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	ctx, span := tracing.Start(ctx, "bookings.Book")
	defer span.End()

	s.sanitize(req)
	span.SetAttributes(
		attribute.String("staff_id", req.StaffID),
		attribute.String("service_id", req.ServiceID),
	)

	booking, err := s.book(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.recordRejection(ctx, req, err)
		return nil, err
	}

	s.record(ctx, model.AuditEvent{
		ActorID:     req.ActorID,
		Action:      model.AuditBookingCreated,
		Description: fmt.Sprintf("Booked %s with %s", booking.ServiceID, booking.StaffID),
		Details: map[string]any{
			"booking_id": booking.ID,
			"patient_id": booking.PatientID,
			"staff_id":   booking.StaffID,
			"rooms":      booking.RoomIDs,
			"devices":    booking.DeviceIDs,
			"start_time": booking.StartTime,
			"end_time":   booking.EndTime,
		},
	})
	s.notify(ctx, model.NotifyBookingConfirmed, booking)

	s.cfg.Log.InfoContext(ctx, "Booking created successfully",
		"id", booking.ID,
		"staff_id", booking.StaffID,
		"service_id", booking.ServiceID,
		"start_time", booking.StartTime,
	)
	return booking, nil
}

func (s *bookingService) book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.WarnContext(ctx, "Booking validation failed", "staff_id", req.StaffID, "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	svc, err := s.directory.Service(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if req.EndTime.IsZero() {
		req.EndTime = req.StartTime.Add(svc.Duration())
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, apperrors.InvalidRange("end time must be after start time")
	}
	if req.StartTime.Before(s.clock.Now()) {
		return nil, apperrors.InvalidRange("start time is in the past")
	}

	staff, err := s.directory.Staff(ctx, req.StaffID)
	if err != nil {
		return nil, err
	}
	if req.LocationID != "" && req.LocationID != staff.LocationID {
		return nil, apperrors.InvalidInput("staff member does not work at the requested location").
			WithDetails(map[string]any{
				"location_id":       req.LocationID,
				"staff_location_id": staff.LocationID,
			})
	}

	window, err := s.availability.Window(ctx, staff.ID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if !interval.Contains(window.Free, interval.New(req.StartTime, req.EndTime)) {
		collisions, err := s.availability.Collisions(ctx, window, req.StartTime, req.EndTime)
		if err != nil {
			return nil, err
		}
		return nil, reservations.Conflict(collisions)
	}

	if !staff.Role.Satisfies(svc.RequiredRole) {
		return nil, apperrors.RoleMismatch(string(staff.Role), string(svc.RequiredRole))
	}
	if svc.RequiresConsent && !req.ConsentGiven {
		return nil, apperrors.ConsentRequired(svc.ID)
	}

	return s.reservations.Reserve(ctx, &reservations.ReserveRequest{
		Booking: model.Booking{
			ServiceID:    svc.ID,
			PatientID:    req.PatientID,
			LocationID:   staff.LocationID,
			StaffID:      staff.ID,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			Status:       model.BookingScheduled,
			BookingType:  req.BookingType,
			ConsentGiven: req.ConsentGiven,
			Notes:        req.Notes,
			CreatedBy:    req.ActorID,
		},
		Pools: availability.Pools(svc),
	})
}

func (s *bookingService) Cancel(ctx context.Context, id string, req *model.CancelRequest) (*model.Booking, error) {
	ctx, span := tracing.Start(ctx, "bookings.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", id))

	if req == nil {
		req = &model.CancelRequest{}
	}
	req.ActorID = sanitizer.NormalizeID(req.ActorID)
	req.Reason = sanitizer.NormalizeText(req.Reason)
	if err := s.validator.ValidateCancel(req); err != nil {
		s.cfg.Log.WarnContext(ctx, "Cancellation validation failed", "booking_id", id, "error", err)
		return nil, apperrors.Validation("Cancellation validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	booking, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(model.CancellableBookingStatuses, booking.Status) {
		return nil, apperrors.InvalidTransition(string(booking.Status), string(model.BookingCancelled))
	}
	if !s.clock.Now().Before(booking.StartTime.Add(-s.cfg.CancellationWindow)) {
		s.cfg.Log.WarnContext(ctx, "Cancellation window expired",
			"booking_id", booking.ID,
			"start_time", booking.StartTime,
			"window", s.cfg.CancellationWindow,
		)
		return nil, apperrors.CancellationWindowExpired(s.cfg.CancellationWindow)
	}

	cancelled, err := s.reservations.Release(ctx, booking.ID, req.ActorID, req.Reason)
	if err != nil {
		return nil, err
	}

	s.record(ctx, model.AuditEvent{
		ActorID:     req.ActorID,
		Action:      model.AuditBookingCancelled,
		Description: "Booking cancelled",
		Details: map[string]any{
			"booking_id": cancelled.ID,
			"reason":     req.Reason,
		},
	})
	s.notify(ctx, model.NotifyBookingCancelled, cancelled)
	return cancelled, nil
}

func (s *bookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	if sanitizer.NormalizeID(id) == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	return s.reservations.GetByID(ctx, id)
}

func (s *bookingService) ListByStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.Booking, error) {
	staffID = sanitizer.NormalizeID(staffID)
	if staffID == "" {
		return nil, apperrors.InvalidInput("Staff ID cannot be empty")
	}
	if !end.After(start) {
		return nil, apperrors.InvalidRange("end must be after start")
	}
	if s.cfg.MaxQuerySpan > 0 && end.Sub(start) > s.cfg.MaxQuerySpan {
		return nil, apperrors.InvalidRange(fmt.Sprintf("range exceeds the maximum span of %s", s.cfg.MaxQuerySpan))
	}
	return s.reservations.ListByStaff(ctx, staffID, start, end)
}

func (s *bookingService) UpdateStatus(ctx context.Context, id string, update *model.StatusUpdate) (*model.Booking, error) {
	update.ActorID = sanitizer.NormalizeID(update.ActorID)
	if err := s.validator.ValidateStatus(update); err != nil {
		return nil, apperrors.Validation("Status update validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if update.Status == model.BookingCancelled {
		return s.Cancel(ctx, id, &model.CancelRequest{ActorID: update.ActorID})
	}

	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(transitions[current.Status], update.Status) {
		return nil, apperrors.InvalidTransition(string(current.Status), string(update.Status))
	}

	booking, err := s.reservations.Transition(ctx, current.ID, []model.BookingStatus{current.Status}, update.Status, update.ActorID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, model.AuditEvent{
		ActorID:     update.ActorID,
		Action:      model.AuditBookingStatus,
		Description: fmt.Sprintf("Booking moved from %s to %s", current.Status, booking.Status),
		Details:     map[string]any{"booking_id": booking.ID},
	})
	s.cfg.Log.InfoContext(ctx, "Booking status updated",
		"id", booking.ID,
		"from", current.Status,
		"to", booking.Status,
	)
	return booking, nil
}

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.ServiceID = sanitizer.NormalizeID(req.ServiceID)
	req.PatientID = sanitizer.NormalizeID(req.PatientID)
	req.StaffID = sanitizer.NormalizeID(req.StaffID)
	req.LocationID = sanitizer.NormalizeID(req.LocationID)
	req.ActorID = sanitizer.NormalizeID(req.ActorID)
	req.Notes = sanitizer.NormalizeText(req.Notes)
	if req.BookingType == "" {
		req.BookingType = model.BookingInPerson
	}
}

func (s *bookingService) recordRejection(ctx context.Context, req *model.BookingRequest, err error) {
	appErr := apperrors.AsAppError(err)
	code := appErr.Code
	details := map[string]any{
		"patient_id": req.PatientID,
		"staff_id":   req.StaffID,
		"service_id": req.ServiceID,
		"start_time": req.StartTime,
		"code":       code,
	}
	for k, v := range appErr.Details {
		details[k] = v
	}

	s.cfg.Log.WarnContext(ctx, "Booking rejected",
		"staff_id", req.StaffID,
		"service_id", req.ServiceID,
		"code", code,
		"error", err,
	)
	s.record(ctx, model.AuditEvent{
		ActorID:     req.ActorID,
		Action:      model.AuditBookingRejected,
		Description: "Booking rejected: " + code,
		Details:     details,
	})
}

// record never fails the caller; audit delivery problems are logged.
func (s *bookingService) record(ctx context.Context, event model.AuditEvent) {
	event.OccurredAt = s.clock.Now()
	if err := s.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		s.cfg.Log.ErrorContext(ctx, "Failed to record audit event",
			"action", event.Action,
			"actor_id", event.ActorID,
			"error", err,
		)
	}
}

func (s *bookingService) notify(ctx context.Context, kind model.NotificationKind, b *model.Booking) {
	err := s.notifier.Dispatch(ctx, model.Notification{
		Kind:      kind,
		BookingID: b.ID,
		PatientID: b.PatientID,
		StaffID:   b.StaffID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Reason:    b.CancellationReason,
	})
	if err != nil {
		s.cfg.Log.WarnContext(ctx, "Failed to dispatch notification", "booking_id", b.ID, "kind", kind, "error", err)
	}
}
