package model

import "time"

type AuditAction string

const (
	AuditBookingCreated   AuditAction = "booking.created"
	AuditBookingRejected  AuditAction = "booking.rejected"
	AuditBookingCancelled AuditAction = "booking.cancelled"
	AuditBookingStatus    AuditAction = "booking.status_changed"
)

type AuditEvent struct {
	ActorID     string         `json:"actor_id"`
	Action      AuditAction    `json:"action"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

type NotificationKind string

const (
	NotifyBookingConfirmed NotificationKind = "booking_confirmed"
	NotifyBookingCancelled NotificationKind = "booking_cancelled"
)

// Notification carries a booking outcome to the dispatch collaborator.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	BookingID string           `json:"booking_id"`
	PatientID string           `json:"patient_id"`
	StaffID   string           `json:"staff_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Reason    string           `json:"reason,omitempty"`
}
