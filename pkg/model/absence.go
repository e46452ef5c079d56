package model

import "time"

type AbsenceStatus string

const (
	AbsencePending   AbsenceStatus = "pending"
	AbsenceApproved  AbsenceStatus = "approved"
	AbsenceRejected  AbsenceStatus = "rejected"
	AbsenceCancelled AbsenceStatus = "cancelled"
)

type Absence struct {
	ID         string        `json:"id,omitempty" bson:"_id,omitempty"`
	StaffID    string        `json:"staff_id" bson:"staff_id" validate:"required"`
	StartsAt   time.Time     `json:"starts_at" bson:"starts_at" validate:"required"`
	EndsAt     time.Time     `json:"ends_at" bson:"ends_at" validate:"required"`
	Reason     string        `json:"reason" bson:"reason" validate:"omitempty,max=500"`
	Status     AbsenceStatus `json:"status" bson:"status" validate:"required,oneof=pending approved rejected cancelled"`
	ApprovedBy string        `json:"approved_by,omitempty" bson:"approved_by,omitempty"`
	DecidedAt  *time.Time    `json:"decided_at,omitempty" bson:"decided_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
}
