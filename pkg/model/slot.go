package model

import "time"

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StaffSlot is a slot tagged with the staff member it belongs to.
type StaffSlot struct {
	StaffID string    `json:"staff_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type Utilization struct {
	StaffID    string        `json:"staff_id"`
	RangeStart time.Time     `json:"range_start"`
	RangeEnd   time.Time     `json:"range_end"`
	OpenTime   time.Duration `json:"open_time"`
	// BusyTime is bookings plus blocking absences, clipped to open time.
	BusyTime   time.Duration `json:"busy_time"`
	Percent    float64       `json:"percent"`
}

type CollisionKind string

const (
	CollisionBooking     CollisionKind = "booking"
	CollisionAbsence     CollisionKind = "absence"
	CollisionClosure     CollisionKind = "closure"
	CollisionOutsideOpen CollisionKind = "outside_open_hours"
)

// Collision names one commitment that blocks a requested window.
type Collision struct {
	Resource ResourceRef   `json:"resource"`
	Kind     CollisionKind `json:"kind"`
	SourceID string        `json:"source_id,omitempty"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
}
