package model

import (
	"sort"
	"time"
)

type BookingStatus string

const (
	BookingScheduled  BookingStatus = "scheduled"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no_show"
)

// ActiveBookingStatuses are the statuses that hold their resources.
var ActiveBookingStatuses = []BookingStatus{BookingScheduled, BookingConfirmed, BookingInProgress}

// CancellableBookingStatuses are the statuses a booking may be cancelled from.
var CancellableBookingStatuses = []BookingStatus{BookingScheduled, BookingConfirmed}

func (s BookingStatus) Active() bool {
	for _, a := range ActiveBookingStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type BookingType string

const (
	BookingInPerson   BookingType = "in_person"
	BookingTelehealth BookingType = "telehealth"
	BookingHomeVisit  BookingType = "home_visit"
)

type ResourceType string

const (
	ResourceStaff  ResourceType = "staff"
	ResourceRoom   ResourceType = "room"
	ResourceDevice ResourceType = "device"

	// ResourceLocation only appears in collision reports for closures.
	ResourceLocation ResourceType = "location"
)

// ResourceRef identifies one indivisible bookable resource.
type ResourceRef struct {
	Type ResourceType `json:"type" bson:"type"`
	ID   string       `json:"id" bson:"id"`
}

func (r ResourceRef) Key() string {
	return string(r.Type) + ":" + r.ID
}

func StaffRef(id string) ResourceRef  { return ResourceRef{Type: ResourceStaff, ID: id} }
func RoomRef(id string) ResourceRef   { return ResourceRef{Type: ResourceRoom, ID: id} }
func DeviceRef(id string) ResourceRef { return ResourceRef{Type: ResourceDevice, ID: id} }

type Booking struct {
	ID                 string        `json:"id,omitempty" bson:"_id,omitempty"`
	ServiceID          string        `json:"service_id" bson:"service_id"`
	PatientID          string        `json:"patient_id" bson:"patient_id"`
	LocationID         string        `json:"location_id" bson:"location_id"`
	StaffID            string        `json:"staff_id" bson:"staff_id"`
	RoomIDs            []string      `json:"room_ids,omitempty" bson:"room_ids,omitempty"`
	DeviceIDs          []string      `json:"device_ids,omitempty" bson:"device_ids,omitempty"`
	Resources          []ResourceRef `json:"resources" bson:"resources"`
	StartTime          time.Time     `json:"start_time" bson:"start_time"`
	EndTime            time.Time     `json:"end_time" bson:"end_time"`
	Status             BookingStatus `json:"status" bson:"status"`
	BookingType        BookingType   `json:"booking_type" bson:"booking_type"`
	ConsentGiven       bool          `json:"consent_given" bson:"consent_given"`
	Notes              string        `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedBy          string        `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CancelledBy        string        `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`
}

// ResourceRefs rebuilds the claimed resource list from the staff, room and
// device fields, sorted by key.
func (b *Booking) ResourceRefs() []ResourceRef {
	refs := []ResourceRef{StaffRef(b.StaffID)}
	for _, id := range b.RoomIDs {
		refs = append(refs, RoomRef(id))
	}
	for _, id := range b.DeviceIDs {
		refs = append(refs, DeviceRef(id))
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key() < refs[j].Key() })
	return refs
}

func (b *Booking) Holds(ref ResourceRef) bool {
	for _, r := range b.ResourceRefs() {
		if r == ref {
			return true
		}
	}
	return false
}

// BookingRequest is a caller's request to book a staff member for a service.
// EndTime may be omitted, in which case the service duration applies.
type BookingRequest struct {
	ServiceID    string      `json:"service_id" validate:"required,entity_id"`
	PatientID    string      `json:"patient_id" validate:"required,entity_id"`
	StaffID      string      `json:"staff_id" validate:"required,entity_id"`
	LocationID   string      `json:"location_id,omitempty" validate:"omitempty,entity_id"`
	StartTime    time.Time   `json:"start_time" validate:"required"`
	EndTime      time.Time   `json:"end_time,omitempty"`
	BookingType  BookingType `json:"booking_type,omitempty" validate:"omitempty,oneof=in_person telehealth home_visit"`
	ConsentGiven bool        `json:"consent_given"`
	Notes        string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ActorID      string      `json:"actor_id,omitempty" validate:"omitempty,entity_id"`
}

type CancelRequest struct {
	ActorID string `json:"actor_id" validate:"omitempty,entity_id"`
	Reason  string `json:"reason" validate:"omitempty,max=500"`
}

type StatusUpdate struct {
	Status  BookingStatus `json:"status" validate:"required,oneof=scheduled confirmed in_progress completed cancelled no_show"`
	ActorID string        `json:"actor_id,omitempty" validate:"omitempty,entity_id"`
}
