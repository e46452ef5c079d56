package model

import "time"

// LocationHours describes recurring opening hours with an RFC 5545 RRULE.
// Every occurrence opens the location for DurationMin minutes. Occurrences
// start at StartTime unless the rule carries its own DTSTART.
type LocationHours struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	LocationID  string    `json:"location_id" bson:"location_id" validate:"required"`
	RRule       string    `json:"rrule" bson:"rrule" validate:"required,min=10,max=500"`
	StartTime   string    `json:"start_time" bson:"start_time" validate:"omitempty,clock_time"`
	DurationMin int       `json:"duration_min" bson:"duration_min" validate:"required,min=1,max=1440"`
	TimeZone    string    `json:"time_zone" bson:"time_zone" validate:"omitempty,timezone"`
	Label       string    `json:"label" bson:"label" validate:"omitempty,max=100"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// LocationClosure makes a location unavailable regardless of its hours.
type LocationClosure struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	LocationID string    `json:"location_id" bson:"location_id" validate:"required"`
	StartsAt   time.Time `json:"starts_at" bson:"starts_at" validate:"required"`
	EndsAt     time.Time `json:"ends_at" bson:"ends_at" validate:"required,gtfield=StartsAt"`
	Reason     string    `json:"reason" bson:"reason" validate:"omitempty,max=500"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
