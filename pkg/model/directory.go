package model

import "time"

type Staff struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name       string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Role       Role      `json:"role" bson:"role" validate:"required,oneof=physician nurse therapist technician assistant receptionist"`
	LocationID string    `json:"location_id" bson:"location_id" validate:"required"`
	Active     bool      `json:"active" bson:"active"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

type Location struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	TimeZone  string    `json:"time_zone" bson:"time_zone" validate:"omitempty,timezone"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type ServiceDefinition struct {
	ID                     string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name                   string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	BaseDurationMin        int       `json:"base_duration_min" bson:"base_duration_min" validate:"required,min=5,max=480"`
	RequiredRole           Role      `json:"required_role" bson:"required_role" validate:"omitempty,oneof=physician nurse therapist technician assistant receptionist"`
	AssignedRooms          []string  `json:"assigned_rooms" bson:"assigned_rooms"`
	AssignedDevices        []string  `json:"assigned_devices" bson:"assigned_devices"`
	RoomQuantityRequired   int       `json:"room_quantity_required" bson:"room_quantity_required" validate:"min=0"`
	DeviceQuantityRequired int       `json:"device_quantity_required" bson:"device_quantity_required" validate:"min=0"`
	RequiresConsent        bool      `json:"requires_consent" bson:"requires_consent"`
	Active                 bool      `json:"active" bson:"active"`
	CreatedAt              time.Time `json:"created_at" bson:"created_at"`
}

func (s *ServiceDefinition) Duration() time.Duration {
	return time.Duration(s.BaseDurationMin) * time.Minute
}
