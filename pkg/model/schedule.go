package model

import (
	"strings"
	"time"
)

// WeeklySchedule is a staff member's recurring working week. Several may be
// active at once; their working hours are unioned.
type WeeklySchedule struct {
	ID        string        `json:"id,omitempty" bson:"_id,omitempty"`
	StaffID   string        `json:"staff_id" bson:"staff_id" validate:"required"`
	ValidFrom time.Time     `json:"valid_from" bson:"valid_from" validate:"required"`
	ValidTo   *time.Time    `json:"valid_to,omitempty" bson:"valid_to,omitempty"`
	IsActive  bool          `json:"is_active" bson:"is_active"`
	Days      []DaySchedule `json:"days" bson:"days" validate:"max=7,dive"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

type DaySchedule struct {
	Day        string `json:"day" bson:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	IsWorking  bool   `json:"is_working" bson:"is_working"`
	StartTime  string `json:"start_time,omitempty" bson:"start_time,omitempty" validate:"required_if=IsWorking true,omitempty,clock_time"`
	EndTime    string `json:"end_time,omitempty" bson:"end_time,omitempty" validate:"required_if=IsWorking true,omitempty,clock_time"`
	BreakStart string `json:"break_start,omitempty" bson:"break_start,omitempty" validate:"omitempty,clock_time"`
	BreakEnd   string `json:"break_end,omitempty" bson:"break_end,omitempty" validate:"required_with=BreakStart,omitempty,clock_time"`
}

type WeeklyScheduleUpdate struct {
	ValidFrom *time.Time     `json:"valid_from,omitempty"`
	ValidTo   *time.Time     `json:"valid_to,omitempty"`
	IsActive  *bool          `json:"is_active,omitempty"`
	Days      *[]DaySchedule `json:"days,omitempty" validate:"omitempty,max=7,dive"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func ParseWeekday(day string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(day))]
	return wd, ok
}

// DayFor returns the entry for the given weekday, if any.
func (s *WeeklySchedule) DayFor(wd time.Weekday) (DaySchedule, bool) {
	for _, d := range s.Days {
		if parsed, ok := ParseWeekday(d.Day); ok && parsed == wd {
			return d, true
		}
	}
	return DaySchedule{}, false
}

// CoversDate reports whether the validity window includes the calendar day
// of date. Validity bounds are calendar dates stored at UTC midnight.
func (s *WeeklySchedule) CoversDate(date time.Time) bool {
	day := DateOf(date)
	if day.Before(calendarDate(s.ValidFrom, date.Location())) {
		return false
	}
	if s.ValidTo != nil && day.After(calendarDate(*s.ValidTo, date.Location())) {
		return false
	}
	return true
}

func calendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ClockOn resolves an "HH:MM" clock time on the calendar day of date.
func ClockOn(date time.Time, clock string) (time.Time, bool) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), true
}
