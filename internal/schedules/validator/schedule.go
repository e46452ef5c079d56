package validator

import (
	"errors"
	"fmt"
	"medisched/pkg/logger"
	"medisched/pkg/model"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ScheduleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewScheduleValidator(log *logger.Logger) *ScheduleValidator {
	v := validator.New()

	if err := v.RegisterValidation("clock_time", validateClockTime); err != nil {
		log.Fatal("Failed to register 'clock_time' validator", "error", err)
	}
	v.RegisterStructValidation(validateDaySchedule, model.DaySchedule{})
	v.RegisterStructValidation(validateWeeklySchedule, model.WeeklySchedule{})

	log.Debug("Schedule validator initialized successfully")

	return &ScheduleValidator{
		validate: v,
		logger:   log,
	}
}

func validateClockTime(fl validator.FieldLevel) bool {
	_, ok := parseClock(fl.Field().String())
	return ok
}

// parseClock returns minutes since midnight for a strict "HH:MM" value.
func parseClock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 5 {
		return 0, false
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func validateDaySchedule(sl validator.StructLevel) {
	day := sl.Current().Interface().(model.DaySchedule)
	if !day.IsWorking {
		return
	}

	start, okStart := parseClock(day.StartTime)
	end, okEnd := parseClock(day.EndTime)
	if !okStart || !okEnd {
		return
	}
	if end <= start {
		sl.ReportError(day.EndTime, "end_time", "EndTime", "after_start", "")
		return
	}

	if day.BreakStart == "" && day.BreakEnd == "" {
		return
	}
	breakStart, okBS := parseClock(day.BreakStart)
	breakEnd, okBE := parseClock(day.BreakEnd)
	if !okBS || !okBE {
		sl.ReportError(day.BreakStart, "break_start", "BreakStart", "break_pair", "")
		return
	}
	if breakEnd <= breakStart || breakStart < start || breakEnd > end {
		sl.ReportError(day.BreakStart, "break_start", "BreakStart", "break_within_hours", "")
	}
}

func validateWeeklySchedule(sl validator.StructLevel) {
	sc := sl.Current().Interface().(model.WeeklySchedule)

	if sc.ValidTo != nil && model.DateOf(*sc.ValidTo).Before(model.DateOf(sc.ValidFrom)) {
		sl.ReportError(sc.ValidTo, "valid_to", "ValidTo", "valid_window", "")
	}

	seen := make(map[string]bool, len(sc.Days))
	for _, d := range sc.Days {
		day := strings.ToLower(strings.TrimSpace(d.Day))
		if seen[day] {
			sl.ReportError(sc.Days, "days", "Days", "unique_days", day)
			return
		}
		seen[day] = true
	}
}

func (v *ScheduleValidator) Validate(sc *model.WeeklySchedule) error {
	if err := v.validate.Struct(sc); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ScheduleValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required", "required_if", "required_with":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must have at most %s entries", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "clock_time":
			message = fmt.Sprintf("%s must be in HH:MM 24-hour format", err.Field())
		case "after_start":
			message = "end_time must be after start_time on working days"
		case "break_pair":
			message = "break_start and break_end must both be set in HH:MM format"
		case "break_within_hours":
			message = "break must end after it starts and lie within working hours"
		case "valid_window":
			message = "valid_to must not be before valid_from"
		case "unique_days":
			message = fmt.Sprintf("day %q appears more than once", err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Namespace(),
			Message: message,
		})
	}

	return validationErrors
}
