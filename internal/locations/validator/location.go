package validator

import (
	"errors"
	"fmt"
	"medisched/internal/locations/recurrence"
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

type LocationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLocationValidator(log *logger.Logger) *LocationValidator {
	v := validator.New()

	if err := v.RegisterValidation("clock_time", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil && len(fl.Field().String()) == 5
	}); err != nil {
		log.Fatal("Failed to register 'clock_time' validator", "error", err)
	}
	v.RegisterStructValidation(validateHoursRule, model.LocationHours{})

	return &LocationValidator{
		validate: v,
		logger:   log,
	}
}

func validateHoursRule(sl validator.StructLevel) {
	h := sl.Current().Interface().(model.LocationHours)
	if h.RRule == "" {
		return
	}
	loc := time.UTC
	if h.TimeZone != "" {
		if l, err := time.LoadLocation(h.TimeZone); err == nil {
			loc = l
		}
	}
	if _, err := recurrence.Compile(&h, loc); err != nil {
		sl.ReportError(h.RRule, "rrule", "RRule", "rrule", err.Error())
	}
}

func (v *LocationValidator) ValidateHours(h *model.LocationHours) error {
	return v.validateStruct(h)
}

func (v *LocationValidator) ValidateClosure(c *model.LocationClosure) error {
	return v.validateStruct(c)
}

func (v *LocationValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "clock_time":
			message = fmt.Sprintf("%s must be in HH:MM 24-hour format", err.Field())
		case "timezone":
			message = fmt.Sprintf("%s must be an IANA time zone name", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "rrule":
			message = err.Param()
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
