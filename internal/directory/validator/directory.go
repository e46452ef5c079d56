package validator

import (
	"errors"
	"fmt"
	"medisched/pkg/model"

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
	return fmt.Sprintf("validation failed: %d error(s): %s", len(v), v[0].Error())
}

type DirectoryValidator struct {
	validate *validator.Validate
}

func NewDirectoryValidator() *DirectoryValidator {
	return &DirectoryValidator{
		validate: validator.New(),
	}
}

func (v *DirectoryValidator) ValidateStaff(s *model.Staff) error {
	return v.validateStruct(s)
}

func (v *DirectoryValidator) ValidateLocation(l *model.Location) error {
	return v.validateStruct(l)
}

func (v *DirectoryValidator) ValidateService(s *model.ServiceDefinition) error {
	if err := v.validateStruct(s); err != nil {
		return err
	}
	return v.validateServiceRules(s)
}

func (v *DirectoryValidator) validateStruct(s any) error {
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
		case "min", "max":
			message = fmt.Sprintf("%s violates %s=%s", err.Field(), err.Tag(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "timezone":
			message = fmt.Sprintf("%s must be an IANA time zone name", err.Field())
		}
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}
	return validationErrors
}

// validateServiceRules checks that required quantities can ever be met by
// the assigned pools.
func (v *DirectoryValidator) validateServiceRules(s *model.ServiceDefinition) error {
	var errs ValidationErrors
	if s.RoomQuantityRequired > len(s.AssignedRooms) {
		errs = append(errs, ValidationError{
			Field:   "room_quantity_required",
			Message: fmt.Sprintf("requires %d rooms but only %d are assigned", s.RoomQuantityRequired, len(s.AssignedRooms)),
		})
	}
	if s.DeviceQuantityRequired > len(s.AssignedDevices) {
		errs = append(errs, ValidationError{
			Field:   "device_quantity_required",
			Message: fmt.Sprintf("requires %d devices but only %d are assigned", s.DeviceQuantityRequired, len(s.AssignedDevices)),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
