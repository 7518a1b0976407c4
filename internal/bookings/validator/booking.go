package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"courtsync/pkg/logger"
	"courtsync/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRegex = regexp.MustCompile(`^(?:|\+[1-9]\d{7,14})$`)
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

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	return &BookingValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// Validate checks a booking request after sanitization. Only the explicit
// slot form is cross-checked here; a sealed slot reference is opened and
// verified by the service.
func (v *BookingValidator) Validate(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	var errs ValidationErrors

	if !phoneRegex.MatchString(req.CustomerPhone) {
		errs = append(errs, ValidationError{
			Field:   "CustomerPhone",
			Message: "customer_phone must be a dialable phone number",
		})
	}

	if req.SlotRef == "" {
		if req.Facility == "" {
			errs = append(errs, ValidationError{
				Field:   "Facility",
				Message: "facility is required when slot_ref is not given",
			})
		}
		if req.SlotStart.IsZero() || req.SlotEnd.IsZero() {
			errs = append(errs, ValidationError{
				Field:   "SlotStart",
				Message: "slot_start and slot_end are required when slot_ref is not given",
			})
		} else if !req.SlotEnd.After(req.SlotStart) {
			errs = append(errs, ValidationError{
				Field:   "SlotEnd",
				Message: "slot_end must be after slot_start",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
