package validator

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"smartdorm/pkg/logger"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	roomNumberRegex = regexp.MustCompile(`^[A-Za-z0-9-]{1,16}$`)
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

// Validator wraps go-playground/validator with the tags every domain model
// uses. Field names in errors follow the json tags.
type Validator struct {
	validate *validator.Validate
}

func New(log *logger.Logger) *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("finite", validateFinite); err != nil {
		log.Fatal("Failed to register 'finite' validator", "error", err)
	}
	if err := v.RegisterValidation("room_number", validateRoomNumber); err != nil {
		log.Fatal("Failed to register 'room_number' validator", "error", err)
	}

	return &Validator{validate: v}
}

func validateFinite(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		f := field.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return true
	}
}

func validateRoomNumber(fl validator.FieldLevel) bool {
	return roomNumberRegex.MatchString(fl.Field().String())
}

func (v *Validator) Struct(s any) error {
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
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: messageFor(err),
		})
	}

	return validationErrors
}

func messageFor(err validator.FieldError) string {
	switch err.Tag() {
	case "required", "required_with":
		return "is required"
	case "finite":
		return "must be a finite number"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", err.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	case "e164":
		return "must be a phone number in E.164 format"
	case "email":
		return "must be a valid email address"
	case "room_number":
		return "must be 1-16 letters, digits or dashes"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", err.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", err.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", err.Tag())
	}
}

// Details flattens validation errors into a field to message map for API
// responses. Other errors yield nil.
func Details(err error) map[string]any {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]any, len(verrs))
	for _, e := range verrs {
		details[e.Field] = e.Message
	}
	return details
}
