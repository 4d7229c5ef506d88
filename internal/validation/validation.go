package validation

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"orderbridge/internal/errors"
	"orderbridge/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	maxMediaIDLen  = 256
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation tag %q: %v", tag, err))
		}
	}
	mustRegister("phone", func(fl validator.FieldLevel) bool {
		return ValidatePhoneNumber(fl.Field().String()) == nil
	})
	mustRegister("media_id", func(fl validator.FieldLevel) bool {
		return ValidateMediaID(fl.Field().String()) == nil
	})
	mustRegister("sender_type", func(fl validator.FieldLevel) bool {
		return models.SenderType(fl.Field().String()).Valid()
	})
	mustRegister("order_status", func(fl validator.FieldLevel) bool {
		return models.OrderStatus(fl.Field().String()).Valid()
	})

	return v
}

// Struct validates a request body against its validate tags. The first
// failing field is returned as a VALIDATION_FAILED error naming that field.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return errors.Wrap(err, errors.ErrCodeValidationFailed, "invalid request body")
	}

	fe := validationErrors[0]
	return errors.NewValidationError(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is empty", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "phone":
		return fmt.Sprintf("must be %d to %d digits with an optional leading +", minPhoneDigits, maxPhoneDigits)
	case "media_id":
		return "is not a valid media ID"
	case "sender_type":
		return "must be one of enterprise, client, worker"
	case "order_status":
		return "must be one of pending, in_progress, ready, delivered, cancelled"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

// ValidatePhoneNumber checks a WhatsApp Cloud API recipient: E.164 digits,
// with or without a leading +.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeValidationFailed, "phone number cannot be empty")
	}

	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("phone number must be between %d and %d digits, got %d", minPhoneDigits, maxPhoneDigits, len(digits)))
	}

	for _, char := range digits {
		if char < '0' || char > '9' {
			return errors.New(errors.ErrCodeValidationFailed, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMediaID validates a provider media ID before it is used in a
// Graph API path
func ValidateMediaID(mediaID string) error {
	if mediaID == "" {
		return errors.New(errors.ErrCodeValidationFailed, "media ID cannot be empty")
	}

	if len(mediaID) > maxMediaIDLen {
		return errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("media ID too long (max %d characters)", maxMediaIDLen))
	}

	for _, char := range mediaID {
		if char <= ' ' || char == '/' || char == '?' || char == '#' || char == 0x7f {
			return errors.New(errors.ErrCodeValidationFailed, "media ID contains invalid characters")
		}
	}

	return nil
}

// ValidateHTTPRequestSize rejects requests whose declared body exceeds maxSizeBytes.
// Unknown lengths (-1) pass; the body reader enforces the limit for those.
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.NewValidationError(fieldName, fmt.Sprintf("too small (min %d)", min))
	}

	if value > max {
		return errors.NewValidationError(fieldName, fmt.Sprintf("too large (max %d)", max))
	}

	return nil
}
