package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable identifier returned in error bodies
type ErrorCode string

const (
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingURLParameter ErrorCode = "MISSING_URL_PARAMETER"
	ErrCodeInvalidURLEncoding  ErrorCode = "INVALID_URL_ENCODING"
	ErrCodeMissingFile         ErrorCode = "MISSING_FILE"
	ErrCodeUnauthorizedDomain  ErrorCode = "UNAUTHORIZED_DOMAIN"

	ErrCodeRequestTimeout        ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeFacebookRequestFailed ErrorCode = "FACEBOOK_REQUEST_FAILED"
	ErrCodeNetworkError          ErrorCode = "NETWORK_ERROR"
	ErrCodeMediaPermanence       ErrorCode = "MEDIA_PERMANENCE_FAILED"
	ErrCodeWhatsAppAPI           ErrorCode = "WHATSAPP_API"

	ErrCodeStreamError ErrorCode = "STREAM_ERROR"
	ErrCodeUploadError ErrorCode = "UPLOAD_ERROR"
	ErrCodeServerError ErrorCode = "SERVER_ERROR"

	ErrCodeFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	ErrCodeDatabaseQuery ErrorCode = "DATABASE_QUERY"
	ErrCodeInternalError ErrorCode = "INTERNAL_SERVER_ERROR"
)

// statusByCode lists every code that does not answer 500
var statusByCode = map[ErrorCode]int{
	ErrCodeValidationFailed:      http.StatusBadRequest,
	ErrCodeMissingURLParameter:   http.StatusBadRequest,
	ErrCodeInvalidURLEncoding:    http.StatusBadRequest,
	ErrCodeMissingFile:           http.StatusBadRequest,
	ErrCodeUnauthorizedDomain:    http.StatusForbidden,
	ErrCodeNotFound:              http.StatusNotFound,
	ErrCodeFileNotFound:          http.StatusNotFound,
	ErrCodeRequestTimeout:        http.StatusRequestTimeout,
	ErrCodeFacebookRequestFailed: http.StatusBadGateway,
	ErrCodeNetworkError:          http.StatusBadGateway,
	ErrCodeMediaPermanence:       http.StatusBadGateway,
	ErrCodeWhatsAppAPI:           http.StatusBadGateway,
	ErrCodeDatabaseQuery:         http.StatusServiceUnavailable,
}

// HTTPStatus is the response status for the code
func (c ErrorCode) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError carries a code, an internal message and an optional caller-safe
// message. Context entries are logged; only a few are ever returned.
type AppError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Retryable   bool                   `json:"retryable"`
	UserMessage string                 `json:"user_message,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// WrapRetryable is Wrap for failures a later attempt may not hit
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	appErr := Wrap(err, code, message)
	appErr.Retryable = true
	return appErr
}

// As returns the outermost AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable
}

// GetCode returns the code of the first AppError, INTERNAL_SERVER_ERROR otherwise
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// GetUserMessage never exposes the text of errors that are not AppErrors
func GetUserMessage(err error) string {
	appErr, ok := As(err)
	switch {
	case !ok:
		return "An internal error occurred"
	case appErr.UserMessage != "":
		return appErr.UserMessage
	default:
		return appErr.Message
	}
}
