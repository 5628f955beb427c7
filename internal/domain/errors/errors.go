package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError for transport mapping and retry decisions.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
)

// Error codes surfaced to API clients and job logs.
const (
	CodeInvalidInput            = "INVALID_INPUT"
	CodeInvalidPeriodFormat     = "INVALID_PERIOD_FORMAT"
	CodeUpsertConflict          = "UPSERT_CONFLICT"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeNotFound                = "RESOURCE_NOT_FOUND"
	CodeInternal                = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError with the same code and message, so a sentinel
// matches copies of itself through wrapping but not other errors sharing its
// code. Use HasCode to match a whole class.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Code == e.Code && t.Message == e.Message
	}
	return false
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		Retryable:  true,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternal,
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// NewInvalidPeriodFormatError reports a reporting period token that does not
// match "<year>-Annual" or "<year>-Q<1-4>".
func NewInvalidPeriodFormatError(token string) *AppError {
	return NewValidationError(CodeInvalidPeriodFormat,
		fmt.Sprintf("invalid reporting period format %q: expected <year>-Annual or <year>-Q<1-4>", token)).
		WithDetails(map[string]interface{}{"period": token})
}

// NewUpsertConflictError reports a concurrent recomputation for the same
// aggregation key. Callers should retry.
func NewUpsertConflictError(key string) *AppError {
	return NewConflictError(CodeUpsertConflict,
		fmt.Sprintf("concurrent recomputation in progress for %s", key)).
		WithDetails(map[string]interface{}{"key": key})
}

// Not-found sentinels returned by the repositories.
var (
	ErrReportNotFound   = NewNotFoundError("report")
	ErrSnapshotNotFound = NewNotFoundError("compliance score snapshot")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// HasCode checks if an error carries a specific code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
