package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidObservation ErrorCode = "validation_invalid_observation"
	ErrCodeValidationInvalidLat         ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon         ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationBatchSize          ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationForecastHours      ErrorCode = "validation_forecast_hours_out_of_range"
	ErrCodeValidationMissingField       ErrorCode = "validation_missing_required_field"

	// Model (503)
	ErrCodeModelNotLoaded ErrorCode = "model_not_loaded"

	// Inference (500)
	ErrCodeInferenceFailure ErrorCode = "inference_failure"

	// Degraded dependencies. These are recovered locally by the prediction
	// service and surface as result warnings, never as request failures.
	ErrCodeCacheUnavailable   ErrorCode = "cache_unavailable"
	ErrCodePersistenceFailure ErrorCode = "persistence_failure"

	// Not Found (404)
	ErrCodeNotFoundPrediction ErrorCode = "not_found_prediction"

	// Internal (500)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case s == string(ErrCodeModelNotLoaded):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeCacheUnavailable), s == string(ErrCodePersistenceFailure):
		return http.StatusInternalServerError // 500 (should not reach clients)
	case strings.HasPrefix(s, "internal_"), s == string(ErrCodeInferenceFailure):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
