package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and services use these instead of
// hardcoded strings so HTTP mapping and log filtering stay consistent.
const (
	// Ingestion (per-file, recoverable)
	ErrCodeIngestFormat      ErrorCode = "ingest_format_error"
	ErrCodeIngestSchema      ErrorCode = "ingest_schema_mismatch"
	ErrCodeIngestEmpty       ErrorCode = "ingest_empty"
	ErrCodeIngestIndexSource ErrorCode = "ingest_index_unreachable"

	// Validation (400)
	ErrCodeValidationInvalidLat    ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon    ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationInvalidDate   ErrorCode = "validation_invalid_date"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidFilter ErrorCode = "validation_invalid_filter"

	// Translation (422, a clarification request rather than a server failure)
	ErrCodeQueryAmbiguous ErrorCode = "query_ambiguous"

	// Not found (404)
	ErrCodeNotFoundProfile ErrorCode = "not_found_profile"
	ErrCodeNotFoundFloat   ErrorCode = "not_found_float"

	// Internal / upstream (500 / 502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamLLM        ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimit  ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its HTTP status code. Returns 500 for
// unrecognized codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case c == ErrCodeQueryAmbiguous:
		return http.StatusUnprocessableEntity // 422
	case c == ErrCodeIngestFormat, c == ErrCodeIngestSchema, c == ErrCodeIngestEmpty:
		return http.StatusUnprocessableEntity // 422
	case c == ErrCodeIngestIndexSource:
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case c == ErrCodeUpstreamRateLimit:
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError to enable consistent formatting, HTTP
// status mapping, and error chain support.
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

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
