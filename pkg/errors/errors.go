// Package errors provides structured error handling for the application
// Every route maps failures through AppError so the HTTP body shape stays uniform
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	// Client errors (4xx)
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeUnsupportedInput ErrorCode = "UNSUPPORTED_INPUT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeTooManyRequests  ErrorCode = "TOO_MANY_REQUESTS"

	// Server errors (5xx)
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
	CodeUpstreamFormat      ErrorCode = "UPSTREAM_FORMAT_ERROR"
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
)

// AppError represents an application error with structured information
type AppError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnsupportedInput:
		return http.StatusUnsupportedMediaType
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUpstreamFormat:
		return http.StatusBadGateway
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Label is the short, stable string placed in the "error" field of responses
func (e *AppError) Label() string {
	switch e.Code {
	case CodeInvalidInput:
		return "Invalid input"
	case CodeUnsupportedInput:
		return "Unsupported input"
	case CodeNotFound:
		return "Not found"
	case CodeTooManyRequests:
		return "Rate limit exceeded"
	case CodeUpstreamFormat, CodeUpstreamUnavailable, CodeUpstreamTimeout, CodeInternal:
		return "Server error"
	default:
		return "Server error"
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewInvalidInputError creates an error for a request missing mandatory content
func NewInvalidInputError(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, "")
}

// NewUnsupportedInputError creates an error for input the service cannot process
func NewUnsupportedInputError(message string) *AppError {
	return NewAppError(CodeUnsupportedInput, message, "")
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return NewAppError(CodeNotFound, message, "")
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewAppError(CodeInternal, message, "")
}

// NewUpstreamFormatError reports a model reply that could not be parsed.
// The message is generic; the raw reply must only ever be logged.
func NewUpstreamFormatError(cause error) *AppError {
	return NewAppError(
		CodeUpstreamFormat,
		"The assistant returned an unexpected response. Please try again.",
		"",
	).WithCause(cause)
}

// NewUpstreamUnavailableError reports a failed or empty provider call
func NewUpstreamUnavailableError(cause error) *AppError {
	return NewAppError(
		CodeUpstreamUnavailable,
		"The assistant is temporarily unavailable. Please try again shortly.",
		"",
	).WithCause(cause)
}

// NewUpstreamTimeoutError reports a provider call that exceeded its deadline
func NewUpstreamTimeoutError(cause error) *AppError {
	return NewAppError(
		CodeUpstreamTimeout,
		"The assistant took too long to respond. Please try again.",
		"",
	).WithCause(cause)
}

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     err.Label(),
		Message:   err.Message,
		RequestID: requestID,
	}
}
