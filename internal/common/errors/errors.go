// Package errors provides the closed set of tagged error values used
// across the verification orchestrator.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeProvider       ErrorCode = "PROVIDER_ERROR"
	ErrCodeTransport      ErrorCode = "TRANSPORT_ERROR"
	ErrCodeNotFound       ErrorCode = "APPLICANT_NOT_FOUND"
	ErrCodeStepNotFound   ErrorCode = "STEP_NOT_FOUND"
	ErrCodeUploadFailed   ErrorCode = "DOCUMENT_UPLOAD_FAILED"
	ErrCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeConfiguration  ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeConflict       ErrorCode = "STEP_TRANSITION_CONFLICT"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// StandardError is a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewProviderError wraps a non-2xx provider response. The raw response
// body and HTTP status are preserved in the details and metadata.
func NewProviderError(operation string, status int, body string) *StandardError {
	return &StandardError{
		Code:       ErrCodeProvider,
		Message:    fmt.Sprintf("Provider call '%s' failed with status %d", operation, status),
		Details:    body,
		HTTPStatus: http.StatusBadGateway,
		Retryable:  status >= 500,
		Metadata: map[string]interface{}{
			"providerStatus": status,
			"operation":      operation,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a network-level failure reaching the provider.
// Distinct from NewProviderError: no HTTP response was received at all.
func NewTransportError(operation string, err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeTransport,
		Message:    fmt.Sprintf("Network error during provider call '%s'", operation),
		Details:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Metadata:   map[string]interface{}{"operation": operation},
		Timestamp:  time.Now().UTC(),
	}
}

// NewApplicantNotFoundError creates a non-retryable lookup error.
func NewApplicantNotFoundError(applicantID string) *StandardError {
	return &StandardError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("Applicant with ID %s not found", applicantID),
		HTTPStatus: http.StatusNotFound,
		Retryable:  false,
		Metadata:   map[string]interface{}{"applicantId": applicantID},
		Timestamp:  time.Now().UTC(),
	}
}

// NewStepNotFoundError signals a transition on a step that was never
// initialized for the applicant.
func NewStepNotFoundError(applicantID, step string) *StandardError {
	return &StandardError{
		Code:       ErrCodeStepNotFound,
		Message:    fmt.Sprintf("Step %s not found for applicant %s", step, applicantID),
		HTTPStatus: http.StatusNotFound,
		Retryable:  false,
		Metadata: map[string]interface{}{
			"applicantId": applicantID,
			"step":        step,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewUploadError creates a document/selfie submission error.
func NewUploadError(message, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeUploadFailed,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewValidationError creates a malformed-input error.
func NewValidationError(message, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeValidation,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusUnprocessableEntity,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewAuthenticationError creates a webhook signature mismatch error.
func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeAuthentication,
		Message:    "Authentication failed",
		Details:    details,
		HTTPStatus: http.StatusUnauthorized,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewConfigurationError signals missing credentials or endpoints.
func NewConfigurationError(message string) *StandardError {
	return &StandardError{
		Code:       ErrCodeConfiguration,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewConflictError signals a lost optimistic-lock race on a step row.
func NewConflictError(applicantID, step string) *StandardError {
	return &StandardError{
		Code:       ErrCodeConflict,
		Message:    "Concurrent step transition detected",
		HTTPStatus: http.StatusConflict,
		Retryable:  true,
		Metadata: map[string]interface{}{
			"applicantId": applicantID,
			"step":        step,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error without leaking internals
// to the caller beyond the message.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeInternal,
		Message:    "Unexpected internal error",
		Details:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// AsStandard normalizes any error to a StandardError.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the error code of err, or ErrCodeInternal for plain errors.
func CodeOf(err error) ErrorCode {
	return AsStandard(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}
