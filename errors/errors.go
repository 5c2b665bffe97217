// Package errors provides the error taxonomy of the SocialWiz API together with
// JSON response formatting, request ID tracking, and zap-integrated logging.
//
// Handlers convert failures into an *APIError and write it with WriteError:
//
//	errors.WriteError(w, errors.NewValidationError(requestID, "Request validation failed", details))
//
// Internal packages keep returning plain wrapped Go errors; only the HTTP layer
// decides which APIError a failure maps to.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType categorizes an API error for clients. Each type maps to a fixed
// HTTP status code through the constructors in types.go.
type ErrorType string

const (
	// ValidationError represents missing, malformed or unenumerated input fields
	ValidationError ErrorType = "validation_error"

	// ProviderError represents a failed call to the inference provider
	ProviderError ErrorType = "provider_error"

	// ProviderTimeoutError represents an inference call that exceeded its deadline
	ProviderTimeoutError ErrorType = "provider_timeout"

	// ProviderUnavailableError represents an inference provider that is
	// currently short-circuited
	ProviderUnavailableError ErrorType = "provider_unavailable"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"

	// NotFoundError represents unknown routes
	NotFoundError ErrorType = "not_found"

	// MethodNotAllowedError represents a known route called with the wrong method
	MethodNotAllowedError ErrorType = "method_not_allowed"
)

// APIError is the error type returned to HTTP clients. It serializes to JSON
// while keeping the underlying cause available for logging.
type APIError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context, such as the offending field
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.err
}

// Is matches on error type only, so errors.Is(err, &APIError{Type: ValidationError})
// works regardless of message or request.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes err as a JSON response with its status code.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}
