package errors

import (
	"net/http"
)

// NewValidationError creates a validation error. Use it for any request
// validation failure, such as:
//   - Missing required fields
//   - A mood or opener type outside the supported set
//   - An unsupported or oversized image
//
// Example:
//
//	err := NewValidationError("req_123", "Request validation failed", map[string]interface{}{
//	    "field": "mood",
//	    "error": "must be one of the supported moods",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *APIError {
	return &APIError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewProviderError creates an error for a failed inference call. The message
// sent to the client is fixed; the provider's own error is kept for logging.
//
// Example:
//
//	err := NewProviderError("req_123", "groq", providerErr)
func NewProviderError(requestID, provider string, err error) *APIError {
	return &APIError{
		Type:      ProviderError,
		Message:   "The language model provider failed to generate a reply",
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		Details: map[string]interface{}{
			"provider": provider,
		},
		err: err,
	}
}

// NewProviderTimeoutError creates an error for an inference call that timed out.
func NewProviderTimeoutError(requestID, provider string, err error) *APIError {
	return &APIError{
		Type:      ProviderTimeoutError,
		Message:   "The language model provider did not respond in time",
		Code:      http.StatusGatewayTimeout,
		RequestID: requestID,
		Details: map[string]interface{}{
			"provider": provider,
		},
		err: err,
	}
}

// NewProviderUnavailableError creates an error for a provider that is
// temporarily refused because of repeated failures.
func NewProviderUnavailableError(requestID, provider string, err error) *APIError {
	return &APIError{
		Type:      ProviderUnavailableError,
		Message:   "The language model provider is temporarily unavailable",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		Details: map[string]interface{}{
			"provider":   provider,
			"suggestion": "Please try again shortly",
		},
		err: err,
	}
}

// NewInternalError creates an internal server error for failures not covered
// by the other types, such as panics or response encoding errors.
func NewInternalError(requestID string, err error) *APIError {
	return &APIError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewNotFoundError creates an error for an unknown route.
func NewNotFoundError(requestID, path string) *APIError {
	return &APIError{
		Type:      NotFoundError,
		Message:   "Route not found",
		Code:      http.StatusNotFound,
		RequestID: requestID,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// NewMethodNotAllowedError creates an error for a route called with an
// unsupported method.
func NewMethodNotAllowedError(requestID, method string) *APIError {
	return &APIError{
		Type:      MethodNotAllowedError,
		Message:   "Method not allowed",
		Code:      http.StatusMethodNotAllowed,
		RequestID: requestID,
		Details: map[string]interface{}{
			"method": method,
		},
	}
}
