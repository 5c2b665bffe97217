// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse mirrors the JSON shape written by WriteError. Clients and
// tests decode error bodies into it.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
