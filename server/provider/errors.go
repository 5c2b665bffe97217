package provider

import (
	"errors"
	"fmt"
)

// ErrEmptyCompletion is returned when the provider answers with no usable text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// DispatchError describes a failed completion call. Message is the provider's
// own error text and is meant for logs, not for clients.
type DispatchError struct {
	Provider string
	Message  string

	// Timeout is set when the call exceeded its deadline.
	Timeout bool

	// Unavailable is set when the circuit breaker refused the call.
	Unavailable bool

	// Canceled is set when the caller gave up before the provider answered.
	Canceled bool

	err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *DispatchError) Unwrap() error {
	return e.err
}

// StatusError is a non-2xx answer from the inference provider. Message is the
// provider's own error text.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}
