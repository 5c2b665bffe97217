// Package mocks provides test doubles for the model providers so tests never
// touch the network.
package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/socialwiz/server/processing"
)

// MockCompleter implements provider.Completer and records every prompt.
type MockCompleter struct {
	CompleteFunc func(context.Context, processing.PromptSpec) (string, error)

	mu    sync.Mutex
	specs []processing.PromptSpec
}

// NewMockCompleter creates a completer that always answers reply.
func NewMockCompleter(reply string) *MockCompleter {
	return &MockCompleter{CompleteFunc: func(context.Context, processing.PromptSpec) (string, error) {
		return reply, nil
	}}
}

// NewFailingCompleter creates a completer that always fails with err.
func NewFailingCompleter(err error) *MockCompleter {
	return &MockCompleter{CompleteFunc: func(context.Context, processing.PromptSpec) (string, error) {
		return "", err
	}}
}

// Complete records the prompt and delegates to CompleteFunc.
func (m *MockCompleter) Complete(ctx context.Context, spec processing.PromptSpec) (string, error) {
	m.mu.Lock()
	m.specs = append(m.specs, spec)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, spec)
	}
	return "", nil
}

// Calls returns the number of Complete calls.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.specs)
}

// Specs returns the prompts received so far.
func (m *MockCompleter) Specs() []processing.PromptSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]processing.PromptSpec(nil), m.specs...)
}

// LastSpec returns the most recent prompt, or a zero PromptSpec.
func (m *MockCompleter) LastSpec() processing.PromptSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.specs) == 0 {
		return processing.PromptSpec{}
	}
	return m.specs[len(m.specs)-1]
}
