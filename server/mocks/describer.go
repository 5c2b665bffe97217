package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/socialwiz/server/processing"
)

// MockDescriber implements provider.ImageDescriber.
type MockDescriber struct {
	DescribeFunc func(context.Context, processing.Image) (string, error)

	mu     sync.Mutex
	images []processing.Image
}

// NewMockDescriber creates a describer that always answers description.
func NewMockDescriber(description string) *MockDescriber {
	return &MockDescriber{DescribeFunc: func(context.Context, processing.Image) (string, error) {
		return description, nil
	}}
}

// NewFailingDescriber creates a describer that always fails with err.
func NewFailingDescriber(err error) *MockDescriber {
	return &MockDescriber{DescribeFunc: func(context.Context, processing.Image) (string, error) {
		return "", err
	}}
}

// DescribeImage records the image and delegates to DescribeFunc.
func (m *MockDescriber) DescribeImage(ctx context.Context, img processing.Image) (string, error) {
	m.mu.Lock()
	m.images = append(m.images, img)
	m.mu.Unlock()

	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, img)
	}
	return "", nil
}

// Calls returns the number of DescribeImage calls.
func (m *MockDescriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}
