// Package provider talks to the external model providers: the inference
// provider that writes replies and the optional vision provider that
// describes screenshots.
package provider

import (
	"context"

	"github.com/teilomillet/socialwiz/server/processing"
)

// Completer generates a completion for an assembled prompt.
type Completer interface {
	Complete(ctx context.Context, spec processing.PromptSpec) (string, error)
}

// ImageDescriber returns a natural-language description of an image.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, img processing.Image) (string, error)
}
