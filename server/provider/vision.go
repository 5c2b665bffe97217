package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teilomillet/socialwiz/server/metrics"
	"github.com/teilomillet/socialwiz/server/processing"
	"go.uber.org/zap"
)

// ImageDescription is the outcome of image analysis. Used is false when no
// description is available, whatever the reason.
type ImageDescription struct {
	Text string
	Used bool
}

// VisionPreprocessor turns an optional image into context for the curveball
// prompt. Image analysis is best effort: Describe never fails.
type VisionPreprocessor struct {
	describer ImageDescriber
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewVisionPreprocessor creates a preprocessor. A nil describer disables image
// analysis. m and logger may be nil.
func NewVisionPreprocessor(describer ImageDescriber, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *VisionPreprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionPreprocessor{
		describer: describer,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Enabled reports whether a vision provider is configured.
func (v *VisionPreprocessor) Enabled() bool {
	return v != nil && v.describer != nil
}

// Describe returns a description of img. Without an image or a describer the
// provider is not contacted. Provider errors, timeouts and empty answers are
// logged and reported as an unused description.
func (v *VisionPreprocessor) Describe(ctx context.Context, img *processing.Image) ImageDescription {
	if img == nil || len(img.Data) == 0 {
		v.record("no_image")
		return ImageDescription{}
	}
	if !v.Enabled() {
		v.record("disabled")
		return ImageDescription{}
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := v.describe(ctx, *img)
	if err != nil {
		v.record("failed")
		v.logger.Warn("image analysis failed, continuing without it",
			zap.Error(err),
			zap.String("mime_type", img.MIMEType),
			zap.Duration("duration", time.Since(start)),
		)
		return ImageDescription{}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		v.record("empty")
		v.logger.Warn("image analysis returned no text, continuing without it",
			zap.String("mime_type", img.MIMEType),
		)
		return ImageDescription{}
	}

	v.record("used")
	v.logger.Debug("image analysis succeeded",
		zap.Int("description_length", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return ImageDescription{Text: text, Used: true}
}

// describe calls the describer, converting a panic into an error.
func (v *VisionPreprocessor) describe(ctx context.Context, img processing.Image) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vision provider panic: %v", r)
		}
	}()
	return v.describer.DescribeImage(ctx, img)
}

func (v *VisionPreprocessor) record(outcome string) {
	if v != nil && v.metrics != nil {
		v.metrics.VisionOutcomes.WithLabelValues(outcome).Inc()
	}
}
