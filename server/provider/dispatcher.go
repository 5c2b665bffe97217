package provider

import (
	"context"
	"errors"
	"time"

	"github.com/teilomillet/socialwiz/server/circuitbreaker"
	"github.com/teilomillet/socialwiz/server/metrics"
	"github.com/teilomillet/socialwiz/server/processing"
	"go.uber.org/zap"
)

// Dispatcher sends prompts to the inference provider. Each call is a single
// attempt bounded by a timeout; failures come back as *DispatchError.
type Dispatcher struct {
	completer Completer
	provider  string
	timeout   time.Duration
	breaker   *circuitbreaker.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// DispatcherOption configures optional Dispatcher collaborators.
type DispatcherOption func(*Dispatcher)

// WithBreaker routes every call through the given circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) DispatcherOption {
	return func(d *Dispatcher) { d.breaker = cb }
}

// WithMetrics records call outcomes and latency.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a dispatcher for the named provider. A zero timeout
// leaves the call bounded only by the caller's context.
func NewDispatcher(completer Completer, providerName string, timeout time.Duration, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		completer: completer,
		provider:  providerName,
		timeout:   timeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Provider returns the name of the inference provider.
func (d *Dispatcher) Provider() string {
	return d.provider
}

// State reports the circuit breaker state, or "disabled" without one.
func (d *Dispatcher) State() string {
	if d.breaker == nil {
		return "disabled"
	}
	return d.breaker.State().String()
}

// Dispatch sends spec to the provider and returns the cleaned reply text.
// A caller that has already gone away is answered without calling out.
func (d *Dispatcher) Dispatch(ctx context.Context, spec processing.PromptSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		d.record("canceled", 0)
		return "", d.classify(ctx, err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var reply string
	call := func() error {
		raw, err := d.completer.Complete(ctx, spec)
		if err != nil {
			return err
		}
		reply = processing.CleanCompletion(raw)
		if reply == "" {
			return ErrEmptyCompletion
		}
		return nil
	}

	start := time.Now()
	var err error
	if d.breaker != nil {
		err = d.breaker.Execute(call)
	} else {
		err = call()
	}
	elapsed := time.Since(start)

	if err == nil {
		d.record("success", elapsed)
		d.logger.Debug("completion succeeded",
			zap.String("provider", d.provider),
			zap.Duration("duration", elapsed),
			zap.Float64("temperature", spec.Temperature),
		)
		return reply, nil
	}

	derr := d.classify(ctx, err)
	outcome := "error"
	switch {
	case derr.Unavailable:
		outcome = "unavailable"
	case derr.Timeout:
		outcome = "timeout"
	case derr.Canceled:
		outcome = "canceled"
	}
	d.record(outcome, elapsed)
	if derr.Canceled {
		d.logger.Info("completion abandoned by caller",
			zap.String("provider", d.provider),
			zap.Duration("duration", elapsed),
		)
		return "", derr
	}
	d.logger.Warn("completion failed",
		zap.String("provider", d.provider),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
	return "", derr
}

func (d *Dispatcher) classify(ctx context.Context, err error) *DispatchError {
	derr := &DispatchError{Provider: d.provider, Message: err.Error(), err: err}
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		derr.Unavailable = true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		derr.Timeout = true
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		derr.Canceled = true
	}
	return derr
}

func (d *Dispatcher) record(outcome string, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.ProviderCalls.WithLabelValues(d.provider, outcome).Inc()
	if outcome != "unavailable" && outcome != "canceled" {
		d.metrics.ProviderLatency.WithLabelValues(d.provider).Observe(elapsed.Seconds())
	}
}
