// Package circuitbreaker guards the inference provider with a gobreaker
// circuit breaker and exports its state as Prometheus metrics.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is returned when the breaker rejects a call without running it.
	ErrCircuitOpen = gobreaker.ErrOpenState

	// ErrTooManyRequests is returned when the half-open allowance is used up.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string        // Label used in logs and metrics
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Cyclic period of the closed state for clearing counts
	Timeout          time.Duration // Period of the open state before half-open
	FailureThreshold uint32        // Consecutive failures before opening
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker wraps gobreaker.CircuitBreaker. It never retries: a call
// either runs once or is rejected.
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	stateGauge    prometheus.Gauge
	failuresCount prometheus.Counter
	tripsTotal    prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker. Metrics are registered with
// registry unless TestMode is set or registry is nil.
func NewCircuitBreaker(config Config, logger *zap.Logger, registry *prometheus.Registry) (*CircuitBreaker, error) {
	if config.FailureThreshold == 0 {
		return nil, fmt.Errorf("circuit breaker %q: failure threshold must be positive", config.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CircuitBreaker{
		name:   config.Name,
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "socialwiz_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			ConstLabels: prometheus.Labels{"name": config.Name},
		}),
		failuresCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "socialwiz_circuit_breaker_failures_total",
			Help:        "Total number of failures recorded by the circuit breaker",
			ConstLabels: prometheus.Labels{"name": config.Name},
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "socialwiz_circuit_breaker_trips_total",
			Help:        "Total number of times the circuit breaker has tripped",
			ConstLabels: prometheus.Labels{"name": config.Name},
		}),
	}

	if !config.TestMode && registry != nil {
		for _, collector := range []prometheus.Collector{c.stateGauge, c.failuresCount, c.tripsTotal} {
			if err := registry.Register(collector); err != nil {
				return nil, fmt.Errorf("register circuit breaker metrics: %w", err)
			}
		}
	}

	threshold := config.FailureThreshold
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful:  isSuccessful,
		OnStateChange: c.onStateChange,
	})

	return c, nil
}

func (c *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	c.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		c.tripsTotal.Inc()
		c.logger.Warn("Circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	c.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// isSuccessful treats a cancelled caller as a success: it says nothing about
// the health of the guarded provider.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Execute runs f if the breaker allows it. While open it returns
// ErrCircuitOpen, and ErrTooManyRequests when the half-open allowance is
// used up. Errors wrapping context.Canceled are returned but not counted as
// failures.
func (c *CircuitBreaker) Execute(f func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		err := f()
		if !isSuccessful(err) {
			c.failuresCount.Inc()
		}
		return nil, err
	})
	return err
}

// State returns the current state of the circuit breaker
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Counts returns the request counts of the current interval.
func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

// Name returns the breaker's name.
func (c *CircuitBreaker) Name() string {
	return c.name
}
