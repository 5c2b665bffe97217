// Package server assembles the SocialWiz components and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teilomillet/socialwiz/config"
	"github.com/teilomillet/socialwiz/server/circuitbreaker"
	"github.com/teilomillet/socialwiz/server/handlers"
	"github.com/teilomillet/socialwiz/server/metrics"
	"github.com/teilomillet/socialwiz/server/provider"
	"github.com/teilomillet/socialwiz/server/routing"
	"github.com/teilomillet/socialwiz/server/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Providers holds the model clients the service talks to. A nil Describer
// disables image analysis.
type Providers struct {
	Completer provider.Completer
	Describer provider.ImageDescriber
}

// NewProviders builds the production clients from the configuration. The
// vision client is only created when a vision API key is set.
func NewProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Providers, error) {
	completer, err := provider.NewChatCompleter(cfg.LLM, logger)
	if err != nil {
		return Providers{}, err
	}

	p := Providers{Completer: completer}
	if cfg.Vision.Enabled() {
		describer, err := provider.NewGeminiDescriber(ctx, cfg.Vision)
		if err != nil {
			return Providers{}, fmt.Errorf("failed to initialize vision provider: %w", err)
		}
		p.Describer = describer
	}
	return p, nil
}

// NewHandler wires the validator, providers, circuit breaker and metrics into
// the routed HTTP handler.
func NewHandler(cfg *config.Config, p Providers, m *metrics.Metrics, logger *zap.Logger) (http.Handler, error) {
	var counter *validation.TokenCounter
	if cfg.Limits.MaxPromptTokens > 0 {
		tc, err := validation.NewTokenCounter(validation.DefaultEncoding)
		if err != nil {
			logger.Warn("token counter unavailable, prompt token budget disabled", zap.Error(err))
		} else {
			counter = tc
		}
	}

	v, err := validation.New(cfg.Limits, counter)
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	opts := []provider.DispatcherOption{
		provider.WithMetrics(m),
		provider.WithLogger(logger.Named("dispatcher")),
	}
	if cfg.CircuitBreaker.Enabled {
		cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             cfg.LLM.Provider,
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         cfg.CircuitBreaker.Interval,
			Timeout:          cfg.CircuitBreaker.Timeout,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		}, logger.Named("circuit_breaker"), m.Registry())
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		opts = append(opts, provider.WithBreaker(cb))
	}

	dispatcher := provider.NewDispatcher(p.Completer, cfg.LLM.Provider, cfg.LLM.Timeout, opts...)
	vision := provider.NewVisionPreprocessor(p.Describer, cfg.Vision.Timeout, m, logger.Named("vision"))
	service := handlers.NewService(dispatcher, vision, v, cfg, logger)
	h := handlers.NewHandler(service, v, m, cfg.Limits.MaxBodyBytes, logger)

	logger.Info("service configured",
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("vision_enabled", vision.Enabled()),
		zap.Bool("circuit_breaker", cfg.CircuitBreaker.Enabled),
		zap.Bool("token_budget", counter != nil),
	)

	return routing.NewRouter(h, m, logger), nil
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// New builds the complete service from configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	p, err := NewProviders(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	handler, err := NewHandler(cfg, p, metrics.NewMetrics(), logger)
	if err != nil {
		return nil, err
	}
	return NewServer(cfg.Server, handler, logger), nil
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully, letting in-flight requests finish within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
