// Package routing wires the SocialWiz HTTP surface onto a chi router.
package routing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/socialwiz/errors"
	"github.com/teilomillet/socialwiz/server/handlers"
	"github.com/teilomillet/socialwiz/server/metrics"
	"github.com/teilomillet/socialwiz/server/middleware"
	"go.uber.org/zap"
)

// Route paths.
const (
	RewritePath    = "/api/mode1/rewrite"
	IcebreakerPath = "/api/mode2/generate"
	CurveballPath  = "/api/mode3/handle"
	HealthPath     = "/health"
	MetricsPath    = "/metrics"
)

// Router handles HTTP routing for the service.
type Router struct {
	router chi.Router
	logger *zap.Logger
}

// NewRouter creates the router with the global middleware stack and every
// route of the service. m may be nil, which disables /metrics and request
// metrics.
func NewRouter(h *handlers.Handler, m *metrics.Metrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		router: chi.NewRouter(),
		logger: logger,
	}

	// Global middleware stack. RequestID runs first so that every log line
	// and error body carries the ID.
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RequestTimer)
	r.router.Use(errors.ErrorHandler(logger))
	r.router.Use(middleware.CORS)
	r.router.Use(middleware.Logging(logger))

	r.router.NotFound(h.NotFound)
	r.router.MethodNotAllowed(h.MethodNotAllowed)

	r.router.Group(func(router chi.Router) {
		if m != nil {
			router.Use(middleware.PrometheusMetrics(m))
		}

		router.Get("/", h.Root)
		router.Get(HealthPath, h.Health)
		router.Post(RewritePath, h.Rewrite)
		router.Post(IcebreakerPath, h.Icebreaker)
		router.Post(CurveballPath, h.Curveball)
	})

	if m != nil {
		RegisterMetricsRoutes(r.router, m)
	}

	return r
}

// ServeHTTP implements the http.Handler interface.
// Delegates request handling to the underlying Chi router.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
