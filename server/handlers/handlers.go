package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/teilomillet/socialwiz/errors"
	"github.com/teilomillet/socialwiz/server/metrics"
	"github.com/teilomillet/socialwiz/server/middleware"
	"github.com/teilomillet/socialwiz/server/processing"
	"github.com/teilomillet/socialwiz/server/provider"
	"github.com/teilomillet/socialwiz/server/validation"
	"go.uber.org/zap"
)

const (
	serviceName    = "SocialWiz AI Chatbot"
	serviceMessage = "SocialWiz AI - Your Conversation Assistant"
)

// Version is reported by the root endpoint and the CLI.
const Version = "2.0.0"

// Handler exposes the Service over HTTP.
type Handler struct {
	service      *Service
	validator    *validation.Validator
	metrics      *metrics.Metrics
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewHandler creates the HTTP handlers. m may be nil.
func NewHandler(service *Service, validator *validation.Validator, m *metrics.Metrics, maxBodyBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:      service,
		validator:    validator,
		metrics:      m,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Rewrite handles POST /api/mode1/rewrite.
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.validator.DecodeRewrite, h.service.Rewrite)
}

// Icebreaker handles POST /api/mode2/generate.
func (h *Handler) Icebreaker(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.validator.DecodeIcebreaker, h.service.Icebreaker)
}

// Curveball handles POST /api/mode3/handle.
func (h *Handler) Curveball(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.validator.DecodeCurveball, h.service.Curveball)
}

// serve decodes the request, runs the mode and writes the JSON result or a
// structured error.
func serve[Req, Resp any](h *Handler, w http.ResponseWriter, r *http.Request,
	decode func(*http.Request) (Req, error),
	run func(context.Context, Req) (Resp, error),
) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	req, err := decode(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := run(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, resp)
}

type modeInfo struct {
	Name        string   `json:"name"`
	Endpoint    string   `json:"endpoint"`
	Description string   `json:"description"`
	Fields      []string `json:"required_fields"`
	Optional    []string `json:"optional_fields"`
}

// Root handles GET / with service metadata.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"message": serviceMessage,
		"version": Version,
		"modes": map[string]modeInfo{
			"mode1": {
				Name:        "Message Rewriter",
				Endpoint:    "/api/mode1/rewrite",
				Description: "Rewrite messages with different moods",
				Fields:      []string{"original_message", "response", "mood"},
				Optional:    []string{"personal_context"},
			},
			"mode2": {
				Name:        "Icebreaker Generator",
				Endpoint:    "/api/mode2/generate",
				Description: "Generate conversation openers with various patterns",
				Fields:      []string{"opener_type"},
				Optional:    []string{"context"},
			},
			"mode3": {
				Name:        "Curveball Handler",
				Endpoint:    "/api/mode3/handle",
				Description: "Handle awkward situations, optionally from a chat screenshot",
				Fields:      []string{"situation_description", "mood"},
				Optional:    []string{"image", "image_mime_type", "file"},
			},
		},
		"moods":        processing.Moods(),
		"opener_types": processing.OpenerTypes(),
		"health":       "/health",
		"metrics":      "/metrics",
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        serviceName,
		"modes_active":   []string{"mode1", "mode2", "mode3"},
		"vision_enabled": h.service.VisionEnabled(),
		"llm_provider":   h.service.Provider(),
		"llm_circuit":    h.service.CircuitState(),
	})
}

// NotFound handles unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, errors.NewNotFoundError(middleware.GetRequestID(r.Context()), r.URL.Path))
}

// MethodNotAllowed handles known routes called with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, errors.NewMethodNotAllowedError(middleware.GetRequestID(r.Context()), r.Method))
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		h.writeError(w, r, errors.NewInternalError(middleware.GetRequestID(r.Context()), err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError converts err into an APIError, records and logs it, and writes
// the JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	apiErr := toAPIError(requestID, err)

	if h.metrics != nil {
		h.metrics.ErrorsTotal.WithLabelValues(string(apiErr.Type)).Inc()
	}
	errors.LogError(h.logger.With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	), apiErr, requestID)

	errors.WriteError(w, apiErr)
}

func toAPIError(requestID string, err error) *errors.APIError {
	var apiErr *errors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validationErr *validation.Error
	if errors.As(err, &validationErr) {
		return errors.NewValidationError(requestID, validationErr.Message, validationErr.Fields())
	}

	var dispatchErr *provider.DispatchError
	if errors.As(err, &dispatchErr) {
		switch {
		case dispatchErr.Unavailable:
			return errors.NewProviderUnavailableError(requestID, dispatchErr.Provider, err)
		case dispatchErr.Timeout:
			return errors.NewProviderTimeoutError(requestID, dispatchErr.Provider, err)
		default:
			return errors.NewProviderError(requestID, dispatchErr.Provider, err)
		}
	}

	return errors.NewInternalError(requestID, err)
}
