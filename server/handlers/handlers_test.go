package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/socialwiz/config"
	apierrors "github.com/teilomillet/socialwiz/errors"
	"github.com/teilomillet/socialwiz/server/metrics"
	"github.com/teilomillet/socialwiz/server/middleware"
	"github.com/teilomillet/socialwiz/server/mocks"
	"github.com/teilomillet/socialwiz/server/provider"
	"github.com/teilomillet/socialwiz/server/validation"
	"go.uber.org/zap/zaptest"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type testEnv struct {
	handler   *Handler
	completer *mocks.MockCompleter
	describer *mocks.MockDescriber
	metrics   *metrics.Metrics
}

// newTestEnv wires a Handler around fake providers. A nil describer
// disables image analysis.
func newTestEnv(t *testing.T, completer *mocks.MockCompleter, describer *mocks.MockDescriber) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	logger := zaptest.NewLogger(t)
	m := metrics.NewMetrics()

	v, err := validation.New(cfg.Limits, nil)
	require.NoError(t, err)

	var imageDescriber provider.ImageDescriber
	if describer != nil {
		imageDescriber = describer
	}

	dispatcher := provider.NewDispatcher(completer, "groq", time.Second, provider.WithMetrics(m), provider.WithLogger(logger))
	vision := provider.NewVisionPreprocessor(imageDescriber, time.Second, m, logger)
	service := NewService(dispatcher, vision, v, cfg, logger)

	return &testEnv{
		handler:   NewHandler(service, v, m, cfg.Limits.MaxBodyBytes, logger),
		completer: completer,
		describer: describer,
		metrics:   m,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	middleware.RequestID(h).ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()
	var resp apierrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRewriteScenario(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockCompleter(`{"reply": "Probably! What time are you heading over?"}`), nil)

	rec := postJSON(t, env.handler.Rewrite, map[string]string{
		"original_message": "Hey, coming tonight?",
		"response":         "maybe",
		"mood":             "casual",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp RewriteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Probably! What time are you heading over?", resp.RewrittenReply)

	require.Equal(t, 1, env.completer.Calls())
	spec := env.completer.LastSpec()
	prompt := spec.Text()
	assert.Contains(t, prompt, "Casual, friendly, and relaxed.")
	assert.Contains(t, prompt, "Hey, coming tonight?")
	assert.Contains(t, prompt, "maybe")
	assert.NotContains(t, prompt, "- Personal Context:")
	assert.Equal(t, 0.7, spec.Temperature)
}

func TestIcebreakerScenario(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockCompleter("Would you rather explore space or the deep sea?"), nil)

	rec := postJSON(t, env.handler.Icebreaker, map[string]string{"opener_type": "would_you_rather"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp IcebreakerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Icebreaker)

	prompt := env.completer.LastSpec().Text()
	assert.Contains(t, prompt, "Would you rather...")
	assert.NotContains(t, prompt, "- Context:")
}

func TestCurveballProviderFailure(t *testing.T) {
	env := newTestEnv(t, mocks.NewFailingCompleter(errors.New("invalid api key gsk_secret")), nil)

	rec := postJSON(t, env.handler.Curveball, map[string]string{
		"situation_description": "My boss called me by my ex's name",
		"mood":                  "sarcastic",
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "gsk_secret", "provider errors must not leak")

	resp := decodeError(t, rec)
	assert.Equal(t, apierrors.ProviderError, resp.Type)
	assert.Equal(t, "groq", resp.Details["provider"])
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ErrorsTotal.WithLabelValues("provider_error")))
}

func TestCurveballVisionFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t,
		mocks.NewMockCompleter(`{"reply": "Wow, and here I thought I was unforgettable."}`),
		mocks.NewFailingDescriber(errors.New("dial tcp: network is unreachable")),
	)

	rec := postJSON(t, env.handler.Curveball, map[string]string{
		"situation_description": "My boss called me by my ex's name",
		"mood":                  "sarcastic",
		"image":                 base64.StdEncoding.EncodeToString(pngBytes),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CurveballResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Wow, and here I thought I was unforgettable.", resp.CurveballReply)
	assert.False(t, resp.ImageAnalysisUsed)
	assert.Equal(t, 1, env.describer.Calls())
	assert.NotContains(t, env.completer.LastSpec().Text(), "Visual Context from Screenshot")
}

func TestCurveballWithImageDescription(t *testing.T) {
	env := newTestEnv(t,
		mocks.NewMockCompleter(`{"reply": "Ha, I'll take that as a compliment."}`),
		mocks.NewMockDescriber("The other person jokes about the user's cooking."),
	)

	rec := postJSON(t, env.handler.Curveball, map[string]string{
		"situation_description": "They roasted my lasagna",
		"mood":                  "playful",
		"image":                 "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CurveballResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.ImageAnalysisUsed)
	assert.Contains(t, env.completer.LastSpec().Text(), "The other person jokes about the user's cooking.")
	assert.Equal(t, 0.8, env.completer.LastSpec().Temperature)
}

func TestCurveballWithoutImageSkipsVision(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockCompleter("No worries, happens to everyone."), mocks.NewMockDescriber("unused"))

	rec := postJSON(t, env.handler.Curveball, map[string]string{
		"situation_description": "I waved at someone who wasn't waving at me",
		"mood":                  "casual",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CurveballResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.ImageAnalysisUsed)
	assert.Equal(t, 0, env.describer.Calls())
}

func TestCurveballURLEncodedForm(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockCompleter("Ha, we've all been there."), mocks.NewMockDescriber("unused"))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("situation_description=awkward&mood=casual"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	middleware.RequestID(env.handler.Curveball).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CurveballResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Ha, we've all been there.", resp.CurveballReply)
	assert.False(t, resp.ImageAnalysisUsed)
	assert.Equal(t, 1, env.completer.Calls())
	assert.Equal(t, 0, env.describer.Calls())
}

func TestInvalidEnumsMakeNoProviderCall(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*Handler) http.HandlerFunc
		body    map[string]string
		field   string
	}{
		{
			name:    "rewrite mood",
			handler: func(h *Handler) http.HandlerFunc { return h.Rewrite },
			body:    map[string]string{"original_message": "hi", "response": "hey", "mood": "angry"},
			field:   "mood",
		},
		{
			name:    "icebreaker opener type",
			handler: func(h *Handler) http.HandlerFunc { return h.Icebreaker },
			body:    map[string]string{"opener_type": "if_you"},
			field:   "opener_type",
		},
		{
			name:    "curveball mood",
			handler: func(h *Handler) http.HandlerFunc { return h.Curveball },
			body:    map[string]string{"situation_description": "awkward", "mood": "grumpy"},
			field:   "mood",
		},
		{
			name:    "blank required field",
			handler: func(h *Handler) http.HandlerFunc { return h.Rewrite },
			body:    map[string]string{"original_message": "   ", "response": "hey", "mood": "casual"},
			field:   "original_message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, mocks.NewMockCompleter("unused"), mocks.NewMockDescriber("unused"))

			rec := postJSON(t, tt.handler(env.handler), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, apierrors.ValidationError, resp.Type)
			assert.Equal(t, tt.field, resp.Details["field"])
			assert.Equal(t, 0, env.completer.Calls())
			assert.Equal(t, 0, env.describer.Calls())
		})
	}
}

func TestUnsupportedImageMakesNoProviderCall(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockCompleter("unused"), mocks.NewMockDescriber("unused"))

	rec := postJSON(t, env.handler.Curveball, map[string]string{
		"situation_description": "awkward",
		"mood":                  "casual",
		"image":                 base64.StdEncoding.EncodeToString([]byte("GIF89a not allowed here")),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.completer.Calls())
	assert.Equal(t, 0, env.describer.Calls())
}

func TestMalformedJSON(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockCompleter("unused"), nil)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"opener_type":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.Icebreaker(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "body", decodeError(t, rec).Details["field"])
}

func TestDispatchErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		errType apierrors.ErrorType
	}{
		{"provider error", &provider.DispatchError{Provider: "groq", Message: "boom"}, http.StatusBadGateway, apierrors.ProviderError},
		{"timeout", &provider.DispatchError{Provider: "groq", Timeout: true}, http.StatusGatewayTimeout, apierrors.ProviderTimeoutError},
		{"unavailable", &provider.DispatchError{Provider: "groq", Unavailable: true}, http.StatusServiceUnavailable, apierrors.ProviderUnavailableError},
		{"validation", &validation.Error{Message: "bad", Details: []validation.ValidationErrorDetail{{Field: "mood"}}}, http.StatusBadRequest, apierrors.ValidationError},
		{"unknown", errors.New("something else"), http.StatusInternalServerError, apierrors.InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := toAPIError("req-1", tt.err)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.errType, apiErr.Type)
			assert.Equal(t, "req-1", apiErr.RequestID)
		})
	}
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t, mocks.NewMockCompleter("unused"), nil)

	rec := httptest.NewRecorder()
	env.handler.Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, serviceMessage, body["message"])
	assert.Equal(t, Version, body["version"])
	assert.Len(t, body["moods"], 12)
	assert.Len(t, body["opener_types"], 7)

	modes := body["modes"].(map[string]interface{})
	assert.Equal(t, "/api/mode3/handle", modes["mode3"].(map[string]interface{})["endpoint"])
}

func TestHealth(t *testing.T) {
	for _, withVision := range []bool{false, true} {
		var describer *mocks.MockDescriber
		if withVision {
			describer = mocks.NewMockDescriber("unused")
		}
		env := newTestEnv(t, mocks.NewMockCompleter("unused"), describer)

		rec := httptest.NewRecorder()
		env.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, serviceName, body["service"])
		assert.Equal(t, []interface{}{"mode1", "mode2", "mode3"}, body["modes_active"])
		assert.Equal(t, withVision, body["vision_enabled"])
		assert.Equal(t, "disabled", body["llm_circuit"])
	}
}
