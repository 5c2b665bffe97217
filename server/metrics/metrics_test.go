package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.ProviderCalls.WithLabelValues("groq", "success").Inc()
	m.VisionOutcomes.WithLabelValues("used").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `socialwiz_provider_calls_total{outcome="success",provider="groq"} 1`)
	assert.Contains(t, string(body), `socialwiz_vision_outcomes_total{outcome="used"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetricsAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.ErrorsTotal.WithLabelValues("validation_error").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ErrorsTotal.WithLabelValues("validation_error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ErrorsTotal.WithLabelValues("validation_error")))
	assert.NotSame(t, a.Registry(), b.Registry())
}
