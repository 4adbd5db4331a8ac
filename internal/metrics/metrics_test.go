package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGeneration(t *testing.T) {
	m := New()

	m.ObserveGeneration("gemini", false, nil, time.Second)
	m.ObserveGeneration("anthropic", true, nil, time.Second)
	m.ObserveGeneration("", false, errors.New("all failed"), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("gemini", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("none", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMFallbacksTotal.WithLabelValues("anthropic")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LLMFallbacksTotal.WithLabelValues("gemini")))
}

func TestObserveOutcomes(t *testing.T) {
	m := New()

	m.ObserveJobRun("schedule", "partial")
	m.ObserveWebhook(true)
	m.ObserveWebhook(false)
	m.ObserveWebhook(false)
	m.ObserveTrendRefresh("tech", nil)
	m.ObserveTrendRefresh("tech", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("schedule", "partial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrendRefreshTotal.WithLabelValues("tech", "error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "GET /health", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `content_engine_http_requests_total{method="GET",route="GET /health",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
