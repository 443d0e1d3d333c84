package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestHandlerExposesRuntimeCollectors(t *testing.T) {
	body := scrape(t, NewMetrics())
	assert.Contains(t, body, "daybook_http_requests_in_flight")
	assert.Contains(t, body, "go_goroutines")
}

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/reports/operational/{id}/settlements", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	for range 2 {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reports/operational/abc/settlements", nil))
		require.Equal(t, http.StatusConflict, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodPost, "/reports/operational/{id}/settlements", "409")))
	assert.Contains(t, scrape(t, m), `daybook_http_request_duration_seconds_bucket{route="/reports/operational/{id}/settlements"`)
}

func TestMiddlewareWithoutRouteContext(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(context.Background())
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "unknown", "200")))
}

func TestObserveFailureByKind(t *testing.T) {
	m := NewMetrics()
	m.ObserveFailure("conflict")
	m.ObserveFailure("conflict")
	m.ObserveFailure("")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("unknown")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
	m.ObserveFailure("storage")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
