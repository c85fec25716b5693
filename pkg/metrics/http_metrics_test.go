package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusNoContent))
	assert.Equal(t, "4xx", statusClass(http.StatusConflict))
	assert.Equal(t, "5xx", statusClass(http.StatusBadGateway))
	assert.Equal(t, "other", statusClass(0))
}

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	m := NewHTTPMetrics("metrics-test")

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/leads/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Lead not found")
	})

	for _, path := range []string{"/api/leads/1", "/api/leads/2", "/no/such/route"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		RequestCounter.WithLabelValues("metrics-test", http.MethodGet, "/api/leads/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		RequestCounter.WithLabelValues("metrics-test", http.MethodGet, unmatchedPath, "404")))
	assert.Equal(t, 3.0, testutil.ToFloat64(StatusClassCounter.WithLabelValues("metrics-test", "4xx")))
	assert.Zero(t, testutil.ToFloat64(InFlightGauge.WithLabelValues("metrics-test")))
}
