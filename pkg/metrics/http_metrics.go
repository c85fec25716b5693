package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedPath labels requests that hit no route, so scanners hitting random
// URLs cannot grow the label set
const unmatchedPath = "unmatched"

var (
	// RequestCounter counts HTTP requests by route template
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	// StatusClassCounter counts responses by class: 2xx, 3xx, 4xx, 5xx
	StatusClassCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_responses_by_class_total",
			Help: "Total number of HTTP responses by status class",
		},
		[]string{"service", "class"},
	)

	// InFlightGauge is the number of requests being served
	InFlightGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
		[]string{"service"},
	)

	registerOnce sync.Once
)

// HTTPMetrics records request metrics under one service label
type HTTPMetrics struct {
	ServiceName string

	// method+" "+path -> whether a route is registered for it
	known sync.Map
}

// routed reports whether path is the template of a route registered for
// method. Catch-all not-found routes do not count.
func (m *HTTPMetrics) routed(e *echo.Echo, method, path string) bool {
	key := method + " " + path
	if v, ok := m.known.Load(key); ok {
		return v.(bool)
	}
	found := false
	for _, r := range e.Routes() {
		if r.Method == method && r.Path == path {
			found = true
			break
		}
	}
	m.known.Store(key, found)
	return found
}

// NewHTTPMetrics registers the collectors on first use
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			StatusClassCounter,
			InFlightGauge,
		)
	})
	return &HTTPMetrics{ServiceName: serviceName}
}

// statusClass returns "2xx" for 204 and so on
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Middleware records every request except scrapes of the metrics endpoint.
// Errors are rendered first so the recorded status is the one sent.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/metrics" {
				return next(c)
			}

			inFlight := InFlightGauge.WithLabelValues(m.ServiceName)
			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			method := c.Request().Method
			status := c.Response().Status
			path := c.Path()
			if !m.routed(c.Echo(), method, path) {
				path = unmatchedPath
			}

			RequestCounter.WithLabelValues(m.ServiceName, method, path, strconv.Itoa(status)).Inc()
			StatusClassCounter.WithLabelValues(m.ServiceName, statusClass(status)).Inc()
			RequestDurationHistogram.WithLabelValues(m.ServiceName, method, path).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
