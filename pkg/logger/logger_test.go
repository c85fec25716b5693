package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := GetLogger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func serve(e *echo.Echo, path string, header http.Header) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	e.ServeHTTP(httptest.NewRecorder(), req)
}

func TestMiddlewareLogsRequestWithUserFields(t *testing.T) {
	logs := observe(t)

	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/leads", func(c echo.Context) error {
		With(c, zap.Uint("user_id", 7))
		FromContext(RequestContext(c)).Info("listing leads")
		return c.NoContent(http.StatusOK)
	})

	serve(e, "/api/leads", http.Header{echo.HeaderXRequestID: {"req-1"}})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "listing leads", entries[0].Message)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, uint64(7), entries[0].ContextMap()["user_id"])

	assert.Equal(t, "HTTP Request", entries[1].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, uint64(7), entries[1].ContextMap()["user_id"])
	assert.Equal(t, int64(http.StatusOK), entries[1].ContextMap()["status"])
}

func TestMiddlewareLevelsAndQuietPaths(t *testing.T) {
	logs := observe(t)

	e := echo.New()
	e.Use(Middleware())
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/broken", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "boom")
	})

	serve(e, "/health", nil)
	assert.Zero(t, logs.Len())

	serve(e, "/missing", nil)
	serve(e, "/broken", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	observe(t)
	assert.Same(t, GetLogger(), FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
