package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Environment string
	ServiceName string
}

var log = zap.NewNop()

// InitLogger builds the global logger. Production gets JSON with ISO8601
// timestamps, everything else the colored development encoder.
func InitLogger(config *LogConfig, fields ...zap.Field) error {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if config.Environment == "production" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	base := append([]zap.Field{
		zap.String("service", config.ServiceName),
		zap.String("environment", config.Environment),
	}, fields...)

	built, err := zc.Build(zap.Fields(base...))
	if err != nil {
		return err
	}
	SetLogger(built)
	return nil
}

// SetLogger replaces the global logger instance
func SetLogger(l *zap.Logger) {
	log = l
	zap.ReplaceGlobals(l)
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	return log
}

// quietPaths are polled by health checks and scrapers and only logged when they fail
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Middleware stores a request logger tagged with the request id and logs
// one line per request, at warn for 4xx and error for 5xx
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Response().Header().Get(echo.HeaderXRequestID)
			}
			c.Set(echoKey, log.With(zap.String("request_id", requestID)))

			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			if quietPaths[c.Request().URL.Path] && status < 500 {
				return nil
			}

			// FromEcho again: auth may have added user fields
			reqLog := FromEcho(c)
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			switch {
			case status >= 500:
				reqLog.Error("HTTP Request", fields...)
			case status >= 400:
				reqLog.Warn("HTTP Request", fields...)
			default:
				reqLog.Info("HTTP Request", fields...)
			}
			return nil
		}
	}
}
