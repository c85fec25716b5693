package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qawafel-crm/pkg/database"
	"qawafel-crm/pkg/logger"
)

// dbPingTimeout bounds the ?check=db ping so a stuck pool fails fast
const dbPingTimeout = 2 * time.Second

// HealthCheck reports liveness. With ?check=db it also pings the database
// and answers 503 when the ping fails.
func HealthCheck(c echo.Context) error {
	response := echo.Map{
		"status":  "ok",
		"service": "qawafel-crm",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if c.QueryParam("check") != "db" {
		return c.JSON(http.StatusOK, response)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbPingTimeout)
	defer cancel()

	start := time.Now()
	if err := database.Ping(ctx); err != nil {
		logger.FromEcho(c).Error("Database ping failed", zap.Error(err))
		response["status"] = "degraded"
		response["db_status"] = "error"
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	response["db_status"] = "ok"
	response["db_latency_ms"] = time.Since(start).Milliseconds()
	return c.JSON(http.StatusOK, response)
}
