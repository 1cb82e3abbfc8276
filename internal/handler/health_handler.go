package handler

import (
	"net/http"
	"time"

	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthCheck reports missing configuration and database reachability.
// Variable names are listed, never values.
func HealthCheck(c echo.Context) error {
	log := logger.FromContext(c)

	missing := []string{}
	if appConfig != nil {
		missing = append(missing, appConfig.Missing()...)
	}

	body := map[string]interface{}{
		"status":   "ok",
		"time":     time.Now().Format(time.RFC3339),
		"missing":  missing,
		"database": "ok",
	}
	status := http.StatusOK

	if err := database.Ping(); err != nil {
		log.Error("Database ping error", zap.Error(err))
		body["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if len(missing) > 0 {
		log.Warn("Missing configuration", zap.Strings("missing", missing))
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}

	return c.JSON(status, body)
}
