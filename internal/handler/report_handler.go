package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var errReportUnavailable = apperror.New(apperror.EBadGateway, "report service is not configured")

// PlayerReport composes a scouting report for a player. format selects
// json (default), html or pdf.
func PlayerReport(c echo.Context) error {
	log := logger.FromContext(c)
	store, tc := tenantStore(c)
	ctx := c.Request().Context()

	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "html" && format != "pdf" {
		return fail(c, apperror.Invalid("format must be json, html or pdf"))
	}
	if reportService == nil {
		return fail(c, errReportUnavailable)
	}

	var player model.Player
	if err := store.Get(ctx, &player, c.Param("id")); err != nil {
		return fail(c, err)
	}
	var trials []model.Trial
	if err := store.List(ctx, &trials, func(db *scoped.DB) *scoped.DB {
		return db.Where("player_id = ?", player.ID)
	}, scoped.OrderBy("scheduled_at ASC")); err != nil {
		return fail(c, err)
	}

	rep, err := reportService.Compose(ctx, tc.Name, player, trials)
	if err != nil {
		prometheus.RecordReport(format, "error")
		return fail(c, err)
	}

	switch format {
	case "html":
		html, err := reportService.HTML(rep)
		if err != nil {
			prometheus.RecordReport(format, "error")
			return fail(c, err)
		}
		prometheus.RecordReport(format, "ok")
		response.NoStore(c)
		return c.HTMLBlob(http.StatusOK, html)
	case "pdf":
		pdf, err := reportService.PDF(ctx, rep)
		if err != nil {
			prometheus.RecordReport(format, "error")
			return fail(c, err)
		}
		prometheus.RecordReport(format, "ok")
		log.Info("Report rendered", zap.String("player_id", player.ID), zap.Int("bytes", len(pdf)))
		response.NoStore(c)
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="scouting-report-%s.pdf"`, player.ID))
		return c.Blob(http.StatusOK, "application/pdf", pdf)
	}

	prometheus.RecordReport(format, "ok")
	return response.OK(c, rep)
}
