package handler

import (
	"net/http"

	"github.com/suteetoe/scouting-service/internal/access"
	"github.com/suteetoe/scouting-service/internal/mediaproxy"
	mid "github.com/suteetoe/scouting-service/internal/middleware"
	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
)

var errMediaUnavailable = apperror.New(apperror.EBadGateway, "media proxy is not configured")

// ServeAvatar streams an avatar image from tenant storage. The caller must
// be a member of tenantId and the path must lie under it.
func ServeAvatar(c echo.Context) error {
	mediaproxy.SetCORS(c.Response().Header())

	tc, err := access.AuthorizeTenantID(c.Request().Context(), database.GetDB(),
		c.QueryParam("tenantId"), mid.UserIDFrom(c), model.ReadRoles...)
	if err != nil {
		if reason := apperror.ErrorReason(err); reason != "" {
			prometheus.RecordAuthError(reason)
		}
		return fail(c, err)
	}
	if mediaProxy == nil {
		return fail(c, errMediaUnavailable)
	}

	if err := mediaProxy.Serve(c.Response(), c.Request(), tc.TenantID, c.QueryParam("path")); err != nil {
		return fail(c, err)
	}
	return nil
}

// AvatarPreflight answers CORS preflight requests for the avatar route.
func AvatarPreflight(c echo.Context) error {
	h := c.Response().Header()
	mediaproxy.SetCORS(h)
	h.Set("Access-Control-Max-Age", "86400")
	return c.NoContent(http.StatusNoContent)
}
