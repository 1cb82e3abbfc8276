// Package server assembles the echo instance: middleware and routes.
package server

import (
	"net/http"

	"github.com/suteetoe/scouting-service/internal/handler"
	mid "github.com/suteetoe/scouting-service/internal/middleware"
	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/pkg/config"
	"github.com/suteetoe/scouting-service/pkg/jwtutil"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// New returns an echo instance with every route registered. Handler
// dependencies are installed separately through the handler.Init* calls.
func New(cfg *config.Config, j *jwtutil.JWTUtil) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(prometheus.MetricsMiddleware())
	e.Use(logger.Middleware())

	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	api := e.Group("/api")
	if cfg.Server.CSRFEnabled {
		api.Use(CSRF(cfg.Server.Env == "production"))
	}
	api.GET("/csrf", handler.CSRFToken)

	// preflight carries no credentials
	api.OPTIONS("/media/avatar", handler.AvatarPreflight)

	auth := mid.AuthMiddleware(j)
	api.GET("/media/avatar", handler.ServeAvatar, auth)
	api.HEAD("/media/avatar", handler.ServeAvatar, auth)

	api.GET("/me", handler.GetMe, auth)
	api.POST("/tenants", handler.CreateTenant, auth)

	write := mid.RequireRole(model.WriteRoles...)
	del := mid.RequireRole(model.DeleteRoles...)
	admin := mid.RequireRole(model.AdminRoles...)

	tenant := api.Group("/tenants/:slug", auth, mid.RequireTenant(model.ReadRoles...))
	tenant.GET("", handler.GetTenant)
	tenant.PUT("", handler.UpdateTenant, admin)

	tenant.GET("/members", handler.ListMembers)
	tenant.POST("/members", handler.AddMember, admin)
	tenant.DELETE("/members/:user_id", handler.RemoveMember, admin)

	tenant.GET("/players", handler.ListPlayers)
	tenant.POST("/players", handler.CreatePlayer, write)
	tenant.GET("/players/:id", handler.GetPlayer)
	tenant.PUT("/players/:id", handler.UpdatePlayer, write)
	tenant.DELETE("/players/:id", handler.DeletePlayer, del)
	tenant.GET("/players/:id/report", handler.PlayerReport)

	tenant.GET("/requests", handler.ListRequests)
	tenant.POST("/requests", handler.CreateRequest, write)
	tenant.GET("/requests/:id", handler.GetRequest)
	tenant.PUT("/requests/:id", handler.UpdateRequest, write)
	tenant.DELETE("/requests/:id", handler.DeleteRequest, del)

	tenant.GET("/trials", handler.ListTrials)
	tenant.POST("/trials", handler.CreateTrial, write)
	tenant.GET("/trials/:id", handler.GetTrial)
	tenant.PUT("/trials/:id", handler.UpdateTrial, write)
	tenant.DELETE("/trials/:id", handler.DeleteTrial, del)

	tenant.GET("/calendar-events", handler.ListEvents)
	tenant.POST("/calendar-events", handler.CreateEvent, write)
	tenant.GET("/calendar-events/:id", handler.GetEvent)
	tenant.PUT("/calendar-events/:id", handler.UpdateEvent, write)
	tenant.DELETE("/calendar-events/:id", handler.DeleteEvent, del)

	tenant.GET("/dashboard/stats", handler.GetDashboardStats)

	// groups with middleware register their own catch-all; replace those too
	e.RouteNotFound("/*", routeNotFound)
	api.RouteNotFound("/*", routeNotFound)
	tenant.RouteNotFound("/*", routeNotFound)

	return e
}

func routeNotFound(c echo.Context) error {
	return response.NotFound(c, "")
}

// CSRF protects cookie-authenticated mutations with a double-submit token.
// Bearer-token clients are exempt.
func CSRF(secure bool) echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: false,
		CookieSecure:   secure,
		CookieSameSite: http.SameSiteStrictMode,
		Skipper:        mid.IsBearer,
	})
}
