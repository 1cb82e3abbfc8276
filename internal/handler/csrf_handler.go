package handler

import (
	"github.com/suteetoe/scouting-service/internal/response"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// CSRFToken returns the current CSRF token. The CSRF middleware has already
// set or refreshed the cookie; clients echo the token in X-CSRF-Token.
func CSRFToken(c echo.Context) error {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return response.OK(c, echo.Map{
		"csrf_token": token,
		"header":     echo.HeaderXCSRFToken,
	})
}
