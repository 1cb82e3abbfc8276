package middleware

import (
	"github.com/suteetoe/scouting-service/internal/access"
	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantKey holds the *access.TenantContext set by RequireTenant.
const TenantKey = "tenant"

// RequireTenant authorizes the caller against the :slug route parameter.
func RequireTenant(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			tc, err := access.Authorize(c.Request().Context(), database.GetDB(), c.Param("slug"), UserIDFrom(c), roles...)
			if err != nil {
				if reason := apperror.ErrorReason(err); reason != "" {
					prometheus.RecordAuthError(reason)
				}
				log.Info("Tenant access denied", zap.String("slug", c.Param("slug")), zap.Error(err))
				return response.Error(c, err)
			}

			c.Set(TenantKey, tc)
			c.Set(logger.EchoKey, log.With(zap.String("tenant_id", tc.TenantID), zap.String("role", string(tc.Role))))
			return next(c)
		}
	}
}

// RequireRole narrows an already authorized tenant route to roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tc := TenantFrom(c)
			if tc == nil {
				return response.Error(c, access.ErrNotMember)
			}
			if !tc.Can(roles) {
				prometheus.RecordAuthError(access.ReasonInsufficientRole)
				logger.FromContext(c).Info("Role not allowed", zap.String("role", string(tc.Role)))
				return response.Error(c, access.ErrInsufficientRole)
			}
			return next(c)
		}
	}
}

// TenantFrom returns the tenant context set by RequireTenant, or nil.
func TenantFrom(c echo.Context) *access.TenantContext {
	tc, _ := c.Get(TenantKey).(*access.TenantContext)
	return tc
}
