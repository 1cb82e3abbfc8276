package handler

import (
	"github.com/suteetoe/scouting-service/internal/access"
	mid "github.com/suteetoe/scouting-service/internal/middleware"
	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/database"

	"github.com/labstack/echo/v4"
)

type membershipView struct {
	TenantID string     `json:"tenant_id"`
	Slug     string     `json:"slug"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}

// GetMe returns the caller and the tenants they belong to.
func GetMe(c echo.Context) error {
	user := mid.UserFrom(c)
	if user == nil {
		return fail(c, access.ErrNotAuthenticated)
	}

	var memberships []model.TenantMembership
	if err := database.GetDB().WithContext(c.Request().Context()).
		Preload("Tenant").
		Where("user_id = ?", user.ID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return fail(c, apperror.Wrap(err, apperror.EInternal, "handler.GetMe"))
	}

	views := make([]membershipView, 0, len(memberships))
	for _, m := range memberships {
		if m.Tenant == nil {
			continue
		}
		views = append(views, membershipView{TenantID: m.TenantID, Slug: m.Tenant.Slug, Name: m.Tenant.Name, Role: m.Role})
	}

	return response.OK(c, echo.Map{
		"user":        user,
		"memberships": views,
	})
}
