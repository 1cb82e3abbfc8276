package handler

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/suteetoe/scouting-service/internal/access"
	mid "github.com/suteetoe/scouting-service/internal/middleware"
	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errSlugTaken = &apperror.Error{Code: apperror.EConflict, Reason: "slug_taken", Msg: "slug is already taken"}

type createTenantRequest struct {
	Slug        string  `json:"slug" validate:"required,max=100"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description"`
	LogoURL     *string `json:"logo_url" validate:"omitempty,url"`
}

type updateTenantRequest struct {
	Name        *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string         `json:"description"`
	LogoURL     *string         `json:"logo_url" validate:"omitempty"`
	Settings    json.RawMessage `json:"settings"`
}

type tenantView struct {
	model.Tenant
	Role model.Role `json:"role"`
}

// CreateTenant creates a tenant and makes the caller its OWNER.
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)

	var req createTenantRequest
	if err := bindRequest(c, &req); err != nil {
		return fail(c, err)
	}
	slug := access.NormalizeSlug(req.Slug)
	if !access.ValidSlug(slug) {
		return fail(c, fieldErrors{"slug": "must be lower-case letters, digits and dashes"})
	}

	tenant := model.Tenant{
		Slug:        slug,
		Name:        req.Name,
		Description: req.Description,
		LogoURL:     nullable(req.LogoURL),
		Settings:    "{}",
	}
	userID := mid.UserIDFrom(c)

	err := database.GetDB().WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Tenant{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errSlugTaken
		}
		return insertTenant(tx, &tenant, userID)
	})
	if errors.Is(err, errSlugTaken) {
		return fail(c, err)
	}
	if err != nil {
		return fail(c, apperror.Wrap(err, apperror.EInternal, "handler.CreateTenant"))
	}

	prometheus.RecordTenantOperation("tenant", "create")
	log.Info("Tenant created", zap.String("tenant_id", tenant.ID), zap.String("slug", tenant.Slug))
	return response.Created(c, tenantView{Tenant: tenant, Role: model.RoleOwner}, "tenant created")
}

// insertTenant creates tenant with ownerID as its OWNER. A slug taken by a
// concurrent request is reported as errSlugTaken.
func insertTenant(tx *gorm.DB, tenant *model.Tenant, ownerID string) error {
	if err := tx.Create(tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errSlugTaken
		}
		return err
	}
	return tx.Create(&model.TenantMembership{TenantID: tenant.ID, UserID: ownerID, Role: model.RoleOwner}).Error
}

// GetTenant returns the tenant and the caller's role in it.
func GetTenant(c echo.Context) error {
	tc := mid.TenantFrom(c)

	var tenant model.Tenant
	if err := database.GetDB().WithContext(c.Request().Context()).Where("id = ?", tc.TenantID).Take(&tenant).Error; err != nil {
		return fail(c, apperror.Wrap(err, apperror.EInternal, "handler.GetTenant"))
	}
	return response.OK(c, tenantView{Tenant: tenant, Role: tc.Role})
}

// UpdateTenant changes the tenant's profile and settings.
func UpdateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	tc := mid.TenantFrom(c)

	var req updateTenantRequest
	if err := bindRequest(c, &req); err != nil {
		return fail(c, err)
	}

	cols := []string{"updated_at"}
	var tenant model.Tenant
	db := database.GetDB().WithContext(c.Request().Context())
	if err := db.Where("id = ?", tc.TenantID).Take(&tenant).Error; err != nil {
		return fail(c, apperror.Wrap(err, apperror.EInternal, "handler.UpdateTenant"))
	}
	if req.Name != nil {
		tenant.Name = trimmed(req.Name)
		cols = append(cols, "name")
	}
	if req.Description != nil {
		tenant.Description = *req.Description
		cols = append(cols, "description")
	}
	if req.LogoURL != nil {
		tenant.LogoURL = nullable(req.LogoURL)
		cols = append(cols, "logo_url")
	}
	if len(req.Settings) > 0 {
		settings := bytes.TrimSpace(req.Settings)
		if len(settings) == 0 || settings[0] != '{' || !json.Valid(settings) {
			return fail(c, fieldErrors{"settings": "must be a JSON object"})
		}
		tenant.Settings = string(settings)
		cols = append(cols, "settings")
	}

	if err := db.Model(&tenant).Select(cols).Updates(&tenant).Error; err != nil {
		return fail(c, apperror.Wrap(err, apperror.EInternal, "handler.UpdateTenant"))
	}

	prometheus.RecordTenantOperation("tenant", "update")
	log.Info("Tenant updated", zap.Strings("columns", cols))
	return response.OK(c, tenantView{Tenant: tenant, Role: tc.Role})
}
