package handler

import (
	"errors"
	"strings"

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

var (
	errLastOwner     = apperror.New(apperror.EConflict, "a tenant must keep at least one owner")
	errUserNotFound  = apperror.New(apperror.ENotFound, "user not found")
	errMemberMissing = apperror.New(apperror.ENotFound, "member not found")
)

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// ListMembers lists the tenant's memberships with their users.
func ListMembers(c echo.Context) error {
	tc := mid.TenantFrom(c)

	var members []model.TenantMembership
	if err := database.GetDB().WithContext(c.Request().Context()).
		Preload("User").
		Where("tenant_id = ?", tc.TenantID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return fail(c, apperror.Wrap(err, apperror.EInternal, "handler.ListMembers"))
	}
	return response.OK(c, members)
}

// AddMember grants an existing user a role, or changes their role. Only an
// OWNER may grant OWNER or change an OWNER's role.
func AddMember(c echo.Context) error {
	log := logger.FromContext(c)
	tc := mid.TenantFrom(c)

	var req addMemberRequest
	if err := bindRequest(c, &req); err != nil {
		return fail(c, err)
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return fail(c, fieldErrors{"role": "must be one of OWNER ADMIN MANAGER SCOUT VIEWER"})
	}
	if role == model.RoleOwner && tc.Role != model.RoleOwner {
		return fail(c, access.ErrInsufficientRole)
	}

	var membership model.TenantMembership
	created := false
	err := database.GetDB().WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var user model.User
		err := tx.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errUserNotFound
		}
		if err != nil {
			return err
		}

		err = tx.Where("tenant_id = ? AND user_id = ?", tc.TenantID, user.ID).Take(&membership).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			membership = model.TenantMembership{TenantID: tc.TenantID, UserID: user.ID, Role: role}
			created = true
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if membership.Role == model.RoleOwner && tc.Role != model.RoleOwner {
				return access.ErrInsufficientRole
			}
			if membership.Role == model.RoleOwner && role != model.RoleOwner {
				if err := ensureAnotherOwner(tx, tc.TenantID, user.ID); err != nil {
					return err
				}
			}
			membership.Role = role
			if err := tx.Model(&membership).Select("role", "updated_at").Updates(&membership).Error; err != nil {
				return err
			}
		}
		membership.User = &user
		return nil
	})
	if err != nil {
		if apperror.ErrorCode(err) == apperror.EInternal {
			err = apperror.Wrap(err, apperror.EInternal, "handler.AddMember")
		}
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("membership", "upsert")
	log.Info("Membership saved",
		zap.String("member_user_id", membership.UserID),
		zap.String("member_role", string(membership.Role)),
		zap.Bool("created", created))
	if created {
		return response.Created(c, membership, "member added")
	}
	return response.OK(c, membership)
}

// RemoveMember deletes a membership. Only an OWNER may remove an OWNER, and
// the last OWNER cannot be removed.
func RemoveMember(c echo.Context) error {
	log := logger.FromContext(c)
	tc := mid.TenantFrom(c)
	userID := c.Param("user_id")

	err := database.GetDB().WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var membership model.TenantMembership
		err := tx.Where("tenant_id = ? AND user_id = ?", tc.TenantID, userID).Take(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errMemberMissing
		}
		if err != nil {
			return err
		}
		if membership.Role == model.RoleOwner {
			if tc.Role != model.RoleOwner {
				return access.ErrInsufficientRole
			}
			if err := ensureAnotherOwner(tx, tc.TenantID, userID); err != nil {
				return err
			}
		}
		return tx.Delete(&membership).Error
	})
	if err != nil {
		if apperror.ErrorCode(err) == apperror.EInternal {
			err = apperror.Wrap(err, apperror.EInternal, "handler.RemoveMember")
		}
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("membership", "delete")
	log.Info("Membership removed", zap.String("member_user_id", userID))
	return response.Message(c, "member removed")
}

func ensureAnotherOwner(tx *gorm.DB, tenantID, exceptUserID string) error {
	var owners int64
	if err := tx.Model(&model.TenantMembership{}).
		Where("tenant_id = ? AND role = ? AND user_id <> ?", tenantID, model.RoleOwner, exceptUserID).
		Count(&owners).Error; err != nil {
		return err
	}
	if owners == 0 {
		return errLastOwner
	}
	return nil
}
