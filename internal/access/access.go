// Package access resolves tenants from slugs and decides whether the caller
// may act on them. Every tenant route goes through Authorize.
package access

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/pkg/apperror"

	"gorm.io/gorm"
)

// Failure reasons surfaced in responses and metrics.
const (
	ReasonNotAuthenticated = "not_authenticated"
	ReasonNotMember        = "not_member"
	ReasonInsufficientRole = "insufficient_role"
	ReasonForbidden        = "forbidden"
)

var (
	ErrNotAuthenticated = &apperror.Error{Code: apperror.EUnauthorized, Reason: ReasonNotAuthenticated, Msg: "authentication required"}
	ErrNotMember        = &apperror.Error{Code: apperror.EUnauthorized, Reason: ReasonNotMember, Msg: "no access to this tenant"}
	ErrInsufficientRole = &apperror.Error{Code: apperror.EForbidden, Reason: ReasonInsufficientRole, Msg: "insufficient role for this operation"}
	ErrTenantNotFound   = &apperror.Error{Code: apperror.ENotFound, Msg: "tenant not found"}
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,98}[a-z0-9])?$`)

// NormalizeSlug lower-cases and trims a slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidSlug reports whether slug (already normalized) is well formed.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// TenantContext is what a successful authorization yields.
type TenantContext struct {
	TenantID string
	Slug     string
	Name     string
	UserID   string
	Role     model.Role
}

// Can reports whether the caller's role is in roles.
func (tc *TenantContext) Can(roles []model.Role) bool {
	return tc != nil && tc.Role.In(roles)
}

// ResolveTenant looks up a tenant by case-normalized slug.
func ResolveTenant(ctx context.Context, db *gorm.DB, slug string) (*model.Tenant, error) {
	slug = NormalizeSlug(slug)
	if !ValidSlug(slug) {
		return nil, ErrTenantNotFound
	}

	var tenant model.Tenant
	err := db.WithContext(ctx).Where("slug = ?", slug).Take(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.EInternal, "access.ResolveTenant")
	}
	return &tenant, nil
}

// ResolveTenantID looks up a tenant by id.
func ResolveTenantID(ctx context.Context, db *gorm.DB, id string) (*model.Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrTenantNotFound
	}

	var tenant model.Tenant
	err := db.WithContext(ctx).Where("id = ?", id).Take(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.EInternal, "access.ResolveTenantID")
	}
	return &tenant, nil
}

// ValidateMembership returns the caller's role in tenantID. Only the
// membership row for exactly (tenantID, userID) counts.
func ValidateMembership(ctx context.Context, db *gorm.DB, tenantID, userID string, roles []model.Role) (model.Role, error) {
	if userID == "" {
		return "", ErrNotAuthenticated
	}

	var membership model.TenantMembership
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", apperror.Wrap(err, apperror.EInternal, "access.ValidateMembership")
	}

	if !membership.Role.In(roles) {
		return membership.Role, ErrInsufficientRole
	}
	return membership.Role, nil
}

// Authorize resolves slug and validates the caller's membership and role.
// An unknown slug fails exactly like a missing membership.
func Authorize(ctx context.Context, db *gorm.DB, slug, userID string, roles ...model.Role) (*TenantContext, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	tenant, err := ResolveTenant(ctx, db, slug)
	if errors.Is(err, ErrTenantNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return authorizeTenant(ctx, db, tenant, userID, roles)
}

// AuthorizeTenantID is Authorize keyed by tenant id instead of slug.
func AuthorizeTenantID(ctx context.Context, db *gorm.DB, tenantID, userID string, roles ...model.Role) (*TenantContext, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	tenant, err := ResolveTenantID(ctx, db, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return authorizeTenant(ctx, db, tenant, userID, roles)
}

func authorizeTenant(ctx context.Context, db *gorm.DB, tenant *model.Tenant, userID string, roles []model.Role) (*TenantContext, error) {
	role, err := ValidateMembership(ctx, db, tenant.ID, userID, roles)
	if err != nil {
		return nil, err
	}
	return &TenantContext{
		TenantID: tenant.ID,
		Slug:     tenant.Slug,
		Name:     tenant.Name,
		UserID:   userID,
		Role:     role,
	}, nil
}
