package model

import (
	"strings"
	"time"
)

// Role is a user's privilege level within one tenant.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleScout   Role = "SCOUT"
	RoleViewer  Role = "VIEWER"
)

var (
	// ReadRoles may read any tenant data.
	ReadRoles = []Role{RoleOwner, RoleAdmin, RoleManager, RoleScout, RoleViewer}
	// WriteRoles may create and update players, requests, trials and events.
	WriteRoles = []Role{RoleOwner, RoleAdmin, RoleManager, RoleScout}
	// DeleteRoles may delete tenant data.
	DeleteRoles = []Role{RoleOwner, RoleAdmin, RoleManager}
	// AdminRoles may change the tenant and its memberships.
	AdminRoles = []Role{RoleOwner, RoleAdmin}
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleScout, RoleViewer:
		return r, true
	}
	return "", false
}

// In reports whether r is one of roles. An empty set allows every role.
func (r Role) In(roles []Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

// TenantMembership associates a user with a tenant at a role.
// (tenant_id, user_id) is unique.
type TenantMembership struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID  string    `json:"tenant_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_membership_tenant_user"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_membership_tenant_user;index"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null;default:'VIEWER'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User   *User   `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}

func (TenantMembership) TableName() string { return "tenant_memberships" }
