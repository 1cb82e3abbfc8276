package model

import (
	"time"
)

// Tenant represents an organization. Every other tenant-owned row carries its id.
type Tenant struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Slug        string    `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"type:varchar(200);not null"`
	Description string    `json:"description" gorm:"type:text"`
	LogoURL     *string   `json:"logo_url,omitempty" gorm:"type:text"`
	Settings    string    `json:"settings" gorm:"type:jsonb;default:'{}'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }
