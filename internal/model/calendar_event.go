package model

import (
	"time"
)

// CalendarEvent is a tenant calendar entry. StartTime is always before EndTime.
type CalendarEvent struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string    `json:"tenant_id" gorm:"type:varchar(36);index:idx_event_tenant_start;not null"`
	Title       string    `json:"title" gorm:"type:varchar(200);not null"`
	Description string    `json:"description" gorm:"type:text"`
	StartTime   time.Time `json:"start_time" gorm:"not null;index:idx_event_tenant_start"`
	EndTime     time.Time `json:"end_time" gorm:"not null"`
	Location    string    `json:"location" gorm:"type:varchar(200)"`
	Type        string    `json:"type" gorm:"type:varchar(50);default:'OTHER'"`
	IsAllDay    bool      `json:"is_all_day" gorm:"default:false"`
	Recurrence  string    `json:"recurrence" gorm:"type:varchar(200)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (CalendarEvent) TableName() string { return "calendar_events" }

func (e *CalendarEvent) SetTenantID(id string) { e.TenantID = id }
