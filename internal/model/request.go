package model

import (
	"time"
)

// RequestStatus is the lifecycle state of a scouting request.
type RequestStatus string

const (
	RequestOpen       RequestStatus = "OPEN"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestOfferSent  RequestStatus = "OFFER_SENT"
	RequestAgreement  RequestStatus = "AGREEMENT"
	RequestCompleted  RequestStatus = "COMPLETED"
	RequestCancelled  RequestStatus = "CANCELLED"
	RequestExpired    RequestStatus = "EXPIRED"
)

// Priority of a scouting request.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Request is a scouting request with transfer-window timing.
type Request struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID      string        `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	Title         string        `json:"title" gorm:"type:varchar(200);not null"`
	Description   string        `json:"description" gorm:"type:text"`
	Club          string        `json:"club" gorm:"type:varchar(200)"`
	Country       string        `json:"country" gorm:"type:varchar(100)"`
	League        string        `json:"league" gorm:"type:varchar(100)"`
	Position      string        `json:"position" gorm:"type:varchar(100)"`
	Status        RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'OPEN';index"`
	Priority      Priority      `json:"priority" gorm:"type:varchar(10);not null;default:'MEDIUM'"`
	WindowOpenAt  *time.Time    `json:"window_open_at,omitempty"`
	WindowCloseAt *time.Time    `json:"window_close_at,omitempty"`
	Deadline      *time.Time    `json:"deadline,omitempty"`
	GraceDays     int           `json:"grace_days" gorm:"default:0"`
	OwnerID       *string       `json:"owner_id,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (Request) TableName() string { return "requests" }

func (r *Request) SetTenantID(id string) { r.TenantID = id }

// ValidRequestStatus reports whether s is a known status.
func ValidRequestStatus(s RequestStatus) bool {
	switch s {
	case RequestOpen, RequestInProgress, RequestOfferSent, RequestAgreement,
		RequestCompleted, RequestCancelled, RequestExpired:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
