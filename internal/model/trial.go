package model

import (
	"time"
)

// TrialStatus is the state of a trial.
type TrialStatus string

const (
	TrialScheduled  TrialStatus = "SCHEDULED"
	TrialInProgress TrialStatus = "IN_PROGRESS"
	TrialCompleted  TrialStatus = "COMPLETED"
	TrialCancelled  TrialStatus = "CANCELLED"
	TrialNoShow     TrialStatus = "NO_SHOW"
)

// Trial is a scheduled trial of a player, optionally tied to a request.
type Trial struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string      `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	PlayerID    string      `json:"player_id" gorm:"type:varchar(36);index;not null"`
	RequestID   *string     `json:"request_id,omitempty" gorm:"type:varchar(36);index"`
	ScheduledAt time.Time   `json:"scheduled_at" gorm:"not null;index"`
	Location    string      `json:"location" gorm:"type:varchar(200)"`
	Status      TrialStatus `json:"status" gorm:"type:varchar(20);not null;default:'SCHEDULED';index"`
	Rating      *float64    `json:"rating,omitempty"`
	Feedback    string      `json:"feedback" gorm:"type:text"`
	Notes       string      `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Player  *Player  `json:"player,omitempty" gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE"`
	Request *Request `json:"request,omitempty" gorm:"foreignKey:RequestID;constraint:OnDelete:SET NULL"`
}

func (Trial) TableName() string { return "trials" }

func (t *Trial) SetTenantID(id string) { t.TenantID = id }

// ValidTrialStatus reports whether s is a known status.
func ValidTrialStatus(s TrialStatus) bool {
	switch s {
	case TrialScheduled, TrialInProgress, TrialCompleted, TrialCancelled, TrialNoShow:
		return true
	}
	return false
}
