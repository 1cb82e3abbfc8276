package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID gives a record a UUID when the caller has not set one.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error           { assignID(&t.ID); return nil }
func (u *User) BeforeCreate(tx *gorm.DB) error             { assignID(&u.ID); return nil }
func (m *TenantMembership) BeforeCreate(tx *gorm.DB) error { assignID(&m.ID); return nil }
func (p *Player) BeforeCreate(tx *gorm.DB) error           { assignID(&p.ID); return nil }
func (r *Request) BeforeCreate(tx *gorm.DB) error          { assignID(&r.ID); return nil }
func (t *Trial) BeforeCreate(tx *gorm.DB) error            { assignID(&t.ID); return nil }
func (e *CalendarEvent) BeforeCreate(tx *gorm.DB) error    { assignID(&e.ID); return nil }

// AllModels lists every persisted model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&TenantMembership{},
		&Player{},
		&Request{},
		&Trial{},
		&CalendarEvent{},
	}
}
