package model

import (
	"strings"
	"time"
)

// Player is a scouted player. Position holds comma-joined position codes.
type Player struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string     `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	FirstName   string     `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName    string     `json:"last_name" gorm:"type:varchar(100);not null"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Nationality string     `json:"nationality" gorm:"type:varchar(100)"`
	Position    string     `json:"position" gorm:"type:varchar(100)"`
	Club        string     `json:"club" gorm:"type:varchar(200)"`
	Height      *int       `json:"height,omitempty"`
	Weight      *int       `json:"weight,omitempty"`
	Notes       string     `json:"notes" gorm:"type:text"`
	Tags        []string   `json:"tags" gorm:"serializer:json;type:text"`
	Rating      *float64   `json:"rating,omitempty"`
	AvatarURL   *string    `json:"avatar_url,omitempty" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Player) TableName() string { return "players" }

func (p *Player) SetTenantID(id string) { p.TenantID = id }

// FullName returns "First Last".
func (p *Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Positions splits the stored position list.
func (p *Player) Positions() []string {
	return SplitPositions(p.Position)
}

// AvatarTagPrefix marks the legacy tag entries that carried avatar URLs.
const AvatarTagPrefix = "avatar:"

// JoinPositions normalizes codes to upper case, drops blanks and duplicates,
// and joins them with commas.
func JoinPositions(codes []string) string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		for _, part := range strings.Split(c, ",") {
			code := strings.ToUpper(strings.TrimSpace(part))
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			out = append(out, code)
		}
	}
	return strings.Join(out, ",")
}

// SplitPositions is the inverse of JoinPositions.
func SplitPositions(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
