// Package window computes the transfer-window badge shown on scouting
// requests.
package window

import (
	"math"
	"time"
)

// Status of a transfer window at a point in time.
type Status string

const (
	NoWindow    Status = "NO_WINDOW"
	Upcoming    Status = "UPCOMING"
	ClosingSoon Status = "CLOSING_SOON"
	Open        Status = "OPEN"
	Grace       Status = "GRACE"
	Closed      Status = "CLOSED"
)

// ClosingSoonWithin is how close to the effective close a window turns
// CLOSING_SOON.
const ClosingSoonWithin = 7 * 24 * time.Hour

const day = 24 * time.Hour

// Input is the window timing of one request.
type Input struct {
	OpenAt    *time.Time
	CloseAt   *time.Time
	Deadline  *time.Time
	GraceDays int
}

// Badge is the evaluated window state. DaysRemaining counts whole days,
// rounded up, to the next boundary: the opening for UPCOMING, the effective
// close while open, the end of grace during GRACE.
type Badge struct {
	Status        Status     `json:"status"`
	DaysRemaining *int       `json:"days_remaining,omitempty"`
	ClosesAt      *time.Time `json:"closes_at,omitempty"`
}

// EffectiveClose returns the close time, replaced by the deadline when the
// deadline is earlier or no close is set.
func (in Input) EffectiveClose() *time.Time {
	closeAt := in.CloseAt
	if in.Deadline != nil && (closeAt == nil || in.Deadline.Before(*closeAt)) {
		closeAt = in.Deadline
	}
	return closeAt
}

// Evaluate returns the badge for in at now.
func Evaluate(in Input, now time.Time) Badge {
	if in.OpenAt == nil && in.CloseAt == nil {
		return Badge{Status: NoWindow}
	}

	if in.OpenAt != nil && now.Before(*in.OpenAt) {
		return Badge{Status: Upcoming, DaysRemaining: daysUntil(now, *in.OpenAt), ClosesAt: copyTime(in.EffectiveClose())}
	}

	closeAt := in.EffectiveClose()
	if closeAt == nil {
		return Badge{Status: Open}
	}
	closes := copyTime(closeAt)

	if !now.After(*closeAt) {
		status := Open
		if closeAt.Sub(now) <= ClosingSoonWithin {
			status = ClosingSoon
		}
		return Badge{Status: status, DaysRemaining: daysUntil(now, *closeAt), ClosesAt: closes}
	}

	graceEnd := closeAt.Add(time.Duration(max(in.GraceDays, 0)) * day)
	if in.GraceDays > 0 && !now.After(graceEnd) {
		return Badge{Status: Grace, DaysRemaining: daysUntil(now, graceEnd), ClosesAt: closes}
	}
	return Badge{Status: Closed, ClosesAt: closes}
}

// IsOpen reports whether the window currently accepts business.
func (b Badge) IsOpen() bool {
	return b.Status == Open || b.Status == ClosingSoon || b.Status == Grace
}

func daysUntil(now, t time.Time) *int {
	d := int(math.Ceil(t.Sub(now).Hours() / 24))
	if d < 0 {
		d = 0
	}
	return &d
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
