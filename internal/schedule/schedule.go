// Package schedule detects overlapping calendar events.
package schedule

import (
	"context"
	"time"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/pkg/apperror"
)

const day = 24 * time.Hour

// ErrInvalidRange is returned when an event does not end after it starts.
var ErrInvalidRange = apperror.Invalid("start_time must be before end_time")

// ErrConflict is returned when an update would overlap other events.
var ErrConflict = apperror.New(apperror.EConflict, "event overlaps existing events")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Span returns the interval an event occupies. All-day events cover whole
// UTC days from the start date through the end date.
func Span(start, end time.Time, allDay bool) Interval {
	if !allDay {
		return Interval{Start: start, End: end}
	}
	s := start.UTC().Truncate(day)
	e := end.UTC().Truncate(day)
	if e.Before(end.UTC()) || !e.After(s) {
		e = e.Add(day)
	}
	return Interval{Start: s, End: e}
}

// EventSpan is Span for a stored event.
func EventSpan(ev *model.CalendarEvent) Interval {
	return Span(ev.StartTime, ev.EndTime, ev.IsAllDay)
}

// Validate checks that start is strictly before end.
func Validate(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidRange
	}
	return nil
}

// Conflicts returns the events in events overlapping candidate, skipping
// excludeID.
func Conflicts(candidate Interval, events []model.CalendarEvent, excludeID string) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0)
	for i := range events {
		if excludeID != "" && events[i].ID == excludeID {
			continue
		}
		if candidate.Overlaps(EventSpan(&events[i])) {
			out = append(out, events[i])
		}
	}
	return out
}

// FindConflicts loads the tenant's events near candidate and returns those
// overlapping it. The read takes no lock; two concurrent writers can both
// see no conflict.
func FindConflicts(ctx context.Context, store *scoped.Store, candidate Interval, excludeID string) ([]model.CalendarEvent, error) {
	var near []model.CalendarEvent
	// widen by a day on both sides so all-day rows stored with partial
	// times are still considered
	err := store.List(ctx, &near,
		func(db *scoped.DB) *scoped.DB {
			return db.Where("start_time < ? AND end_time > ?", candidate.End.Add(day), candidate.Start.Add(-day))
		},
		scoped.OrderBy("start_time ASC"),
	)
	if err != nil {
		return nil, err
	}
	return Conflicts(candidate, near, excludeID), nil
}
