package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/internal/schedule"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type eventRequest struct {
	Title       *string   `json:"title" validate:"omitempty,max=200"`
	Description *string   `json:"description"`
	StartTime   *flexTime `json:"start_time"`
	EndTime     *flexTime `json:"end_time"`
	Location    *string   `json:"location" validate:"omitempty,max=200"`
	Type        *string   `json:"type" validate:"omitempty,max=50"`
	IsAllDay    *bool     `json:"is_all_day"`
	Recurrence  *string   `json:"recurrence" validate:"omitempty,max=200"`
}

// conflictView is the short form of an overlapping event.
type conflictView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsAllDay  bool   `json:"is_all_day"`
}

type eventView struct {
	model.CalendarEvent
	Conflicts []conflictView `json:"conflicts"`
}

func conflictViews(events []model.CalendarEvent) []conflictView {
	out := make([]conflictView, 0, len(events))
	for _, ev := range events {
		out = append(out, conflictView{
			ID:        ev.ID,
			Title:     ev.Title,
			StartTime: ev.StartTime.UTC().Format(time.RFC3339),
			EndTime:   ev.EndTime.UTC().Format(time.RFC3339),
			IsAllDay:  ev.IsAllDay,
		})
	}
	return out
}

func (in *eventRequest) apply(ev *model.CalendarEvent) []string {
	cols := []string{}
	if in.Title != nil {
		ev.Title = trimmed(in.Title)
		cols = append(cols, "title")
	}
	if in.Description != nil {
		ev.Description = *in.Description
		cols = append(cols, "description")
	}
	if in.StartTime != nil {
		ev.StartTime = in.StartTime.Time
		cols = append(cols, "start_time")
	}
	if in.EndTime != nil {
		ev.EndTime = in.EndTime.Time
		cols = append(cols, "end_time")
	}
	if in.Location != nil {
		ev.Location = trimmed(in.Location)
		cols = append(cols, "location")
	}
	if in.Type != nil {
		ev.Type = strings.ToUpper(trimmed(in.Type))
		if ev.Type == "" {
			ev.Type = "OTHER"
		}
		cols = append(cols, "type")
	}
	if in.IsAllDay != nil {
		ev.IsAllDay = *in.IsAllDay
		cols = append(cols, "is_all_day")
	}
	if in.Recurrence != nil {
		ev.Recurrence = trimmed(in.Recurrence)
		cols = append(cols, "recurrence")
	}
	return cols
}

func checkEvent(ev *model.CalendarEvent) error {
	fields := fieldErrors{}
	if ev.Title == "" {
		fields["title"] = "is required"
	}
	if ev.StartTime.IsZero() {
		fields["start_time"] = "is required"
	}
	if ev.EndTime.IsZero() {
		fields["end_time"] = "is required"
	}
	if len(fields) > 0 {
		return fields
	}
	return schedule.Validate(ev.StartTime, ev.EndTime)
}

// ListEvents lists calendar events overlapping [from, to) and of type.
func ListEvents(c echo.Context) error {
	store, _ := tenantStore(c)

	from, err := queryTime(c, "from")
	if err != nil {
		return fail(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return fail(c, err)
	}
	eventType := strings.ToUpper(strings.TrimSpace(c.QueryParam("type")))

	events := []model.CalendarEvent{}
	err = store.List(c.Request().Context(), &events,
		func(db *scoped.DB) *scoped.DB {
			if from != nil {
				db = db.Where("end_time > ?", *from)
			}
			if to != nil {
				db = db.Where("start_time < ?", *to)
			}
			if eventType != "" {
				db = db.Where("type = ?", eventType)
			}
			return db
		},
		scoped.OrderBy("start_time ASC"),
	)
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, events)
}

// GetEvent returns one calendar event.
func GetEvent(c echo.Context) error {
	store, _ := tenantStore(c)

	var ev model.CalendarEvent
	if err := store.Get(c.Request().Context(), &ev, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return response.OK(c, ev)
}

// CreateEvent adds a calendar event. Overlaps do not block creation; they
// are returned as conflicts.
func CreateEvent(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	ctx := c.Request().Context()

	var in eventRequest
	if err := bindRequest(c, &in); err != nil {
		return fail(c, err)
	}
	ev := model.CalendarEvent{Type: "OTHER"}
	in.apply(&ev)
	if err := checkEvent(&ev); err != nil {
		return fail(c, err)
	}

	conflicts, err := schedule.FindConflicts(ctx, store, schedule.EventSpan(&ev), "")
	if err != nil {
		return fail(c, err)
	}
	if err := store.Create(ctx, &ev); err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("calendar_event", "create")
	log.Info("Calendar event created", zap.String("event_id", ev.ID), zap.Int("conflicts", len(conflicts)))
	msg := "event created"
	if len(conflicts) > 0 {
		msg = "event created with conflicts"
	}
	return response.Created(c, eventView{CalendarEvent: ev, Conflicts: conflictViews(conflicts)}, msg)
}

// UpdateEvent changes the provided fields of an event. An update that would
// overlap another event is refused with 409 and the conflicts.
func UpdateEvent(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	ctx := c.Request().Context()

	var in eventRequest
	if err := bindRequest(c, &in); err != nil {
		return fail(c, err)
	}
	cols := in.apply(&model.CalendarEvent{})

	var (
		ev        model.CalendarEvent
		conflicts []model.CalendarEvent
	)
	id := c.Param("id")
	err := store.Update(ctx, &ev, id, func() error {
		in.apply(&ev)
		if err := checkEvent(&ev); err != nil {
			return err
		}
		var err error
		conflicts, err = schedule.FindConflicts(ctx, store, schedule.EventSpan(&ev), id)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return schedule.ErrConflict
		}
		return nil
	}, append(cols, "updated_at")...)
	if apperror.ErrorCode(err) == apperror.EConflict {
		log.Info("Calendar event update conflicts", zap.String("event_id", id), zap.Int("conflicts", len(conflicts)))
		return response.JSON(c, http.StatusConflict, response.Envelope{
			Error: apperror.ErrorMessage(err),
			Data:  echo.Map{"conflicts": conflictViews(conflicts)},
		})
	}
	if err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("calendar_event", "update")
	log.Info("Calendar event updated", zap.String("event_id", ev.ID), zap.Strings("columns", cols))
	return response.OK(c, eventView{CalendarEvent: ev, Conflicts: []conflictView{}})
}

// DeleteEvent deletes a calendar event.
func DeleteEvent(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	id := c.Param("id")

	if err := store.Delete(c.Request().Context(), &model.CalendarEvent{}, id); err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("calendar_event", "delete")
	log.Info("Calendar event deleted", zap.String("event_id", id))
	return response.Message(c, "event deleted")
}
