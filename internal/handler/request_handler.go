package handler

import (
	"strings"
	"time"

	mid "github.com/suteetoe/scouting-service/internal/middleware"
	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/internal/window"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type requestRequest struct {
	Title         *string   `json:"title" validate:"omitempty,max=200"`
	Description   *string   `json:"description"`
	Club          *string   `json:"club" validate:"omitempty,max=200"`
	Country       *string   `json:"country" validate:"omitempty,max=100"`
	League        *string   `json:"league" validate:"omitempty,max=100"`
	Position      *string   `json:"position" validate:"omitempty,max=100"`
	Status        *string   `json:"status"`
	Priority      *string   `json:"priority"`
	WindowOpenAt  *flexTime `json:"window_open_at"`
	WindowCloseAt *flexTime `json:"window_close_at"`
	Deadline      *flexTime `json:"deadline"`
	GraceDays     *int      `json:"grace_days" validate:"omitempty,min=0,max=90"`
	OwnerID       *string   `json:"owner_id" validate:"omitempty,max=36"`
}

// requestView is a request with its evaluated window badge.
type requestView struct {
	model.Request
	Window window.Badge `json:"window"`
}

func viewRequest(r model.Request, now time.Time) requestView {
	return requestView{Request: r, Window: window.Evaluate(windowInput(&r), now)}
}

func windowInput(r *model.Request) window.Input {
	return window.Input{OpenAt: r.WindowOpenAt, CloseAt: r.WindowCloseAt, Deadline: r.Deadline, GraceDays: r.GraceDays}
}

func (in *requestRequest) apply(r *model.Request) ([]string, error) {
	cols := []string{}
	if in.Title != nil {
		r.Title = trimmed(in.Title)
		cols = append(cols, "title")
	}
	if in.Description != nil {
		r.Description = *in.Description
		cols = append(cols, "description")
	}
	if in.Club != nil {
		r.Club = trimmed(in.Club)
		cols = append(cols, "club")
	}
	if in.Country != nil {
		r.Country = trimmed(in.Country)
		cols = append(cols, "country")
	}
	if in.League != nil {
		r.League = trimmed(in.League)
		cols = append(cols, "league")
	}
	if in.Position != nil {
		r.Position = model.JoinPositions([]string{*in.Position})
		cols = append(cols, "position")
	}
	if in.Status != nil {
		status := model.RequestStatus(strings.ToUpper(trimmed(in.Status)))
		if !model.ValidRequestStatus(status) {
			return nil, fieldErrors{"status": "is not a known request status"}
		}
		r.Status = status
		cols = append(cols, "status")
	}
	if in.Priority != nil {
		priority := model.Priority(strings.ToUpper(trimmed(in.Priority)))
		if !model.ValidPriority(priority) {
			return nil, fieldErrors{"priority": "must be one of LOW MEDIUM HIGH URGENT"}
		}
		r.Priority = priority
		cols = append(cols, "priority")
	}
	if in.WindowOpenAt != nil {
		r.WindowOpenAt = in.WindowOpenAt.ptr()
		cols = append(cols, "window_open_at")
	}
	if in.WindowCloseAt != nil {
		r.WindowCloseAt = in.WindowCloseAt.ptr()
		cols = append(cols, "window_close_at")
	}
	if in.Deadline != nil {
		r.Deadline = in.Deadline.ptr()
		cols = append(cols, "deadline")
	}
	if in.GraceDays != nil {
		r.GraceDays = *in.GraceDays
		cols = append(cols, "grace_days")
	}
	if in.OwnerID != nil {
		r.OwnerID = nullable(in.OwnerID)
		cols = append(cols, "owner_id")
	}
	return cols, nil
}

func checkRequest(r *model.Request) error {
	fields := fieldErrors{}
	if r.Title == "" {
		fields["title"] = "is required"
	}
	if r.WindowOpenAt != nil && r.WindowCloseAt != nil && !r.WindowOpenAt.Before(*r.WindowCloseAt) {
		fields["window_close_at"] = "must be after window_open_at"
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// ListRequests lists the tenant's scouting requests, optionally filtered by
// status and priority.
func ListRequests(c echo.Context) error {
	store, _ := tenantStore(c)
	priority := strings.ToUpper(strings.TrimSpace(c.QueryParam("priority")))

	var requests []model.Request
	err := store.List(c.Request().Context(), &requests,
		scoped.ByStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))),
		func(db *scoped.DB) *scoped.DB {
			if priority == "" {
				return db
			}
			return db.Where("priority = ?", priority)
		},
		scoped.OrderBy("created_at DESC"),
	)
	if err != nil {
		return fail(c, err)
	}

	now := time.Now()
	views := make([]requestView, 0, len(requests))
	for _, r := range requests {
		views = append(views, viewRequest(r, now))
	}
	return response.OK(c, views)
}

// GetRequest returns one request.
func GetRequest(c echo.Context) error {
	store, _ := tenantStore(c)

	var r model.Request
	if err := store.Get(c.Request().Context(), &r, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return response.OK(c, viewRequest(r, time.Now()))
}

// CreateRequest opens a scouting request. The owner defaults to the caller.
func CreateRequest(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)

	var in requestRequest
	if err := bindRequest(c, &in); err != nil {
		return fail(c, err)
	}
	r := model.Request{Status: model.RequestOpen, Priority: model.PriorityMedium}
	if _, err := in.apply(&r); err != nil {
		return fail(c, err)
	}
	if err := checkRequest(&r); err != nil {
		return fail(c, err)
	}
	if r.OwnerID == nil {
		uid := mid.UserIDFrom(c)
		r.OwnerID = &uid
	}

	if err := store.Create(c.Request().Context(), &r); err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("request", "create")
	log.Info("Request created", zap.String("request_id", r.ID))
	return response.Created(c, viewRequest(r, time.Now()), "request created")
}

// UpdateRequest changes the provided fields of a request.
func UpdateRequest(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)

	var in requestRequest
	if err := bindRequest(c, &in); err != nil {
		return fail(c, err)
	}
	cols, err := in.apply(&model.Request{})
	if err != nil {
		return fail(c, err)
	}

	var r model.Request
	err = store.Update(c.Request().Context(), &r, c.Param("id"), func() error {
		if _, err := in.apply(&r); err != nil {
			return err
		}
		return checkRequest(&r)
	}, append(cols, "updated_at")...)
	if err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("request", "update")
	log.Info("Request updated", zap.String("request_id", r.ID), zap.Strings("columns", cols))
	return response.OK(c, viewRequest(r, time.Now()))
}

// DeleteRequest deletes a request. Its trials stay, detached from it.
func DeleteRequest(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	ctx := c.Request().Context()
	id := c.Param("id")

	var detached int64
	err := store.Transaction(ctx, func(tx *scoped.Store) error {
		ok, err := tx.Exists(ctx, &model.Request{}, id)
		if err != nil {
			return err
		}
		if !ok {
			return scoped.ErrNotFoundOrForbidden
		}
		res := tx.Query(ctx, &model.Trial{}).Where("request_id = ?", id).Update("request_id", nil)
		if res.Error != nil {
			return apperror.Wrap(res.Error, apperror.EInternal, "handler.DeleteRequest")
		}
		detached = res.RowsAffected
		return tx.Delete(ctx, &model.Request{}, id)
	})
	if err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("request", "delete")
	log.Info("Request deleted", zap.String("request_id", id), zap.Int64("trials_detached", detached))
	return response.OK(c, echo.Map{"id": id, "trials_detached": detached})
}
