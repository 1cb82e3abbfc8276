package handler

import (
	"context"
	"strings"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type trialRequest struct {
	PlayerID    *string   `json:"player_id" validate:"omitempty,max=36"`
	RequestID   *string   `json:"request_id" validate:"omitempty,max=36"`
	ScheduledAt *flexTime `json:"scheduled_at"`
	Location    *string   `json:"location" validate:"omitempty,max=200"`
	Status      *string   `json:"status"`
	Rating      *float64  `json:"rating" validate:"omitempty,min=0,max=10"`
	Feedback    *string   `json:"feedback"`
	Notes       *string   `json:"notes"`
}

func (in *trialRequest) apply(t *model.Trial) ([]string, error) {
	cols := []string{}
	if in.PlayerID != nil {
		t.PlayerID = trimmed(in.PlayerID)
		cols = append(cols, "player_id")
	}
	if in.RequestID != nil {
		t.RequestID = nullable(in.RequestID)
		cols = append(cols, "request_id")
	}
	if in.ScheduledAt != nil {
		t.ScheduledAt = in.ScheduledAt.Time
		cols = append(cols, "scheduled_at")
	}
	if in.Location != nil {
		t.Location = trimmed(in.Location)
		cols = append(cols, "location")
	}
	if in.Status != nil {
		status := model.TrialStatus(strings.ToUpper(trimmed(in.Status)))
		if !model.ValidTrialStatus(status) {
			return nil, fieldErrors{"status": "is not a known trial status"}
		}
		t.Status = status
		cols = append(cols, "status")
	}
	if in.Rating != nil {
		t.Rating = in.Rating
		cols = append(cols, "rating")
	}
	if in.Feedback != nil {
		t.Feedback = *in.Feedback
		cols = append(cols, "feedback")
	}
	if in.Notes != nil {
		t.Notes = *in.Notes
		cols = append(cols, "notes")
	}
	return cols, nil
}

// checkTrial validates required fields and that the referenced player and
// request belong to the same tenant.
func checkTrial(ctx context.Context, store *scoped.Store, t *model.Trial) error {
	fields := fieldErrors{}
	if t.PlayerID == "" {
		fields["player_id"] = "is required"
	}
	if t.ScheduledAt.IsZero() {
		fields["scheduled_at"] = "is required"
	}
	if len(fields) > 0 {
		return fields
	}

	ok, err := store.Exists(ctx, &model.Player{}, t.PlayerID)
	if err != nil {
		return err
	}
	if !ok {
		fields["player_id"] = "does not reference a player of this tenant"
	}
	if t.RequestID != nil {
		ok, err := store.Exists(ctx, &model.Request{}, *t.RequestID)
		if err != nil {
			return err
		}
		if !ok {
			fields["request_id"] = "does not reference a request of this tenant"
		}
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// ListTrials lists trials, optionally filtered by status, player and request.
func ListTrials(c echo.Context) error {
	store, _ := tenantStore(c)
	playerID := c.QueryParam("player_id")
	requestID := c.QueryParam("request_id")

	trials := []model.Trial{}
	err := store.List(c.Request().Context(), &trials,
		scoped.ByStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))),
		func(db *scoped.DB) *scoped.DB {
			if playerID != "" {
				db = db.Where("player_id = ?", playerID)
			}
			if requestID != "" {
				db = db.Where("request_id = ?", requestID)
			}
			return db
		},
		scoped.Preload("Player"),
		scoped.OrderBy("scheduled_at ASC"),
	)
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, trials)
}

// GetTrial returns one trial with its player and request.
func GetTrial(c echo.Context) error {
	store, _ := tenantStore(c)

	var t model.Trial
	if err := store.Get(c.Request().Context(), &t, c.Param("id"), scoped.Preload("Player"), scoped.Preload("Request")); err != nil {
		return fail(c, err)
	}
	return response.OK(c, t)
}

// CreateTrial schedules a trial.
func CreateTrial(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	ctx := c.Request().Context()

	var in trialRequest
	if err := bindRequest(c, &in); err != nil {
		return fail(c, err)
	}
	t := model.Trial{Status: model.TrialScheduled}
	if _, err := in.apply(&t); err != nil {
		return fail(c, err)
	}
	if err := checkTrial(ctx, store, &t); err != nil {
		return fail(c, err)
	}

	if err := store.Create(ctx, &t); err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("trial", "create")
	log.Info("Trial created", zap.String("trial_id", t.ID), zap.String("player_id", t.PlayerID))
	return response.Created(c, t, "trial created")
}

// UpdateTrial changes the provided fields of a trial.
func UpdateTrial(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	ctx := c.Request().Context()

	var in trialRequest
	if err := bindRequest(c, &in); err != nil {
		return fail(c, err)
	}
	cols, err := in.apply(&model.Trial{})
	if err != nil {
		return fail(c, err)
	}

	var t model.Trial
	err = store.Update(ctx, &t, c.Param("id"), func() error {
		if _, err := in.apply(&t); err != nil {
			return err
		}
		return checkTrial(ctx, store, &t)
	}, append(cols, "updated_at")...)
	if err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("trial", "update")
	log.Info("Trial updated", zap.String("trial_id", t.ID), zap.Strings("columns", cols))
	return response.OK(c, t)
}

// DeleteTrial deletes a trial.
func DeleteTrial(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	id := c.Param("id")

	if err := store.Delete(c.Request().Context(), &model.Trial{}, id); err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("trial", "delete")
	log.Info("Trial deleted", zap.String("trial_id", id))
	return response.Message(c, "trial deleted")
}
