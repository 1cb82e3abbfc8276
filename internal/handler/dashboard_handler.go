package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/internal/window"
	"github.com/suteetoe/scouting-service/pkg/apperror"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// DashboardStats is the tenant overview.
type DashboardStats struct {
	Players struct {
		Total         int64            `json:"total"`
		AddedLast30d  int64            `json:"added_last_30_days"`
		ByPosition    map[string]int64 `json:"by_position"`
		AverageRating *float64         `json:"average_rating"`
	} `json:"players"`
	Requests struct {
		ByStatus    map[string]int64 `json:"by_status"`
		ByPriority  map[string]int64 `json:"by_priority"`
		OpenWindows int64            `json:"open_windows"`
		ClosingSoon int64            `json:"closing_soon"`
	} `json:"requests"`
	Trials struct {
		ByStatus               map[string]int64 `json:"by_status"`
		UpcomingNext7d         int64            `json:"upcoming_next_7_days"`
		CompletedAverageRating *float64         `json:"completed_average_rating"`
	} `json:"trials"`
	Events struct {
		UpcomingNext7d int64            `json:"upcoming_next_7_days"`
		ByType         map[string]int64 `json:"by_type"`
	} `json:"events"`
	Members int64 `json:"members"`
}

type groupCount struct {
	GroupKey string
	Count    int64
}

func countBy(ctx context.Context, store *scoped.Store, table any, column string, scopes ...scoped.Scope) (map[string]int64, error) {
	var rows []groupCount
	err := store.Query(ctx, table).
		Scopes(scopes...).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, apperror.Wrap(err, apperror.EInternal, "dashboard.countBy")
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Count
	}
	return out, nil
}

func average(ctx context.Context, store *scoped.Store, table any, column string, scopes ...scoped.Scope) (*float64, error) {
	var avg sql.NullFloat64
	err := store.Query(ctx, table).
		Scopes(scopes...).
		Select("AVG(" + column + ")").
		Row().Scan(&avg)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.EInternal, "dashboard.average")
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

func between(column string, from, to time.Time) scoped.Scope {
	return func(db *scoped.DB) *scoped.DB {
		return db.Where(column+" >= ? AND "+column+" < ?", from, to)
	}
}

// GetDashboardStats fans the overview queries out concurrently. Any failure
// fails the whole response.
func GetDashboardStats(c echo.Context) error {
	store, _ := tenantStore(c)
	now := time.Now().UTC()
	week := now.Add(7 * 24 * time.Hour)

	var stats DashboardStats
	g, ctx := errgroup.WithContext(c.Request().Context())

	g.Go(func() (err error) {
		stats.Players.Total, err = store.Count(ctx, &model.Player{})
		return err
	})
	g.Go(func() (err error) {
		stats.Players.AddedLast30d, err = store.Count(ctx, &model.Player{}, func(db *scoped.DB) *scoped.DB {
			return db.Where("created_at >= ?", now.AddDate(0, 0, -30))
		})
		return err
	})
	g.Go(func() error {
		var positions []string
		if err := store.Query(ctx, &model.Player{}).Where("position <> ''").Pluck("position", &positions).Error; err != nil {
			return apperror.Wrap(err, apperror.EInternal, "dashboard.positions")
		}
		byPosition := map[string]int64{}
		for _, p := range positions {
			for _, code := range model.SplitPositions(p) {
				byPosition[code]++
			}
		}
		stats.Players.ByPosition = byPosition
		return nil
	})
	g.Go(func() (err error) {
		stats.Players.AverageRating, err = average(ctx, store, &model.Player{}, "rating")
		return err
	})
	g.Go(func() (err error) {
		stats.Requests.ByStatus, err = countBy(ctx, store, &model.Request{}, "status")
		return err
	})
	g.Go(func() (err error) {
		stats.Requests.ByPriority, err = countBy(ctx, store, &model.Request{}, "priority")
		return err
	})
	g.Go(func() error {
		var requests []model.Request
		err := store.List(ctx, &requests, func(db *scoped.DB) *scoped.DB {
			return db.Select("id", "window_open_at", "window_close_at", "deadline", "grace_days").
				Where("status NOT IN ?", []string{string(model.RequestCompleted), string(model.RequestCancelled), string(model.RequestExpired)}).
				Where("(window_open_at IS NOT NULL OR window_close_at IS NOT NULL)")
		})
		if err != nil {
			return err
		}
		for i := range requests {
			badge := window.Evaluate(windowInput(&requests[i]), now)
			if badge.IsOpen() {
				stats.Requests.OpenWindows++
			}
			if badge.Status == window.ClosingSoon {
				stats.Requests.ClosingSoon++
			}
		}
		return nil
	})
	g.Go(func() (err error) {
		stats.Trials.ByStatus, err = countBy(ctx, store, &model.Trial{}, "status")
		return err
	})
	g.Go(func() (err error) {
		stats.Trials.UpcomingNext7d, err = store.Count(ctx, &model.Trial{},
			scoped.ByStatus(string(model.TrialScheduled)), between("scheduled_at", now, week))
		return err
	})
	g.Go(func() (err error) {
		stats.Trials.CompletedAverageRating, err = average(ctx, store, &model.Trial{}, "rating",
			scoped.ByStatus(string(model.TrialCompleted)))
		return err
	})
	g.Go(func() (err error) {
		stats.Events.UpcomingNext7d, err = store.Count(ctx, &model.CalendarEvent{}, between("start_time", now, week))
		return err
	})
	g.Go(func() (err error) {
		stats.Events.ByType, err = countBy(ctx, store, &model.CalendarEvent{}, "type")
		return err
	})
	g.Go(func() (err error) {
		stats.Members, err = store.Count(ctx, &model.TenantMembership{})
		return err
	})

	if err := g.Wait(); err != nil {
		return fail(c, err)
	}
	return response.OK(c, stats)
}
