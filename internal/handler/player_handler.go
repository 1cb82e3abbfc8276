package handler

import (
	"strings"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type playerRequest struct {
	FirstName   *string   `json:"first_name" validate:"omitempty,max=100"`
	LastName    *string   `json:"last_name" validate:"omitempty,max=100"`
	DateOfBirth *flexTime `json:"date_of_birth"`
	Nationality *string   `json:"nationality" validate:"omitempty,max=100"`
	Position    *string   `json:"position" validate:"omitempty,max=100"`
	Positions   []string  `json:"positions" validate:"omitempty,max=10,dive,max=10"`
	Club        *string   `json:"club" validate:"omitempty,max=200"`
	Height      *int      `json:"height" validate:"omitempty,min=100,max=250"`
	Weight      *int      `json:"weight" validate:"omitempty,min=30,max=200"`
	Notes       *string   `json:"notes"`
	Tags        []string  `json:"tags" validate:"omitempty,max=50,dive,max=50"`
	Rating      *float64  `json:"rating" validate:"omitempty,min=0,max=10"`
	AvatarURL   *string   `json:"avatar_url"`
}

// apply copies the provided fields onto p and returns the columns touched.
func (r *playerRequest) apply(p *model.Player) ([]string, error) {
	cols := []string{}
	if r.FirstName != nil {
		p.FirstName = trimmed(r.FirstName)
		cols = append(cols, "first_name")
	}
	if r.LastName != nil {
		p.LastName = trimmed(r.LastName)
		cols = append(cols, "last_name")
	}
	if r.DateOfBirth != nil {
		p.DateOfBirth = r.DateOfBirth.ptr()
		cols = append(cols, "date_of_birth")
	}
	if r.Nationality != nil {
		p.Nationality = trimmed(r.Nationality)
		cols = append(cols, "nationality")
	}
	if r.Positions != nil || r.Position != nil {
		codes := append([]string{}, r.Positions...)
		if r.Position != nil {
			codes = append(codes, *r.Position)
		}
		p.Position = model.JoinPositions(codes)
		cols = append(cols, "position")
	}
	if r.Club != nil {
		p.Club = trimmed(r.Club)
		cols = append(cols, "club")
	}
	if r.Height != nil {
		p.Height = r.Height
		cols = append(cols, "height")
	}
	if r.Weight != nil {
		p.Weight = r.Weight
		cols = append(cols, "weight")
	}
	if r.Notes != nil {
		p.Notes = *r.Notes
		cols = append(cols, "notes")
	}
	if r.Tags != nil {
		tags := make([]string, 0, len(r.Tags))
		for _, t := range r.Tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if strings.HasPrefix(strings.ToLower(t), model.AvatarTagPrefix) {
				return nil, fieldErrors{"tags": "avatar URLs belong in avatar_url"}
			}
			tags = append(tags, t)
		}
		p.Tags = tags
		cols = append(cols, "tags")
	}
	if r.Rating != nil {
		p.Rating = r.Rating
		cols = append(cols, "rating")
	}
	if r.AvatarURL != nil {
		p.AvatarURL = nullable(r.AvatarURL)
		cols = append(cols, "avatar_url")
	}
	return cols, nil
}

func (r *playerRequest) checkRequired(p *model.Player) error {
	fields := fieldErrors{}
	if p.FirstName == "" {
		fields["first_name"] = "is required"
	}
	if p.LastName == "" {
		fields["last_name"] = "is required"
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// playerFilters applies the q, position, nationality and tag query filters.
func playerFilters(c echo.Context) scoped.Scope {
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))
	position := strings.ToUpper(strings.TrimSpace(c.QueryParam("position")))
	nationality := strings.TrimSpace(c.QueryParam("nationality"))
	tag := strings.TrimSpace(c.QueryParam("tag"))

	return func(db *scoped.DB) *scoped.DB {
		if q != "" {
			like := "%" + escapeLike(q) + "%"
			db = db.Where(`(LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\' OR LOWER(club) LIKE ? ESCAPE '\')`, like, like, like)
		}
		if position != "" {
			db = db.Where(`(',' || position || ',') LIKE ? ESCAPE '\'`, "%,"+escapeLike(position)+",%")
		}
		if nationality != "" {
			db = db.Where("LOWER(nationality) = LOWER(?)", nationality)
		}
		if tag != "" {
			db = db.Where(`tags LIKE ? ESCAPE '\'`, `%"`+escapeLike(tag)+`"%`)
		}
		return db
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ListPlayers lists the tenant's players.
func ListPlayers(c echo.Context) error {
	store, _ := tenantStore(c)

	players := []model.Player{}
	if err := store.List(c.Request().Context(), &players, playerFilters(c), scoped.OrderBy("last_name ASC, first_name ASC")); err != nil {
		return fail(c, err)
	}
	return response.OK(c, players)
}

// GetPlayer returns one player.
func GetPlayer(c echo.Context) error {
	store, _ := tenantStore(c)

	var player model.Player
	if err := store.Get(c.Request().Context(), &player, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return response.OK(c, player)
}

// CreatePlayer adds a player to the tenant.
func CreatePlayer(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)

	var req playerRequest
	if err := bindRequest(c, &req); err != nil {
		return fail(c, err)
	}
	player := model.Player{Tags: []string{}}
	if _, err := req.apply(&player); err != nil {
		return fail(c, err)
	}
	if err := req.checkRequired(&player); err != nil {
		return fail(c, err)
	}

	if err := store.Create(c.Request().Context(), &player); err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("player", "create")
	log.Info("Player created", zap.String("player_id", player.ID))
	return response.Created(c, player, "player created")
}

// UpdatePlayer changes the provided fields of a player.
func UpdatePlayer(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)

	var req playerRequest
	if err := bindRequest(c, &req); err != nil {
		return fail(c, err)
	}
	cols, err := req.apply(&model.Player{})
	if err != nil {
		return fail(c, err)
	}

	var player model.Player
	err = store.Update(c.Request().Context(), &player, c.Param("id"), func() error {
		if _, err := req.apply(&player); err != nil {
			return err
		}
		return req.checkRequired(&player)
	}, append(cols, "updated_at")...)
	if err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("player", "update")
	log.Info("Player updated", zap.String("player_id", player.ID), zap.Strings("columns", cols))
	return response.OK(c, player)
}

// DeletePlayer deletes a player and its trials in one transaction.
func DeletePlayer(c echo.Context) error {
	log := logger.FromContext(c)
	store, _ := tenantStore(c)
	ctx := c.Request().Context()
	id := c.Param("id")

	var trials int64
	err := store.Transaction(ctx, func(tx *scoped.Store) error {
		ok, err := tx.Exists(ctx, &model.Player{}, id)
		if err != nil {
			return err
		}
		if !ok {
			return scoped.ErrNotFoundOrForbidden
		}
		res := tx.Query(ctx, &model.Trial{}).Where("player_id = ?", id).Delete(&model.Trial{})
		if res.Error != nil {
			return res.Error
		}
		trials = res.RowsAffected
		return tx.Delete(ctx, &model.Player{}, id)
	})
	if err != nil {
		return fail(c, err)
	}

	prometheus.RecordTenantOperation("player", "delete")
	log.Info("Player deleted", zap.String("player_id", id), zap.Int64("trials_deleted", trials))
	return response.OK(c, echo.Map{"id": id, "trials_deleted": trials})
}
