// Package report assembles scouting reports for a player: facts from the
// database, prose from a text-generation API, HTML, and optionally PDF.
package report

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/logger"

	"go.uber.org/zap"
)

// PlaceholderSummary stands in for the prose when no API key is configured.
const PlaceholderSummary = "Automated summary unavailable: no text-generation API key is configured."

const systemPrompt = "You are a football scout writing concise, factual scouting reports " +
	"for a club's recruitment staff. Use only the facts provided. Three short paragraphs."

var (
	ErrTextGeneration = apperror.New(apperror.EBadGateway, "text generation failed")
	ErrRenderTimeout  = apperror.New(apperror.EGatewayTimeout, "pdf rendering timed out")
	ErrRender         = apperror.New(apperror.EBadGateway, "pdf rendering failed")
)

// TextGenerator produces prose from a prompt.
type TextGenerator interface {
	Configured() bool
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Renderer turns HTML into PDF.
type Renderer interface {
	Configured() bool
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// TrialStats summarizes a player's trials.
type TrialStats struct {
	Total         int      `json:"total"`
	Completed     int      `json:"completed"`
	Upcoming      int      `json:"upcoming"`
	AverageRating *float64 `json:"average_rating,omitempty"`
}

// Report is a composed scouting report.
type Report struct {
	TenantName  string        `json:"tenant_name"`
	Player      model.Player  `json:"player"`
	Age         *int          `json:"age,omitempty"`
	Positions   []string      `json:"positions"`
	Trials      []model.Trial `json:"trials"`
	Stats       TrialStats    `json:"stats"`
	Summary     string        `json:"summary"`
	AIGenerated bool          `json:"ai_generated"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type Service struct {
	ai  TextGenerator
	pdf Renderer
	now func() time.Time
}

func NewService(ai TextGenerator, pdf Renderer) *Service {
	return &Service{ai: ai, pdf: pdf, now: time.Now}
}

// Compose builds the report for player and its trials.
func (s *Service) Compose(ctx context.Context, tenantName string, player model.Player, trials []model.Trial) (*Report, error) {
	now := s.now().UTC()
	r := &Report{
		TenantName:  tenantName,
		Player:      player,
		Age:         ageAt(player.DateOfBirth, now),
		Positions:   player.Positions(),
		Trials:      trials,
		Stats:       statsFor(trials, now),
		GeneratedAt: now,
	}

	if s.ai == nil || !s.ai.Configured() {
		r.Summary = PlaceholderSummary
		return r, nil
	}

	start := time.Now()
	text, err := s.ai.Complete(ctx, systemPrompt, Prompt(r))
	if err != nil {
		logger.FromStdContext(ctx).Warn("Text generation failed", zap.String("player_id", player.ID), zap.Error(err))
		return nil, &apperror.Error{Code: apperror.EBadGateway, Msg: ErrTextGeneration.Msg, Op: "report.Compose", Err: err}
	}
	logger.FromStdContext(ctx).Debug("Summary generated",
		zap.String("player_id", player.ID), zap.Duration("took", time.Since(start)))
	r.Summary = text
	r.AIGenerated = true
	return r, nil
}

// Prompt renders the facts of r as the user prompt.
func Prompt(r *Report) string {
	var b strings.Builder
	p := r.Player
	fmt.Fprintf(&b, "Player: %s\n", p.FullName())
	if r.Age != nil {
		fmt.Fprintf(&b, "Age: %d\n", *r.Age)
	}
	if len(r.Positions) > 0 {
		fmt.Fprintf(&b, "Positions: %s\n", strings.Join(r.Positions, ", "))
	}
	for _, f := range []struct{ k, v string }{{"Nationality", p.Nationality}, {"Club", p.Club}} {
		if f.v != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.k, f.v)
		}
	}
	if p.Height != nil {
		fmt.Fprintf(&b, "Height: %d cm\n", *p.Height)
	}
	if p.Weight != nil {
		fmt.Fprintf(&b, "Weight: %d kg\n", *p.Weight)
	}
	if p.Rating != nil {
		fmt.Fprintf(&b, "Scout rating: %.1f\n", *p.Rating)
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(p.Tags, ", "))
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Scout notes: %s\n", p.Notes)
	}
	fmt.Fprintf(&b, "Trials: %d total, %d completed", r.Stats.Total, r.Stats.Completed)
	if r.Stats.AverageRating != nil {
		fmt.Fprintf(&b, ", average rating %.1f", *r.Stats.AverageRating)
	}
	b.WriteString("\n")
	for _, t := range r.Trials {
		if t.Feedback == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.ScheduledAt.Format("2006-01-02"), t.Status, t.Feedback)
	}
	return b.String()
}

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2 Jan 2006") },
	"rating": func(f *float64) string {
		if f == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f", *f)
	},
	"paragraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(s, "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
}).Parse(reportTemplate))

// HTML renders r as a standalone HTML document.
func (s *Service) HTML(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r); err != nil {
		return nil, apperror.Wrap(err, apperror.EInternal, "report.HTML")
	}
	return buf.Bytes(), nil
}

// PDF renders r as HTML and converts it.
func (s *Service) PDF(ctx context.Context, r *Report) ([]byte, error) {
	if s.pdf == nil || !s.pdf.Configured() {
		return nil, &apperror.Error{Code: apperror.EBadGateway, Msg: "pdf renderer not configured"}
	}
	html, err := s.HTML(r)
	if err != nil {
		return nil, err
	}
	out, err := s.pdf.Render(ctx, html)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, &apperror.Error{Code: apperror.EGatewayTimeout, Msg: ErrRenderTimeout.Msg, Op: "report.PDF", Err: err}
	case err != nil:
		return nil, &apperror.Error{Code: apperror.EBadGateway, Msg: ErrRender.Msg, Op: "report.PDF", Err: err}
	}
	return out, nil
}

func ageAt(dob *time.Time, now time.Time) *int {
	if dob == nil {
		return nil
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return &age
}

func statsFor(trials []model.Trial, now time.Time) TrialStats {
	st := TrialStats{Total: len(trials)}
	var sum float64
	var rated int
	for _, t := range trials {
		switch t.Status {
		case model.TrialCompleted:
			st.Completed++
		case model.TrialScheduled:
			if t.ScheduledAt.After(now) {
				st.Upcoming++
			}
		}
		if t.Rating != nil {
			sum += *t.Rating
			rated++
		}
	}
	if rated > 0 {
		avg := sum / float64(rated)
		st.AverageRating = &avg
	}
	return st
}
