package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAI struct {
	key    bool
	text   string
	err    error
	prompt string
}

func (f *fakeAI) Configured() bool { return f.key }

func (f *fakeAI) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

type fakeRenderer struct {
	err  error
	html string
}

func (f *fakeRenderer) Configured() bool { return true }

func (f *fakeRenderer) Render(_ context.Context, html []byte) ([]byte, error) {
	f.html = string(html)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF"), nil
}

func fixture() (model.Player, []model.Trial) {
	dob := time.Date(2004, 5, 10, 0, 0, 0, 0, time.UTC)
	height := 181
	r1, r2 := 7.0, 8.0
	p := model.Player{
		ID: "p1", FirstName: "Ana", LastName: "<Silva>", DateOfBirth: &dob,
		Position: "LW,RW", Club: "Porto", Height: &height, Tags: []string{"fast"},
	}
	trials := []model.Trial{
		{ID: "t1", PlayerID: "p1", Status: model.TrialCompleted, Rating: &r1, Feedback: "Good first touch",
			ScheduledAt: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)},
		{ID: "t2", PlayerID: "p1", Status: model.TrialCompleted, Rating: &r2,
			ScheduledAt: time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)},
		{ID: "t3", PlayerID: "p1", Status: model.TrialScheduled,
			ScheduledAt: time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC)},
	}
	return p, trials
}

func newService(ai TextGenerator, pdf Renderer) *Service {
	s := NewService(ai, pdf)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestComposeWithoutKeyUsesPlaceholder(t *testing.T) {
	p, trials := fixture()
	ai := &fakeAI{}
	r, err := newService(ai, nil).Compose(context.Background(), "Acme FC", p, trials)
	require.NoError(t, err)

	assert.Equal(t, PlaceholderSummary, r.Summary)
	assert.False(t, r.AIGenerated)
	assert.Empty(t, ai.prompt)
	require.NotNil(t, r.Age)
	assert.Equal(t, 21, *r.Age)
	assert.Equal(t, []string{"LW", "RW"}, r.Positions)
	assert.Equal(t, 3, r.Stats.Total)
	assert.Equal(t, 2, r.Stats.Completed)
	assert.Equal(t, 1, r.Stats.Upcoming)
	require.NotNil(t, r.Stats.AverageRating)
	assert.InDelta(t, 7.5, *r.Stats.AverageRating, 0.001)
}

func TestComposeWithAI(t *testing.T) {
	p, trials := fixture()
	ai := &fakeAI{key: true, text: "Direct winger."}
	r, err := newService(ai, nil).Compose(context.Background(), "Acme FC", p, trials)
	require.NoError(t, err)

	assert.Equal(t, "Direct winger.", r.Summary)
	assert.True(t, r.AIGenerated)
	assert.Contains(t, ai.prompt, "Positions: LW, RW")
	assert.Contains(t, ai.prompt, "average rating 7.5")
	assert.Contains(t, ai.prompt, "Good first touch")
}

func TestComposeAIFailure(t *testing.T) {
	p, trials := fixture()
	_, err := newService(&fakeAI{key: true, err: errors.New("429")}, nil).Compose(context.Background(), "Acme", p, trials)
	assert.Equal(t, apperror.EBadGateway, apperror.ErrorCode(err))
	assert.Equal(t, "text generation failed", apperror.ErrorMessage(err))
}

func TestHTMLEscapes(t *testing.T) {
	p, trials := fixture()
	s := newService(nil, nil)
	r, err := s.Compose(context.Background(), "Acme FC", p, trials)
	require.NoError(t, err)

	html, err := s.HTML(r)
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "Ana &lt;Silva&gt;")
	assert.Contains(t, out, "181 cm")
	assert.Contains(t, out, "Good first touch")
	assert.NotContains(t, out, "<Silva>")
}

func TestPDF(t *testing.T) {
	p, trials := fixture()

	t.Run("renders", func(t *testing.T) {
		rr := &fakeRenderer{}
		s := newService(nil, rr)
		r, err := s.Compose(context.Background(), "Acme FC", p, trials)
		require.NoError(t, err)
		out, err := s.PDF(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(out))
		assert.Contains(t, rr.html, "<!DOCTYPE html>")
	})

	t.Run("timeout", func(t *testing.T) {
		s := newService(nil, &fakeRenderer{err: fmt.Errorf("pdf render: %w", context.DeadlineExceeded)})
		r, err := s.Compose(context.Background(), "Acme FC", p, trials)
		require.NoError(t, err)
		_, err = s.PDF(context.Background(), r)
		assert.Equal(t, apperror.EGatewayTimeout, apperror.ErrorCode(err))
	})

	t.Run("not configured", func(t *testing.T) {
		s := newService(nil, nil)
		r, err := s.Compose(context.Background(), "Acme FC", p, trials)
		require.NoError(t, err)
		_, err = s.PDF(context.Background(), r)
		assert.Equal(t, apperror.EBadGateway, apperror.ErrorCode(err))
	})
}

func TestAgeAt(t *testing.T) {
	date := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}
	tests := []struct {
		name string
		dob  string
		now  string
		want int
	}{
		{name: "leap-year birth on birthday", dob: "2004-03-01", now: "2026-03-01", want: 22},
		{name: "leap-year birth day before", dob: "2004-03-01", now: "2026-02-28", want: 21},
		{name: "evaluated in leap year", dob: "2003-03-01", now: "2024-03-01", want: 21},
		{name: "evaluated in leap year day before", dob: "2003-03-01", now: "2024-02-29", want: 20},
		{name: "29 February on 28 February", dob: "2004-02-29", now: "2026-02-28", want: 21},
		{name: "29 February on 1 March", dob: "2004-02-29", now: "2026-03-01", want: 22},
		{name: "29 February in leap year", dob: "2004-02-29", now: "2028-02-29", want: 24},
		{name: "late December", dob: "2004-12-31", now: "2026-12-30", want: 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dob := date(tt.dob)
			got := ageAt(&dob, date(tt.now))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, ageAt(nil, time.Now()))
}
