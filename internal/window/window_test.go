package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestEvaluate(t *testing.T) {
	base := Input{
		OpenAt:    at("2026-06-01T00:00:00Z"),
		CloseAt:   at("2026-08-31T23:00:00Z"),
		GraceDays: 3,
	}

	tests := []struct {
		name     string
		in       Input
		now      string
		want     Status
		wantDays int
	}{
		{name: "no window", in: Input{Deadline: at("2026-07-01T00:00:00Z")}, now: "2026-06-10T00:00:00Z", want: NoWindow, wantDays: -1},
		{name: "upcoming", in: base, now: "2026-05-29T12:00:00Z", want: Upcoming, wantDays: 3},
		{name: "open", in: base, now: "2026-07-01T00:00:00Z", want: Open, wantDays: 62},
		{name: "opens exactly now", in: base, now: "2026-06-01T00:00:00Z", want: Open, wantDays: 92},
		{name: "closing soon", in: base, now: "2026-08-25T23:00:00Z", want: ClosingSoon, wantDays: 6},
		{name: "seven days out is closing soon", in: base, now: "2026-08-24T23:00:00Z", want: ClosingSoon, wantDays: 7},
		{name: "at close", in: base, now: "2026-08-31T23:00:00Z", want: ClosingSoon, wantDays: 0},
		{name: "grace", in: base, now: "2026-09-02T00:00:00Z", want: Grace, wantDays: 2},
		{name: "closed after grace", in: base, now: "2026-09-04T00:00:00Z", want: Closed, wantDays: -1},
		{name: "closed without grace", in: Input{OpenAt: base.OpenAt, CloseAt: base.CloseAt}, now: "2026-09-01T00:00:00Z", want: Closed, wantDays: -1},
		{name: "open ended", in: Input{OpenAt: base.OpenAt}, now: "2027-01-01T00:00:00Z", want: Open, wantDays: -1},
		{
			name: "earlier deadline closes the window",
			in:   Input{OpenAt: base.OpenAt, CloseAt: base.CloseAt, Deadline: at("2026-07-15T00:00:00Z")},
			now:  "2026-07-20T00:00:00Z", want: Closed, wantDays: -1,
		},
		{
			name: "later deadline is ignored",
			in:   Input{OpenAt: base.OpenAt, CloseAt: at("2026-07-15T00:00:00Z"), Deadline: at("2026-08-31T00:00:00Z")},
			now:  "2026-07-10T00:00:00Z", want: ClosingSoon, wantDays: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Evaluate(tt.in, *at(tt.now))
			assert.Equal(t, tt.want, b.Status)
			if tt.wantDays < 0 {
				assert.Nil(t, b.DaysRemaining)
				return
			}
			require.NotNil(t, b.DaysRemaining)
			assert.Equal(t, tt.wantDays, *b.DaysRemaining)
		})
	}
}

func TestEffectiveClose(t *testing.T) {
	in := Input{CloseAt: at("2026-08-31T00:00:00Z"), Deadline: at("2026-08-01T00:00:00Z")}
	assert.Equal(t, *in.Deadline, *in.EffectiveClose())

	b := Evaluate(in, *at("2026-07-01T00:00:00Z"))
	require.NotNil(t, b.ClosesAt)
	assert.Equal(t, *in.Deadline, *b.ClosesAt)
	assert.True(t, b.IsOpen())
}
