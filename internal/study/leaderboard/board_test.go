package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybot/internal/study"
	"studybot/internal/study/ledger"
)

func TestRankSortsDescendingAndTruncates(t *testing.T) {
	l := ledger.New()
	l.CreditFocus(1, 30)
	l.CreditPresence(2, 90)
	l.CreditFocus(3, 30)
	l.CreditPresence(1, 5)

	rows := Rank(l.Snapshot(), 10)
	require.Len(t, rows, 3)
	assert.Equal(t, []study.UserID{2, 1, 3}, users(rows))
	assert.Equal(t, []int{1, 2, 3}, []int{rows[0].Rank, rows[1].Rank, rows[2].Rank})
	assert.Equal(t, 35, rows[1].Minutes)
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].Minutes, rows[i].Minutes)
	}

	assert.Len(t, Rank(l.Snapshot(), 2), 2)
	assert.Empty(t, Rank(nil, 10))
}

func TestRankTiesKeepFirstCreditOrder(t *testing.T) {
	l := ledger.New()
	l.CreditFocus(5, 10)
	l.CreditFocus(4, 10)
	l.CreditFocus(6, 10)
	for i := 0; i < 5; i++ {
		assert.Equal(t, []study.UserID{5, 4, 6}, users(Rank(l.Snapshot(), 0)))
	}
}

func TestNextWeekStart(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"monday morning", time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{"monday midnight", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextWeekStart(tt.now, time.UTC))
		})
	}
}

func TestCheckAndReset(t *testing.T) {
	start := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	l := ledger.New()
	var got []Reset
	b := NewBoard(l, start, time.UTC, func(ctx context.Context, r Reset) error {
		got = append(got, r)
		return nil
	})
	l.CreditFocus(1, 50)
	l.CreditPresence(2, 20)

	reset, err := b.CheckAndReset(context.Background(), start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Equal(t, 50, l.CombinedMinutes(1))

	// the check tick may arrive late; the reset still happens once
	late := time.Date(2026, 3, 9, 0, 4, 0, 0, time.UTC)
	reset, err = b.CheckAndReset(context.Background(), late)
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Zero(t, l.CombinedMinutes(1))
	assert.Zero(t, l.CombinedMinutes(2))
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), b.Deadline())

	require.Len(t, got, 1)
	assert.Equal(t, []study.UserID{1, 2}, users(got[0].Final))
	assert.Equal(t, b.Deadline(), got[0].NextDeadline)

	reset, _ = b.CheckAndReset(context.Background(), late.Add(time.Minute))
	assert.False(t, reset)
}

func TestCheckAndResetSkipsMissedWeeks(t *testing.T) {
	start := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	b := NewBoard(ledger.New(), start, time.UTC, nil)
	reset, err := b.CheckAndReset(context.Background(), time.Date(2026, 3, 25, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Equal(t, time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC), b.Deadline())
}

func TestResetStandsWhenAnnounceFails(t *testing.T) {
	start := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	l := ledger.New()
	l.CreditFocus(1, 5)
	b := NewBoard(l, start, time.UTC, func(context.Context, Reset) error { return errors.New("channel gone") })
	reset, err := b.CheckAndReset(context.Background(), b.Deadline())
	assert.True(t, reset)
	assert.Error(t, err)
	assert.Zero(t, l.CombinedMinutes(1))
}

func TestAutoAnnounce(t *testing.T) {
	started := time.Date(2026, 3, 8, 20, 30, 0, 0, time.UTC) // Sunday
	a := NewAutoAnnounce(time.Sunday, 20, 10*time.Minute, started, time.UTC)

	assert.False(t, a.Due(started.Add(5*time.Minute)), "cold start window")
	assert.True(t, a.Due(started.Add(11*time.Minute)))
	assert.False(t, a.Due(started.Add(20*time.Minute)), "same hour")
	assert.False(t, a.Due(started.Add(40*time.Minute)), "wrong hour")

	nextWeek := time.Date(2026, 3, 15, 20, 1, 0, 0, time.UTC)
	assert.True(t, a.Due(nextWeek))
	assert.False(t, a.Due(nextWeek.Add(30*time.Minute)))
}

func users(rows []Row) []study.UserID {
	out := make([]study.UserID, len(rows))
	for i, r := range rows {
		out[i] = r.User
	}
	return out
}
