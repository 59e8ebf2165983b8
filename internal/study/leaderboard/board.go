// Package leaderboard ranks weekly study time and resets it on a weekly boundary.
package leaderboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"studybot/internal/study"
	"studybot/internal/study/ledger"
)

const DefaultTopN = 10

// Row is one ranked line. Rank starts at 1.
type Row struct {
	Rank     int
	User     study.UserID
	Minutes  int
	Focus    int
	Presence int
}

// Rank orders standings by combined minutes, highest first. Ties keep input order,
// which for ledger snapshots is the order users first earned time this week.
// topN <= 0 returns every row.
func Rank(standings []ledger.Standing, topN int) []Row {
	sorted := make([]ledger.Standing, 0, len(standings))
	for _, s := range standings {
		if s.Combined() > 0 {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Combined() > sorted[j].Combined() })
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}
	rows := make([]Row, len(sorted))
	for i, s := range sorted {
		rows[i] = Row{Rank: i + 1, User: s.User, Minutes: s.Combined(), Focus: s.Focus, Presence: s.Presence}
	}
	return rows
}

// Reset describes one weekly reset.
type Reset struct {
	At           time.Time
	Epoch        uint64
	Final        []Row
	NextDeadline time.Time
}

// Announcer posts a reset to the community channel.
type Announcer func(ctx context.Context, r Reset) error

// Board owns the reset deadline for a ledger.
type Board struct {
	ledger   *ledger.Ledger
	loc      *time.Location
	announce Announcer

	mu       sync.Mutex
	deadline time.Time
	topN     int
}

// NewBoard schedules the first reset for the next Monday 00:00 in loc after now.
func NewBoard(l *ledger.Ledger, now time.Time, loc *time.Location, announce Announcer) *Board {
	if loc == nil {
		loc = time.UTC
	}
	return &Board{
		ledger:   l,
		loc:      loc,
		announce: announce,
		deadline: NextWeekStart(now, loc),
		topN:     DefaultTopN,
	}
}

func (b *Board) SetTopN(n int) {
	if n <= 0 {
		n = DefaultTopN
	}
	b.mu.Lock()
	b.topN = n
	b.mu.Unlock()
}

func (b *Board) Deadline() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deadline
}

// Top ranks the live ledger. n <= 0 uses the configured size.
func (b *Board) Top(n int) []Row {
	if n <= 0 {
		b.mu.Lock()
		n = b.topN
		b.mu.Unlock()
	}
	return Rank(b.ledger.Snapshot(), n)
}

// CheckAndReset resets the ledger once now reaches the deadline and moves the
// deadline forward by whole weeks until it lies in the future. The announcement runs
// after the reset; its error is returned but the reset stands.
func (b *Board) CheckAndReset(ctx context.Context, now time.Time) (bool, error) {
	b.mu.Lock()
	if now.Before(b.deadline) {
		b.mu.Unlock()
		return false, nil
	}
	closed := b.ledger.ResetAll()
	for !b.deadline.After(now) {
		b.deadline = b.deadline.In(b.loc).AddDate(0, 0, 7)
	}
	r := Reset{At: now, Epoch: closed.Epoch, Final: Rank(closed.Standings, b.topN), NextDeadline: b.deadline}
	b.mu.Unlock()

	if b.announce == nil {
		return true, nil
	}
	return true, b.announce(ctx, r)
}

// NextWeekStart returns the first Monday 00:00 in loc strictly after now.
func NextWeekStart(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	days := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	next := midnight.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
