package leaderboard

import (
	"sync"
	"time"
)

// AutoAnnounce decides when the scheduled weekly post is due: on a given weekday and
// hour, once per hour, and never during the cold-start window after startedAt.
type AutoAnnounce struct {
	weekday   time.Weekday
	hour      int
	coldStart time.Duration
	startedAt time.Time
	loc       *time.Location

	mu        sync.Mutex
	lastFired time.Time
}

func NewAutoAnnounce(weekday time.Weekday, hour int, coldStart time.Duration, startedAt time.Time, loc *time.Location) *AutoAnnounce {
	if loc == nil {
		loc = time.UTC
	}
	return &AutoAnnounce{weekday: weekday, hour: hour, coldStart: coldStart, startedAt: startedAt, loc: loc}
}

// Due reports true at most once per matching hour. A true result is recorded, so
// callers should only ask when they are ready to post.
func (a *AutoAnnounce) Due(now time.Time) bool {
	if now.Sub(a.startedAt) < a.coldStart {
		return false
	}
	t := now.In(a.loc)
	if t.Weekday() != a.weekday || t.Hour() != a.hour {
		return false
	}
	bucket := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, a.loc)

	a.mu.Lock()
	defer a.mu.Unlock()
	if bucket.Equal(a.lastFired) {
		return false
	}
	a.lastFired = bucket
	return true
}
