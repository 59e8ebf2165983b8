package voice

import (
	"sync"
	"time"

	"studybot/internal/study"
)

// PresenceCrediter receives minutes spent in tracked rooms.
type PresenceCrediter interface {
	CreditPresence(user study.UserID, minutes int)
}

// Change is one presence transition. Zero channel ids mean "not connected".
type Change struct {
	User   study.UserID
	IsBot  bool
	Before study.ChannelID
	After  study.ChannelID
	At     time.Time
}

// Visit is an open stay in a tracked room.
type Visit struct {
	User      study.UserID
	Channel   study.ChannelID
	StartedAt time.Time
}

// Outcome says what a Change did.
type Outcome struct {
	// Closed is the visit that ended, if the user left a tracked room we saw them enter.
	Closed *Visit
	// Minutes is the presence credit for Closed.
	Minutes int
	Opened  bool
}

type Tracker struct {
	rooms  *ChannelSet
	ledger PresenceCrediter

	mu     sync.Mutex
	visits map[study.UserID]Visit
}

func NewTracker(rooms *ChannelSet, ledger PresenceCrediter) *Tracker {
	return &Tracker{rooms: rooms, ledger: ledger, visits: map[study.UserID]Visit{}}
}

// OnPresenceChange closes the visit for a tracked room the user left and opens one for a
// tracked room the user entered. Bots are ignored. Leaving without a recorded entry is a no-op.
func (t *Tracker) OnPresenceChange(c Change) Outcome {
	var out Outcome
	if c.IsBot || c.Before == c.After {
		return out
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rooms.Has(c.Before) {
		if v, ok := t.visits[c.User]; ok {
			delete(t.visits, c.User)
			minutes := int(c.At.Sub(v.StartedAt) / time.Minute)
			if minutes < 0 {
				minutes = 0
			}
			t.ledger.CreditPresence(c.User, minutes)
			out.Closed = &v
			out.Minutes = minutes
		}
	}
	if t.rooms.Has(c.After) {
		t.visits[c.User] = Visit{User: c.User, Channel: c.After, StartedAt: c.At}
		out.Opened = true
	}
	return out
}

// Visit returns the user's open visit, if any.
func (t *Tracker) Visit(user study.UserID) (Visit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.visits[user]
	return v, ok
}

func (t *Tracker) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visits)
}
