// Package ledger accumulates weekly focus and presence minutes per user.
package ledger

import (
	"sync"

	"studybot/internal/study"
)

// Entry is one user's totals for the current week.
type Entry struct {
	Focus    int
	Presence int
}

func (e Entry) Combined() int { return e.Focus + e.Presence }

// Standing is an Entry tagged with its owner.
type Standing struct {
	User study.UserID
	Entry
}

// Closed is the result of ResetAll: the totals that were cleared, in first-credit order.
type Closed struct {
	Epoch     uint64
	Standings []Standing
}

// Ledger is safe for concurrent use. Every mutation, including ResetAll, happens under
// one mutex, so a credit lands either entirely before a reset (and is reported in
// Closed) or entirely after it.
type Ledger struct {
	mu      sync.Mutex
	epoch   uint64
	entries map[study.UserID]*Entry
	order   []study.UserID
}

func New() *Ledger {
	return &Ledger{entries: map[study.UserID]*Entry{}}
}

// CreditFocus adds minutes from a finished or stopped work phase. Non-positive values are ignored.
func (l *Ledger) CreditFocus(user study.UserID, minutes int) {
	l.credit(user, minutes, func(e *Entry) { e.Focus += minutes })
}

// CreditPresence adds minutes spent in a tracked voice channel. Non-positive values are ignored.
func (l *Ledger) CreditPresence(user study.UserID, minutes int) {
	l.credit(user, minutes, func(e *Entry) { e.Presence += minutes })
}

func (l *Ledger) credit(user study.UserID, minutes int, apply func(*Entry)) {
	if minutes <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[user]
	if !ok {
		e = &Entry{}
		l.entries[user] = e
		l.order = append(l.order, user)
	}
	apply(e)
}

func (l *Ledger) Get(user study.UserID) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[user]; ok {
		return *e
	}
	return Entry{}
}

func (l *Ledger) CombinedMinutes(user study.UserID) int { return l.Get(user).Combined() }

// Snapshot copies all standings in first-credit order.
func (l *Ledger) Snapshot() []Standing {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() []Standing {
	out := make([]Standing, 0, len(l.order))
	for _, u := range l.order {
		out = append(out, Standing{User: u, Entry: *l.entries[u]})
	}
	return out
}

// ResetAll zeroes every counter and returns what was cleared.
func (l *Ledger) ResetAll() Closed {
	l.mu.Lock()
	defer l.mu.Unlock()
	closed := Closed{Epoch: l.epoch, Standings: l.snapshotLocked()}
	l.entries = map[study.UserID]*Entry{}
	l.order = nil
	l.epoch++
	return closed
}

// Epoch counts completed resets.
func (l *Ledger) Epoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}
