// Package study holds identifiers and small shared state used by the study
// packages: timer, ledger, voice, leaderboard and todo.
package study

import (
	"fmt"
	"strings"
	"sync"
)

// UserID is the platform's stable account id.
type UserID int64

// ChannelID identifies a voice channel. Zero means "no channel".
type ChannelID int64

// Roster remembers the last display name seen for each user so boards can be rendered
// without calling back into the platform.
type Roster struct {
	mu    sync.RWMutex
	names map[UserID]string
}

func NewRoster() *Roster {
	return &Roster{names: map[UserID]string{}}
}

func (r *Roster) Remember(id UserID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	r.mu.Lock()
	r.names[id] = name
	r.mu.Unlock()
}

// Name returns the remembered name or a stable placeholder.
func (r *Roster) Name(id UserID) string {
	r.mu.RLock()
	name, ok := r.names[id]
	r.mu.RUnlock()
	if ok {
		return name
	}
	return fmt.Sprintf("user %d", id)
}

// FormatMinutes renders minutes as "X hours and Y minutes" or "Y minutes".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h, m := minutes/60, minutes%60
	if h > 0 {
		return fmt.Sprintf("%d %s and %d %s", h, plural(h, "hour"), m, plural(m, "minute"))
	}
	return fmt.Sprintf("%d %s", m, plural(m, "minute"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
