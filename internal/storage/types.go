package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines audit file
//   - "sqlite": SQLite database file (modernc, no cgo)
//   - "memory": process-lifetime log, mostly for tests
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one action. Keep it compact and schema-stable.
type AuditEntry struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	ActorID   int64     `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name,omitempty"`
	ChatID    int64     `json:"chat_id,omitempty"`
	ThreadID  int64     `json:"thread_id,omitempty"`
	Plugin    string    `json:"plugin"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Error     string    `json:"error,omitempty"`
	MetaJSON  string    `json:"meta,omitempty"`
}

// Store is the persistence API used by plugins.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first. An empty action matches all.
	RecentAudit(ctx context.Context, action string, limit int) ([]AuditEntry, error)
	Close() error
}

// normalize fills the id and timestamp.
func normalize(e AuditEntry) AuditEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()
	return e
}
