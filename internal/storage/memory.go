package storage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func NewMemory() Store { return &memoryStore{} }

func (m *memoryStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, normalize(e))
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) RecentAudit(ctx context.Context, action string, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestMatching(m.entries, action, limit), nil
}

func (m *memoryStore) Close() error { return nil }

// newestMatching walks entries from the end.
func newestMatching(entries []AuditEntry, action string, limit int) []AuditEntry {
	var out []AuditEntry
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if action == "" || entries[i].Action == action {
			out = append(out, entries[i])
		}
	}
	return out
}
