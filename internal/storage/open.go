package storage

import (
	"fmt"
	"strings"

	logx "studybot/pkg/logx"
)

// Open returns the audit store for cfg.Driver, or (nil, nil) for "" and "none".
// "memory" keeps entries for the life of the process only.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch d := strings.ToLower(strings.TrimSpace(cfg.Driver)); d {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log.With(logx.String("driver", d)))
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log.With(logx.String("driver", "sqlite")))
	default:
		return nil, fmt.Errorf("storage: unknown driver %q (want file, sqlite, memory or none)", cfg.Driver)
	}
}
