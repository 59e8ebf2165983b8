package config

import (
	"fmt"
	"strings"
	"time"
)

// Durations in the file are Go duration strings ("30s", "5m"). Empty means unset.

func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration (e.g. \"30s\", \"5m\")", path, raw)
	case d < 0:
		return 0, fmt.Errorf("%s: %s is negative", path, d)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def for an unset or zero value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

type durationField struct {
	path string
	raw  string
}

// durations lists every duration string outside the plugin blocks.
func (c *Config) durations() []durationField {
	out := []durationField{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"scheduler.default_timeout", c.Scheduler.DefaultTimeout},
	}
	if n := c.Notifier; n != nil {
		out = append(out,
			durationField{"notifier.retry_base", n.RetryBase},
			durationField{"notifier.dedup_window", n.DedupWindow},
		)
	}
	if s := c.Storage; s != nil {
		out = append(out, durationField{"storage.busy_timeout", s.BusyTimeout})
	}
	return out
}
