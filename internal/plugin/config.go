package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"
)

// Timeouts standardizes the timeout knobs plugins share.
//
//	"timeouts": { "command": "15s", "task": "2m", "operation": "5s" }
type Timeouts struct {
	Command   string `json:"command,omitempty"`
	Task      string `json:"task,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Durations parses each field, falling back to the given defaults when empty.
func (t Timeouts) Durations(command, task, operation time.Duration) (time.Duration, time.Duration, time.Duration, error) {
	parse := func(field, raw string, def time.Duration) (time.Duration, error) {
		if raw == "" {
			return def, nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("timeouts.%s: %w", field, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("timeouts.%s: must not be negative", field)
		}
		return d, nil
	}
	c, err := parse("command", t.Command, command)
	if err != nil {
		return 0, 0, 0, err
	}
	k, err := parse("task", t.Task, task)
	if err != nil {
		return 0, 0, 0, err
	}
	o, err := parse("operation", t.Operation, operation)
	if err != nil {
		return 0, 0, 0, err
	}
	return c, k, o, nil
}

// DecodeConfig strictly decodes a plugin config block; unknown keys are errors.
// An empty block yields the zero value.
func DecodeConfig[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// commandTimeout reads timeouts.command from a plugin block, if any.
func commandTimeout(raw json.RawMessage) (time.Duration, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var w struct {
		Timeouts Timeouts `json:"timeouts"`
	}
	if err := json.Unmarshal(raw, &w); err != nil || w.Timeouts.Command == "" {
		return 0, false
	}
	d, err := time.ParseDuration(w.Timeouts.Command)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// validateStandardTimeouts rejects a malformed "timeouts" object before the plugin sees it.
func validateStandardTimeouts(plugin string, raw json.RawMessage) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil
	}
	b, ok := top["timeouts"]
	if !ok || len(b) == 0 || string(b) == "null" {
		return nil
	}
	var tm map[string]json.RawMessage
	if err := json.Unmarshal(b, &tm); err != nil {
		return fmt.Errorf("plugin %s: timeouts must be an object", plugin)
	}
	for k, v := range tm {
		switch k {
		case "command", "task", "operation":
		default:
			return fmt.Errorf("plugin %s: unknown timeouts field %q (supported: command, task, operation)", plugin, k)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("plugin %s: invalid timeouts.%s: %w", plugin, k, err)
		}
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("plugin %s: invalid timeouts.%s: %w", plugin, k, err)
		}
	}
	return nil
}

func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// canonicalHashJSON ignores whitespace and key order. Invalid JSON hashes as raw bytes.
func canonicalHashJSON(raw json.RawMessage) uint64 {
	if len(raw) == 0 {
		return 0
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return hashBytes(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return hashBytes(raw)
	}
	return hashBytes(b)
}
