package pomodoro

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hay-kot/criterio"

	core "studybot/internal/plugin"
	"studybot/internal/study/timer"
)

// Config is the plugin block:
//
//	"pomodoro": {
//	  "enabled": true,
//	  "config": { "default_work_minutes": 25, "max_segment": "14m", "edit_every": "2s", "threads": true }
//	}
type Config struct {
	DefaultWorkMinutes  int    `json:"default_work_minutes,omitempty"`
	DefaultBreakMinutes int    `json:"default_break_minutes,omitempty"`
	Tick                string `json:"tick,omitempty"`
	MaxSegment          string `json:"max_segment,omitempty"`
	// EditEvery is the minimum gap between two edits of one status message.
	EditEvery string `json:"edit_every,omitempty"`
	BarLength int    `json:"bar_length,omitempty"`
	// Threads moves long countdowns into a thread where the platform has them. Default true.
	Threads  *bool         `json:"threads,omitempty"`
	Timeouts core.Timeouts `json:"timeouts"`
}

type settings struct {
	timer       timer.Config
	defaultWork time.Duration
	editEvery   time.Duration
	barLength   int
	threads     bool
	commandTO   time.Duration
}

func defaultSettings() settings {
	return settings{
		timer: timer.Config{
			Tick:         timer.DefaultTick,
			MaxSegment:   timer.DefaultMaxSegment,
			DefaultBreak: timer.DefaultBreak,
		},
		defaultWork: timer.DefaultWork,
		editEvery:   2 * time.Second,
		barLength:   timer.DefaultBarLength,
		threads:     true,
		commandTO:   15 * time.Second,
	}
}

func parseConfig(raw json.RawMessage) (settings, error) {
	c, err := core.DecodeConfig[Config](raw)
	if err != nil {
		return settings{}, fmt.Errorf("pomodoro config: %w", err)
	}
	s := defaultSettings()

	var errs criterio.FieldErrorsBuilder
	minutes := func(field string, v int, dst *time.Duration) {
		switch {
		case v < 0:
			errs = errs.Append(field, fmt.Errorf("must not be negative"))
		case v > 0:
			*dst = time.Duration(v) * time.Minute
		}
	}
	duration := func(field, v string, dst *time.Duration) {
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = errs.Append(field, err)
			return
		}
		if d <= 0 {
			errs = errs.Append(field, fmt.Errorf("must be positive"))
			return
		}
		*dst = d
	}
	minutes("default_work_minutes", c.DefaultWorkMinutes, &s.defaultWork)
	minutes("default_break_minutes", c.DefaultBreakMinutes, &s.timer.DefaultBreak)
	duration("tick", c.Tick, &s.timer.Tick)
	duration("max_segment", c.MaxSegment, &s.timer.MaxSegment)
	duration("edit_every", c.EditEvery, &s.editEvery)
	if c.BarLength < 0 || c.BarLength > 60 {
		errs = errs.Append("bar_length", fmt.Errorf("must be between 1 and 60"))
	} else if c.BarLength > 0 {
		s.barLength = c.BarLength
	}
	if c.Threads != nil {
		s.threads = *c.Threads
	}
	if cmd, _, _, err := c.Timeouts.Durations(s.commandTO, 0, 0); err != nil {
		errs = errs.Append("timeouts", err)
	} else {
		s.commandTO = cmd
	}
	if err := errs.ToError(); err != nil {
		return settings{}, err
	}
	return s, nil
}
