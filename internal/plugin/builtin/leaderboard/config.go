package leaderboard

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	core "studybot/internal/plugin"
	board "studybot/internal/study/leaderboard"
)

// Config:
//
//	"leaderboard": {
//	  "enabled": true,
//	  "config": {
//	    "announce_chat": -100123,
//	    "timezone": "UTC",
//	    "check_every": "1m",
//	    "auto_announce": { "weekday": "sunday", "hour": 20 }
//	  }
//	}
type Config struct {
	AnnounceChat   int64               `json:"announce_chat,omitempty"`
	AnnounceThread int64               `json:"announce_thread,omitempty"`
	Timezone       string              `json:"timezone,omitempty"`
	TopN           int                 `json:"top_n,omitempty"`
	CheckEvery     string              `json:"check_every,omitempty"`
	AutoAnnounce   *AutoAnnounceConfig `json:"auto_announce,omitempty"`
	Timeouts       core.Timeouts       `json:"timeouts"`
}

type AutoAnnounceConfig struct {
	Weekday string `json:"weekday"`
	Hour    int    `json:"hour"`
	// ColdStart defaults to one check interval.
	ColdStart string `json:"cold_start,omitempty"`
}

type settings struct {
	announceChat   int64
	announceThread int64
	loc            *time.Location
	topN           int
	checkEvery     time.Duration
	taskTO         time.Duration

	auto      bool
	weekday   time.Weekday
	hour      int
	coldStart time.Duration
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdays[s]; ok {
		return d, true
	}
	for name, d := range weekdays {
		if len(s) >= 3 && strings.HasPrefix(name, s) {
			return d, true
		}
	}
	return 0, false
}

// parseConfig resolves defaults. fallback is used when no timezone is configured.
func parseConfig(raw json.RawMessage, fallback *time.Location) (settings, error) {
	c, err := core.DecodeConfig[Config](raw)
	if err != nil {
		return settings{}, fmt.Errorf("leaderboard config: %w", err)
	}
	if fallback == nil {
		fallback = time.UTC
	}
	s := settings{
		announceChat:   c.AnnounceChat,
		announceThread: c.AnnounceThread,
		loc:            fallback,
		topN:           board.DefaultTopN,
		checkEvery:     time.Minute,
		taskTO:         30 * time.Second,
	}

	var errs criterio.FieldErrorsBuilder
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			errs = errs.Append("timezone", err)
		} else {
			s.loc = loc
		}
	}
	switch {
	case c.TopN < 0:
		errs = errs.Append("top_n", fmt.Errorf("must not be negative"))
	case c.TopN > 0:
		s.topN = c.TopN
	}
	if c.CheckEvery != "" {
		d, err := time.ParseDuration(c.CheckEvery)
		switch {
		case err != nil:
			errs = errs.Append("check_every", err)
		case d < time.Second:
			errs = errs.Append("check_every", fmt.Errorf("must be at least 1s"))
		default:
			s.checkEvery = d
		}
	}
	if _, task, _, err := c.Timeouts.Durations(0, s.taskTO, 0); err != nil {
		errs = errs.Append("timeouts", err)
	} else {
		s.taskTO = task
	}

	if a := c.AutoAnnounce; a != nil {
		s.auto = true
		s.hour = a.Hour
		s.coldStart = s.checkEvery
		if d, ok := parseWeekday(a.Weekday); ok {
			s.weekday = d
		} else {
			errs = errs.Append("auto_announce.weekday", fmt.Errorf("unknown weekday %q", a.Weekday))
		}
		if a.Hour < 0 || a.Hour > 23 {
			errs = errs.Append("auto_announce.hour", fmt.Errorf("must be between 0 and 23"))
		}
		if a.ColdStart != "" {
			d, err := time.ParseDuration(a.ColdStart)
			if err != nil || d < 0 {
				errs = errs.Append("auto_announce.cold_start", fmt.Errorf("invalid duration %q", a.ColdStart))
			} else {
				s.coldStart = d
			}
		}
		if c.AnnounceChat == 0 {
			errs = errs.Append("announce_chat", fmt.Errorf("required when auto_announce is set"))
		}
	}

	if err := errs.ToError(); err != nil {
		return settings{}, err
	}
	return s, nil
}
