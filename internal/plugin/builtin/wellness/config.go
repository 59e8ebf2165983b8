package wellness

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/hay-kot/criterio"

	core "studybot/internal/plugin"
)

// Config:
//
//	"wellness": {
//	  "enabled": true,
//	  "config": {
//	    "chats": [-100123],
//	    "motivate_every": "3h",
//	    "health_every": "6h",
//	    "timeouts": { "operation": "8s" }
//	  }
//	}
type Config struct {
	// Chats receive the periodic quote and reminder posts.
	Chats         []int64 `json:"chats,omitempty"`
	MotivateEvery string  `json:"motivate_every,omitempty"`
	HealthEvery   string  `json:"health_every,omitempty"`

	// Remote enables the quote and fact endpoints. Default true.
	Remote    *bool  `json:"remote,omitempty"`
	QuoteURL  string `json:"quote_url,omitempty"`
	FactURL   string `json:"fact_url,omitempty"`
	CatURL    string `json:"cat_url,omitempty"`
	CatGIFURL string `json:"cat_gif_url,omitempty"`

	Quotes    []string `json:"quotes,omitempty"`
	Reminders []string `json:"reminders,omitempty"`
	Seed      int64    `json:"seed,omitempty"`

	Timeouts core.Timeouts `json:"timeouts"`
}

type settings struct {
	chats         []int64
	motivateEvery string
	healthEvery   string

	remote    bool
	quoteURL  string
	factURL   string
	catURL    string
	catGIFURL string

	quotes    []string
	reminders []string
	seed      int64

	taskTO  time.Duration
	fetchTO time.Duration
}

// off disables a periodic post.
const off = "off"

func parseConfig(raw json.RawMessage) (settings, error) {
	c, err := core.DecodeConfig[Config](raw)
	if err != nil {
		return settings{}, fmt.Errorf("wellness config: %w", err)
	}
	s := settings{
		chats:         c.Chats,
		motivateEvery: "3h",
		healthEvery:   "6h",
		remote:        true,
		quoteURL:      c.QuoteURL,
		factURL:       c.FactURL,
		catURL:        c.CatURL,
		catGIFURL:     c.CatGIFURL,
		quotes:        c.Quotes,
		reminders:     c.Reminders,
		seed:          c.Seed,
	}
	if c.Remote != nil {
		s.remote = *c.Remote
	}

	var errs criterio.FieldErrorsBuilder
	every := func(field, v string, dst *string) {
		if v == "" {
			return
		}
		if v != off {
			if d, err := time.ParseDuration(v); err == nil && d < time.Minute {
				errs = errs.Append(field, fmt.Errorf("must be at least 1m"))
				return
			}
		}
		*dst = v
	}
	every("motivate_every", c.MotivateEvery, &s.motivateEvery)
	every("health_every", c.HealthEvery, &s.healthEvery)

	for field, v := range map[string]string{
		"quote_url": c.QuoteURL, "fact_url": c.FactURL, "cat_url": c.CatURL, "cat_gif_url": c.CatGIFURL,
	} {
		if v == "" {
			continue
		}
		if u, err := url.Parse(v); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = errs.Append(field, fmt.Errorf("must be an http(s) url"))
		}
	}
	for i, id := range c.Chats {
		if id == 0 {
			errs = errs.Append(fmt.Sprintf("chats[%d]", i), fmt.Errorf("must not be zero"))
		}
	}

	_, task, op, err := c.Timeouts.Durations(0, 30*time.Second, 8*time.Second)
	if err != nil {
		errs = errs.Append("timeouts", err)
	}
	s.taskTO, s.fetchTO = task, op

	if err := errs.ToError(); err != nil {
		return settings{}, err
	}
	return s, nil
}
