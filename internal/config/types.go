package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Transport TransportConfig `json:"transport"`
	Telegram  TelegramConfig  `json:"telegram"`
	Discord   DiscordConfig   `json:"discord"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Notifier defaults to enabled when the section is omitted.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	// Storage holds the audit log only; study state is never persisted.
	Storage *StorageConfig `json:"storage,omitempty"`

	Plugins map[string]PluginConfigRaw `json:"plugins"`
}

// TransportConfig selects the chat platform and the people allowed to run owner commands.
type TransportConfig struct {
	Driver       string  `json:"driver"` // "telegram" or "discord"
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	LogChat      ChatRef `json:"log_chat,omitempty"`
}

type ChatRef struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int64 `json:"thread_id,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type DiscordConfig struct {
	Token string `json:"token,omitempty"`
	// GuildID scopes slash command registration; empty registers globally.
	GuildID string `json:"guild_id,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat forwards WARN+ lines to transport.log_chat.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone is an IANA name used for cron/daily/weekly triggers. Default UTC.
	Timezone string `json:"timezone,omitempty"`
	// DefaultTimeout bounds a job run when the job has none ("0s" disables).
	DefaultTimeout string `json:"default_timeout,omitempty"`
}

// NotifierConfig controls the async channel-post pipeline.
// Durations are Go duration strings.
type NotifierConfig struct {
	Enabled    bool   `json:"enabled"`
	Workers    int    `json:"workers"`
	QueueSize  int    `json:"queue_size"`
	RatePerSec int    `json:"rate_per_sec"`
	RetryMax   int    `json:"retry_max"`
	RetryBase  string `json:"retry_base"`
	// DedupWindow suppresses identical posts to the same chat within the window.
	DedupWindow string `json:"dedup_window,omitempty"`
}

// StorageConfig selects the audit log backend.
//
//	"storage": { "driver": "sqlite", "path": "./studybot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // "file", "sqlite" or "none"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type PluginConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON rejects unknown keys so typos in a plugin block fail the reload.
func (p *PluginConfigRaw) UnmarshalJSON(b []byte) error {
	type raw PluginConfigRaw
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t raw
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = PluginConfigRaw(t)
	return nil
}
