package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
)

const (
	DriverTelegram = "telegram"
	DriverDiscord  = "discord"
)

// Validate checks structure only; plugin blocks are validated by their plugins.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		c.validateTransport(),
		c.validateDurations(),
		c.validateStorage(),
	)
}

func (c *Config) validateTransport() error {
	var errs criterio.FieldErrorsBuilder
	switch strings.ToLower(strings.TrimSpace(c.Transport.Driver)) {
	case DriverTelegram:
		if strings.TrimSpace(c.Telegram.Token) == "" {
			errs = errs.Append("telegram.token", fmt.Errorf("required (or set %s)", EnvTelegramToken))
		}
	case DriverDiscord:
		if strings.TrimSpace(c.Discord.Token) == "" {
			errs = errs.Append("discord.token", fmt.Errorf("required (or set %s)", EnvDiscordToken))
		}
	default:
		errs = errs.Append("transport.driver", fmt.Errorf("must be %q or %q, got %q", DriverTelegram, DriverDiscord, c.Transport.Driver))
	}
	if c.Logging.Chat.Enabled && c.Transport.LogChat.ChatID == 0 {
		errs = errs.Append("transport.log_chat.chat_id", fmt.Errorf("required when logging.chat is enabled"))
	}
	return errs.ToError()
}

func (c *Config) validateDurations() error {
	var errs criterio.FieldErrorsBuilder
	for _, f := range c.durations() {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = errs.Append(f.path, err)
		}
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = errs.Append("scheduler.timezone", err)
		}
	}
	return errs.ToError()
}

func (c *Config) validateStorage() error {
	if c.Storage == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none", "file", "sqlite":
		return nil
	default:
		return criterio.NewFieldErrors("storage.driver", fmt.Errorf("unknown driver %q", c.Storage.Driver))
	}
}
