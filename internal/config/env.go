package config

import "strings"

const (
	EnvTelegramToken = "STUDYBOT_TELEGRAM_TOKEN"
	EnvDiscordToken  = "STUDYBOT_DISCORD_TOKEN"
)

// applyEnv lets secrets live outside the config file.
// Non-empty environment values win over file values.
func (c *Config) applyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := strings.TrimSpace(getenv(EnvTelegramToken)); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvDiscordToken)); v != "" {
		c.Discord.Token = v
	}
}
