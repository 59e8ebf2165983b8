package config

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"

	logx "studybot/pkg/logx"
)

// Summarize lists the sections that differ between two snapshots, log fields
// describing the new values and the plugins whose block changed. Tokens are
// reported only as set or unset.
func Summarize(oldCfg, newCfg *Config) (sections []string, fields []logx.Field, plugins []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if !reflect.DeepEqual(oldCfg.Transport, newCfg.Transport) {
		sections = append(sections, "transport")
		fields = append(fields,
			logx.String("transport.driver", newCfg.Transport.Driver),
			logx.Int("transport.owner_count", len(newCfg.Transport.OwnerUserIDs)),
			logx.Bool("transport.log_chat_set", newCfg.Transport.LogChat.ChatID != 0),
		)
	}
	if oldCfg.Telegram != newCfg.Telegram {
		sections = append(sections, "telegram")
		fields = append(fields,
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
			logx.Bool("telegram.token_set", newCfg.Telegram.Token != ""),
		)
	}
	if oldCfg.Discord != newCfg.Discord {
		sections = append(sections, "discord")
		fields = append(fields,
			logx.String("discord.guild_id", newCfg.Discord.GuildID),
			logx.Bool("discord.token_set", newCfg.Discord.Token != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		sections = append(sections, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat_enabled", newCfg.Logging.Chat.Enabled),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		sections = append(sections, "scheduler")
		fields = append(fields,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		sections = append(sections, "notifier")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		sections = append(sections, "storage")
	}

	plugins = diffPlugins(oldCfg.Plugins, newCfg.Plugins)
	if len(plugins) > 0 {
		sections = append(sections, "plugins")
		fields = append(fields, logx.Int("plugins.changed", len(plugins)))
	}
	sort.Strings(sections)
	return sections, fields, plugins
}

func diffPlugins(oldM, newM map[string]PluginConfigRaw) []string {
	names := map[string]struct{}{}
	for k := range oldM {
		names[k] = struct{}{}
	}
	for k := range newM {
		names[k] = struct{}{}
	}
	var out []string
	for name := range names {
		o, n := oldM[name], newM[name]
		if o.Enabled != n.Enabled || !sameJSON(o.Config, n.Config) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// sameJSON ignores whitespace differences.
func sameJSON(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
