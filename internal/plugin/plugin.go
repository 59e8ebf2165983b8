// Package plugin hosts command surfaces. Plugins are registered once, then
// enabled, reconfigured and disabled from the config file at runtime.
package plugin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"

	"studybot/internal/config"
	"studybot/internal/eventbus"
	"studybot/internal/storage"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/study/voice"
	"studybot/internal/task/scheduler"
	"studybot/internal/transport"
	"studybot/internal/transport/router"
	"studybot/pkg/logx"
)

type Command = router.Command

type Request = router.Request

type Plugin interface {
	Name() string
	Init(ctx context.Context, deps PluginDeps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Commands() []Command
}

type ConfigurablePlugin interface {
	OnConfigChange(ctx context.Context, raw json.RawMessage) error
}

// ConfigValidator is an optional hook to validate plugin config before applying it.
type ConfigValidator interface {
	ValidateConfig(ctx context.Context, raw json.RawMessage) error
}

// PresenceObserver receives voice-channel transitions while the plugin runs.
type PresenceObserver interface {
	OnPresence(ctx context.Context, p transport.PresenceChange)
}

type SchedulerPort interface {
	Enabled() bool
	Location() *time.Location
	AddInterval(name string, every, timeout time.Duration, job scheduler.Job) (string, error)
	AddCron(name, spec string, timeout time.Duration, job scheduler.Job) (string, error)
	AddSchedule(name, schedule string, timeout time.Duration, job scheduler.Job) (string, error)
	AddDaily(name, atHHMM string, timeout time.Duration, job scheduler.Job) (string, error)
	AddWeekly(name string, weekday time.Weekday, atHHMM string, timeout time.Duration, job scheduler.Job) (string, error)
	Remove(name string) bool
}

type NotifierPort interface {
	Notify(ctx context.Context, n transport.Notification) error
}

// PluginDeps is what a plugin gets at Init. Study state is shared between
// plugins: the pomodoro plugin credits the ledger the leaderboard plugin reads.
type PluginDeps struct {
	Logger    logx.Logger
	Adapter   transport.Adapter
	Config    *config.ConfigManager
	Scheduler SchedulerPort
	Notifier  NotifierPort
	Bus       eventbus.Bus
	Store     storage.Store
	Clock     clockwork.Clock

	Ledger *ledger.Ledger
	Rooms  *voice.ChannelSet
	Roster *study.Roster
}
