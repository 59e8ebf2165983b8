package plugin

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"studybot/internal/eventbus"
	"studybot/internal/runtime/supervisor"
	"studybot/internal/storage"
	"studybot/internal/task/scheduler"
	"studybot/internal/transport"
	"studybot/pkg/logx"
)

var (
	ErrNoScheduler = errors.New("scheduler not available")
	ErrNoNotifier  = errors.New("notifier not available")
	ErrNoStore     = errors.New("storage not available")
)

// PluginBase is a small helper to make writing plugins faster and safer.
// Typical usage:
//
//	type Plugin struct { plugin.PluginBase }
//	func (p *Plugin) Init(ctx context.Context, deps plugin.PluginDeps) error { p.InitBase(deps, p.Name()); return nil }
//	func (p *Plugin) Start(ctx context.Context) error { p.StartBase(ctx); p.Runner.Go(...); return nil }
//	func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }
//
// Jobs added through Every/Schedule/Weekly are namespaced "<plugin>:<name>" and
// removed by StopBase.
type PluginBase struct {
	Log    logx.Logger
	Deps   PluginDeps
	Runner *supervisor.Supervisor

	pluginName string
	ctx        context.Context

	jobsMu sync.Mutex
	jobs   map[string]struct{}
}

// InitBase wires deps + logger.
func (b *PluginBase) InitBase(deps PluginDeps, pluginName string) {
	b.Deps = deps
	b.pluginName = pluginName
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	b.Log = log.With(logx.String("plugin", pluginName))
}

// StartBase creates a per-plugin supervisor tied to ctx.
func (b *PluginBase) StartBase(ctx context.Context) {
	b.ctx = ctx
	b.Runner = supervisor.NewSupervisor(ctx, supervisor.WithLogger(b.Log), supervisor.WithCancelOnError(false))
}

// StopBase removes scheduled jobs, cancels the runner and waits bounded by ctx.
func (b *PluginBase) StopBase(ctx context.Context) error {
	b.RemoveJobs()
	if b.Runner == nil {
		return nil
	}
	b.Runner.Cancel()
	err := b.Runner.Wait(ctx)
	b.Runner = nil
	return err
}

// Context returns the plugin runtime context (canceled on stop/disable).
func (b *PluginBase) Context() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

func (b *PluginBase) ns(name string) string {
	if b.pluginName == "" {
		return name
	}
	if name == "" {
		return b.pluginName
	}
	return b.pluginName + ":" + name
}

func (b *PluginBase) track(full string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	b.jobsMu.Lock()
	if b.jobs == nil {
		b.jobs = map[string]struct{}{}
	}
	b.jobs[full] = struct{}{}
	b.jobsMu.Unlock()
	return full, nil
}

func (b *PluginBase) Every(name string, every, timeout time.Duration, job scheduler.Job) (string, error) {
	if b.Deps.Scheduler == nil {
		return "", ErrNoScheduler
	}
	return b.track(b.Deps.Scheduler.AddInterval(b.ns(name), every, timeout, job))
}

// Schedule accepts a cron spec, "@every 3h", a duration or HH:MM interval.
func (b *PluginBase) Schedule(name, spec string, timeout time.Duration, job scheduler.Job) (string, error) {
	if b.Deps.Scheduler == nil {
		return "", ErrNoScheduler
	}
	return b.track(b.Deps.Scheduler.AddSchedule(b.ns(name), spec, timeout, job))
}

func (b *PluginBase) Weekly(name string, day time.Weekday, atHHMM string, timeout time.Duration, job scheduler.Job) (string, error) {
	if b.Deps.Scheduler == nil {
		return "", ErrNoScheduler
	}
	return b.track(b.Deps.Scheduler.AddWeekly(b.ns(name), day, atHHMM, timeout, job))
}

// Unschedule removes one job added by this plugin.
func (b *PluginBase) Unschedule(name string) bool {
	if b.Deps.Scheduler == nil {
		return false
	}
	full := b.ns(name)
	b.jobsMu.Lock()
	delete(b.jobs, full)
	b.jobsMu.Unlock()
	return b.Deps.Scheduler.Remove(full)
}

// Jobs lists the scheduled job names owned by this plugin.
func (b *PluginBase) Jobs() []string {
	b.jobsMu.Lock()
	defer b.jobsMu.Unlock()
	out := make([]string, 0, len(b.jobs))
	for n := range b.jobs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (b *PluginBase) RemoveJobs() {
	b.jobsMu.Lock()
	jobs := b.jobs
	b.jobs = nil
	b.jobsMu.Unlock()
	if b.Deps.Scheduler == nil {
		return
	}
	for n := range jobs {
		b.Deps.Scheduler.Remove(n)
	}
}

func (b *PluginBase) Notify(ctx context.Context, n transport.Notification) error {
	if b.Deps.Notifier == nil {
		return ErrNoNotifier
	}
	return b.Deps.Notifier.Notify(ctx, n)
}

// Post queues a card for a chat through the notifier. Without a notifier the
// card goes straight to the adapter.
func (b *PluginBase) Post(ctx context.Context, to transport.ChatTarget, card transport.Card) error {
	if b.Deps.Notifier == nil {
		if b.Deps.Adapter == nil {
			return ErrNoNotifier
		}
		_, err := b.Deps.Adapter.SendCard(ctx, to, card, &transport.SendOptions{DisablePreview: true})
		return err
	}
	return b.Notify(ctx, transport.Notification{
		Priority: 5,
		Target:   to,
		Card:     &card,
		Options:  &transport.SendOptions{DisablePreview: true},
	})
}

// AppendAudit writes an audit entry stamped with the plugin name. Storage is optional.
func (b *PluginBase) AppendAudit(ctx context.Context, e storage.AuditEntry) error {
	if b.Deps.Store == nil {
		return ErrNoStore
	}
	if e.Plugin == "" {
		e.Plugin = b.pluginName
	}
	return b.Deps.Store.AppendAudit(ctx, e)
}

// PublishEvent publishes to the in-process bus (if present). Non-blocking.
func (b *PluginBase) PublishEvent(typ string, data any) {
	if b.Deps.Bus == nil {
		return
	}
	b.Deps.Bus.Publish(eventbus.Event{Type: typ, Time: b.Now(), Data: data})
}

func (b *PluginBase) Now() time.Time {
	if b.Deps.Clock == nil {
		return time.Now()
	}
	return b.Deps.Clock.Now()
}
