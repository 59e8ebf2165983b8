// Package app wires config, logging, the chat transport, background services,
// shared study state and the plugins into one supervised process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"studybot/internal/config"
	"studybot/internal/eventbus"
	"studybot/internal/notifier"
	"studybot/internal/plugin"
	"studybot/internal/plugin/builtin/leaderboard"
	"studybot/internal/plugin/builtin/pomodoro"
	"studybot/internal/plugin/builtin/studyroom"
	"studybot/internal/plugin/builtin/todo"
	"studybot/internal/plugin/builtin/wellness"
	"studybot/internal/runtime/supervisor"
	"studybot/internal/storage"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/study/voice"
	"studybot/internal/task/scheduler"
	"studybot/internal/transport"
	"studybot/internal/transport/discord"
	"studybot/internal/transport/router"
	"studybot/internal/transport/telegram"
	"studybot/pkg/logx"
)

const updateQueue = 256

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter transport.Adapter
	router  *router.Router
	sched   *scheduler.Service
	notif   *notifier.Service
	pm      *plugin.PluginManager

	ledger *ledger.Ledger

	updates chan transport.Update
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, root := logx.NewService(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	ad, err := newAdapter(cfg, root.With(logx.String("comp", "transport")))
	if err != nil {
		return nil, err
	}
	logs.SetChatSink(func(ctx context.Context, text string) error {
		lc := cfgm.Get().Transport.LogChat
		if lc.ChatID == 0 {
			return nil
		}
		_, err := ad.SendText(ctx, transport.ChatTarget{ChatID: lc.ChatID, ThreadID: lc.ThreadID}, text, &transport.SendOptions{DisablePreview: true})
		return err
	})

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		if store, err = storage.Open(sc, root.With(logx.String("comp", "storage"))); err != nil {
			return nil, err
		}
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(scfg, root.With(logx.String("comp", "scheduler")), bus)

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, ad, root.With(logx.String("comp", "notifier")), bus)

	r := router.New(root.With(logx.String("comp", "router")), ad, router.Options{Owners: cfg.Transport.OwnerUserIDs})

	led := ledger.New()
	pm := plugin.NewPluginManager(root.With(logx.String("comp", "plugins")), cfgm, plugin.PluginDeps{
		Logger:    root,
		Adapter:   ad,
		Config:    cfgm,
		Scheduler: sched,
		Notifier:  &poster{notif: notif, adapter: ad},
		Bus:       bus,
		Store:     store,
		Clock:     clockwork.NewRealClock(),
		Ledger:    led,
		Rooms:     voice.NewChannelSet(),
		Roster:    study.NewRoster(),
	}, r)
	pm.Register(builtins()...)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		adapter: ad,
		router:  r,
		sched:   sched,
		notif:   notif,
		pm:      pm,
		ledger:  led,
		updates: make(chan transport.Update, updateQueue),
	}, nil
}

func builtins() []plugin.Plugin {
	return []plugin.Plugin{
		pomodoro.New(),
		todo.New(),
		studyroom.New(),
		leaderboard.New(),
		wellness.New(),
	}
}

// Check loads the config at cfgPath and runs every validation a reload would,
// without connecting to a chat platform.
func Check(ctx context.Context, cfgPath string) error {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	pm := plugin.NewPluginManager(logx.Nop(), cfgm, plugin.PluginDeps{}, nil)
	pm.Register(builtins()...)
	return pm.ValidateConfig(ctx, cfg)
}

func newAdapter(cfg *config.Config, log logx.Logger) (transport.Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport.Driver)) {
	case config.DriverTelegram:
		poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		return telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, log)
	case config.DriverDiscord:
		return discord.New(discord.Config{Token: cfg.Discord.Token, GuildID: cfg.Discord.GuildID}, log)
	default:
		return nil, fmt.Errorf("unknown transport.driver %q", cfg.Transport.Driver)
	}
}

// poster routes plugin posts through the notifier while it is enabled and
// straight to the adapter otherwise.
type poster struct {
	notif   *notifier.Service
	adapter transport.Adapter
}

func (p *poster) Notify(ctx context.Context, n transport.Notification) error {
	if p.notif.Enabled() {
		err := p.notif.Notify(ctx, n)
		if !errors.Is(err, notifier.ErrDisabled) && !errors.Is(err, notifier.ErrStopped) {
			return err
		}
	}
	if n.Card != nil {
		_, err := p.adapter.SendCard(ctx, n.Target, *n.Card, n.Options)
		return err
	}
	_, err := p.adapter.SendText(ctx, n.Target, n.Text, n.Options)
	return err
}

// Done is closed when the app supervisor is cancelled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validate)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}
	if err := a.pm.StartAll(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	a.sup.Go0("eventbus.log", a.logEvents)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.String("transport", a.adapter.Name()),
		logx.Bool("scheduler", a.sched.Enabled()),
		logx.Bool("notifier", a.notif.Enabled()),
		logx.Bool("storage", a.store != nil),
	)
	return nil
}

// validate runs before a reloaded config is committed.
func (a *App) validate(ctx context.Context, cfg *config.Config) error {
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return a.pm.ValidateConfig(ctx, cfg)
}

// logEvents mirrors bus traffic at debug level.
func (a *App) logEvents(c context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-c.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

func (a *App) reloadLoop(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// keep only the newest snapshot of a burst
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.apply(c, last, next)
			last = next
		}
	}
}

func (a *App) apply(c context.Context, prev, next *config.Config) {
	sections, fields, plugins := config.Summarize(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(plugins) > 0 {
		a.log.Debug("plugin config changes detected", logx.Any("plugins", plugins))
	}
	for _, s := range sections {
		switch s {
		case "storage", "telegram", "discord":
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}
	if prev.Transport.Driver != next.Transport.Driver {
		a.log.Warn("transport.driver changed; restart required")
	}

	a.logs.Apply(mapLogConfig(next))
	a.router.SetOwners(next.Transport.OwnerUserIDs)

	if scfg, err := mapSchedulerConfig(next); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		was := a.sched.Enabled()
		a.sched.Apply(scfg)
		switch {
		case was && !scfg.Enabled:
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		case !was && scfg.Enabled:
			a.log.Info("scheduler enabled via config")
			a.sched.Start(c)
		}
	}

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		was := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case was && !ncfg.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !was && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(c)
		}
	}

	a.pm.OnConfigUpdate(c, next)
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
}

// Stop shuts components down in dependency order. Each step is bounded so one
// stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	a.step(ctx, "plugins", 4*time.Second, func(c context.Context) error { a.pm.StopAll(c, plugin.StopShutdown); return nil })
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.step(ctx, "adapter", 3*time.Second, a.adapter.Stop)
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped", logx.Int("ledger_users", len(a.ledger.Snapshot())))
	return a.logs.Close()
}

func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < limit {
			limit = max(rem, 0)
		}
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
