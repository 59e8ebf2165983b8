package pomodoro

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"

	core "studybot/internal/plugin"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/study/timer"
	"studybot/pkg/logx"
)

var errNotStarted = errors.New("pomodoro: plugin not started")

type Plugin struct {
	core.PluginBase

	mu       sync.RWMutex
	cfg      settings
	registry *timer.Registry
}

func New() *Plugin { return &Plugin{cfg: defaultSettings()} }

func (p *Plugin) Name() string { return "pomodoro" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	if deps.Ledger == nil {
		p.Deps.Ledger = ledger.New()
	}
	if deps.Roster == nil {
		p.Deps.Roster = study.NewRoster()
	}
	if deps.Clock == nil {
		p.Deps.Clock = clockwork.NewRealClock()
	}
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	cfg := p.cfgSnapshot()
	reg := timer.NewRegistry(ctx, p.Deps.Ledger, timer.Options{
		Config:  cfg.timer,
		Clock:   p.Deps.Clock,
		Spawn:   p.Runner.Go0,
		OnEvent: p.onTimerEvent,
	})
	p.mu.Lock()
	p.registry = reg
	p.mu.Unlock()
	p.Log.Info("started",
		logx.Duration("default_work", cfg.defaultWork),
		logx.Duration("max_segment", cfg.timer.MaxSegment),
		logx.Bool("threads", cfg.threads),
	)
	return nil
}

// Stop cancels every running session; unfinished work is not credited.
func (p *Plugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	reg := p.registry
	p.registry = nil
	p.mu.Unlock()
	if reg != nil {
		if n := reg.Active(); n > 0 {
			p.Log.Info("cancelling running timers", logx.Int("sessions", n))
		}
		reg.CancelAll()
	}
	return p.StopBase(ctx)
}

func (p *Plugin) ValidateConfig(ctx context.Context, raw json.RawMessage) error {
	_, err := parseConfig(raw)
	return err
}

func (p *Plugin) OnConfigChange(ctx context.Context, raw json.RawMessage) error {
	cfg, err := parseConfig(raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = cfg
	reg := p.registry
	p.mu.Unlock()
	if reg != nil {
		reg.SetConfig(cfg.timer)
	}
	return nil
}

func (p *Plugin) cfgSnapshot() settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *Plugin) timers() (*timer.Registry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.registry == nil {
		return nil, errNotStarted
	}
	return p.registry, nil
}

func (p *Plugin) onTimerEvent(ev timer.Event) {
	p.Log.Debug("timer event",
		logx.String("kind", string(ev.Kind)),
		logx.String("session", ev.SessionID),
		logx.Int64("user", int64(ev.User)),
		logx.String("phase", ev.Phase.String()),
	)
	p.PublishEvent(string(ev.Kind), ev)
}
