package plugin

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"studybot/internal/config"
	"studybot/internal/eventbus"
	"studybot/internal/transport"
	"studybot/internal/transport/router"
	"studybot/pkg/logx"
)

type StopReason string

const (
	StopShutdown   StopReason = "shutdown"
	StopDisable    StopReason = "plugin_disable"
	StopQuarantine StopReason = "plugin_quarantine"
)

type pluginEvent struct {
	Plugin string `json:"plugin"`
	Reason string `json:"reason,omitempty"`
	Err    string `json:"err,omitempty"`
	TookMS int64  `json:"took_ms,omitempty"`
}

// CommandSink receives the merged command list and presence observers of running plugins.
type CommandSink interface {
	SetCommands(cmds []router.Command)
	OnPresence(ls ...router.PresenceListener)
}

type quarantineState struct {
	rawHash uint64
	err     string
	since   time.Time
}

// Status is one row of Snapshot.
type Status struct {
	Name        string
	Enabled     bool
	Running     bool
	Quarantined string
}

type PluginManager struct {
	mu sync.Mutex

	log  logx.Logger
	cfgm *config.ConfigManager
	deps PluginDeps
	sink CommandSink

	reg         map[string]Plugin
	order       []string
	run         map[string]bool
	inited      map[string]bool
	lastRawHash map[string]uint64
	quarantine  map[string]quarantineState

	// baseCtx outlives the call-scoped contexts handed to StartAll/OnConfigUpdate.
	baseCtx    context.Context
	baseCancel context.CancelFunc
	bound      bool

	pcancel map[string]context.CancelFunc
}

func NewPluginManager(log logx.Logger, cfgm *config.ConfigManager, deps PluginDeps, sink CommandSink) *PluginManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &PluginManager{
		log:         log,
		cfgm:        cfgm,
		deps:        deps,
		sink:        sink,
		reg:         map[string]Plugin{},
		run:         map[string]bool{},
		inited:      map[string]bool{},
		lastRawHash: map[string]uint64{},
		quarantine:  map[string]quarantineState{},
		baseCtx:     baseCtx,
		baseCancel:  baseCancel,
		pcancel:     map[string]context.CancelFunc{},
	}
}

func (pm *PluginManager) emit(typ string, data pluginEvent) {
	if pm.deps.Bus == nil {
		return
	}
	pm.deps.Bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}

// BindContext ties plugin lifetimes to appCtx. First bind wins.
func (pm *PluginManager) BindContext(appCtx context.Context) {
	pm.mu.Lock()
	if pm.bound || appCtx == nil {
		pm.mu.Unlock()
		return
	}
	pm.bound = true
	baseCancel := pm.baseCancel
	pm.mu.Unlock()

	go func() {
		<-appCtx.Done()
		baseCancel()
	}()
}

func (pm *PluginManager) Register(p ...Plugin) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, pl := range p {
		name := pl.Name()
		if _, dup := pm.reg[name]; !dup {
			pm.order = append(pm.order, name)
		}
		pm.reg[name] = pl
	}
}

func (pm *PluginManager) StartAll(ctx context.Context) error {
	pm.BindContext(ctx)
	return pm.reconcile(pm.cfgm.Get())
}

func (pm *PluginManager) OnConfigUpdate(ctx context.Context, cfg *config.Config) {
	pm.BindContext(ctx)
	_ = pm.reconcile(cfg)
}

func (pm *PluginManager) StopAll(ctx context.Context, reason StopReason) {
	pm.mu.Lock()
	names := append([]string(nil), pm.order...)
	pm.mu.Unlock()

	// reverse registration order
	for i := len(names) - 1; i >= 0; i-- {
		pm.stopOne(ctx, names[i], reason)
	}
	pm.refreshRegistry(pm.cfgm.Get())
}

func (pm *PluginManager) stopOne(stopCtx context.Context, name string, reason StopReason) {
	pm.mu.Lock()
	p := pm.reg[name]
	running := pm.run[name]
	cancel := pm.pcancel[name]
	pm.mu.Unlock()
	if !running || p == nil {
		return
	}

	start := time.Now()
	if cancel != nil {
		cancel()
	}

	// a misbehaving Stop must not block shutdown forever
	done := make(chan struct{})
	go func() {
		_ = pm.safeCall("plugin.stop."+name, func() error { return p.Stop(stopCtx) })
		close(done)
	}()
	select {
	case <-done:
	case <-stopCtx.Done():
		pm.log.Warn("plugin stop timeout (continuing)", logx.String("plugin", name), logx.Err(stopCtx.Err()))
		pm.emit("plugin.stop_timeout", pluginEvent{Plugin: name, Reason: string(reason), Err: stopCtx.Err().Error()})
	}

	pm.mu.Lock()
	pm.run[name] = false
	delete(pm.pcancel, name)
	delete(pm.lastRawHash, name)
	pm.mu.Unlock()

	took := time.Since(start)
	pm.emit("plugin.stopped", pluginEvent{Plugin: name, Reason: string(reason), TookMS: took.Milliseconds()})
	pm.log.Info("plugin stopped", logx.String("plugin", name), logx.String("reason", string(reason)), logx.Duration("took", took))
}

func (pm *PluginManager) setQuarantine(name string, rawHash uint64, err error) {
	pm.mu.Lock()
	pm.quarantine[name] = quarantineState{rawHash: rawHash, err: err.Error(), since: time.Now()}
	pm.mu.Unlock()
	pm.log.Error("plugin quarantined", logx.String("plugin", name), logx.Err(err))
	pm.emit("plugin.quarantined", pluginEvent{Plugin: name, Err: err.Error()})
}

// isQuarantined is true while the config that failed is still the current one.
func (pm *PluginManager) isQuarantined(name string, rawHash uint64) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	q, ok := pm.quarantine[name]
	if ok && q.rawHash != rawHash {
		delete(pm.quarantine, name)
		return false
	}
	return ok
}

func (pm *PluginManager) reconcile(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	type op struct {
		name    string
		p       Plugin
		raw     config.PluginConfigRaw
		rawHash uint64
		enabled bool
		run     bool
	}
	pm.mu.Lock()
	ops := make([]op, 0, len(pm.order))
	for _, name := range pm.order {
		raw, ok := cfg.Plugins[name]
		ops = append(ops, op{
			name:    name,
			p:       pm.reg[name],
			raw:     raw,
			rawHash: canonicalHashJSON(raw.Config),
			enabled: ok && raw.Enabled,
			run:     pm.run[name],
		})
	}
	pm.mu.Unlock()

	const callTimeout = 10 * time.Second

	for _, o := range ops {
		switch {
		case o.enabled && !o.run:
			if pm.isQuarantined(o.name, o.rawHash) {
				pm.log.Warn("plugin enable skipped (quarantined)", logx.String("plugin", o.name))
				continue
			}
			if err := validateStandardTimeouts(o.name, o.raw.Config); err != nil {
				pm.setQuarantine(o.name, o.rawHash, err)
				continue
			}
			pm.enable(o.name, o.p, o.raw, o.rawHash, callTimeout)

		case !o.enabled && o.run:
			stopCtx, cancel := context.WithTimeout(pm.baseCtx, callTimeout)
			pm.stopOne(stopCtx, o.name, StopDisable)
			cancel()

		case o.enabled && o.run:
			cp, ok := o.p.(ConfigurablePlugin)
			if !ok {
				break
			}
			pm.mu.Lock()
			oldHash := pm.lastRawHash[o.name]
			pm.mu.Unlock()
			if o.rawHash == oldHash {
				break
			}
			err := validateStandardTimeouts(o.name, o.raw.Config)
			if err == nil {
				if v, ok := o.p.(ConfigValidator); ok {
					cctx, ccancel := context.WithTimeout(pm.baseCtx, callTimeout)
					err = v.ValidateConfig(cctx, o.raw.Config)
					ccancel()
				}
			}
			if err == nil {
				cctx, ccancel := context.WithTimeout(pm.baseCtx, callTimeout)
				err = pm.safeCall("plugin.config."+o.name, func() error { return cp.OnConfigChange(cctx, o.raw.Config) })
				ccancel()
			}
			if err != nil {
				pm.setQuarantine(o.name, o.rawHash, fmt.Errorf("config apply: %w", err))
				stopCtx, cancel := context.WithTimeout(pm.baseCtx, callTimeout)
				pm.stopOne(stopCtx, o.name, StopQuarantine)
				cancel()
				break
			}
			pm.emit("plugin.config_applied", pluginEvent{Plugin: o.name})
			pm.mu.Lock()
			pm.lastRawHash[o.name] = o.rawHash
			pm.mu.Unlock()
		}
	}

	pm.refreshRegistry(cfg)
	return nil
}

func (pm *PluginManager) enable(name string, p Plugin, raw config.PluginConfigRaw, rawHash uint64, callTimeout time.Duration) {
	pctx, cancel := context.WithCancel(pm.baseCtx)

	pm.mu.Lock()
	needInit := !pm.inited[name]
	deps := pm.deps
	pm.mu.Unlock()

	// Init runs once per process; re-enabling only restarts.
	if needInit {
		ictx, icancel := context.WithTimeout(pctx, callTimeout)
		err := pm.safeCall("plugin.init."+name, func() error { return p.Init(ictx, deps) })
		icancel()
		if err != nil {
			pm.log.Error("plugin init failed", logx.String("plugin", name), logx.Err(err))
			pm.emit("plugin.init_failed", pluginEvent{Plugin: name, Err: err.Error()})
			cancel()
			return
		}
		pm.mu.Lock()
		pm.inited[name] = true
		pm.mu.Unlock()
	}

	if v, ok := p.(ConfigValidator); ok {
		cctx, ccancel := context.WithTimeout(pctx, callTimeout)
		err := v.ValidateConfig(cctx, raw.Config)
		ccancel()
		if err != nil {
			pm.setQuarantine(name, rawHash, fmt.Errorf("config validate: %w", err))
			cancel()
			return
		}
	}
	if cp, ok := p.(ConfigurablePlugin); ok {
		cctx, ccancel := context.WithTimeout(pctx, callTimeout)
		err := pm.safeCall("plugin.config."+name, func() error { return cp.OnConfigChange(cctx, raw.Config) })
		ccancel()
		if err != nil {
			pm.setQuarantine(name, rawHash, fmt.Errorf("config apply: %w", err))
			cancel()
			return
		}
	}

	if err := pm.startWithTimeout(name, p, pctx, cancel, callTimeout); err != nil {
		pm.log.Error("plugin start failed", logx.String("plugin", name), logx.Err(err))
		pm.emit("plugin.start_failed", pluginEvent{Plugin: name, Err: err.Error()})
		cancel()
		return
	}

	pm.mu.Lock()
	pm.run[name] = true
	pm.pcancel[name] = cancel
	pm.lastRawHash[name] = rawHash
	delete(pm.quarantine, name)
	pm.mu.Unlock()

	pm.log.Info("plugin started", logx.String("plugin", name))
	pm.emit("plugin.started", pluginEvent{Plugin: name})
}

// startWithTimeout calls Start(pctx) but enforces a deadline; on timeout pctx is cancelled.
func (pm *PluginManager) startWithTimeout(name string, p Plugin, pctx context.Context, cancel context.CancelFunc, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- pm.safeCall("plugin.start."+name, func() error { return p.Start(pctx) })
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		cancel()
		grace := time.NewTimer(2 * time.Second)
		defer grace.Stop()
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("start timeout (%s): %w", timeout, err)
			}
			return fmt.Errorf("start timeout (%s)", timeout)
		case <-grace.C:
			return fmt.Errorf("start timeout (%s): start did not return after cancel", timeout)
		}
	}
}

func (pm *PluginManager) safeCall(label string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pm.log.Error("panic in plugin call",
				logx.String("call", label),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic in %s: %v", label, r)
		}
	}()
	return fn()
}

// refreshRegistry pushes the commands and presence observers of running plugins to the sink.
func (pm *PluginManager) refreshRegistry(cfg *config.Config) {
	if pm.sink == nil {
		return
	}
	pm.mu.Lock()
	var (
		cmds      []router.Command
		listeners []router.PresenceListener
	)
	for _, name := range pm.order {
		p := pm.reg[name]
		if !pm.run[name] {
			continue
		}
		var raw config.PluginConfigRaw
		if cfg != nil {
			raw = cfg.Plugins[name]
		}
		pto, hasTimeout := commandTimeout(raw.Config)
		for _, c := range pm.safeCommands(name, p) {
			c.PluginName = name
			if hasTimeout && c.Timeout <= 0 {
				c.Timeout = pto
			}
			cmds = append(cmds, c)
		}
		if po, ok := p.(PresenceObserver); ok {
			listeners = append(listeners, pm.presenceListener(name, po))
		}
	}
	pm.mu.Unlock()

	pm.sink.SetCommands(cmds)
	pm.sink.OnPresence(listeners...)
}

func (pm *PluginManager) presenceListener(name string, po PresenceObserver) router.PresenceListener {
	return func(ctx context.Context, p transport.PresenceChange) {
		_ = pm.safeCall("plugin.presence."+name, func() error {
			po.OnPresence(ctx, p)
			return nil
		})
	}
}

func (pm *PluginManager) safeCommands(name string, p Plugin) (out []router.Command) {
	defer func() {
		if r := recover(); r != nil {
			pm.log.Error("panic in plugin Commands()", logx.String("plugin", name), logx.Any("panic", r))
			out = nil
		}
	}()
	return p.Commands()
}

// ValidateConfig checks enabled plugin blocks before a new config is committed.
func (pm *PluginManager) ValidateConfig(ctx context.Context, cfg *config.Config) error {
	pm.mu.Lock()
	type item struct {
		name string
		p    Plugin
	}
	items := make([]item, 0, len(pm.order))
	for _, name := range pm.order {
		items = append(items, item{name: name, p: pm.reg[name]})
	}
	pm.mu.Unlock()

	for _, it := range items {
		raw, ok := cfg.Plugins[it.name]
		if !ok || !raw.Enabled {
			continue
		}
		if err := validateStandardTimeouts(it.name, raw.Config); err != nil {
			return err
		}
		if v, ok := it.p.(ConfigValidator); ok {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := v.ValidateConfig(cctx, raw.Config)
			cancel()
			if err != nil {
				return fmt.Errorf("plugin %s: config validate: %w", it.name, err)
			}
		}
	}
	return nil
}

func (pm *PluginManager) Snapshot() []Status {
	cfg := pm.cfgm.Get()
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make([]Status, 0, len(pm.reg))
	for name := range pm.reg {
		st := Status{Name: name, Running: pm.run[name]}
		if cfg != nil {
			st.Enabled = cfg.Plugins[name].Enabled
		}
		if q, ok := pm.quarantine[name]; ok {
			st.Quarantined = q.err
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
