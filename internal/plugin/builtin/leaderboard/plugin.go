// Package leaderboard shows the weekly standings and runs the weekly reset.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	core "studybot/internal/plugin"
	"studybot/internal/storage"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	board "studybot/internal/study/leaderboard"
	"studybot/internal/transport"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

const (
	auditReset = "leaderboard.reset"
	jobCheck   = "check"
)

type Plugin struct {
	core.PluginBase

	mu      sync.RWMutex
	cfg     settings
	board   *board.Board
	auto    *board.AutoAnnounce
	started time.Time
	running bool
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "leaderboard" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	if p.Deps.Ledger == nil {
		p.Deps.Ledger = ledger.New()
	}
	if p.Deps.Roster == nil {
		p.Deps.Roster = study.NewRoster()
	}
	if p.Deps.Clock == nil {
		p.Deps.Clock = clockwork.NewRealClock()
	}
	cfg, err := parseConfig(nil, p.defaultLocation())
	if err != nil {
		return err
	}
	p.cfg = cfg
	return nil
}

func (p *Plugin) defaultLocation() *time.Location {
	if p.Deps.Scheduler != nil {
		return p.Deps.Scheduler.Location()
	}
	return time.UTC
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	now := p.Now()

	p.mu.Lock()
	cfg := p.cfg
	p.started = now
	p.board = board.NewBoard(p.Deps.Ledger, now, cfg.loc, p.announceReset)
	p.board.SetTopN(cfg.topN)
	p.auto = p.newAuto(cfg)
	p.running = true
	deadline := p.board.Deadline()
	p.mu.Unlock()

	if err := p.scheduleCheck(cfg); err != nil {
		return err
	}
	p.Log.Info("weekly reset scheduled",
		logx.Time("deadline", deadline),
		logx.Duration("check_every", cfg.checkEvery),
		logx.Bool("auto_announce", cfg.auto),
	)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return p.StopBase(ctx)
}

func (p *Plugin) newAuto(cfg settings) *board.AutoAnnounce {
	if !cfg.auto {
		return nil
	}
	return board.NewAutoAnnounce(cfg.weekday, cfg.hour, cfg.coldStart, p.started, cfg.loc)
}

// scheduleCheck registers the recurring reset check. Without a scheduler the
// check runs on the plugin's own ticker.
func (p *Plugin) scheduleCheck(cfg settings) error {
	_, err := p.Every(jobCheck, cfg.checkEvery, cfg.taskTO, p.check)
	if !errors.Is(err, core.ErrNoScheduler) {
		return err
	}
	p.Runner.Go0("leaderboard.check", func(ctx context.Context) {
		t := p.Deps.Clock.NewTicker(cfg.checkEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.Chan():
				cctx, cancel := context.WithTimeout(ctx, cfg.taskTO)
				if err := p.check(cctx); err != nil {
					p.Log.Warn("reset check failed", logx.Err(err))
				}
				cancel()
			}
		}
	})
	return nil
}

func (p *Plugin) ValidateConfig(ctx context.Context, raw json.RawMessage) error {
	_, err := parseConfig(raw, p.defaultLocation())
	return err
}

// OnConfigChange keeps the current deadline unless the timezone changed.
func (p *Plugin) OnConfigChange(ctx context.Context, raw json.RawMessage) error {
	cfg, err := parseConfig(raw, p.defaultLocation())
	if err != nil {
		return err
	}
	p.mu.Lock()
	old := p.cfg
	p.cfg = cfg
	running := p.running
	if running {
		if cfg.loc.String() != old.loc.String() {
			p.board = board.NewBoard(p.Deps.Ledger, p.Now(), cfg.loc, p.announceReset)
		}
		p.board.SetTopN(cfg.topN)
		p.auto = p.newAuto(cfg)
	}
	p.mu.Unlock()

	if running && (cfg.checkEvery != old.checkEvery || cfg.taskTO != old.taskTO) && p.Deps.Scheduler != nil {
		p.Unschedule(jobCheck)
		if _, err := p.Every(jobCheck, cfg.checkEvery, cfg.taskTO, p.check); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) snapshot() (settings, *board.Board, *board.AutoAnnounce) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.board, p.auto
}

// check is the recurring tick: weekly reset first, then the optional auto-announce.
func (p *Plugin) check(ctx context.Context) error {
	cfg, b, auto := p.snapshot()
	if b == nil {
		return nil
	}
	now := p.Now()
	reset, err := b.CheckAndReset(ctx, now)
	if reset {
		p.Log.Info("leaderboard reset", logx.Time("next", b.Deadline()))
	}
	if err != nil {
		return err
	}
	if auto != nil && !reset && auto.Due(now) {
		rows := freeze(b.Top(cfg.topN), p.Deps.Roster)
		return p.post(ctx, cfg, weeklyCard(rows, cfg.topN))
	}
	return nil
}

// announceReset posts the closing standings and the reset notice, then records
// the standings in the audit log.
func (p *Plugin) announceReset(ctx context.Context, r board.Reset) error {
	cfg, _, _ := p.snapshot()
	rows := freeze(r.Final, p.Deps.Roster)

	meta, err := json.Marshal(snapshot{Epoch: r.Epoch, At: r.At, Rows: rows})
	if err != nil {
		return err
	}
	aerr := p.AppendAudit(ctx, storage.AuditEntry{
		Action:   auditReset,
		ChatID:   cfg.announceChat,
		Target:   fmt.Sprintf("epoch:%d", r.Epoch),
		MetaJSON: string(meta),
	})
	if errors.Is(aerr, core.ErrNoStore) {
		aerr = nil
	}
	p.PublishEvent("leaderboard.reset", r)

	if cfg.announceChat == 0 {
		p.Log.Info("no announce chat configured; reset not posted", logx.Int("rows", len(rows)))
		return aerr
	}
	if err := p.post(ctx, cfg, weeklyCard(rows, cfg.topN)); err != nil {
		return err
	}
	if err := p.post(ctx, cfg, resetCard(r.NextDeadline)); err != nil {
		return err
	}
	return aerr
}

func (p *Plugin) post(ctx context.Context, cfg settings, card transport.Card) error {
	to := transport.ChatTarget{ChatID: cfg.announceChat, ThreadID: cfg.announceThread}
	if to.ChatID == 0 {
		return nil
	}
	return p.Post(ctx, to, card)
}

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "show_leaderboard",
			Aliases:     []string{"leaderboard"},
			Description: "Display the weekly study leaderboard",
			Usage:       "/show_leaderboard [--last]",
			Handle:      p.cmdShow,
		},
	}
}

func (p *Plugin) cmdShow(ctx context.Context, req *core.Request) error {
	cfg, b, _ := p.snapshot()
	p.Deps.Roster.Remember(study.UserID(req.FromID), req.FromName)

	if req.BoolFlags["last"] || req.Arg(0) == "last" {
		return p.showLast(ctx, req)
	}
	if b == nil {
		return errors.New("leaderboard: plugin not started")
	}

	rows := freeze(b.Top(cfg.topN), p.Deps.Roster)
	if len(rows) == 0 {
		_, err := req.ReplyCard(ctx, emptyCard())
		return err
	}
	card := weeklyCard(rows, cfg.topN)
	all := board.Rank(p.Deps.Ledger.Snapshot(), 0)
	card.Fields = append(card.Fields, transport.CardField{Name: "You", Value: standingLine(all, study.UserID(req.FromID))})
	card.Footer = "Resets " + b.Deadline().Format("Mon 2 Jan 15:04 MST")
	_, err := req.ReplyCard(ctx, card)
	return err
}

func (p *Plugin) showLast(ctx context.Context, req *core.Request) error {
	if p.Deps.Store == nil {
		_, err := req.ReplyCard(ctx, emptyLast())
		return err
	}
	entries, err := p.Deps.Store.RecentAudit(ctx, auditReset, 1)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := req.ReplyCard(ctx, emptyLast())
		return err
	}
	var s snapshot
	if err := json.Unmarshal([]byte(entries[0].MetaJSON), &s); err != nil {
		return fmt.Errorf("decode reset snapshot: %w", err)
	}
	_, err = req.ReplyCard(ctx, lastWeekCard(s))
	return err
}

func emptyLast() transport.Card {
	return chatui.Info("Last Week's Leaderboard", "No weekly reset has been recorded yet.")
}
