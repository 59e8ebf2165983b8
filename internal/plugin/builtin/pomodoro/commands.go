package pomodoro

import (
	"context"
	"errors"
	"strconv"
	"time"

	core "studybot/internal/plugin"
	"studybot/internal/storage"
	"studybot/internal/study"
	"studybot/internal/study/timer"
	"studybot/internal/transport/router"
	"studybot/pkg/logx"
)

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "pomodoro",
			Aliases:     []string{"start"},
			Description: "Start a Pomodoro timer",
			Usage:       "/pomodoro [work minutes] [break minutes]",
			Handle:      p.cmdStart,
		},
		{
			Route:       "stop_timer",
			Aliases:     []string{"stop"},
			Description: "Stop your running Pomodoro timer",
			Usage:       "/stop_timer",
			Handle:      p.cmdStop,
		},
		{
			Route:       "log_study",
			Description: "Show how long you have studied this week",
			Usage:       "/log_study",
			Handle:      p.cmdLog,
		},
	}
}

var errBadWork = router.Invalid("Invalid Input", "Please enter a positive number for work minutes.", nil)

// parseMinutes reads an optional minutes argument. ok is false when the
// argument is present but not a whole number.
func parseMinutes(s string, def time.Duration) (time.Duration, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Minute, true
}

func (p *Plugin) cmdStart(ctx context.Context, req *core.Request) error {
	cfg := p.cfgSnapshot()
	reg, err := p.timers()
	if err != nil {
		return err
	}

	work, ok := parseMinutes(req.Arg(0), cfg.defaultWork)
	if !ok || work <= 0 {
		return errBadWork
	}
	brk, ok := parseMinutes(req.Arg(1), cfg.timer.DefaultBreak)
	if !ok || brk <= 0 {
		brk = cfg.timer.DefaultBreak
	}

	user := study.UserID(req.FromID)
	p.Deps.Roster.Remember(user, req.FromName)

	ref, err := req.ReplyCard(ctx, startCard(work))
	if err != nil {
		return err
	}
	view := newStatusView(p.Deps.Adapter, p.Log, p.Deps.Clock, cfg, p.Deps.Roster.Name(user), brk, ref)
	s, err := reg.Start(user, work, brk, view)
	if errors.Is(err, timer.ErrInvalidWork) {
		return errBadWork
	}
	if err != nil {
		return err
	}
	p.Log.Info("timer started",
		logx.String("session", s.ID()),
		logx.Int64("user", req.FromID),
		logx.Duration("work", work),
		logx.Duration("break", brk),
		logx.Bool("replaced", s.Replaced()),
		logx.String("req_id", req.ReqID),
	)
	return nil
}

func (p *Plugin) cmdStop(ctx context.Context, req *core.Request) error {
	reg, err := p.timers()
	if err != nil {
		return err
	}
	res, err := reg.Stop(study.UserID(req.FromID))
	if errors.Is(err, timer.ErrNotRunning) {
		_, err = req.ReplyCard(ctx, notRunningCard())
		return err
	}
	if err != nil {
		return err
	}

	worked := res.Credited
	if res.Phase == timer.PhaseBreak {
		worked = int(res.Work / time.Minute)
	}
	p.Log.Info("timer stopped",
		logx.String("session", res.SessionID),
		logx.Int64("user", req.FromID),
		logx.String("phase", res.Phase.String()),
		logx.Int("credited", res.Credited),
	)
	if res.Credited > 0 {
		err := p.AppendAudit(ctx, storage.AuditEntry{
			Action:    "pomodoro.stop",
			ActorID:   req.FromID,
			ActorName: req.FromName,
			ChatID:    req.Chat.ChatID,
			Target:    res.SessionID,
			MetaJSON:  `{"credited_minutes":` + strconv.Itoa(res.Credited) + `}`,
		})
		if err != nil && !errors.Is(err, core.ErrNoStore) {
			p.Log.Warn("audit failed", logx.Err(err))
		}
	}
	_, err = req.ReplyCard(ctx, stoppedCard(worked))
	return err
}

func (p *Plugin) cmdLog(ctx context.Context, req *core.Request) error {
	user := study.UserID(req.FromID)
	p.Deps.Roster.Remember(user, req.FromName)

	var active string
	if reg, err := p.timers(); err == nil {
		if s, ok := reg.Get(user); ok {
			active = activeLine(s.Status())
		}
	}
	_, err := req.ReplyCard(ctx, studyCard(p.Deps.Roster.Name(user), p.Deps.Ledger.Get(user), active))
	return err
}
