package pomodoro

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"studybot/internal/study/timer"
	"studybot/internal/transport"
	"studybot/pkg/logx"
)

// statusView draws one session into chat. The session loop is its only caller,
// so the fields need no locking.
type statusView struct {
	adapter  transport.Adapter
	log      logx.Logger
	clock    clockwork.Clock
	limiter  *rate.Limiter
	barLen   int
	threads  bool
	userName string
	brk      time.Duration

	// channel is where the command was issued; target is where updates go now.
	channel  transport.ChatTarget
	target   transport.ChatTarget
	ref      transport.MessageRef
	threaded bool
	lastLeft time.Duration
}

func newStatusView(a transport.Adapter, log logx.Logger, clk clockwork.Clock, s settings, userName string, brk time.Duration, first transport.MessageRef) *statusView {
	return &statusView{
		adapter:  a,
		log:      log,
		clock:    clk,
		limiter:  rate.NewLimiter(rate.Every(s.editEvery), 1),
		barLen:   s.barLength,
		threads:  s.threads,
		userName: userName,
		brk:      brk,
		channel:  first.Target(),
		target:   first.Target(),
		ref:      first,
		lastLeft: -1,
	}
}

// Progress edits the status message, at most once per edit window. The final
// second of a phase is always drawn.
func (v *statusView) Progress(ctx context.Context, p timer.Progress) error {
	if p.Remaining == v.lastLeft {
		return nil
	}
	if !v.limiter.AllowN(v.clock.Now(), 1) && p.Remaining > time.Second {
		return nil
	}
	v.lastLeft = p.Remaining
	if v.ref.MessageID == "" {
		return transport.ErrMessageGone
	}
	return v.adapter.EditCard(ctx, v.ref, progressCard(p, v.barLen))
}

func (v *statusView) Recover(ctx context.Context, p timer.Progress, cause error) {
	if !errors.Is(cause, transport.ErrMessageGone) {
		v.log.Debug("status edit failed", logx.String("session", p.SessionID), logx.Err(cause))
	}
	ref, err := v.adapter.SendCard(ctx, v.target, recoverCard(p.Phase), nil)
	if err != nil {
		v.log.Warn("status repost failed", logx.String("session", p.SessionID), logx.Err(err))
		return
	}
	v.ref = ref
}

// Segment moves the countdown to a fresh message. The first time it happens the
// countdown is moved into a thread when the platform supports it.
func (v *statusView) Segment(ctx context.Context, p timer.Progress) {
	if v.threads && !v.threaded {
		if opener, ok := v.adapter.(transport.ThreadOpener); ok {
			v.openThread(ctx, opener, p)
		}
	}
	ref, err := v.adapter.SendCard(ctx, v.target, continuesCard(p.Phase), nil)
	if err != nil {
		v.log.Warn("segment post failed", logx.String("session", p.SessionID), logx.Err(err))
		v.ref = transport.MessageRef{}
		return
	}
	v.ref = ref
}

func (v *statusView) openThread(ctx context.Context, opener transport.ThreadOpener, p timer.Progress) {
	v.threaded = true
	if _, err := v.adapter.SendCard(ctx, v.channel, threadNoticeCard(), nil); err != nil {
		v.log.Warn("thread notice failed", logx.Err(err))
	}
	to, err := opener.OpenThread(ctx, v.ref, threadName(v.userName, p.Phase))
	if err != nil {
		v.log.Warn("open thread failed", logx.String("session", p.SessionID), logx.Err(err))
		return
	}
	v.target = to
}

func (v *statusView) PhaseDone(ctx context.Context, p timer.Progress) {
	if p.Phase == timer.PhaseBreak {
		if _, err := v.adapter.SendCard(ctx, v.target, breakOverCard(), nil); err != nil {
			v.log.Warn("break over post failed", logx.Err(err))
		}
		return
	}
	if _, err := v.adapter.SendCard(ctx, v.target, workDoneCard(p.Total), nil); err != nil {
		v.log.Warn("work done post failed", logx.Err(err))
	}
	ref, err := v.adapter.SendCard(ctx, v.target, breakStartCard(v.brk), nil)
	if err != nil {
		v.log.Warn("break card post failed", logx.Err(err))
		v.ref = transport.MessageRef{}
		return
	}
	v.ref = ref
	v.lastLeft = -1
	v.limiter = rate.NewLimiter(v.limiter.Limit(), 1)
}
