// Package timer runs per-user Pomodoro sessions: a work countdown followed by a
// break countdown, reported tick by tick to a Renderer.
package timer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"studybot/internal/study"
)

const (
	DefaultWork       = 25 * time.Minute
	DefaultBreak      = 5 * time.Minute
	DefaultTick       = time.Second
	DefaultMaxSegment = 14 * time.Minute
	DefaultBarLength  = 20

	// logicalStep is how much countdown one tick consumes, independent of Tick.
	logicalStep = time.Second
)

var (
	ErrInvalidWork = errors.New("work duration must be positive")
	ErrNotRunning  = errors.New("no active session")
)

type Phase int

const (
	PhaseWork Phase = iota
	PhaseBreak
)

func (p Phase) String() string {
	if p == PhaseBreak {
		return "break"
	}
	return "work"
}

type State int

const (
	StateWork State = iota
	StateBreak
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateWork:
		return "work"
	case StateBreak:
		return "break"
	case StateDone:
		return "done"
	default:
		return "cancelled"
	}
}

func (s State) terminal() bool { return s == StateDone || s == StateCancelled }

// Progress is one countdown observation.
type Progress struct {
	SessionID string
	User      study.UserID
	Phase     Phase
	Remaining time.Duration
	Total     time.Duration
	// Segment counts segment boundaries crossed within the phase, starting at 0.
	Segment int
}

// Fraction is (total - remaining) / total.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Total-p.Remaining) / float64(p.Total)
}

// Bar draws floor(fraction*length) filled cells followed by empty ones.
func Bar(fraction float64, length int) string {
	if length <= 0 {
		return ""
	}
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * float64(length))
	return strings.Repeat("█", filled) + strings.Repeat("–", length-filled)
}

// Renderer is the drawing side of a session. Calls for one session never overlap.
type Renderer interface {
	// Progress redraws the status for a tick.
	Progress(ctx context.Context, p Progress) error
	// Recover posts a fresh status after Progress failed; the countdown goes on either way.
	Recover(ctx context.Context, p Progress, cause error)
	// Segment moves drawing to a new target after MaxSegment of countdown.
	Segment(ctx context.Context, p Progress)
	// PhaseDone reports that a phase ran to zero.
	PhaseDone(ctx context.Context, p Progress)
}

// FocusCrediter receives the work minutes of a session.
type FocusCrediter interface {
	CreditFocus(user study.UserID, minutes int)
}

// Session is one user's running Pomodoro. Its countdown goroutine is the only
// writer of remaining; state changes are shared with Stop under mu.
type Session struct {
	id       string
	user     study.UserID
	work     time.Duration
	brk      time.Duration
	replaced bool
	cfg      Config
	clock    clockwork.Clock
	ledger   FocusCrediter
	render   Renderer
	notify   func(Event)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	state        State
	phaseStarted time.Time
	remaining    time.Duration
}

func (s *Session) ID() string               { return s.id }
func (s *Session) User() study.UserID       { return s.user }
func (s *Session) Work() time.Duration      { return s.work }
func (s *Session) Break() time.Duration     { return s.brk }
func (s *Session) Done() <-chan struct{}    { return s.done }
func (s *Session) Context() context.Context { return s.ctx }

// Replaced reports whether starting this session cancelled an older one.
func (s *Session) Replaced() bool { return s.replaced }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current state and the logical time left in the phase.
func (s *Session) Status() (State, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.remaining
}

func (s *Session) run() {
	defer close(s.done)
	if !s.runPhase(PhaseWork, s.work) {
		return
	}
	if !s.runPhase(PhaseBreak, s.brk) {
		return
	}
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateDone
	s.mu.Unlock()
	s.emit(EventCompleted, PhaseBreak)
}

// runPhase counts one phase down. It returns false once the session is cancelled.
func (s *Session) runPhase(phase Phase, total time.Duration) bool {
	if !s.enter(phase, total) {
		return false
	}
	p := Progress{SessionID: s.id, User: s.user, Phase: phase, Remaining: total, Total: total}
	segmentStart := total
	for p.Remaining > 0 {
		if s.ctx.Err() != nil {
			return false
		}
		if segmentStart-p.Remaining >= s.cfg.MaxSegment {
			p.Segment++
			segmentStart = p.Remaining
			s.render.Segment(s.ctx, p)
		}
		if err := s.render.Progress(s.ctx, p); err != nil && s.ctx.Err() == nil {
			s.render.Recover(s.ctx, p, err)
		}
		if !s.sleep(s.cfg.Tick) {
			return false
		}
		p.Remaining = max(p.Remaining-logicalStep, 0)
		s.mu.Lock()
		s.remaining = p.Remaining
		s.mu.Unlock()
	}

	if phase == PhaseWork && !s.finishWork() {
		return false
	}
	s.render.PhaseDone(s.ctx, p)
	return true
}

func (s *Session) enter(phase Phase, total time.Duration) bool {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return false
	}
	if phase == PhaseBreak {
		s.state = StateBreak
	}
	s.remaining = total
	s.phaseStarted = s.clock.Now()
	s.mu.Unlock()
	if phase == PhaseBreak {
		s.emit(EventPhase, phase)
	}
	return true
}

// finishWork credits the nominal work duration unless Stop got there first.
func (s *Session) finishWork() bool {
	s.mu.Lock()
	if s.state != StateWork {
		s.mu.Unlock()
		return false
	}
	// Leaving StateWork here means a later Stop sees the credit as already paid.
	s.state = StateBreak
	s.mu.Unlock()
	s.ledger.CreditFocus(s.user, int(s.work/time.Minute))
	return true
}

func (s *Session) sleep(d time.Duration) bool {
	t := s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}

// halt moves the session to Cancelled. It reports the phase it interrupted and the
// wall-clock time spent in that phase; ok is false if the session had already ended.
func (s *Session) halt() (phase Phase, elapsed time.Duration, ok bool) {
	s.mu.Lock()
	st := s.state
	if st.terminal() {
		s.mu.Unlock()
		return 0, 0, false
	}
	s.state = StateCancelled
	elapsed = s.clock.Since(s.phaseStarted)
	s.mu.Unlock()

	s.cancel()
	if st == StateBreak {
		phase = PhaseBreak
	}
	s.emit(EventCancelled, phase)
	return phase, elapsed, true
}

func (s *Session) emit(kind EventKind, phase Phase) {
	if s.notify != nil {
		s.notify(Event{Kind: kind, SessionID: s.id, User: s.user, Phase: phase, At: s.clock.Now()})
	}
}
