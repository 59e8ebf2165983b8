package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"studybot/internal/study"
)

type EventKind string

const (
	EventStarted   EventKind = "timer.started"
	EventPhase     EventKind = "timer.phase"
	EventCompleted EventKind = "timer.completed"
	EventCancelled EventKind = "timer.cancelled"
)

type Event struct {
	Kind      EventKind
	SessionID string
	User      study.UserID
	Phase     Phase
	At        time.Time
}

type Config struct {
	// Tick is the real time between two countdown steps.
	Tick time.Duration
	// MaxSegment bounds how much countdown one rendering target covers.
	MaxSegment time.Duration
	// DefaultBreak replaces a non-positive break duration.
	DefaultBreak time.Duration
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.MaxSegment <= 0 {
		c.MaxSegment = DefaultMaxSegment
	}
	if c.DefaultBreak <= 0 {
		c.DefaultBreak = DefaultBreak
	}
	return c
}

type Options struct {
	Config Config
	Clock  clockwork.Clock
	// Spawn runs a session loop; it defaults to a plain goroutine.
	Spawn func(name string, fn func(ctx context.Context))
	// OnEvent observes lifecycle changes. It must not block.
	OnEvent func(Event)
}

// StopResult describes a session ended by Stop.
type StopResult struct {
	SessionID string
	Phase     Phase
	Elapsed   time.Duration
	// Work is the session's configured work duration.
	Work time.Duration
	// Credited is the focus minutes granted by this stop (0 when stopped during break).
	Credited int
}

// Registry maps each user to at most one live session.
type Registry struct {
	parent context.Context
	ledger FocusCrediter
	clock  clockwork.Clock
	spawn  func(name string, fn func(ctx context.Context))
	notify func(Event)

	mu       sync.Mutex
	cfg      Config
	sessions map[study.UserID]*Session
}

// NewRegistry binds session lifetimes to parent: cancelling it cancels every session without credit.
func NewRegistry(parent context.Context, ledger FocusCrediter, opts Options) *Registry {
	r := &Registry{
		parent:   parent,
		ledger:   ledger,
		clock:    opts.Clock,
		spawn:    opts.Spawn,
		notify:   opts.OnEvent,
		cfg:      opts.Config.withDefaults(),
		sessions: map[study.UserID]*Session{},
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.spawn == nil {
		r.spawn = func(_ string, fn func(ctx context.Context)) { go fn(parent) }
	}
	return r
}

// SetConfig affects sessions started afterwards.
func (r *Registry) SetConfig(cfg Config) {
	r.mu.Lock()
	r.cfg = cfg.withDefaults()
	r.mu.Unlock()
}

// Start launches a session for user, cancelling (without credit) any session the user
// already had. A non-positive work duration is rejected; a non-positive break falls
// back to the configured default.
func (r *Registry) Start(user study.UserID, work, brk time.Duration, render Renderer) (*Session, error) {
	if work <= 0 {
		return nil, ErrInvalidWork
	}

	r.mu.Lock()
	cfg := r.cfg
	if brk <= 0 {
		brk = cfg.DefaultBreak
	}
	ctx, cancel := context.WithCancel(r.parent)
	s := &Session{
		id:     uuid.NewString(),
		user:   user,
		work:   work,
		brk:    brk,
		cfg:    cfg,
		clock:  r.clock,
		ledger: r.ledger,
		render: render,
		notify: r.notify,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateWork,
	}
	s.phaseStarted = r.clock.Now()
	s.remaining = work
	if old := r.sessions[user]; old != nil {
		old.halt()
		s.replaced = true
	}
	r.sessions[user] = s
	r.mu.Unlock()

	if r.notify != nil {
		r.notify(Event{Kind: EventStarted, SessionID: s.id, User: user, Phase: PhaseWork, At: s.phaseStarted})
	}
	r.spawn("timer."+s.id, func(context.Context) {
		defer r.release(s)
		s.run()
	})
	return s, nil
}

// Stop cancels the user's session. Stopping during work credits the whole minutes of
// wall-clock time spent working; stopping during break credits nothing more.
func (r *Registry) Stop(user study.UserID) (StopResult, error) {
	r.mu.Lock()
	s := r.sessions[user]
	if s == nil {
		r.mu.Unlock()
		return StopResult{}, ErrNotRunning
	}
	delete(r.sessions, user)
	phase, elapsed, ok := s.halt()
	r.mu.Unlock()

	if !ok {
		return StopResult{}, ErrNotRunning
	}
	res := StopResult{SessionID: s.id, Phase: phase, Elapsed: elapsed, Work: s.work}
	if phase == PhaseWork {
		res.Credited = int(elapsed / time.Minute)
		r.ledger.CreditFocus(user, res.Credited)
	}
	return res, nil
}

func (r *Registry) Get(user study.UserID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[user]
	return s, ok
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CancelAll ends every session without credit.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[study.UserID]*Session{}
	r.mu.Unlock()
	for _, s := range all {
		s.halt()
	}
}

// release forgets s once its loop has exited, unless a newer session took its slot.
func (r *Registry) release(s *Session) {
	r.mu.Lock()
	if r.sessions[s.user] == s {
		delete(r.sessions, s.user)
	}
	r.mu.Unlock()
	s.cancel()
}
