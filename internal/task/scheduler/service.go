package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"studybot/internal/eventbus"
	logx "studybot/pkg/logx"
)

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		bus: bus,
		ctx: context.Background(),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Enabled reports the current config flag. Apply may run concurrently.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Location is the timezone schedules are evaluated in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	return s.loadLocationLocked()
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg

	switch {
	case s.c == nil && cfg.Enabled && s.started:
		s.startLocked()
	case s.c != nil && !cfg.Enabled:
		s.stopLocked()
		s.log.Info("service disabled")
	case s.c != nil && oldTZ != strings.TrimSpace(cfg.Timezone):
		s.stopLocked()
		s.startLocked()
	}
}

// Start begins triggering. Jobs run with contexts derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.started = true
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Info("service disabled; schedules kept until enabled", logx.Int("schedules", len(s.defs)))
		return
	}
	s.startLocked()
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.started = false
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) startLocked() {
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.log})),
	)
	for _, d := range s.defs {
		if err := s.addCronLocked(d); err != nil {
			s.log.Error("schedule register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", loc.String()), logx.Int("schedules", len(s.defs)))
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	for _, d := range s.defs {
		d.entryID = 0
	}
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	job := cron.FuncJob(func() { s.run(d) })

	spec := strings.TrimSpace(d.spec)
	if strings.HasPrefix(spec, "@every") {
		every, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every")))
		if err == nil && every > 0 {
			sched, jitter := intervalWithSpread(every, time.Now().In(s.loc), d.name)
			d.spread = jitter
			d.entryID = s.c.Schedule(sched, job)
			return nil
		}
	}
	d.spread = 0
	eid, err := s.c.AddJob(d.spec, job)
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

func (s *Service) run(d *scheduleDef) {
	started := time.Now()
	if !d.running.CompareAndSwap(false, true) {
		s.log.Debug("schedule trigger skipped; previous run in flight", logx.String("schedule", d.name))
		s.record(HistoryItem{Name: d.name, Started: started, Skipped: true})
		return
	}
	defer d.running.Store(false)

	s.mu.Lock()
	parent := s.ctx
	timeout := d.timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	err := runRecovered(ctx, d.job)

	item := HistoryItem{Name: d.name, Started: started, Duration: time.Since(started)}
	if err != nil {
		item.Err = err.Error()
		s.log.Warn("scheduled job failed", logx.String("schedule", d.name), logx.Duration("took", item.Duration), logx.Err(err))
	} else {
		s.log.Debug("scheduled job done", logx.String("schedule", d.name), logx.Duration("took", item.Duration))
	}
	s.record(item)
}

func runRecovered(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job(ctx)
}

func (s *Service) record(it HistoryItem) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()
	if limit <= 0 {
		limit = defaultHistorySize
	}

	s.hmu.Lock()
	s.history = append(s.history, it)
	if over := len(s.history) - limit; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.hmu.Unlock()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: EventRun, Time: it.Started, Data: it})
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to UTC", logx.String("tz", tz), logx.Err(err))
		return time.UTC
	}
	return loc
}

// cronLogger routes robfig/cron's internal logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
