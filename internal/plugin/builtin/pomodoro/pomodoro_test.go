package pomodoro

import (
	"context"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "studybot/internal/plugin"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/study/timer"
	"studybot/internal/transport"
	"studybot/internal/transport/router"
	"studybot/internal/transport/transporttest"
)

type harness struct {
	p      *Plugin
	fake   *transporttest.Adapter
	fc     *clockwork.FakeClock
	ledger *ledger.Ledger
}

func newHarness(t *testing.T, adapter transport.Adapter, fake *transporttest.Adapter, raw string) *harness {
	t.Helper()
	h := &harness{p: New(), fake: fake, fc: clockwork.NewFakeClock(), ledger: ledger.New()}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, h.p.Init(ctx, core.PluginDeps{
		Adapter: adapter,
		Clock:   h.fc,
		Ledger:  h.ledger,
		Roster:  study.NewRoster(),
	}))
	require.NoError(t, h.p.OnConfigChange(ctx, []byte(raw)))
	require.NoError(t, h.p.Start(ctx))
	t.Cleanup(func() { _ = h.p.Stop(context.Background()) })
	return h
}

func (h *harness) request(args ...string) *core.Request {
	return &core.Request{
		Adapter:  h.p.Deps.Adapter,
		Chat:     transport.ChatTarget{ChatID: 55},
		FromID:   7,
		FromName: "ana",
		Args:     args,
	}
}

func (h *harness) session(t *testing.T) *timer.Session {
	t.Helper()
	reg, err := h.p.timers()
	require.NoError(t, err)
	s, ok := reg.Get(7)
	require.True(t, ok)
	return s
}

// drive advances the fake clock one tick at a time while the session is parked.
func drive(t *testing.T, fc *clockwork.FakeClock, s *timer.Session, until func() bool) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		parked := make(chan struct{})
		go func() {
			fc.BlockUntil(1)
			close(parked)
		}()
		select {
		case <-s.Done():
			return
		case <-parked:
		case <-deadline:
			t.Fatal("session stopped making progress")
		}
		if until != nil && until() {
			return
		}
		fc.Advance(time.Second)
	}
}

func titles(sent []transporttest.Sent, op string) []string {
	var out []string
	for _, s := range sent {
		if s.Op == op {
			out = append(out, s.Card.Title)
		}
	}
	return out
}

func TestFullSessionMovesIntoThread(t *testing.T) {
	fake := transporttest.New()
	h := newHarness(t, fake, fake, `{"max_segment":"30s","edit_every":"10s"}`)

	require.NoError(t, h.p.cmdStart(context.Background(), h.request("1", "1")))
	s := h.session(t)
	drive(t, h.fc, s, nil)
	<-s.Done()

	sent := fake.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, "Pomodoro Timer", sent[0].Card.Title)
	assert.Equal(t, "Work for 1 minutes. Timer updates every second.", sent[0].Card.Description)

	assert.Equal(t, []string{
		"Pomodoro Timer",
		"Timer Continues in Thread",
		"Work Timer Continues...",
		"Work Session Complete",
		"Break Timer",
		"Break Timer Continues...",
		"Break Over",
	}, titles(sent, "send_card"))

	var thread transporttest.Sent
	for _, c := range sent {
		if c.Op == "thread" {
			thread = c
		}
	}
	assert.Equal(t, "ana's Work Timer Thread", thread.Text)
	assert.Equal(t, sent[0].Ref.MessageID, thread.Ref.MessageID)

	for _, c := range sent {
		if c.Op != "send_card" {
			continue
		}
		switch c.Card.Title {
		case "Timer Continues in Thread", "Pomodoro Timer":
			assert.Zero(t, c.Ref.ThreadID, c.Card.Title)
		case "Work Session Complete", "Break Over", "Break Timer Continues...":
			assert.NotZero(t, c.Ref.ThreadID, c.Card.Title)
		}
	}

	edits := titles(sent, "edit_card")
	assert.NotEmpty(t, edits)
	// one edit per 10s window per phase plus the final second
	assert.LessOrEqual(t, len(edits), 16)
	assert.Equal(t, 1, h.ledger.Get(7).Focus)
}

func TestSegmentWithoutThreadsPostsInChannel(t *testing.T) {
	fake := transporttest.New()
	h := newHarness(t, transporttest.Plain{A: fake}, fake, `{"max_segment":"30s"}`)

	require.NoError(t, h.p.cmdStart(context.Background(), h.request("1", "1")))
	s := h.session(t)
	drive(t, h.fc, s, nil)
	<-s.Done()

	sent := fake.Sent()
	assert.NotContains(t, titles(sent, "send_card"), "Timer Continues in Thread")
	assert.Contains(t, titles(sent, "send_card"), "Work Timer Continues...")
	for _, c := range sent {
		assert.NotEqual(t, "thread", c.Op)
		assert.Zero(t, c.Ref.ThreadID)
	}
}

func TestEditFailurePostsFreshStatus(t *testing.T) {
	fake := transporttest.New()
	fake.EditErr = func(ref transport.MessageRef) error {
		if ref.MessageID == "1" {
			return transport.ErrMessageGone
		}
		return nil
	}
	h := newHarness(t, fake, fake, `{"edit_every":"1ms"}`)

	require.NoError(t, h.p.cmdStart(context.Background(), h.request("1")))
	s := h.session(t)
	ticks := 0
	drive(t, h.fc, s, func() bool { ticks++; return ticks > 3 })

	sent := fake.Sent()
	require.GreaterOrEqual(t, len(sent), 2)
	assert.Equal(t, "Timer Continues...", sent[1].Card.Title)
	assert.Equal(t, "Timer is still running...", sent[1].Card.Description)
	for _, c := range sent[2:] {
		if c.Op == "edit_card" {
			assert.Equal(t, sent[1].Ref.MessageID, c.Ref.MessageID)
		}
	}
}

func TestStopCreditsWorkedMinutes(t *testing.T) {
	fake := transporttest.New()
	h := newHarness(t, fake, fake, `{}`)

	require.NoError(t, h.p.cmdStart(context.Background(), h.request()))
	s := h.session(t)
	assert.Equal(t, 25*time.Minute, s.Work())
	assert.Equal(t, 5*time.Minute, s.Break())

	ticks := 0
	drive(t, h.fc, s, func() bool { ticks++; return ticks > 2 })
	h.fc.Advance(12 * time.Minute)

	require.NoError(t, h.p.cmdStop(context.Background(), h.request()))
	<-s.Done()

	var stopped transport.Card
	for _, c := range fake.Sent() {
		if c.Card.Title == "Pomodoro Timer Stopped" {
			stopped = c.Card
		}
	}
	assert.Equal(t, "The timer has been stopped successfully. You worked for 12 minutes.", stopped.Description)
	assert.Equal(t, 12, h.ledger.Get(7).Focus)

	require.NoError(t, h.p.cmdStop(context.Background(), h.request()))
	sent := fake.Sent()
	assert.Equal(t, "No Timer Running", sent[len(sent)-1].Card.Title)
}

func TestStartRejectsBadWork(t *testing.T) {
	fake := transporttest.New()
	h := newHarness(t, fake, fake, `{}`)

	for _, arg := range []string{"0", "-5", "ten"} {
		err := h.p.cmdStart(context.Background(), h.request(arg))
		var ue *router.UserError
		require.ErrorAs(t, err, &ue, arg)
		assert.Equal(t, "Invalid Input", ue.Title)
		assert.Equal(t, "Please enter a positive number for work minutes.", ue.Message)
	}
	assert.Empty(t, fake.Sent())

	// a bad break falls back to the default
	require.NoError(t, h.p.cmdStart(context.Background(), h.request("10", "-1")))
	assert.Equal(t, 5*time.Minute, h.session(t).Break())
}

func TestLogStudyShowsTotals(t *testing.T) {
	fake := transporttest.New()
	h := newHarness(t, fake, fake, `{}`)
	h.ledger.CreditFocus(7, 50)
	h.ledger.CreditPresence(7, 70)

	require.NoError(t, h.p.cmdLog(context.Background(), h.request()))
	card := fake.Sent()[0].Card
	assert.Equal(t, "Pomodoro Study Time", card.Title)
	assert.Equal(t, "ana, you have studied for a total of 50 minutes using Pomodoro sessions!", card.Description)
	require.Len(t, card.Fields, 3)
	assert.Equal(t, "2 hours and 0 minutes", card.Fields[2].Value)
}

func TestParseConfig(t *testing.T) {
	s, err := parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, timer.DefaultWork, s.defaultWork)
	assert.True(t, s.threads)

	s, err = parseConfig([]byte(`{"default_work_minutes":50,"default_break_minutes":10,"threads":false,"bar_length":10}`))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Minute, s.defaultWork)
	assert.Equal(t, 10*time.Minute, s.timer.DefaultBreak)
	assert.False(t, s.threads)
	assert.Equal(t, 10, s.barLength)

	_, err = parseConfig([]byte(`{"default_work_minutes":-1,"tick":"soon"}`))
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	var fields []string
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"default_work_minutes", "tick"}, fields)

	_, err = parseConfig([]byte(`{"work":25}`))
	require.Error(t, err)
}

func TestProgressCard(t *testing.T) {
	c := progressCard(timer.Progress{Phase: timer.PhaseWork, Remaining: 15 * time.Minute, Total: 20 * time.Minute}, 20)
	assert.Equal(t, "Work Timer: [█████–––––––––––––––] 15:00\nWork for 20 minutes.", c.Description)

	c = progressCard(timer.Progress{Phase: timer.PhaseBreak, Remaining: 59 * time.Second, Total: 5 * time.Minute}, 4)
	assert.Equal(t, "Break Timer: [███–] 00:59\nTake a break for 5 minutes.", c.Description)
}
