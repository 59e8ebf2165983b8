package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"studybot/internal/eventbus"
	"studybot/internal/transport"
	"studybot/internal/transport/transporttest"
	logx "studybot/pkg/logx"
)

func started(t *testing.T, cfg Config, ad transport.Adapter, bus eventbus.Bus) *Service {
	t.Helper()
	s := New(cfg, ad, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func waitSent(t *testing.T, ad *transporttest.Adapter) transporttest.Sent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, ok := ad.Next(ctx)
	if !ok {
		t.Fatal("timed out waiting for a send")
	}
	return s
}

func TestNotifyDisabled(t *testing.T) {
	s := New(Config{Enabled: false}, transporttest.New(), logx.Nop(), nil)
	s.Start(context.Background())
	if err := s.NotifyText(context.Background(), transport.ChatTarget{ChatID: 1}, "hi"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestNotifyBeforeStart(t *testing.T) {
	s := New(Config{Enabled: true}, transporttest.New(), logx.Nop(), nil)
	if err := s.NotifyText(context.Background(), transport.ChatTarget{ChatID: 1}, "hi"); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestNotifySendsTextAndCard(t *testing.T) {
	ad := transporttest.New()
	s := started(t, Config{Enabled: true, Workers: 1, RatePerSec: 100}, ad, nil)
	to := transport.ChatTarget{ChatID: 7, ThreadID: 3}

	if err := s.NotifyText(context.Background(), to, "hello"); err != nil {
		t.Fatal(err)
	}
	got := waitSent(t, ad)
	if got.Op != "send_text" || got.Text != "hello" || got.Ref.ChatID != 7 || got.Ref.ThreadID != 3 {
		t.Fatalf("unexpected send: %+v", got)
	}

	if err := s.NotifyCard(context.Background(), to, transport.Card{Title: "Weekly Leaderboard Reset"}); err != nil {
		t.Fatal(err)
	}
	if got := waitSent(t, ad); got.Op != "send_card" || got.Card.Title != "Weekly Leaderboard Reset" {
		t.Fatalf("unexpected send: %+v", got)
	}
}

func TestNotifyRetries(t *testing.T) {
	ad := transporttest.New()
	ad.SendErr = func(n int) error {
		if n < 3 {
			return errors.New("flaky")
		}
		return nil
	}
	s := started(t, Config{Enabled: true, Workers: 1, RatePerSec: 100, RetryMax: 3, RetryBase: time.Millisecond}, ad, nil)
	if err := s.NotifyText(context.Background(), transport.ChatTarget{ChatID: 1}, "x"); err != nil {
		t.Fatal(err)
	}
	waitSent(t, ad)
	h := s.History()
	if len(h) != 1 || h[0].Err != "" {
		t.Fatalf("history = %+v", h)
	}
}

func TestNotifyGivesUp(t *testing.T) {
	ad := transporttest.New()
	ad.SendErr = func(int) error { return errors.New("down") }
	bus := eventbus.New()
	events, unsub := eventbus.SubscribePrefix(bus, 16, EventFailed)
	defer unsub()

	s := started(t, Config{Enabled: true, Workers: 1, RatePerSec: 100, RetryMax: 1, RetryBase: time.Millisecond}, ad, bus)
	if err := s.NotifyText(context.Background(), transport.ChatTarget{ChatID: 1}, "x"); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-events:
		if ev := e.Data.(NotificationEvent); ev.Error != "down" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no failure event")
	}
}

func TestNotifyDedups(t *testing.T) {
	ad := transporttest.New()
	s := started(t, Config{Enabled: true, Workers: 1, RatePerSec: 100, DedupWindow: time.Hour}, ad, nil)
	to := transport.ChatTarget{ChatID: 1}
	for i := 0; i < 3; i++ {
		if err := s.NotifyText(context.Background(), to, "same"); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.NotifyText(context.Background(), to, "different")
	waitSent(t, ad)
	waitSent(t, ad)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if extra, ok := ad.Next(ctx); ok {
		t.Fatalf("duplicate was sent: %+v", extra)
	}
}

func TestStopDrainsQueue(t *testing.T) {
	ad := transporttest.New()
	s := New(Config{Enabled: true, Workers: 1, RatePerSec: 1000}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	for i := 0; i < 5; i++ {
		_ = s.NotifyText(context.Background(), transport.ChatTarget{ChatID: 1}, string(rune('a'+i)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	if n := len(ad.Sent()); n != 5 {
		t.Fatalf("sent %d, want 5", n)
	}
	if err := s.NotifyText(context.Background(), transport.ChatTarget{ChatID: 1}, "late"); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestRetryDelayIsCapped(t *testing.T) {
	cfg := Config{RetryBase: time.Second, RetryMaxDelay: 3 * time.Second}
	for attempt := 1; attempt < 10; attempt++ {
		if d := retryDelay(cfg, attempt); d <= 0 || d > cfg.RetryMaxDelay {
			t.Fatalf("attempt %d: delay %v", attempt, d)
		}
	}
}
