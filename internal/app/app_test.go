package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studybot/internal/config"
	"studybot/internal/eventbus"
	"studybot/internal/notifier"
	"studybot/internal/transport"
	"studybot/internal/transport/transporttest"
	"studybot/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCheckAcceptsMinimalConfig(t *testing.T) {
	p := writeConfig(t, `{
		"transport": {"driver": "telegram"},
		"telegram": {"token": "123:abc"},
		"scheduler": {"enabled": true, "timezone": "UTC"},
		"plugins": {"pomodoro": {"enabled": true}, "todo": {"enabled": true}}
	}`)
	if err := Check(context.Background(), p); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckRejectsBadPluginTimeouts(t *testing.T) {
	p := writeConfig(t, `{
		"transport": {"driver": "telegram"},
		"telegram": {"token": "123:abc"},
		"plugins": {"todo": {"enabled": true, "config": {"timeouts": {"bogus": "1s"}}}}
	}`)
	err := Check(context.Background(), p)
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected timeouts error, got %v", err)
	}
}

func TestCheckRejectsUnknownDriver(t *testing.T) {
	p := writeConfig(t, `{"transport": {"driver": "irc"}}`)
	if err := Check(context.Background(), p); err == nil {
		t.Fatal("expected driver error")
	}
}

func TestMapNotifierDefaults(t *testing.T) {
	got, err := mapNotifierConfig(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Enabled || got.Workers != 2 || got.QueueSize != 512 || got.RetryBase != 500*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	got, err = mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{Enabled: true, Workers: 4, DedupWindow: "1m"}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Workers != 4 || got.DedupWindow != time.Minute || got.QueueSize != 512 {
		t.Fatalf("override not applied: %+v", got)
	}

	if _, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{Workers: -1}}); err == nil {
		t.Fatal("expected error for negative workers")
	}
}

func TestMapStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		in      *config.StorageConfig
		enabled bool
		path    string
		wantErr bool
	}{
		{name: "omitted"},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file default path", in: &config.StorageConfig{Driver: "file"}, enabled: true, path: "./data/audit.jsonl"},
		{name: "sqlite", in: &config.StorageConfig{Driver: "SQLite", Path: "x.db"}, enabled: true, path: "x.db"},
		{name: "sqlite needs path", in: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown", in: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, enabled, err := mapStorageConfig(&config.Config{Storage: tc.in})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
			if enabled != tc.enabled || sc.Path != tc.path {
				t.Fatalf("got enabled=%v path=%q", enabled, sc.Path)
			}
		})
	}
}

func TestMapLogConfigNeedsLogChat(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{Chat: config.LoggingChat{Enabled: true}}}
	if mapLogConfig(cfg).Chat.Enabled {
		t.Fatal("chat sink enabled without transport.log_chat")
	}
	cfg.Transport.LogChat.ChatID = -100
	if !mapLogConfig(cfg).Chat.Enabled {
		t.Fatal("chat sink should be enabled")
	}
}

func TestPosterFallsBackToAdapterWhenNotifierDisabled(t *testing.T) {
	ad := transporttest.New()
	n := notifier.New(notifier.Config{Enabled: false}, ad, logx.Nop(), eventbus.New())
	p := &poster{notif: n, adapter: ad}

	card := transport.Card{Title: "Leaderboard"}
	err := p.Notify(context.Background(), transport.Notification{Target: transport.ChatTarget{ChatID: 7}, Card: &card})
	if err != nil {
		t.Fatal(err)
	}
	sent := ad.Sent()
	if len(sent) != 1 || sent[0].Op != "send_card" || sent[0].Card.Title != "Leaderboard" || sent[0].Ref.ChatID != 7 {
		t.Fatalf("unexpected sends: %+v", sent)
	}

	if err := p.Notify(context.Background(), transport.Notification{Target: transport.ChatTarget{ChatID: 7}, Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	if sent = ad.Sent(); len(sent) != 2 || sent[1].Op != "send_text" || sent[1].Text != "hi" {
		t.Fatalf("unexpected sends: %+v", sent)
	}
}
