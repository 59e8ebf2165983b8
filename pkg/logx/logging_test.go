package logx

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFormatChatLine(t *testing.T) {
	line := formatChatLine([]byte(`{"level":"warn","time":"x","message":"edit failed","user":"42","chat":7}`))
	want := "[WARN] edit failed\n- chat=7\n- user=42"
	if line != want {
		t.Fatalf("formatChatLine:\n got %q\nwant %q", line, want)
	}
	if got := formatChatLine([]byte("not json\n")); got != "not json" {
		t.Fatalf("non-json line = %q", got)
	}
}

func TestChatSinkForwardsWarnings(t *testing.T) {
	svc, log := NewService(Config{Level: "debug", Chat: ChatConfig{Enabled: true, MinLevel: "warn", RatePerSec: 50}})
	defer svc.Close()

	got := make(chan string, 4)
	svc.SetChatSink(func(ctx context.Context, text string) error {
		got <- text
		return nil
	})

	log.Info("quiet")
	log.Warn("loud", String("room", "lib"))

	select {
	case line := <-got:
		if !strings.HasPrefix(line, "[WARN] loud") || !strings.Contains(line, "room=lib") {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("warn line was not forwarded")
	}
	select {
	case line := <-got:
		t.Fatalf("info line should not be forwarded, got %q", line)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWithKeepsFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(zerolog.New(&buf)).With(String("plugin", "pomodoro"))
	log.Info("started", Int("users", 3))
	out := buf.String()
	for _, want := range []string{`"plugin":"pomodoro"`, `"users":3`, `"message":"started"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %s", out, want)
		}
	}
	if !(Logger{}).IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
}

func TestChatSinkReportsSuppressedLines(t *testing.T) {
	svc, log := NewService(Config{Level: "info", Chat: ChatConfig{Enabled: true, RatePerSec: 1}})
	defer svc.Close()

	got := make(chan string, 8)
	svc.SetChatSink(func(ctx context.Context, text string) error {
		got <- text
		return nil
	})

	log.Warn("first")
	log.Warn("second")
	log.Error("third")
	time.Sleep(1100 * time.Millisecond)
	log.Warn("fourth")

	var lines []string
	for len(lines) < 2 {
		select {
		case l := <-got:
			lines = append(lines, l)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d lines: %q", len(lines), lines)
		}
	}
	if !strings.HasPrefix(lines[0], "[WARN] first") {
		t.Fatalf("first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[WARN] fourth") || !strings.HasSuffix(lines[1], "(2 more lines suppressed)") {
		t.Fatalf("second line %q", lines[1])
	}
}

func TestApplyDisablesChatSink(t *testing.T) {
	svc, log := NewService(Config{Chat: ChatConfig{Enabled: true, RatePerSec: 10}})
	defer svc.Close()

	got := make(chan string, 4)
	svc.SetChatSink(func(ctx context.Context, text string) error {
		got <- text
		return nil
	})
	svc.Apply(Config{Level: "info"})
	log.Error("after disable")

	select {
	case l := <-got:
		t.Fatalf("chat sink still active: %q", l)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in, zerolog.InfoLevel); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
