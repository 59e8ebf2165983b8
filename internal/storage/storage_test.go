package storage

import (
	"context"
	"path/filepath"
	"testing"

	logx "studybot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: got (%v, %v), want (nil, nil)", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestDrivers(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Driver: "memory"}},
		{"file", Config{Driver: "file", Path: filepath.Join(dir, "audit", "studybot.db")}},
		{"sqlite", Config{Driver: "sqlite", Path: filepath.Join(dir, "db", "studybot.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Open(tt.cfg, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()
			exerciseStore(t, st)
		})
	}
}

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	entries := []AuditEntry{
		{ActorID: 1, ActorName: "ana", Plugin: "studyroom", Action: "room.add", Target: "42"},
		{Plugin: "leaderboard", Action: "leaderboard.reset", MetaJSON: `{"epoch":1}`},
		{ActorID: 1, Plugin: "studyroom", Action: "room.remove", Target: "42"},
		{Plugin: "leaderboard", Action: "leaderboard.reset", MetaJSON: `{"epoch":2}`},
	}
	for _, e := range entries {
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	got, err := st.RecentAudit(ctx, "leaderboard.reset", 1)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(got) != 1 || got[0].MetaJSON != `{"epoch":2}` {
		t.Fatalf("latest reset = %+v", got)
	}
	if got[0].ID == "" || got[0].At.IsZero() {
		t.Fatalf("entry not normalized: %+v", got[0])
	}

	all, err := st.RecentAudit(ctx, "", 0)
	if err != nil {
		t.Fatalf("RecentAudit all: %v", err)
	}
	if len(all) != 4 || all[3].ActorName != "ana" || all[3].Target != "42" {
		t.Fatalf("all = %+v", all)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "bot.db")}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_ = st.AppendAudit(context.Background(), AuditEntry{Plugin: "p", Action: "a"})
	_ = st.Close()

	st, err = Open(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	got, _ := st.RecentAudit(context.Background(), "a", 10)
	if len(got) != 1 {
		t.Fatalf("got %d entries after reopen", len(got))
	}
}
