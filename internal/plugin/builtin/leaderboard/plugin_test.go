package leaderboard

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "studybot/internal/plugin"
	"studybot/internal/storage"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/task/scheduler"
	"studybot/internal/transport"
	"studybot/internal/transport/transporttest"
)

// jobs stands in for the scheduler; tests call check directly.
type jobs struct {
	mu    sync.Mutex
	added map[string]time.Duration
}

func (j *jobs) Enabled() bool            { return true }
func (j *jobs) Location() *time.Location { return time.UTC }

func (j *jobs) AddInterval(name string, every, timeout time.Duration, job scheduler.Job) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.added == nil {
		j.added = map[string]time.Duration{}
	}
	j.added[name] = every
	return name, nil
}

func (j *jobs) AddCron(name, spec string, timeout time.Duration, job scheduler.Job) (string, error) {
	return name, nil
}

func (j *jobs) AddSchedule(name, spec string, timeout time.Duration, job scheduler.Job) (string, error) {
	return name, nil
}

func (j *jobs) AddDaily(name, at string, timeout time.Duration, job scheduler.Job) (string, error) {
	return name, nil
}

func (j *jobs) AddWeekly(name string, day time.Weekday, at string, timeout time.Duration, job scheduler.Job) (string, error) {
	return name, nil
}

func (j *jobs) Remove(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.added[name]
	delete(j.added, name)
	return ok
}

type fixture struct {
	p      *Plugin
	fake   *transporttest.Adapter
	fc     *clockwork.FakeClock
	ledger *ledger.Ledger
	roster *study.Roster
	store  storage.Store
	sched  *jobs
}

// sunday2300 is Sunday 18 Oct 2026, one hour before the weekly boundary.
var sunday2300 = time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, raw string) *fixture {
	t.Helper()
	f := &fixture{
		p:      New(),
		fake:   transporttest.New(),
		fc:     clockwork.NewFakeClockAt(sunday2300),
		ledger: ledger.New(),
		roster: study.NewRoster(),
		store:  storage.NewMemory(),
		sched:  &jobs{},
	}
	ctx := context.Background()
	require.NoError(t, f.p.Init(ctx, core.PluginDeps{
		Adapter:   f.fake,
		Clock:     f.fc,
		Ledger:    f.ledger,
		Roster:    f.roster,
		Store:     f.store,
		Scheduler: f.sched,
	}))
	require.NoError(t, f.p.OnConfigChange(ctx, []byte(raw)))
	require.NoError(t, f.p.Start(ctx))
	t.Cleanup(func() { _ = f.p.Stop(context.Background()) })
	return f
}

func (f *fixture) req(flags ...string) *core.Request {
	r := &core.Request{Adapter: f.fake, Chat: transport.ChatTarget{ChatID: 5}, FromID: 1, FromName: "ana", BoolFlags: map[string]bool{}}
	for _, fl := range flags {
		r.BoolFlags[fl] = true
	}
	return r
}

func (f *fixture) seed() {
	f.roster.Remember(1, "ana")
	f.roster.Remember(2, "bo")
	f.ledger.CreditFocus(1, 30)
	f.ledger.CreditPresence(2, 90)
}

func cards(a *transporttest.Adapter) []transport.Card {
	var out []transport.Card
	for _, s := range a.Sent() {
		out = append(out, s.Card)
	}
	return out
}

func TestWeeklyResetPostsAndRecordsFinalStandings(t *testing.T) {
	f := newFixture(t, `{"announce_chat":77}`)
	ctx := context.Background()
	f.seed()
	assert.Contains(t, f.sched.added, "leaderboard:check")

	require.NoError(t, f.p.check(ctx))
	assert.Empty(t, f.fake.Sent(), "no reset before the deadline")

	f.fc.Advance(61 * time.Minute)
	require.NoError(t, f.p.check(ctx))

	got := cards(f.fake)
	require.Len(t, got, 2)
	assert.Equal(t, "Weekly Study Leaderboard", got[0].Title)
	assert.Equal(t, "Top 10 of This Week! Congratulations keep up the good work :):\n1. bo: 1 hour and 30 minutes\n2. ana: 30 minutes", got[0].Description)
	assert.Equal(t, "Weekly Leaderboard Reset", got[1].Title)
	for _, s := range f.fake.Sent() {
		assert.Equal(t, int64(77), s.Ref.ChatID)
	}

	assert.Empty(t, f.ledger.Snapshot())
	_, b, _ := f.p.snapshot()
	assert.Equal(t, time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC), b.Deadline())

	// one reset per boundary
	require.NoError(t, f.p.check(ctx))
	assert.Len(t, f.fake.Sent(), 2)

	require.NoError(t, f.p.cmdShow(ctx, f.req("last")))
	last := cards(f.fake)[2]
	assert.Equal(t, "Last Week's Leaderboard", last.Title)
	assert.Contains(t, last.Description, "1. bo: 1 hour and 30 minutes")

	entries, err := f.store.RecentAudit(ctx, auditReset, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "epoch:0", entries[0].Target)
}

func TestResetWithoutAnnounceChatStillRecords(t *testing.T) {
	f := newFixture(t, `{}`)
	ctx := context.Background()
	f.seed()

	f.fc.Advance(2 * time.Hour)
	require.NoError(t, f.p.check(ctx))
	assert.Empty(t, f.fake.Sent())
	assert.Empty(t, f.ledger.Snapshot())

	entries, err := f.store.RecentAudit(ctx, auditReset, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestShowLeaderboard(t *testing.T) {
	f := newFixture(t, `{"top_n":1}`)
	ctx := context.Background()

	require.NoError(t, f.p.cmdShow(ctx, f.req()))
	assert.Equal(t, "No Study Times Logged", cards(f.fake)[0].Title)

	require.NoError(t, f.p.cmdShow(ctx, f.req("last")))
	assert.Equal(t, "No weekly reset has been recorded yet.", cards(f.fake)[1].Description)

	f.seed()
	require.NoError(t, f.p.cmdShow(ctx, f.req()))
	c := cards(f.fake)[2]
	assert.Equal(t, "Top 1 of This Week! Congratulations keep up the good work :):\n1. bo: 1 hour and 30 minutes", c.Description)
	require.Len(t, c.Fields, 1)
	assert.Equal(t, "You are 2nd of 2 with 30 minutes.", c.Fields[0].Value)
}

func TestAutoAnnounceOncePerHourAfterColdStart(t *testing.T) {
	f := newFixture(t, `{"announce_chat":9,"auto_announce":{"weekday":"sun","hour":23,"cold_start":"10m"}}`)
	ctx := context.Background()
	f.seed()

	f.fc.Advance(5 * time.Minute)
	require.NoError(t, f.p.check(ctx))
	assert.Empty(t, f.fake.Sent(), "cold start")

	f.fc.Advance(10 * time.Minute)
	require.NoError(t, f.p.check(ctx))
	require.Len(t, f.fake.Sent(), 1)
	assert.Equal(t, "Weekly Study Leaderboard", cards(f.fake)[0].Title)

	f.fc.Advance(30 * time.Minute)
	require.NoError(t, f.p.check(ctx))
	assert.Len(t, f.fake.Sent(), 1)
}

func TestReconfigureReschedulesCheck(t *testing.T) {
	f := newFixture(t, `{}`)
	require.NoError(t, f.p.OnConfigChange(context.Background(), []byte(`{"check_every":"5m"}`)))
	assert.Equal(t, 5*time.Minute, f.sched.added["leaderboard:check"])
}

func TestParseConfig(t *testing.T) {
	s, err := parseConfig(nil, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, s.checkEvery)
	assert.Equal(t, 10, s.topN)
	assert.False(t, s.auto)

	s, err = parseConfig([]byte(`{"announce_chat":1,"timezone":"Asia/Jakarta","auto_announce":{"weekday":"Friday","hour":18}}`), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", s.loc.String())
	assert.Equal(t, time.Friday, s.weekday)
	assert.Equal(t, time.Minute, s.coldStart)

	for _, raw := range []string{
		`{"auto_announce":{"weekday":"sunday","hour":20}}`,
		`{"announce_chat":1,"auto_announce":{"weekday":"someday","hour":20}}`,
		`{"announce_chat":1,"auto_announce":{"weekday":"monday","hour":24}}`,
		`{"timezone":"Mars/Olympus"}`,
		`{"check_every":"10ms"}`,
		`{"top_n":-1}`,
	} {
		_, err := parseConfig([]byte(raw), time.UTC)
		assert.Error(t, err, raw)
	}
}
