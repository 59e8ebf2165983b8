package wellness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "studybot/internal/plugin"
	content "studybot/internal/study/wellness"
	"studybot/internal/task/scheduler"
	"studybot/internal/transport"
	"studybot/internal/transport/transporttest"
)

// jobs keeps the registered jobs so tests can fire them by hand.
type jobs struct {
	mu    sync.Mutex
	specs map[string]string
	fns   map[string]scheduler.Job
}

func newJobs() *jobs {
	return &jobs{specs: map[string]string{}, fns: map[string]scheduler.Job{}}
}

func (j *jobs) Enabled() bool            { return true }
func (j *jobs) Location() *time.Location { return time.UTC }

func (j *jobs) put(name, spec string, job scheduler.Job) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.specs[name] = spec
	j.fns[name] = job
	return name, nil
}

func (j *jobs) AddInterval(name string, every, timeout time.Duration, job scheduler.Job) (string, error) {
	return j.put(name, every.String(), job)
}

func (j *jobs) AddCron(name, spec string, timeout time.Duration, job scheduler.Job) (string, error) {
	return j.put(name, spec, job)
}

func (j *jobs) AddSchedule(name, spec string, timeout time.Duration, job scheduler.Job) (string, error) {
	return j.put(name, spec, job)
}

func (j *jobs) AddDaily(name, at string, timeout time.Duration, job scheduler.Job) (string, error) {
	return j.put(name, at, job)
}

func (j *jobs) AddWeekly(name string, day time.Weekday, at string, timeout time.Duration, job scheduler.Job) (string, error) {
	return j.put(name, at, job)
}

func (j *jobs) Remove(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.specs[name]
	delete(j.specs, name)
	delete(j.fns, name)
	return ok
}

func (j *jobs) spec(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.specs[name]
	return s, ok
}

func (j *jobs) fire(t *testing.T, name string) {
	t.Helper()
	j.mu.Lock()
	fn := j.fns[name]
	j.mu.Unlock()
	require.NotNil(t, fn, name)
	require.NoError(t, fn(context.Background()))
}

func newPlugin(t *testing.T, raw string) (*Plugin, *transporttest.Adapter, *jobs) {
	t.Helper()
	p := New()
	fake := transporttest.New()
	sched := newJobs()
	ctx := context.Background()
	require.NoError(t, p.Init(ctx, core.PluginDeps{Adapter: fake, Scheduler: sched}))
	require.NoError(t, p.OnConfigChange(ctx, []byte(raw)))
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return p, fake, sched
}

func req(a *transporttest.Adapter) *core.Request {
	return &core.Request{Adapter: a, Chat: transport.ChatTarget{ChatID: 4}, FromID: 1, FromName: "ana"}
}

func lastCard(t *testing.T, a *transporttest.Adapter) transport.Card {
	t.Helper()
	sent := a.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Card
}

func TestMotivateMixesRemoteAndLocalQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"q":"Keep going.","a":"Someone"}]`))
	}))
	defer srv.Close()

	p, fake, _ := newPlugin(t, `{"quote_url":"`+srv.URL+`","quotes":["local"],"seed":3}`)
	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		require.NoError(t, p.Commands()[0].Handle(context.Background(), req(fake)))
		c := lastCard(t, fake)
		assert.Equal(t, "Motivational Quote :)", c.Title)
		seen[c.Description] = true
	}
	assert.Equal(t, map[string]bool{"local": true, "Keep going. -Someone ✨": true}, seen)
}

func TestMotivateSurvivesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, fake, _ := newPlugin(t, `{"quote_url":"`+srv.URL+`","quotes":["local one","local two"]}`)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Commands()[0].Handle(context.Background(), req(fake)))
		assert.Contains(t, []string{"local one", "local two", content.FallbackQuote}, lastCard(t, fake).Description)
	}
}

func TestHealthReminderNeverRepeatsBackToBack(t *testing.T) {
	p, fake, _ := newPlugin(t, `{"remote":false,"reminders":["drink","stretch"],"seed":7}`)
	ctx := context.Background()
	var prev string
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Commands()[1].Handle(ctx, req(fake)))
		c := lastCard(t, fake)
		assert.Equal(t, "Health Reminder", c.Title)
		assert.NotEqual(t, prev, c.Description)
		prev = c.Description
	}
}

func TestCatWithoutRemoteUsesFallbackFact(t *testing.T) {
	p, fake, _ := newPlugin(t, `{"remote":false,"cat_url":"https://cats.example/cat"}`)
	require.NoError(t, p.cmdCat(context.Background(), req(fake)))

	c := lastCard(t, fake)
	assert.Equal(t, "🐱 Silly Cats Time :3 🐱", c.Title)
	require.Len(t, c.Fields, 1)
	assert.Equal(t, "A Lil Cat Fun Fact", c.Fields[0].Name)
	assert.Equal(t, content.FallbackCatFact, c.Fields[0].Value)
	assert.Equal(t, "https://cats.example/cat", c.ImageURL)
}

func TestPeriodicPostsGoToEveryChat(t *testing.T) {
	p, fake, sched := newPlugin(t, `{"chats":[10,20],"remote":false,"quotes":["q1","q2"],"health_every":"off"}`)

	spec, ok := sched.spec("wellness:motivate")
	require.True(t, ok)
	assert.Equal(t, "3h", spec)
	_, ok = sched.spec("wellness:health")
	assert.False(t, ok)

	sched.fire(t, "wellness:motivate")
	sent := fake.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(10), sent[0].Ref.ChatID)
	assert.Equal(t, int64(20), sent[1].Ref.ChatID)
	assert.Equal(t, "Motivational Quote", sent[0].Card.Title)

	require.NoError(t, p.OnConfigChange(context.Background(), []byte(`{"chats":[10],"motivate_every":"off","health_every":"2h"}`)))
	_, ok = sched.spec("wellness:motivate")
	assert.False(t, ok)
	spec, ok = sched.spec("wellness:health")
	require.True(t, ok)
	assert.Equal(t, "2h", spec)

	sched.fire(t, "wellness:health")
	assert.Equal(t, "Health Reminder", lastCard(t, fake).Title)
}

func TestNoChatsSchedulesNothing(t *testing.T) {
	p, _, sched := newPlugin(t, `{}`)
	assert.Empty(t, p.Jobs())
	_, ok := sched.spec("wellness:motivate")
	assert.False(t, ok)
}

func TestParseConfig(t *testing.T) {
	s, err := parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "3h", s.motivateEvery)
	assert.Equal(t, "6h", s.healthEvery)
	assert.True(t, s.remote)
	assert.Equal(t, 8*time.Second, s.fetchTO)

	for _, raw := range []string{
		`{"motivate_every":"10s"}`,
		`{"quote_url":"ftp://x"}`,
		`{"chats":[0]}`,
		`{"timeouts":{"operation":"nope"}}`,
	} {
		_, err := parseConfig([]byte(raw))
		assert.Error(t, err, raw)
	}
}
