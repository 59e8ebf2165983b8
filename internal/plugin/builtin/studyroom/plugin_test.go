package studyroom

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "studybot/internal/plugin"
	"studybot/internal/storage"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/study/voice"
	"studybot/internal/transport"
	"studybot/internal/transport/router"
	"studybot/internal/transport/transporttest"
)

type fixture struct {
	p      *Plugin
	fake   *transporttest.Adapter
	store  storage.Store
	ledger *ledger.Ledger
	rooms  *voice.ChannelSet
	fc     *clockwork.FakeClock
}

func newFixture(t *testing.T, raw string) *fixture {
	t.Helper()
	f := &fixture{
		p:      New(),
		fake:   transporttest.New(),
		store:  storage.NewMemory(),
		ledger: ledger.New(),
		rooms:  voice.NewChannelSet(),
		fc:     clockwork.NewFakeClock(),
	}
	ctx := context.Background()
	require.NoError(t, f.p.Init(ctx, core.PluginDeps{
		Adapter: f.fake,
		Store:   f.store,
		Clock:   f.fc,
		Ledger:  f.ledger,
		Rooms:   f.rooms,
		Roster:  study.NewRoster(),
	}))
	require.NoError(t, f.p.OnConfigChange(ctx, []byte(raw)))
	require.NoError(t, f.p.Start(ctx))
	t.Cleanup(func() { _ = f.p.Stop(context.Background()) })
	return f
}

func (f *fixture) req(args ...string) *core.Request {
	return &core.Request{Adapter: f.fake, Chat: transport.ChatTarget{ChatID: 3}, FromID: 9, FromName: "mod", Args: args}
}

func (f *fixture) last() transport.Card {
	sent := f.fake.Sent()
	return sent[len(sent)-1].Card
}

func TestAddRemoveRooms(t *testing.T) {
	f := newFixture(t, `{}`)
	ctx := context.Background()

	require.NoError(t, f.p.cmdAdd(ctx, f.req("500")))
	assert.Equal(t, "Study Room Added", f.last().Title)
	assert.Equal(t, "Study room with ID 500 added!", f.last().Description)
	assert.True(t, f.rooms.Has(500))

	require.NoError(t, f.p.cmdAdd(ctx, f.req("<#500>")))
	assert.Equal(t, "Study Room Already Added", f.last().Title)

	require.NoError(t, f.p.cmdRemove(ctx, f.req("501")))
	assert.Equal(t, "Study Room Not Found", f.last().Title)

	require.NoError(t, f.p.cmdRemove(ctx, f.req("500")))
	assert.Equal(t, "Study Room Removed", f.last().Title)
	assert.False(t, f.rooms.Has(500))

	var ue *router.UserError
	require.ErrorAs(t, f.p.cmdAdd(ctx, f.req("general")), &ue)
	assert.Equal(t, "Invalid Room ID", ue.Title)

	adds, err := f.store.RecentAudit(ctx, "studyroom.add", 10)
	require.NoError(t, err)
	require.Len(t, adds, 1)
	assert.Equal(t, "500", adds[0].Target)
	assert.Equal(t, "studyroom", adds[0].Plugin)
	removes, err := f.store.RecentAudit(ctx, "studyroom.remove", 10)
	require.NoError(t, err)
	assert.Len(t, removes, 1)
}

func TestPresenceCreditsTrackedRooms(t *testing.T) {
	f := newFixture(t, `{"rooms":[700]}`)
	ctx := context.Background()
	start := f.fc.Now()

	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 1, UserName: "ana", After: 700, At: start})
	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 2, IsBot: true, After: 700, At: start})
	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 1, Before: 700, After: 800, At: start.Add(47*time.Minute + 59*time.Second)})
	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 2, Before: 700, At: start.Add(time.Hour)})

	assert.Equal(t, 47, f.ledger.Get(1).Presence)
	assert.Zero(t, f.ledger.Get(2).Presence)

	// no recorded entry: leaving credits nothing
	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 3, Before: 700, At: start.Add(time.Hour)})
	assert.Zero(t, f.ledger.Get(3).Presence)
}

func TestPresenceWithoutTimestampUsesClock(t *testing.T) {
	f := newFixture(t, `{"rooms":[700]}`)
	ctx := context.Background()

	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 1, After: 700})
	f.fc.Advance(30 * time.Minute)
	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 1, Before: 700})
	assert.Equal(t, 30, f.ledger.Get(1).Presence)
}

func TestConfigSeedsRooms(t *testing.T) {
	f := newFixture(t, `{"rooms":[1,2]}`)
	ctx := context.Background()
	require.NoError(t, f.p.cmdAdd(ctx, f.req("3")))

	require.NoError(t, f.p.OnConfigChange(ctx, []byte(`{"rooms":[2]}`)))
	assert.Equal(t, []study.ChannelID{2, 3}, f.rooms.List())

	assert.Error(t, f.p.ValidateConfig(ctx, []byte(`{"rooms":[0]}`)))
	assert.Error(t, f.p.ValidateConfig(ctx, []byte(`{"room":[1]}`)))
}

func TestListRooms(t *testing.T) {
	f := newFixture(t, `{}`)
	ctx := context.Background()

	require.NoError(t, f.p.cmdList(ctx, f.req()))
	assert.Equal(t, "No study rooms are tracked yet.", f.last().Description)

	require.NoError(t, f.p.OnConfigChange(ctx, []byte(`{"rooms":[20,10]}`)))
	f.p.OnPresence(ctx, transport.PresenceChange{UserID: 9, After: 10})
	f.fc.Advance(5 * time.Minute)

	require.NoError(t, f.p.cmdList(ctx, f.req()))
	c := f.last()
	assert.Equal(t, "• 10\n• 20", c.Description)
	require.Len(t, c.Fields, 1)
	assert.Equal(t, "in room 10 for 5 minutes", c.Fields[0].Value)
}
