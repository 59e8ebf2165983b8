// Package studyroom manages the tracked voice rooms and turns time spent in
// them into presence minutes.
package studyroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/hay-kot/criterio"
	"github.com/jonboulle/clockwork"

	core "studybot/internal/plugin"
	"studybot/internal/storage"
	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/study/voice"
	"studybot/internal/transport"
	"studybot/internal/transport/router"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

// Config:
//
//	"studyroom": { "enabled": true, "config": { "rooms": [1234567890] } }
type Config struct {
	Rooms    []int64       `json:"rooms,omitempty"`
	Timeouts core.Timeouts `json:"timeouts"`
}

type Plugin struct {
	core.PluginBase

	mu      sync.Mutex
	tracker *voice.Tracker
	// seeded holds the rooms that came from config, so a reload can drop them again.
	seeded map[study.ChannelID]bool
}

func New() *Plugin { return &Plugin{seeded: map[study.ChannelID]bool{}} }

func (p *Plugin) Name() string { return "studyroom" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	if p.Deps.Rooms == nil {
		p.Deps.Rooms = voice.NewChannelSet()
	}
	if p.Deps.Ledger == nil {
		p.Deps.Ledger = ledger.New()
	}
	if p.Deps.Roster == nil {
		p.Deps.Roster = study.NewRoster()
	}
	if p.Deps.Clock == nil {
		p.Deps.Clock = clockwork.NewRealClock()
	}
	p.tracker = voice.NewTracker(p.Deps.Rooms, p.Deps.Ledger)
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	p.Log.Info("tracking study rooms", logx.Int("rooms", len(p.Deps.Rooms.List())))
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func parseConfig(raw json.RawMessage) (Config, error) {
	c, err := core.DecodeConfig[Config](raw)
	if err != nil {
		return c, fmt.Errorf("studyroom config: %w", err)
	}
	var errs criterio.FieldErrorsBuilder
	for i, id := range c.Rooms {
		if id <= 0 {
			errs = errs.Append(fmt.Sprintf("rooms[%d]", i), voice.ErrBadChannelID)
		}
	}
	return c, errs.ToError()
}

func (p *Plugin) ValidateConfig(ctx context.Context, raw json.RawMessage) error {
	_, err := parseConfig(raw)
	return err
}

// OnConfigChange seeds the configured rooms. Rooms added at runtime are kept.
func (p *Plugin) OnConfigChange(ctx context.Context, raw json.RawMessage) error {
	c, err := parseConfig(raw)
	if err != nil {
		return err
	}
	want := map[study.ChannelID]bool{}
	for _, id := range c.Rooms {
		want[study.ChannelID(id)] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.seeded {
		if !want[id] {
			p.Deps.Rooms.Remove(id)
			delete(p.seeded, id)
		}
	}
	for id := range want {
		if p.Deps.Rooms.Add(id) {
			p.seeded[id] = true
		}
	}
	return nil
}

// OnPresence runs on the dispatch loop, in arrival order.
func (p *Plugin) OnPresence(ctx context.Context, c transport.PresenceChange) {
	at := c.At
	if at.IsZero() {
		at = p.Deps.Clock.Now()
	}
	user := study.UserID(c.UserID)
	if !c.IsBot {
		p.Deps.Roster.Remember(user, c.UserName)
	}
	out := p.tracker.OnPresenceChange(voice.Change{
		User:   user,
		IsBot:  c.IsBot,
		Before: study.ChannelID(c.Before),
		After:  study.ChannelID(c.After),
		At:     at,
	})
	if out.Closed != nil {
		p.Log.Debug("study room visit closed",
			logx.Int64("user", c.UserID),
			logx.Int64("room", int64(out.Closed.Channel)),
			logx.Int("minutes", out.Minutes),
		)
		p.PublishEvent("voice.visit_closed", *out.Closed)
	}
	if out.Opened {
		p.Log.Debug("study room visit opened", logx.Int64("user", c.UserID), logx.Int64("room", c.After))
	}
}

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "add_study_room",
			Description: "Track a voice channel as a study room",
			Usage:       "/add_study_room <channel id>",
			Access:      router.AccessAdmin,
			Handle:      p.cmdAdd,
		},
		{
			Route:       "remove_study_room",
			Description: "Stop tracking a study room",
			Usage:       "/remove_study_room <channel id>",
			Access:      router.AccessAdmin,
			Handle:      p.cmdRemove,
		},
		{
			Route:       "study_rooms",
			Description: "List the tracked study rooms",
			Usage:       "/study_rooms",
			Handle:      p.cmdList,
		},
	}
}

var errBadRoom = router.Invalid("Invalid Room ID", "Invalid room ID. Please provide a numeric ID.", nil)

func (p *Plugin) cmdAdd(ctx context.Context, req *core.Request) error {
	id, err := voice.ParseChannelID(req.Arg(0))
	if err != nil {
		return errBadRoom
	}
	if !p.Deps.Rooms.Add(id) {
		_, err := req.ReplyCard(ctx, chatui.Warn("Study Room Already Added", fmt.Sprintf("Study room with ID %d is already added.", id)))
		return err
	}
	p.audit(ctx, req, "studyroom.add", id)
	_, err = req.ReplyCard(ctx, chatui.Info("Study Room Added", fmt.Sprintf("Study room with ID %d added!", id)))
	return err
}

func (p *Plugin) cmdRemove(ctx context.Context, req *core.Request) error {
	id, err := voice.ParseChannelID(req.Arg(0))
	if err != nil {
		return errBadRoom
	}
	if !p.Deps.Rooms.Remove(id) {
		_, err := req.ReplyCard(ctx, chatui.Error("Study Room Not Found", fmt.Sprintf("Study room with ID %d is not in the list.", id)))
		return err
	}
	p.mu.Lock()
	delete(p.seeded, id)
	p.mu.Unlock()
	p.audit(ctx, req, "studyroom.remove", id)
	_, err = req.ReplyCard(ctx, chatui.Info("Study Room Removed", fmt.Sprintf("Study room with ID %d removed!", id)))
	return err
}

func (p *Plugin) cmdList(ctx context.Context, req *core.Request) error {
	ids := p.Deps.Rooms.List()
	if len(ids) == 0 {
		_, err := req.ReplyCard(ctx, chatui.Info("Study Rooms", "No study rooms are tracked yet."))
		return err
	}
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = strconv.FormatInt(int64(id), 10)
	}
	var l chatui.Lines
	l.Bullets(items...)
	b := chatui.NewCard("Study Rooms").Line(l.String())
	if v, ok := p.tracker.Visit(study.UserID(req.FromID)); ok {
		mins := int(p.Deps.Clock.Since(v.StartedAt).Minutes())
		b.Field("You", fmt.Sprintf("in room %d for %s", v.Channel, study.FormatMinutes(mins)))
	}
	_, err := req.ReplyCard(ctx, b.Build())
	return err
}

func (p *Plugin) audit(ctx context.Context, req *core.Request, action string, id study.ChannelID) {
	err := p.AppendAudit(ctx, storage.AuditEntry{
		Action:    action,
		ActorID:   req.FromID,
		ActorName: req.FromName,
		ChatID:    req.Chat.ChatID,
		Target:    strconv.FormatInt(int64(id), 10),
	})
	if err != nil && !errors.Is(err, core.ErrNoStore) {
		p.Log.Warn("audit failed", logx.String("action", action), logx.Err(err))
	}
}
