// Package discord adapts a discordgo gateway session to transport.Adapter.
// Slash commands become "/name args" messages; voice state updates become
// presence changes.
package discord

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"studybot/internal/transport"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

const (
	// argsOption is the single free-text option every slash command carries.
	argsOption = "args"
	// Discord invalidates interaction tokens after 15 minutes.
	tokenTTL     = 15 * time.Minute
	contentLimit = 2000
	threadTTL    = 60 // minutes of inactivity before a thread auto-archives
)

type Config struct {
	Token string
	// GuildID scopes command registration; empty registers globally.
	GuildID string
}

// pending is an interaction waiting for its first reply.
type pending struct {
	in       *discordgo.Interaction
	at       time.Time
	answered bool
}

type Adapter struct {
	cfg Config
	log logx.Logger
	s   *discordgo.Session

	out     atomic.Value // chan<- transport.Update
	runMu   sync.Mutex
	running bool
	removes []func()

	mu      sync.Mutex
	pending map[string]*pending

	menuMu   sync.Mutex
	menuHash uint64
	dropped  atomic.Uint64
}

var (
	_ transport.Adapter            = (*Adapter)(nil)
	_ transport.ThreadOpener       = (*Adapter)(nil)
	_ transport.CommandMenuUpdater = (*Adapter)(nil)
)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + strings.TrimSpace(cfg.Token))
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, s: s, pending: map[string]*pending{}}
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	return a, nil
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.out.Store(out)
	a.removes = []func(){
		a.s.AddHandler(a.onInteraction),
		a.s.AddHandler(a.onVoiceState),
		a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			a.log.Info("gateway ready", logx.String("user", r.User.Username), logx.Int("guilds", len(r.Guilds)))
		}),
	}
	if err := a.s.Open(); err != nil {
		for _, rm := range a.removes {
			rm()
		}
		a.removes = nil
		return fmt.Errorf("discord open: %w", err)
	}
	a.running = true
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	for _, rm := range a.removes {
		rm()
	}
	a.removes = nil
	if n := a.dropped.Swap(0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Int64("count", int64(n)))
	}
	return a.s.Close()
}

func (a *Adapter) push(up transport.Update) {
	out, _ := a.out.Load().(chan<- transport.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		a.dropped.Add(1)
	}
}

func (a *Adapter) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}
	msg, ok := toMessage(ic.Interaction)
	if !ok {
		return
	}
	// Acknowledge within Discord's 3 second window; the reply edits this placeholder.
	if err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		a.log.Warn("interaction ack failed", logx.String("command", msg.Text), logx.Err(err))
		return
	}
	a.remember(ic.Interaction)
	a.push(transport.Update{Kind: transport.UpdateMessage, Message: msg})
}

// toMessage turns a slash command into the text form the router parses.
func toMessage(in *discordgo.Interaction) (*transport.Message, bool) {
	data := in.ApplicationCommandData()
	chatID, err := strconv.ParseInt(in.ChannelID, 10, 64)
	if err != nil {
		return nil, false
	}
	text := "/" + data.Name
	for _, o := range data.Options {
		if o.Name == argsOption && o.Type == discordgo.ApplicationCommandOptionString {
			if v := strings.TrimSpace(o.StringValue()); v != "" {
				text += " " + v
			}
		}
	}

	m := &transport.Message{
		ID:         in.ID,
		ChatID:     chatID,
		Text:       text,
		IsGroup:    in.GuildID != "",
		ReplyToken: in.Token,
	}
	var u *discordgo.User
	if in.Member != nil {
		u = in.Member.User
		m.FromName = in.Member.Nick
		m.FromAdmin = in.Member.Permissions&discordgo.PermissionAdministrator != 0
	}
	if u == nil {
		u = in.User
	}
	if u == nil {
		return nil, false
	}
	id, err := strconv.ParseInt(u.ID, 10, 64)
	if err != nil {
		return nil, false
	}
	m.FromID = id
	m.FromBot = u.Bot
	if m.FromName == "" {
		m.FromName = displayName(u)
	}
	return m, true
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (a *Adapter) onVoiceState(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	p, ok := toPresence(v.VoiceState, v.BeforeUpdate, time.Now())
	if !ok {
		return
	}
	a.push(transport.Update{Kind: transport.UpdatePresence, Presence: &p})
}

func toPresence(after, before *discordgo.VoiceState, at time.Time) (transport.PresenceChange, bool) {
	uid, err := strconv.ParseInt(after.UserID, 10, 64)
	if err != nil {
		return transport.PresenceChange{}, false
	}
	p := transport.PresenceChange{UserID: uid, After: channelID(after.ChannelID), At: at}
	if before != nil {
		p.Before = channelID(before.ChannelID)
	}
	if after.Member != nil && after.Member.User != nil {
		p.IsBot = after.Member.User.Bot
		p.UserName = after.Member.Nick
		if p.UserName == "" {
			p.UserName = displayName(after.Member.User)
		}
	}
	return p, p.Before != p.After
}

func channelID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func (a *Adapter) remember(in *discordgo.Interaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for tok, p := range a.pending {
		if now.Sub(p.at) > tokenTTL {
			delete(a.pending, tok)
		}
	}
	a.pending[in.Token] = &pending{in: in, at: now}
}

// claim returns the interaction behind token and whether its placeholder is
// still unanswered.
func (a *Adapter) claim(token string) (*discordgo.Interaction, bool) {
	if token == "" {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[token]
	if !ok || time.Since(p.at) > tokenTTL {
		return nil, false
	}
	first := !p.answered
	p.answered = true
	return p.in, first
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	chunks := chatui.Split(text, contentLimit)
	var first transport.MessageRef
	for i, chunk := range chunks {
		ref, err := a.send(ctx, to, opt, chunk, nil)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = ref
		}
	}
	return first, nil
}

func (a *Adapter) SendCard(ctx context.Context, to transport.ChatTarget, card transport.Card, opt *transport.SendOptions) (transport.MessageRef, error) {
	return a.send(ctx, to, opt, "", embed(card))
}

// send answers a pending interaction when opt carries its token, otherwise it
// posts to the channel.
func (a *Adapter) send(ctx context.Context, to transport.ChatTarget, opt *transport.SendOptions, content string, e *discordgo.MessageEmbed) (transport.MessageRef, error) {
	var embeds []*discordgo.MessageEmbed
	if e != nil {
		embeds = []*discordgo.MessageEmbed{e}
	}
	var (
		m     *discordgo.Message
		err   error
		in    *discordgo.Interaction
		first bool
	)
	if opt != nil {
		in, first = a.claim(opt.ReplyToken)
	}
	switch {
	case in != nil && first:
		edit := &discordgo.WebhookEdit{Embeds: &embeds}
		if content != "" {
			edit.Content = &content
		}
		m, err = a.s.InteractionResponseEdit(in, edit, discordgo.WithContext(ctx))
	case in != nil:
		m, err = a.s.FollowupMessageCreate(in, true, &discordgo.WebhookParams{Content: content, Embeds: embeds}, discordgo.WithContext(ctx))
	default:
		m, err = a.s.ChannelMessageSendComplex(strconv.FormatInt(to.ChatID, 10), &discordgo.MessageSend{Content: content, Embeds: embeds}, discordgo.WithContext(ctx))
	}
	if err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: channelID(m.ChannelID), MessageID: m.ID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, _ *transport.SendOptions) error {
	_, err := a.s.ChannelMessageEdit(strconv.FormatInt(ref.ChatID, 10), ref.MessageID, chatui.TruncRunes(text, contentLimit), discordgo.WithContext(ctx))
	return editErr(err)
}

func (a *Adapter) EditCard(ctx context.Context, ref transport.MessageRef, card transport.Card) error {
	_, err := a.s.ChannelMessageEditEmbed(strconv.FormatInt(ref.ChatID, 10), ref.MessageID, embed(card), discordgo.WithContext(ctx))
	return editErr(err)
}

// OpenThread starts a public thread on from; the thread is its own channel.
func (a *Adapter) OpenThread(ctx context.Context, from transport.MessageRef, name string) (transport.ChatTarget, error) {
	ch, err := a.s.MessageThreadStartComplex(strconv.FormatInt(from.ChatID, 10), from.MessageID, &discordgo.ThreadStart{
		Name:                chatui.TruncRunes(name, 100),
		AutoArchiveDuration: threadTTL,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return transport.ChatTarget{}, err
	}
	return transport.ChatTarget{ChatID: channelID(ch.ID)}, nil
}

func editErr(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
		return errors.Join(transport.ErrMessageGone, err)
	}
	return err
}

func embed(c transport.Card) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       chatui.TruncRunes(c.Title, 256),
		Description: chatui.TruncRunes(c.Description, 4096),
		Color:       c.Color,
	}
	for _, f := range c.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  chatui.TruncRunes(f.Name, 256),
			Value: chatui.TruncRunes(f.Value, 1024),
		})
	}
	if c.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: c.ImageURL}
	}
	if c.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: chatui.TruncRunes(c.Footer, 2048)}
	}
	return e
}

// UpdateMenuCommands bulk-overwrites the slash commands when the list changed.
// It needs the application id, known once the gateway is ready.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	list := slashCommands(cmds)
	h := fnv.New64a()
	for _, c := range list {
		h.Write([]byte(c.Name))
		h.Write([]byte{0})
		h.Write([]byte(c.Description))
		h.Write([]byte{0})
	}
	sum := h.Sum64()
	if sum == a.menuHash {
		return nil
	}

	appID, err := a.appID(ctx)
	if err != nil {
		return err
	}
	if _, err := a.s.ApplicationCommandBulkOverwrite(appID, a.cfg.GuildID, list, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	a.menuHash = sum
	a.log.Info("slash commands updated", logx.Int("count", len(list)), logx.String("guild", a.cfg.GuildID))
	return nil
}

func (a *Adapter) appID(ctx context.Context) (string, error) {
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for {
		if a.s.State != nil && a.s.State.User != nil {
			return a.s.State.User.ID, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("discord: gateway not ready: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func slashCommands(cmds []transport.BotCommand) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	seen := map[string]bool{}
	for _, c := range cmds {
		name := strings.ToLower(c.Command)
		if name == "" || len(name) > 32 || seen[name] {
			continue
		}
		seen[name] = true
		desc := c.Description
		if desc == "" {
			desc = name
		}
		usage := c.Usage
		if usage == "" {
			usage = "Arguments"
		}
		out = append(out, &discordgo.ApplicationCommand{
			Name:        name,
			Description: chatui.TruncRunes(desc, 100),
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        argsOption,
				Description: chatui.TruncRunes(usage, 100),
			}},
		})
		if len(out) == 100 {
			break
		}
	}
	return out
}
