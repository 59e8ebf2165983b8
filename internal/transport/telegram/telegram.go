// Package telegram adapts a telebot long-poll bot to transport.Adapter.
package telegram

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"studybot/internal/runtime/supervisor"
	"studybot/internal/transport"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

// textLimit stays under Telegram's 4096 character message cap.
const textLimit = 4000

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	out     atomic.Value // chan<- transport.Update
	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	dropped atomic.Uint64

	menuMu   sync.Mutex
	menuHash uint64
}

var (
	_ transport.Adapter            = (*Adapter)(nil)
	_ transport.AdminChecker       = (*Adapter)(nil)
	_ transport.CommandMenuUpdater = (*Adapter)(nil)
)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	b.Handle(tele.OnText, a.onText)
	return a, nil
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) onText(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Sender == nil || m.Chat == nil {
		return nil
	}
	a.push(transport.Update{Kind: transport.UpdateMessage, Message: toMessage(m)})
	return nil
}

func toMessage(m *tele.Message) *transport.Message {
	name := strings.TrimSpace(m.Sender.FirstName + " " + m.Sender.LastName)
	if name == "" {
		name = m.Sender.Username
	}
	return &transport.Message{
		ID:       strconv.Itoa(m.ID),
		ChatID:   m.Chat.ID,
		ThreadID: int64(m.ThreadID),
		FromID:   m.Sender.ID,
		FromName: name,
		FromBot:  m.Sender.IsBot,
		Text:     m.Text,
		IsGroup:  m.Chat.Type != tele.ChatPrivate,
	}
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

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "telegram"))),
		supervisor.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDropped(cap(out))
				return
			case <-t.C:
				a.reportDropped(cap(out))
			}
		}
	})
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// telebot's Start blocks until Stop; an early return while running is restarted.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		if c.Err() != nil {
			return nil
		}
		return errors.New("poller exited")
	}, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	return nil
}

func (a *Adapter) reportDropped(capacity int) {
	if n := a.dropped.Swap(0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Int64("count", int64(n)), logx.Int("chan_cap", capacity))
	}
}

// Stop never blocks shutdown for long on a pending getUpdates call.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	was := a.running
	a.running = false
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()
	if !was || sup == nil {
		return nil
	}
	sup.Cancel()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return a.send(ctx, to, chatui.Split(text, textLimit), "", opt)
}

// SendCard renders the card as HTML. Oversized cards fall back to plain text chunks.
func (a *Adapter) SendCard(ctx context.Context, to transport.ChatTarget, card transport.Card, opt *transport.SendOptions) (transport.MessageRef, error) {
	body := chatui.HTML(card)
	if len([]rune(body)) <= textLimit {
		return a.send(ctx, to, []string{body}, tele.ModeHTML, opt)
	}
	return a.send(ctx, to, chatui.Split(chatui.PlainText(card), textLimit), "", opt)
}

func (a *Adapter) send(ctx context.Context, to transport.ChatTarget, chunks []string, mode tele.ParseMode, opt *transport.SendOptions) (transport.MessageRef, error) {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	var first transport.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             mode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              int(to.ThreadID),
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: strconv.Itoa(msg.ID)}
		}
	}
	return first, nil
}

func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sendOpt := &tele.SendOptions{}
	if opt != nil {
		sendOpt.DisableWebPagePreview = opt.DisablePreview
	}
	_, err := a.bot.Edit(stored(ref), chatui.TruncRunes(text, textLimit), sendOpt)
	return editErr(err)
}

func (a *Adapter) EditCard(ctx context.Context, ref transport.MessageRef, card transport.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Edit(stored(ref), chatui.HTML(card), &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true})
	return editErr(err)
}

func stored(ref transport.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: ref.MessageID, ChatID: ref.ChatID}
}

// editErr treats an unchanged body as success and maps vanished messages to
// transport.ErrMessageGone.
func editErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "message is not modified"):
		return nil
	case strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message can't be edited"),
		strings.Contains(msg, "chat not found"):
		return errors.Join(transport.ErrMessageGone, err)
	}
	return err
}

func (a *Adapter) IsChatAdmin(ctx context.Context, chat transport.ChatTarget, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m, err := a.bot.ChatMemberOf(&tele.Chat{ID: chat.ChatID}, &tele.User{ID: userID})
	if err != nil {
		return false, err
	}
	return m.Role == tele.Administrator || m.Role == tele.Creator, nil
}

// UpdateMenuCommands calls setMyCommands only when the list changed.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	menu := make([]tele.Command, 0, len(cmds))
	h := fnv.New64a()
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		d = chatui.TruncRunes(d, 256)
		menu = append(menu, tele.Command{Text: c.Command, Description: d})
		h.Write([]byte(c.Command))
		h.Write([]byte{0})
		h.Write([]byte(d))
		h.Write([]byte{0})
		if len(menu) == 100 {
			break
		}
	}
	sum := h.Sum64()
	if sum == a.menuHash {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.bot.SetCommands(menu); err != nil {
		return err
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(menu)))
	return nil
}
