// Package transporttest provides an in-memory transport.Adapter for tests.
package transporttest

import (
	"context"
	"strconv"
	"sync"

	"studybot/internal/transport"
)

// Sent is one recorded outbound call.
type Sent struct {
	Op   string // "send_text", "edit_text", "send_card", "edit_card", "thread"
	Ref  transport.MessageRef
	Text string
	Card transport.Card
	Opt  transport.SendOptions
}

// Adapter records every outbound call. Set the hook fields to inject failures.
type Adapter struct {
	mu    sync.Mutex
	next  int
	sent  []Sent
	admin map[int64]bool
	menu  []transport.BotCommand

	SendErr func(n int) error // n counts send calls from 1
	EditErr func(ref transport.MessageRef) error

	sendCalls int
	notify    chan Sent
	updates   chan<- transport.Update
}

func New() *Adapter {
	return &Adapter{admin: map[int64]bool{}, notify: make(chan Sent, 1024)}
}

func (a *Adapter) Name() string { return "fake" }

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.mu.Lock()
	a.updates = out
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error { return nil }

// Push delivers an update as if it came from the platform.
func (a *Adapter) Push(ctx context.Context, u transport.Update) bool {
	a.mu.Lock()
	out := a.updates
	a.mu.Unlock()
	if out == nil {
		return false
	}
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return a.send(Sent{Op: "send_text", Text: text, Opt: deref(opt)}, to)
}

func (a *Adapter) SendCard(ctx context.Context, to transport.ChatTarget, card transport.Card, opt *transport.SendOptions) (transport.MessageRef, error) {
	return a.send(Sent{Op: "send_card", Card: card, Opt: deref(opt)}, to)
}

func (a *Adapter) send(s Sent, to transport.ChatTarget) (transport.MessageRef, error) {
	a.mu.Lock()
	a.sendCalls++
	n := a.sendCalls
	hook := a.SendErr
	a.mu.Unlock()
	if hook != nil {
		if err := hook(n); err != nil {
			return transport.MessageRef{}, err
		}
	}

	a.mu.Lock()
	a.next++
	s.Ref = transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: strconv.Itoa(a.next)}
	a.record(s)
	a.mu.Unlock()
	return s.Ref, nil
}

func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	return a.edit(Sent{Op: "edit_text", Ref: ref, Text: text, Opt: deref(opt)})
}

func (a *Adapter) EditCard(ctx context.Context, ref transport.MessageRef, card transport.Card) error {
	return a.edit(Sent{Op: "edit_card", Ref: ref, Card: card})
}

func (a *Adapter) edit(s Sent) error {
	a.mu.Lock()
	hook := a.EditErr
	a.mu.Unlock()
	if hook != nil {
		if err := hook(s.Ref); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.record(s)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) OpenThread(ctx context.Context, from transport.MessageRef, name string) (transport.ChatTarget, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	to := transport.ChatTarget{ChatID: from.ChatID, ThreadID: int64(1000 + a.next)}
	a.record(Sent{Op: "thread", Ref: from, Text: name})
	return to, nil
}

func (a *Adapter) IsChatAdmin(ctx context.Context, chat transport.ChatTarget, userID int64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.admin[userID], nil
}

func (a *Adapter) SetAdmin(userID int64, admin bool) {
	a.mu.Lock()
	a.admin[userID] = admin
	a.mu.Unlock()
}

func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	a.mu.Lock()
	a.menu = append([]transport.BotCommand(nil), cmds...)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Menu() []transport.BotCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]transport.BotCommand(nil), a.menu...)
}

func (a *Adapter) record(s Sent) {
	a.sent = append(a.sent, s)
	select {
	case a.notify <- s:
	default:
	}
}

// Sent returns a copy of every recorded call.
func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

// Next blocks until the next recorded call or ctx is done.
func (a *Adapter) Next(ctx context.Context) (Sent, bool) {
	select {
	case s := <-a.notify:
		return s, true
	case <-ctx.Done():
		return Sent{}, false
	}
}

func deref(opt *transport.SendOptions) transport.SendOptions {
	if opt == nil {
		return transport.SendOptions{}
	}
	return *opt
}

// Plain exposes only transport.Adapter so callers exercise their fallbacks
// for threads, admin lookup and menus.
type Plain struct{ A *Adapter }

func (p Plain) Name() string                                                 { return "plain" }
func (p Plain) Start(ctx context.Context, out chan<- transport.Update) error { return p.A.Start(ctx, out) }
func (p Plain) Stop(ctx context.Context) error                               { return nil }

func (p Plain) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return p.A.SendText(ctx, to, text, opt)
}

func (p Plain) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	return p.A.EditText(ctx, ref, text, opt)
}

func (p Plain) SendCard(ctx context.Context, to transport.ChatTarget, card transport.Card, opt *transport.SendOptions) (transport.MessageRef, error) {
	return p.A.SendCard(ctx, to, card, opt)
}

func (p Plain) EditCard(ctx context.Context, ref transport.MessageRef, card transport.Card) error {
	return p.A.EditCard(ctx, ref, card)
}

var (
	_ transport.Adapter            = (*Adapter)(nil)
	_ transport.ThreadOpener       = (*Adapter)(nil)
	_ transport.AdminChecker       = (*Adapter)(nil)
	_ transport.CommandMenuUpdater = (*Adapter)(nil)
	_ transport.Adapter            = Plain{}
)
