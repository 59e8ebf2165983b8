package router

import (
	"context"
	"errors"
	"strings"

	"studybot/internal/transport"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

type Request struct {
	Update   transport.Update
	Message  *transport.Message
	Chat     transport.ChatTarget
	FromID   int64
	FromName string
	Path     []string // matched command path tokens
	Command  string
	Args     []string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter transport.Adapter
	Logger  logx.Logger
	Owners  []int64
}

// Arg returns the i-th positional argument or "".
func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Text joins the positional arguments back into one string.
func (r *Request) Text() string {
	return strings.TrimSpace(strings.Join(r.Args, " "))
}

func (r *Request) sendOptions() *transport.SendOptions {
	opt := &transport.SendOptions{DisablePreview: true}
	if r.Message != nil {
		opt.ReplyToken = r.Message.ReplyToken
	}
	return opt
}

func (r *Request) ReplyText(ctx context.Context, text string) (transport.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, text, r.sendOptions())
}

func (r *Request) ReplyCard(ctx context.Context, card transport.Card) (transport.MessageRef, error) {
	return r.Adapter.SendCard(ctx, r.Chat, card, r.sendOptions())
}

// UserError is shown to the caller as-is: a validation failure, not a bug.
type UserError struct {
	Title   string
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

func Invalid(title, message string, err error) error {
	return &UserError{Title: title, Message: message, Err: err}
}

func errorCard(err error) transport.Card {
	var ue *UserError
	if errors.As(err, &ue) {
		return chatui.Error(ue.Title, ue.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return chatui.Error("Timed Out", "That took too long. Please try again.")
	}
	return chatui.Error("Something Went Wrong", "The command failed. Please try again later.")
}
