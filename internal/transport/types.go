package transport

import (
	"context"
	"errors"
	"time"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdatePresence UpdateKind = "presence"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Presence *PresenceChange
}

type Message struct {
	ID       string
	ChatID   int64
	ThreadID int64 // forum topic or thread id (0 if none)
	FromID   int64
	FromName string
	FromBot  bool
	// FromAdmin is set when the platform already told us the sender administers the chat.
	FromAdmin bool
	Text      string
	IsGroup   bool
	// ReplyToken carries a platform reply handle (Discord interaction token).
	ReplyToken string
}

// PresenceChange is a voice-channel transition. Zero channel ids mean "not in a channel".
type PresenceChange struct {
	UserID   int64
	UserName string
	IsBot    bool
	Before   int64
	After    int64
	At       time.Time
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int64
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int64
	MessageID string
}

func (r MessageRef) Target() ChatTarget { return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID} }

type SendOptions struct {
	DisablePreview bool
	// ReplyToken answers a pending platform interaction instead of posting a plain message.
	ReplyToken string
}

// Card is a rich status payload: title, description and an RGB accent color.
type Card struct {
	Title       string
	Description string
	Color       int
	Fields      []CardField
	ImageURL    string
	Footer      string
}

type CardField struct {
	Name  string
	Value string
}

type Notification struct {
	Priority int // 0 low .. 10 high
	Target   ChatTarget
	Text     string
	Card     *Card
	Options  *SendOptions
}

// ErrMessageGone reports that an edit target no longer exists or cannot be edited.
var ErrMessageGone = errors.New("transport: message gone")

type Adapter interface {
	Name() string
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	SendCard(ctx context.Context, to ChatTarget, card Card, opt *SendOptions) (MessageRef, error)
	EditCard(ctx context.Context, ref MessageRef, card Card) error
}

// ThreadOpener is implemented by adapters that can branch a thread off a message.
type ThreadOpener interface {
	OpenThread(ctx context.Context, from MessageRef, name string) (ChatTarget, error)
}

// AdminChecker is implemented by adapters that can look up chat administrators.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chat ChatTarget, userID int64) (bool, error)
}

type BotCommand struct {
	Command     string
	Description string
	Usage       string
}

// CommandMenuUpdater publishes the command list to the platform menu.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
