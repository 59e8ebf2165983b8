package notifier

import "time"

type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	DedupWindow   time.Duration
}

type HistoryItem struct {
	At     time.Time
	ChatID int64
	Text   string
	Err    string
}

// NotificationEvent is published on the event bus for notifier lifecycle events.
type NotificationEvent struct {
	ChatID   int64     `json:"chat_id"`
	ThreadID int64     `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

const (
	EventQueued  = "notifier.queued"
	EventSent    = "notifier.sent"
	EventFailed  = "notifier.failed"
	EventDropped = "notifier.dropped"
	EventDeduped = "notifier.deduped"

	historyLimit = 200
)
