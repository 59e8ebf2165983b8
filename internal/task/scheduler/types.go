package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"studybot/internal/eventbus"
	logx "studybot/pkg/logx"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultHistorySize = 50

	EventRun = "scheduler.run"
)

type Config struct {
	Enabled        bool
	Timezone       string // IANA TZ, e.g. "Asia/Jakarta"
	DefaultTimeout time.Duration
	HistorySize    int
}

type Job func(ctx context.Context) error

type scheduleDef struct {
	name    string
	spec    string // cron spec or @every
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	running atomic.Bool
	spread  time.Duration
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	ctx     context.Context
	started bool
	parser  cron.Parser
	c       *cron.Cron
	defs    []*scheduleDef

	hmu     sync.Mutex
	history []HistoryItem
}

type HistoryItem struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Skipped  bool
	Err      string
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
	Running bool
}

type Snapshot struct {
	Enabled        bool
	Running        bool
	Timezone       string
	DefaultTimeout time.Duration
	Schedules      []ScheduleInfo
	History        []HistoryItem
}
