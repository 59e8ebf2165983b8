package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Chat    ChatConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// ChatConfig controls forwarding of log lines to an operator chat.
type ChatConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

// ChatSink delivers one formatted log line to the operator chat.
type ChatSink func(ctx context.Context, text string) error

const (
	timeFormat    = "2006-01-02T15:04:05.000Z07:00"
	defaultLog    = "./studybot.log"
	chatQueue     = 256
	chatLineLimit = 3500
	chatSendLimit = 10 * time.Second
)

// Service owns the process-wide sinks. Apply swaps them at runtime; Loggers
// handed out earlier pick up the change on their next call.
type Service struct {
	root atomic.Pointer[zerolog.Logger]

	mu       sync.Mutex
	file     *os.File
	sink     ChatSink
	limiter  *rate.Limiter
	minLevel zerolog.Level
	chat     *chatWorker

	// lines dropped by the limiter or a full queue since the last forwarded line
	suppressed atomic.Int64
}

// NewService applies cfg and returns the service with a live root logger.
func NewService(cfg Config) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// SetChatSink installs the delivery function. Lines logged before it is set are dropped.
func (s *Service) SetChatSink(fn ChatSink) {
	s.mu.Lock()
	s.sink = fn
	s.mu.Unlock()
}

// Apply swaps outputs and levels. A file that cannot be opened is reported on
// stderr and skipped; logging itself never fails.
func (s *Service) Apply(cfg Config) {
	if old := s.apply(cfg); old != nil {
		old.stop()
	}
}

// apply returns a chat worker that must be stopped once mu is released.
func (s *Service) apply(cfg Config) (retired *chatWorker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter())
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if cfg.File.Enabled {
		if f, err := openLogFile(cfg.File.Path); err != nil {
			fmt.Fprintf(os.Stderr, "logx: %v\n", err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}

	if cfg.Chat.Enabled {
		rps := max(cfg.Chat.RatePerSec, 1)
		s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		s.minLevel = parseLevel(cfg.Chat.MinLevel, zerolog.WarnLevel)
		if s.chat == nil {
			s.chat = startChatWorker(s)
		}
		writers = append(writers, chatWriter{s})
	} else {
		retired, s.chat = s.chat, nil
	}

	if len(writers) == 0 {
		writers = append(writers, consoleWriter())
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
	return retired
}

func (s *Service) Close() error {
	s.mu.Lock()
	f, w := s.file, s.chat
	s.file, s.chat = nil, nil
	s.mu.Unlock()

	if w != nil {
		w.stop()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLog
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return f, nil
}

type chatWorker struct {
	queue  chan string
	cancel context.CancelFunc
	done   chan struct{}
}

func startChatWorker(s *Service) *chatWorker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &chatWorker{queue: make(chan string, chatQueue), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case line := <-w.queue:
				s.mu.Lock()
				sink := s.sink
				s.mu.Unlock()
				if sink == nil {
					continue
				}
				sctx, scancel := context.WithTimeout(ctx, chatSendLimit)
				_ = sink(sctx, line)
				scancel()
			}
		}
	}()
	return w
}

func (w *chatWorker) stop() {
	w.cancel()
	<-w.done
}

type chatWriter struct{ svc *Service }

func (w chatWriter) Write(p []byte) (int, error) { return w.WriteLevel(zerolog.InfoLevel, p) }

// WriteLevel never blocks the caller. Throttled lines are counted and the count
// is appended to the next line that gets through.
func (w chatWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	s.mu.Lock()
	lim, minLvl, cw := s.limiter, s.minLevel, s.chat
	s.mu.Unlock()

	if level < minLvl || cw == nil {
		return len(p), nil
	}
	if lim == nil || !lim.Allow() {
		s.suppressed.Add(1)
		return len(p), nil
	}
	line := formatChatLine(p)
	if line == "" {
		return len(p), nil
	}
	if n := s.suppressed.Swap(0); n > 0 {
		line += fmt.Sprintf("\n(%d more lines suppressed)", n)
	}
	select {
	case cw.queue <- line:
	default:
		s.suppressed.Add(1)
	}
	return len(p), nil
}

// formatChatLine renders a zerolog JSON line as "[LEVEL] msg" plus sorted key=value rows.
func formatChatLine(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return clip(strings.TrimSpace(string(p)), chatLineLimit)
	}

	var b strings.Builder
	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		if k != zerolog.TimestampFieldName && k != zerolog.LevelFieldName && k != zerolog.MessageFieldName {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(fmt.Sprint(m[k]), 600))
	}
	return clip(b.String(), chatLineLimit)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	if strings.EqualFold(s, "warning") {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return def
	}
	return lvl
}
