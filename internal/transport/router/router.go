// Package router turns chat updates into command invocations: a command tree
// with aliases, access gating, a middleware chain and a bounded worker pool.
// Presence updates are fanned out to listeners in arrival order.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"studybot/internal/runtime/supervisor"
	"studybot/internal/transport"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin allows chat administrators and owners.
	AccessAdmin
	AccessOwnerOnly
)

type Command struct {
	// Route is a space-separated command path, e.g. "pomodoro" or "leaderboard last".
	Route       string
	Aliases     []string // root-level aliases, e.g. ["start"]
	Description string
	Usage       string
	Access      Access

	PluginName string
	Timeout    time.Duration // optional per-command override
	Handle     HandlerFunc
}

// PresenceListener observes voice-channel transitions. It runs on the dispatch
// loop and must not block.
type PresenceListener func(ctx context.Context, p transport.PresenceChange)

type Options struct {
	Owners    []int64
	Workers   int
	QueueSize int
	// Parent runs side jobs such as the menu update; nil falls back to plain goroutines.
	Parent *supervisor.Supervisor
}

type Router struct {
	mu       sync.RWMutex
	root     *cmdNode
	alias    map[string]*cmdNode // alias -> leaf node
	owners   []int64
	presence []PresenceListener

	log     logx.Logger
	adapter transport.Adapter
	parent  *supervisor.Supervisor
	workers int

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter transport.Adapter, opts Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU(), 2)
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 256
	}
	return &Router{
		root:    newRoot(),
		alias:   map[string]*cmdNode{},
		owners:  append([]int64(nil), opts.Owners...),
		log:     log,
		adapter: adapter,
		parent:  opts.Parent,
		workers: workers,
		jobs:    make(chan func(), queue),
	}
}

// Supervisor returns the worker pool supervisor (nil if not running).
func (m *Router) Supervisor() *supervisor.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *Router) setSupervisor(sup *supervisor.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup = sup
	m.running = running
	m.runMu.Unlock()
}

// tryEnqueue tolerates the jobs channel being closed during shutdown.
func (m *Router) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// SetOwners updates the owner list. Safe during hot reload.
func (m *Router) SetOwners(owners []int64) {
	ownCopy := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = ownCopy
	m.mu.Unlock()
}

func (m *Router) ownersSnapshot() []int64 {
	m.mu.RLock()
	cp := append([]int64(nil), m.owners...)
	m.mu.RUnlock()
	return cp
}

// OnPresence replaces the presence listeners.
func (m *Router) OnPresence(ls ...PresenceListener) {
	m.mu.Lock()
	m.presence = append([]PresenceListener(nil), ls...)
	m.mu.Unlock()
}

// SetCommands installs a new command tree. A help command is always added.
func (m *Router) SetCommands(cmds []Command) {
	helper := Command{
		Route:       "help",
		Aliases:     []string{"h"},
		Description: "Show all the commands",
		Usage:       "/help [command]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.ReplyCard(ctx, m.helpCard(req.Args))
			return err
		},
	}
	cmds = append(slices.Clone(cmds), helper)

	root := newRoot()
	alias := map[string]*cmdNode{}
	menuCandidates := make([]Command, 0, len(cmds))

	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		root.add(route, c)
		menuCandidates = append(menuCandidates, c)

		leaf := root.find(route)
		// Multi-token routes get a single-token menu alias ("leaderboard last" -> leaderboard_last).
		// The canonical single token itself is never aliased or it would shadow subcommands.
		if menu, ok := menuNameFromRoute(route); ok {
			if len(route) > 1 || menu != route[0] {
				if _, exists := alias[menu]; !exists {
					alias[menu] = leaf
				}
			}
		}
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = leaf
			if sa := sanitizeCommand(a); sa != "" {
				if _, exists := alias[sa]; !exists {
					alias[sa] = leaf
				}
			}
		}
	}

	m.mu.Lock()
	m.root = root
	m.alias = alias
	m.mu.Unlock()

	if up, ok := m.adapter.(transport.CommandMenuUpdater); ok {
		menu := buildMenuCommands(root, menuCandidates)
		run := func(parent context.Context) {
			ctx, cancel := context.WithTimeout(parent, 15*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(ctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}
		if m.parent != nil {
			m.parent.Go0("router.menu.update", run)
		} else {
			go run(context.Background())
		}
	}
}

// Run dispatches updates until ctx is done or updates is closed.
func (m *Router) Run(ctx context.Context, updates <-chan transport.Update) error {
	sup := supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(m.log.With(logx.String("comp", "router"))),
		supervisor.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					if job != nil {
						m.runJob(idx, job)
					}
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		m.setSupervisor(nil, false)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, up)
		}
	}
}

func (m *Router) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (m *Router) route(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		m.routeMessage(ctx, up)
	case transport.UpdatePresence:
		m.routePresence(ctx, up)
	}
}

func (m *Router) routePresence(ctx context.Context, up transport.Update) {
	if up.Presence == nil {
		return
	}
	m.mu.RLock()
	ls := m.presence
	m.mu.RUnlock()
	for _, fn := range ls {
		fn(ctx, *up.Presence)
	}
}

func (m *Router) routeMessage(ctx context.Context, up transport.Update) {
	msg := up.Message
	if msg == nil || msg.FromBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	args := parts[1:]

	m.mu.RLock()
	rootNode := m.root
	aliasMap := m.alias
	m.mu.RUnlock()

	if leaf, ok := aliasMap[word]; ok && leaf != nil && leaf.cmd != nil {
		cmd := *leaf.cmd
		m.enqueueCommand(ctx, up, cmd, splitRoute(cmd.Route), args)
		return
	}

	cur, ok := rootNode.child(word)
	if !ok {
		to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
		_, _ = m.adapter.SendText(ctx, to, "Unknown command. Try /help", &transport.SendOptions{ReplyToken: msg.ReplyToken})
		return
	}
	path := []string{word}
	for len(args) > 0 {
		nxt := args[0]
		if strings.HasPrefix(nxt, "-") {
			break
		}
		child, ok := cur.child(nxt)
		if !ok {
			break
		}
		cur = child
		path = append(path, nxt)
		args = args[1:]
	}

	if cur.cmd == nil {
		to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
		_, _ = m.adapter.SendCard(ctx, to, m.helpCard(path), &transport.SendOptions{ReplyToken: msg.ReplyToken})
		return
	}
	m.enqueueCommand(ctx, up, *cur.cmd, path, args)
}

func (m *Router) enqueueCommand(ctx context.Context, up transport.Update, cmd Command, path []string, raw []string) {
	msg := up.Message
	pos, flags, bools := parseFlags(raw)
	rid := newReqID()
	owners := m.ownersSnapshot()

	req := &Request{
		Update:    up,
		Message:   msg,
		Chat:      transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:    msg.FromID,
		FromName:  msg.FromName,
		Path:      path,
		Command:   cmd.Route,
		Args:      pos,
		RawArgs:   raw,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Adapter:   m.adapter,
		Owners:    owners,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Route),
		),
	}

	final := Chain(
		cmd.Handle,
		MWRequestLog(m.log),
		MWErrorReply(),
		MWPanicRecover(m.log),
		MWTimeout(cmd.Timeout),
		m.mwAccess(cmd.Access),
	)

	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = req.ReplyText(ctx, "Busy, try again in a moment.")
	}
}

// mwAccess runs inside the worker because the admin lookup may call the platform.
func (m *Router) mwAccess(a Access) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if m.allowed(ctx, a, req) {
				return next(ctx, req)
			}
			_, _ = req.ReplyCard(ctx, chatui.Error("Not Allowed", "You don't have permission to use this command."))
			return nil
		}
	}
}

func (m *Router) allowed(ctx context.Context, a Access, req *Request) bool {
	if a == AccessEveryone || isOwner(req.FromID, req.Owners) {
		return true
	}
	if a == AccessOwnerOnly {
		return false
	}
	if req.Message != nil && req.Message.FromAdmin {
		return true
	}
	ac, ok := m.adapter.(transport.AdminChecker)
	if !ok {
		return false
	}
	admin, err := ac.IsChatAdmin(ctx, req.Chat, req.FromID)
	if err != nil {
		req.Logger.Warn("admin lookup failed", logx.Err(err))
		return false
	}
	return admin
}

func isOwner(id int64, owners []int64) bool {
	return slices.Contains(owners, id)
}
