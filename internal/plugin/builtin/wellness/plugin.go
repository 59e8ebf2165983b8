// Package wellness serves motivation, health reminders and cats, on demand and
// on a schedule.
package wellness

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	core "studybot/internal/plugin"
	content "studybot/internal/study/wellness"
	"studybot/internal/transport"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

type Plugin struct {
	core.PluginBase

	mu        sync.RWMutex
	cfg       settings
	motivator *content.Motivator
	reminders *content.Picker
	cats      *content.Cats
	running   bool
}

func New() *Plugin {
	p := &Plugin{}
	cfg, _ := parseConfig(nil)
	p.build(cfg)
	return p
}

func (p *Plugin) Name() string { return "wellness" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	p.mu.Lock()
	p.running = true
	cfg := p.cfg
	p.mu.Unlock()
	return p.schedule(cfg)
}

func (p *Plugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return p.StopBase(ctx)
}

func (p *Plugin) ValidateConfig(ctx context.Context, raw json.RawMessage) error {
	_, err := parseConfig(raw)
	return err
}

func (p *Plugin) OnConfigChange(ctx context.Context, raw json.RawMessage) error {
	cfg, err := parseConfig(raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.build(cfg)
	running := p.running
	p.mu.Unlock()
	if !running {
		return nil
	}
	p.RemoveJobs()
	return p.schedule(cfg)
}

// build swaps in content sources for cfg. Callers hold mu, except New.
func (p *Plugin) build(cfg settings) {
	quotes := cfg.quotes
	if len(quotes) == 0 {
		quotes = content.DefaultQuotes()
	}
	reminders := cfg.reminders
	if len(reminders) == 0 {
		reminders = content.DefaultReminders()
	}

	var remote *content.Remote
	if cfg.remote {
		remote = content.NewRemote(&http.Client{Timeout: cfg.fetchTO}, cfg.quoteURL, cfg.factURL)
	}
	var quoteSrc content.QuoteSource
	var factSrc content.FactSource
	if remote != nil {
		quoteSrc, factSrc = remote, remote
	}

	p.cfg = cfg
	p.motivator = content.NewMotivator(content.NewPicker(quotes, cfg.seed), quoteSrc)
	p.reminders = content.NewPicker(reminders, cfg.seed)
	p.cats = content.NewCats(factSrc, cfg.catURL, cfg.catGIFURL, cfg.seed)
}

func (p *Plugin) sources() (settings, *content.Motivator, *content.Picker, *content.Cats) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.motivator, p.reminders, p.cats
}

func (p *Plugin) schedule(cfg settings) error {
	if len(cfg.chats) == 0 {
		return nil
	}
	if cfg.motivateEvery != off {
		if _, err := p.Schedule("motivate", cfg.motivateEvery, cfg.taskTO, p.postQuote); err != nil {
			return err
		}
	}
	if cfg.healthEvery != off {
		if _, err := p.Schedule("health", cfg.healthEvery, cfg.taskTO, p.postReminder); err != nil {
			return err
		}
	}
	p.Log.Info("periodic posts scheduled",
		logx.Int("chats", len(cfg.chats)),
		logx.String("motivate_every", cfg.motivateEvery),
		logx.String("health_every", cfg.healthEvery),
	)
	return nil
}

func (p *Plugin) quote(ctx context.Context) string {
	_, m, _, _ := p.sources()
	text, err := m.Quote(ctx)
	if err != nil {
		p.Log.Debug("remote quote failed", logx.Err(err))
	}
	return text
}

func (p *Plugin) broadcast(ctx context.Context, card transport.Card) error {
	cfg, _, _, _ := p.sources()
	var firstErr error
	for _, chat := range cfg.chats {
		if err := p.Post(ctx, transport.ChatTarget{ChatID: chat}, card); err != nil {
			p.Log.Warn("periodic post failed", logx.Int64("chat_id", chat), logx.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Plugin) postQuote(ctx context.Context) error {
	return p.broadcast(ctx, chatui.Info("Motivational Quote", p.quote(ctx)))
}

func (p *Plugin) postReminder(ctx context.Context) error {
	_, _, r, _ := p.sources()
	return p.broadcast(ctx, chatui.Info("Health Reminder", r.Pick()))
}

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "motivate",
			Description: "Get a motivational message",
			Usage:       "/motivate",
			Handle: func(ctx context.Context, req *core.Request) error {
				_, err := req.ReplyCard(ctx, chatui.Info("Motivational Quote :)", p.quote(ctx)))
				return err
			},
		},
		{
			Route:       "health_reminder",
			Description: "Get a health reminder",
			Usage:       "/health_reminder",
			Handle: func(ctx context.Context, req *core.Request) error {
				_, _, r, _ := p.sources()
				_, err := req.ReplyCard(ctx, chatui.Info("Health Reminder", r.Pick()))
				return err
			},
		},
		{
			Route:       "cat",
			Description: "Get a random cat picture and a cat fact",
			Usage:       "/cat",
			Handle:      p.cmdCat,
		},
	}
}

func (p *Plugin) cmdCat(ctx context.Context, req *core.Request) error {
	_, _, _, cats := p.sources()
	cat, err := cats.Random(ctx)
	if err != nil {
		p.Log.Debug("cat fact fetch failed", logx.Err(err))
	}
	card := chatui.NewCard("🐱 Silly Cats Time :3 🐱").
		Field("A Lil Cat Fun Fact", cat.Fact).
		Image(cat.ImageURL).
		Build()
	_, err = req.ReplyCard(ctx, card)
	return err
}
