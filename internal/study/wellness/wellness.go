package wellness

import (
	"context"
	"sync"
)

const (
	FallbackQuote   = "You are amazing! Keep believing in yourself. 🌟"
	FallbackCatFact = "Did you know? Cats have five toes on their front paws, but only four on their back paws. 🐾🐱"
)

// QuoteSource is an upstream quote service.
type QuoteSource interface {
	Quote(ctx context.Context) (string, error)
}

// FactSource is an upstream cat fact service.
type FactSource interface {
	CatFact(ctx context.Context) (string, error)
}

// Motivator mixes local quotes with remote ones, half and half. Upstream
// failures fall back to a fixed quote; the error is returned for logging only.
type Motivator struct {
	local  *Picker
	remote QuoteSource

	mu   sync.Mutex
	last string
}

func NewMotivator(local *Picker, remote QuoteSource) *Motivator {
	return &Motivator{local: local, remote: remote}
}

// Quote always returns usable text and never repeats the previous result.
func (m *Motivator) Quote(ctx context.Context) (string, error) {
	var (
		text string
		err  error
	)
	if m.remote == nil || m.local.coin() {
		text = m.local.Pick()
	} else if text, err = m.remote.Quote(ctx); err != nil {
		text = FallbackQuote
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if text == m.last || text == "" {
		text = m.local.PickExcept(m.last)
	}
	if text == "" {
		text = FallbackQuote
	}
	m.last = text
	return text, err
}

// Cat is the payload of the cat command.
type Cat struct {
	Fact     string
	ImageURL string
}

type Cats struct {
	facts  FactSource
	picker *Picker
}

// NewCats alternates between a still image and a gif from the image endpoints.
func NewCats(facts FactSource, imageURL, gifURL string, seed int64) *Cats {
	if imageURL == "" {
		imageURL = DefaultCatURL
	}
	if gifURL == "" {
		gifURL = DefaultCatGIFURL
	}
	return &Cats{facts: facts, picker: NewPicker([]string{imageURL, gifURL}, seed)}
}

// Random returns a fact and an image link. A failed fact fetch yields the
// fallback fact and the still image.
func (c *Cats) Random(ctx context.Context) (Cat, error) {
	if c.facts == nil {
		return Cat{Fact: FallbackCatFact, ImageURL: c.picker.items[0]}, nil
	}
	fact, err := c.facts.CatFact(ctx)
	if err != nil {
		return Cat{Fact: FallbackCatFact, ImageURL: c.picker.items[0]}, err
	}
	url := c.picker.items[0]
	if c.picker.coin() {
		url = c.picker.items[1]
	}
	return Cat{Fact: fact, ImageURL: url}, nil
}
