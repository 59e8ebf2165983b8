// Package wellness serves motivational quotes, health reminders and cat facts.
package wellness

import (
	"math/rand"
	"sync"
	"time"
)

// Picker returns random items and never the same item twice in a row.
type Picker struct {
	mu    sync.Mutex
	items []string
	last  int
	rng   *rand.Rand
}

func NewPicker(items []string, seed int64) *Picker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Picker{items: append([]string(nil), items...), last: -1, rng: rand.New(rand.NewSource(seed))}
}

func (p *Picker) Len() int { return len(p.items) }

// Pick returns "" for an empty picker.
func (p *Picker) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch len(p.items) {
	case 0:
		return ""
	case 1:
		p.last = 0
		return p.items[0]
	}
	i := p.rng.Intn(len(p.items) - 1)
	if p.last >= 0 && i >= p.last {
		i++
	}
	p.last = i
	return p.items[i]
}

// PickExcept picks like Pick but also avoids text. It falls back to a plain
// Pick when nothing else is left.
func (p *Picker) PickExcept(text string) string {
	for i := 0; i < 8; i++ {
		if s := p.Pick(); s != text {
			return s
		}
	}
	return p.Pick()
}

func (p *Picker) coin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(2) == 0
}
