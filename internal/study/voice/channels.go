// Package voice turns voice-channel presence into study minutes.
package voice

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"studybot/internal/study"
)

var ErrBadChannelID = errors.New("channel id must be a positive number")

// ParseChannelID accepts a bare numeric id or a "<#123>" channel mention.
func ParseChannelID(raw string) (study.ChannelID, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<#"), ">")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadChannelID, raw)
	}
	return study.ChannelID(n), nil
}

// ChannelSet is the set of tracked study rooms.
type ChannelSet struct {
	mu  sync.RWMutex
	ids map[study.ChannelID]struct{}
}

func NewChannelSet(ids ...study.ChannelID) *ChannelSet {
	cs := &ChannelSet{ids: map[study.ChannelID]struct{}{}}
	for _, id := range ids {
		cs.Add(id)
	}
	return cs
}

// Add reports whether id was newly added.
func (c *ChannelSet) Add(id study.ChannelID) bool {
	if id <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return false
	}
	c.ids[id] = struct{}{}
	return true
}

// Remove reports whether id was present.
func (c *ChannelSet) Remove(id study.ChannelID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; !ok {
		return false
	}
	delete(c.ids, id)
	return true
}

func (c *ChannelSet) Has(id study.ChannelID) bool {
	if id == 0 {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

func (c *ChannelSet) List() []study.ChannelID {
	c.mu.RLock()
	out := make([]study.ChannelID, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
