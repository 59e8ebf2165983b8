// Package todo keeps a per-user, index-addressed task list.
package todo

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"studybot/internal/study"
)

var (
	ErrBadIndex        = errors.New("task index is not a number")
	ErrIndexOutOfRange = errors.New("task index out of range")
	ErrNoIndices       = errors.New("no task indices given")
	ErrEmptyTask       = errors.New("task text is empty")

	indexSeparators = regexp.MustCompile(`[,\s]+`)
)

// IndexError names the offending input.
type IndexError struct {
	Raw string
	Len int
	Err error
}

func (e *IndexError) Error() string {
	if errors.Is(e.Err, ErrIndexOutOfRange) {
		return fmt.Sprintf("task %s does not exist (you have %d)", e.Raw, e.Len)
	}
	return fmt.Sprintf("%q is not a task number", e.Raw)
}

func (e *IndexError) Unwrap() error { return e.Err }

type Item struct {
	Text string
	Done bool
}

// Book holds every user's list.
type Book struct {
	mu    sync.Mutex
	lists map[study.UserID][]Item
}

func NewBook() *Book {
	return &Book{lists: make(map[study.UserID][]Item)}
}

// Add appends each comma-separated item. Blank items are dropped.
// It returns the added texts.
func (b *Book) Add(user study.UserID, raw string) ([]string, error) {
	var added []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			added = append(added, s)
		}
	}
	if len(added) == 0 {
		return nil, ErrEmptyTask
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range added {
		b.lists[user] = append(b.lists[user], Item{Text: s})
	}
	return added, nil
}

// List returns a copy of the user's list.
func (b *Book) List(user study.UserID) []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Item(nil), b.lists[user]...)
}

// Remove deletes the 1-based indices. Every index is validated before anything
// changes; removal runs high-to-low so earlier removals never shift later ones.
func (b *Book) Remove(user study.UserID, raw string) ([]Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.lists[user]
	idx, err := ParseIndices(raw, len(list))
	if err != nil {
		return nil, err
	}
	removed := make([]Item, 0, len(idx))
	for _, i := range idx {
		removed = append(removed, list[i-1])
		list = append(list[:i-1], list[i:]...)
	}
	b.store(user, list)
	return removed, nil
}

// MarkDone flags the 1-based indices as done using the same validation and
// ordering as Remove. When every item ends up done the list is cleared and
// cleared is true.
func (b *Book) MarkDone(user study.UserID, raw string) (marked []Item, cleared bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.lists[user]
	idx, err := ParseIndices(raw, len(list))
	if err != nil {
		return nil, false, err
	}
	for _, i := range idx {
		list[i-1].Done = true
		marked = append(marked, list[i-1])
	}
	for _, it := range list {
		if !it.Done {
			return marked, false, nil
		}
	}
	delete(b.lists, user)
	return marked, true, nil
}

func (b *Book) store(user study.UserID, list []Item) {
	if len(list) == 0 {
		delete(b.lists, user)
		return
	}
	b.lists[user] = list
}

// ParseIndices splits raw on commas and whitespace and returns unique 1-based
// indices sorted high-to-low. Any non-numeric or out-of-range entry fails the
// whole call.
func ParseIndices(raw string, n int) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, tok := range indexSeparators.Split(strings.TrimSpace(raw), -1) {
		if tok == "" {
			continue
		}
		i, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &IndexError{Raw: tok, Len: n, Err: ErrBadIndex}
		}
		if i < 1 || i > n {
			return nil, &IndexError{Raw: tok, Len: n, Err: ErrIndexOutOfRange}
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoIndices
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

// Completion is the percentage of done items, 0 for an empty list.
func Completion(items []Item) float64 {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, it := range items {
		if it.Done {
			done++
		}
	}
	return float64(done) * 100 / float64(len(items))
}
