package chatui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncRunes returns s truncated to at most n runes, ending in "…" when cut.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			return s[:cut] + "…"
		}
	}
	return s
}

// Split breaks text into chunks of at most limit runes, preferring line breaks.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			n = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln > limit {
			flush()
		}
		for ln > limit {
			head := TruncRunes(line, limit)
			head = strings.TrimSuffix(head, "…")
			out = append(out, head)
			line = line[len(head):]
			ln = utf8.RuneCountInString(line)
		}
		cur.WriteString(line)
		n += ln
	}
	flush()
	return out
}

// Lines builds multi-line text bodies.
type Lines struct {
	lines []string
}

func (l *Lines) Line(format string, args ...any) *Lines {
	if len(args) == 0 {
		l.lines = append(l.lines, format)
	} else {
		l.lines = append(l.lines, fmt.Sprintf(format, args...))
	}
	return l
}

func (l *Lines) Blank() *Lines { return l.Line("") }

func (l *Lines) Bullets(items ...string) *Lines {
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			l.lines = append(l.lines, "• "+it)
		}
	}
	return l
}

// Numbered writes items as "1. item".
func (l *Lines) Numbered(items ...string) *Lines {
	for i, it := range items {
		l.lines = append(l.lines, fmt.Sprintf("%d. %s", i+1, it))
	}
	return l
}

func (l *Lines) KV(key, value string) *Lines {
	if key = strings.TrimSpace(key); key != "" {
		l.lines = append(l.lines, "• "+key+": "+strings.TrimSpace(value))
	}
	return l
}

func (l *Lines) Len() int { return len(l.lines) }

func (l *Lines) String() string { return strings.Trim(strings.Join(l.lines, "\n"), "\n") }
