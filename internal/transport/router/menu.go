package router

import (
	"sort"
	"strings"
	"unicode"

	"studybot/internal/transport"
)

// maxMenuCommands is the smaller of the Telegram and Discord command list limits.
const maxMenuCommands = 100

// sanitizeCommand converts a route or alias into a platform-safe command name,
// restricted to [a-z0-9_]{1,32}.
func sanitizeCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == '/' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
		if len(out) > 32 {
			out = strings.TrimRight(out[:32], "_")
		}
	}
	return out
}

// menuNameFromRoute joins a route into one command name:
//
//	["leaderboard","last"] -> "leaderboard_last"
//	["add-task"]           -> "add_task"
func menuNameFromRoute(route []string) (string, bool) {
	if len(route) == 0 {
		return "", false
	}
	out := sanitizeCommand(strings.Join(route, "_"))
	return out, out != ""
}

func buildMenuCommands(root *cmdNode, leafCmds []Command) []transport.BotCommand {
	type entry struct {
		cmd   string
		desc  string
		usage string
		prio  int
	}
	byCmd := map[string]entry{}
	add := func(cmd, desc, usage string, prio int) {
		cmd = sanitizeCommand(cmd)
		if cmd == "" {
			return
		}
		desc = strings.ReplaceAll(strings.TrimSpace(desc), "\n", " ")
		if desc == "" {
			desc = cmd
		}
		if len([]rune(desc)) > 100 {
			desc = string([]rune(desc)[:100])
		}
		if cur, ok := byCmd[cmd]; ok && (cur.prio < prio || (cur.prio == prio && len(cur.desc) <= len(desc))) {
			return
		}
		byCmd[cmd] = entry{cmd: cmd, desc: desc, usage: usage, prio: prio}
	}

	// top-level commands first, then multi-token leaves as a_b shortcuts
	for _, name := range root.childNames() {
		n, _ := root.child(name)
		usage := ""
		if n.cmd != nil {
			usage = n.cmd.Usage
		}
		add(name, summarizeNodeDesc(n), usage, 0)
	}
	for _, c := range leafCmds {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		menu, ok := menuNameFromRoute(route)
		if !ok {
			continue
		}
		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			desc = strings.Join(route, " ")
		}
		add(menu, desc, c.Usage, 1)
	}

	entries := make([]entry, 0, len(byCmd))
	for _, e := range byCmd {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].cmd < entries[j].cmd
	})

	out := make([]transport.BotCommand, 0, min(len(entries), maxMenuCommands))
	for _, e := range entries {
		if len(out) >= maxMenuCommands {
			break
		}
		out = append(out, transport.BotCommand{Command: e.cmd, Description: e.desc, Usage: e.usage})
	}
	return out
}
