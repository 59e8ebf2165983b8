package router

import (
	"sort"
	"strings"

	"studybot/internal/transport"
	"studybot/pkg/chatui"
)

// helpCard lists every top-level command, or details one command path.
func (m *Router) helpCard(path []string) transport.Card {
	m.mu.RLock()
	root := m.root
	alias := m.alias
	m.mu.RUnlock()

	if len(path) == 0 {
		return helpTop(root)
	}

	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.ToLower(strings.TrimPrefix(p, "/"))
		n, ok := cur.child(p)
		if !ok {
			if leaf, ok2 := alias[p]; ok2 && leaf != nil && leaf.cmd != nil {
				cur = leaf
				full = splitRoute(leaf.cmd.Route)
				break
			}
			return chatui.Warn("Unknown Command", "Try /help to see every command.")
		}
		cur = n
		full = append(full, p)
	}
	return helpNode(cur, full)
}

func helpTop(root *cmdNode) transport.Card {
	type row struct {
		name string
		desc string
		lock bool
	}
	names := root.childNames()
	rows := make([]row, 0, len(names))
	for _, name := range names {
		n, _ := root.child(name)
		rows = append(rows, row{name: name, desc: summarizeNodeDesc(n), lock: nodeIsRestricted(n)})
	}
	// restricted commands go last, alphabetical within each group
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock
		}
		return rows[i].name < rows[j].name
	})

	b := chatui.NewCard("Help Commands").
		Color(chatui.ColorBlue).
		Line("Here are all the commands you can use:")
	for _, r := range rows {
		name := "/" + r.name
		if r.lock {
			name += " 🔒"
		}
		desc := r.desc
		if desc == "" {
			desc = "-"
		}
		b.Field(name, desc)
	}
	return b.Footer("Type /help <command> for details").Build()
}

func helpNode(cur *cmdNode, full []string) transport.Card {
	b := chatui.NewCard("Help: /" + strings.Join(full, " ")).Color(chatui.ColorBlue)

	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			b.Line(d)
		}
		switch c.Access {
		case AccessAdmin:
			b.Line("🔒 Administrators only")
		case AccessOwnerOnly:
			b.Line("🔒 Bot owners only")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			b.Field("Usage", u)
		}
		if short := buildShortcuts(*c); len(short) > 0 {
			b.Field("Shortcuts", "/"+strings.Join(short, ", /"))
		}
	} else {
		b.Line("Command group.")
	}

	if len(cur.children) > 0 {
		var lines chatui.Lines
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			cmd := "/" + strings.Join(append(append([]string(nil), full...), name), " ")
			if d := summarizeNodeDesc(n); d != "" {
				cmd += ": " + d
			}
			lines.Line("%s", cmd)
		}
		b.Field("Subcommands", lines.String())
	}
	return b.Build()
}

func summarizeNodeDesc(n *cmdNode) string {
	if n == nil {
		return ""
	}
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	shown := min(len(kids), 3)
	s := strings.Join(kids[:shown], ", ")
	if len(kids) > shown {
		s += ", …"
	}
	return "subcommands: " + s
}

// nodeIsRestricted reports whether nobody but admins or owners can run anything under n.
func nodeIsRestricted(n *cmdNode) bool {
	if n == nil {
		return false
	}
	if n.cmd != nil {
		return n.cmd.Access != AccessEveryone
	}
	for _, ch := range n.children {
		if !nodeIsRestricted(ch) {
			return false
		}
	}
	return true
}

func buildShortcuts(c Command) []string {
	out := make([]string, 0, 4)
	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	route := splitRoute(c.Route)
	if menu, ok := menuNameFromRoute(route); ok && (len(route) > 1 || menu != route[0]) {
		add(menu)
	}
	for _, a := range c.Aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.Contains(a, " ") {
			continue
		}
		add(a)
	}
	sort.Strings(out)
	return out
}
