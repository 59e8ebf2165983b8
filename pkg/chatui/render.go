package chatui

import (
	"html"
	"strings"

	"studybot/internal/transport"
)

// PlainText flattens a card for platforms without rich embeds.
func PlainText(c transport.Card) string {
	var b strings.Builder
	if c.Title != "" {
		b.WriteString(c.Title)
		b.WriteString("\n")
	}
	if c.Description != "" {
		b.WriteString(c.Description)
		b.WriteString("\n")
	}
	for _, f := range c.Fields {
		b.WriteString("\n")
		b.WriteString(f.Name)
		b.WriteString("\n")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	if c.ImageURL != "" {
		b.WriteString("\n")
		b.WriteString(c.ImageURL)
		b.WriteString("\n")
	}
	if c.Footer != "" {
		b.WriteString("\n")
		b.WriteString(c.Footer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// HTML renders a card for Telegram's HTML parse mode. Every value is escaped.
func HTML(c transport.Card) string {
	var parts []string
	if c.Title != "" {
		parts = append(parts, "<b>"+html.EscapeString(c.Title)+"</b>")
	}
	if c.Description != "" {
		parts = append(parts, html.EscapeString(c.Description))
	}
	for _, f := range c.Fields {
		parts = append(parts, "<b>"+html.EscapeString(f.Name)+"</b>\n"+html.EscapeString(f.Value))
	}
	if c.ImageURL != "" {
		u := html.EscapeString(c.ImageURL)
		parts = append(parts, `<a href="`+u+`">`+u+`</a>`)
	}
	if c.Footer != "" {
		parts = append(parts, "<i>"+html.EscapeString(c.Footer)+"</i>")
	}
	return strings.Join(parts, "\n\n")
}
