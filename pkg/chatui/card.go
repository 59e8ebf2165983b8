package chatui

import (
	"strings"

	"studybot/internal/transport"
)

// Accent colors (RGB).
const (
	ColorBlue   = 0x3498DB
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
	ColorYellow = 0xFEE75C
)

// CardBuilder assembles a transport.Card.
type CardBuilder struct {
	c     transport.Card
	lines []string
}

func NewCard(title string) *CardBuilder {
	return &CardBuilder{c: transport.Card{Title: strings.TrimSpace(title), Color: ColorBlue}}
}

func (b *CardBuilder) Color(rgb int) *CardBuilder {
	b.c.Color = rgb
	return b
}

// Line appends a description line. Empty strings add a blank line.
func (b *CardBuilder) Line(s string) *CardBuilder {
	b.lines = append(b.lines, s)
	return b
}

func (b *CardBuilder) Lines(ls ...string) *CardBuilder {
	b.lines = append(b.lines, ls...)
	return b
}

func (b *CardBuilder) Field(name, value string) *CardBuilder {
	b.c.Fields = append(b.c.Fields, transport.CardField{Name: name, Value: value})
	return b
}

func (b *CardBuilder) Image(url string) *CardBuilder {
	b.c.ImageURL = url
	return b
}

func (b *CardBuilder) Footer(s string) *CardBuilder {
	b.c.Footer = s
	return b
}

func (b *CardBuilder) Build() transport.Card {
	c := b.c
	c.Description = strings.Trim(strings.Join(b.lines, "\n"), "\n")
	c.Fields = append([]transport.CardField(nil), b.c.Fields...)
	return c
}

func Info(title, desc string) transport.Card {
	return NewCard(title).Line(desc).Build()
}

func Success(title, desc string) transport.Card {
	return NewCard(title).Color(ColorGreen).Line(desc).Build()
}

func Warn(title, desc string) transport.Card {
	return NewCard(title).Color(ColorYellow).Line(desc).Build()
}

func Error(title, desc string) transport.Card {
	return NewCard(title).Color(ColorRed).Line(desc).Build()
}
