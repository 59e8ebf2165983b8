package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"studybot/internal/transport"
)

func command(name, args string) *discordgo.Interaction {
	data := discordgo.ApplicationCommandInteractionData{Name: name}
	if args != "" {
		data.Options = []*discordgo.ApplicationCommandInteractionDataOption{{
			Name:  argsOption,
			Type:  discordgo.ApplicationCommandOptionString,
			Value: args,
		}}
	}
	return &discordgo.Interaction{
		ID:        "i1",
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "1001",
		GuildID:   "55",
		Token:     "tok",
		Data:      data,
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "77", Username: "ana"},
			Permissions: discordgo.PermissionAdministrator,
		},
	}
}

func TestToMessage(t *testing.T) {
	m, ok := toMessage(command("pomodoro", " 50 10 "))
	if !ok {
		t.Fatal("not converted")
	}
	if m.Text != "/pomodoro 50 10" {
		t.Fatalf("text = %q", m.Text)
	}
	if m.ChatID != 1001 || m.FromID != 77 || m.FromName != "ana" || m.ReplyToken != "tok" {
		t.Fatalf("message = %+v", m)
	}
	if !m.FromAdmin || !m.IsGroup {
		t.Fatalf("flags = %+v", m)
	}

	in := command("show_tasks", "")
	in.Member.Nick = "Ana L"
	in.Member.Permissions = 0
	m, _ = toMessage(in)
	if m.Text != "/show_tasks" || m.FromName != "Ana L" || m.FromAdmin {
		t.Fatalf("message = %+v", m)
	}

	in = command("add_study_room", "")
	in.Member.Permissions = discordgo.PermissionManageChannels | discordgo.PermissionManageMessages
	if m, _ = toMessage(in); m.FromAdmin {
		t.Fatal("manage channels without administrator counted as admin")
	}
}

func TestToPresence(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	after := &discordgo.VoiceState{UserID: "9", ChannelID: "300", Member: &discordgo.Member{User: &discordgo.User{ID: "9", GlobalName: "Bo"}}}

	p, ok := toPresence(after, nil, at)
	if !ok || p.UserID != 9 || p.Before != 0 || p.After != 300 || p.UserName != "Bo" || !p.At.Equal(at) {
		t.Fatalf("join = %+v ok=%v", p, ok)
	}

	p, ok = toPresence(&discordgo.VoiceState{UserID: "9"}, &discordgo.VoiceState{UserID: "9", ChannelID: "300"}, at)
	if !ok || p.Before != 300 || p.After != 0 {
		t.Fatalf("leave = %+v", p)
	}

	// mute toggles keep the channel and are not transitions
	if _, ok := toPresence(after, &discordgo.VoiceState{UserID: "9", ChannelID: "300"}, at); ok {
		t.Fatal("same channel reported as a change")
	}
}

func TestSlashCommands(t *testing.T) {
	got := slashCommands([]transport.BotCommand{
		{Command: "pomodoro", Description: "Start a timer", Usage: "/pomodoro [work] [break]"},
		{Command: "pomodoro", Description: "dup"},
		{Command: ""},
		{Command: "help"},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Options[0].Name != argsOption || got[0].Options[0].Required {
		t.Fatalf("options = %+v", got[0].Options[0])
	}
	if got[1].Description != "help" {
		t.Fatalf("fallback description = %q", got[1].Description)
	}
}

func TestEmbed(t *testing.T) {
	e := embed(transport.Card{
		Title:       "Pomodoro Timer",
		Description: "bar",
		Color:       0x3498db,
		Fields:      []transport.CardField{{Name: "a", Value: "b"}},
		ImageURL:    "https://cataas.com/cat",
		Footer:      "f",
	})
	if e.Title != "Pomodoro Timer" || e.Color != 0x3498db || len(e.Fields) != 1 || e.Image.URL != "https://cataas.com/cat" || e.Footer.Text != "f" {
		t.Fatalf("embed = %+v", e)
	}
	if e := embed(transport.Card{Title: "x"}); e.Image != nil || e.Footer != nil {
		t.Fatalf("empty parts should be nil: %+v", e)
	}
}

func TestEditErr(t *testing.T) {
	gone := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	if !errors.Is(editErr(gone), transport.ErrMessageGone) {
		t.Fatal("404 should map to ErrMessageGone")
	}
	limited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	if errors.Is(editErr(limited), transport.ErrMessageGone) {
		t.Fatal("429 is not gone")
	}
	if editErr(nil) != nil {
		t.Fatal("nil")
	}
}

func TestClaimAnswersOnceThenFollowsUp(t *testing.T) {
	a := &Adapter{pending: map[string]*pending{}}
	a.remember(&discordgo.Interaction{Token: "t"})

	in, first := a.claim("t")
	if in == nil || !first {
		t.Fatal("first claim should be the initial response")
	}
	in, first = a.claim("t")
	if in == nil || first {
		t.Fatal("second claim should be a followup")
	}
	if in, _ := a.claim("unknown"); in != nil {
		t.Fatal("unknown token")
	}
}
