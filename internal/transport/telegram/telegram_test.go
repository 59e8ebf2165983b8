package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"studybot/internal/transport"
)

func TestEditErr(t *testing.T) {
	cases := []struct {
		in   error
		want error
		gone bool
	}{
		{in: nil},
		{in: errors.New("telegram: Bad Request: message is not modified (400)")},
		{in: errors.New("telegram: Bad Request: message to edit not found (400)"), gone: true},
		{in: errors.New("telegram: Bad Request: message can't be edited (400)"), gone: true},
	}
	for _, tc := range cases {
		got := editErr(tc.in)
		if tc.gone {
			if !errors.Is(got, transport.ErrMessageGone) {
				t.Fatalf("editErr(%v) = %v, want ErrMessageGone", tc.in, got)
			}
			continue
		}
		if got != nil {
			t.Fatalf("editErr(%v) = %v, want nil", tc.in, got)
		}
	}

	other := errors.New("telegram: Too Many Requests: retry after 3 (429)")
	if got := editErr(other); got != other {
		t.Fatalf("unexpected mapping: %v", got)
	}
}

func TestToMessage(t *testing.T) {
	m := &tele.Message{
		ID:       42,
		ThreadID: 7,
		Text:     "/pomodoro 25 5",
		Chat:     &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:   &tele.User{ID: 9, FirstName: "Ana", LastName: "Lee", Username: "ana"},
	}
	got := toMessage(m)
	if got.ID != "42" || got.ChatID != -100 || got.ThreadID != 7 || got.FromID != 9 {
		t.Fatalf("ids: %+v", got)
	}
	if got.FromName != "Ana Lee" || !got.IsGroup || got.FromBot {
		t.Fatalf("sender: %+v", got)
	}

	m.Sender = &tele.User{ID: 9, Username: "ana"}
	m.Chat.Type = tele.ChatPrivate
	got = toMessage(m)
	if got.FromName != "ana" || got.IsGroup {
		t.Fatalf("fallback name: %+v", got)
	}
}
