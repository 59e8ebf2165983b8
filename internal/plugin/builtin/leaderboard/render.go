package leaderboard

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"studybot/internal/study"
	board "studybot/internal/study/leaderboard"
	"studybot/internal/transport"
	"studybot/pkg/chatui"
)

// snapshotRow is the audit form of a ranked row; names are frozen at reset time.
type snapshotRow struct {
	Rank    int          `json:"rank"`
	User    study.UserID `json:"user"`
	Name    string       `json:"name"`
	Minutes int          `json:"minutes"`
}

type snapshot struct {
	Epoch uint64        `json:"epoch"`
	At    time.Time     `json:"at"`
	Rows  []snapshotRow `json:"rows"`
}

func freeze(rows []board.Row, names *study.Roster) []snapshotRow {
	out := make([]snapshotRow, len(rows))
	for i, r := range rows {
		out[i] = snapshotRow{Rank: r.Rank, User: r.User, Name: names.Name(r.User), Minutes: r.Minutes}
	}
	return out
}

func emptyCard() transport.Card {
	return chatui.Info("No Study Times Logged", "No study times logged yet.")
}

func boardCard(title, intro string, rows []snapshotRow) transport.Card {
	if len(rows) == 0 {
		return emptyCard()
	}
	var l chatui.Lines
	l.Line("%s", intro)
	for _, r := range rows {
		l.Line("%d. %s: %s", r.Rank, r.Name, study.FormatMinutes(r.Minutes))
	}
	return chatui.NewCard(title).Line(l.String()).Build()
}

func weeklyCard(rows []snapshotRow, topN int) transport.Card {
	return boardCard("Weekly Study Leaderboard",
		fmt.Sprintf("Top %d of This Week! Congratulations keep up the good work :):", topN), rows)
}

func lastWeekCard(s snapshot) transport.Card {
	c := boardCard("Last Week's Leaderboard", "Final standings before the last reset:", s.Rows)
	if len(s.Rows) > 0 {
		c.Footer = "Reset " + humanize.Time(s.At)
	}
	return c
}

func resetCard(next time.Time) transport.Card {
	return chatui.NewCard("Weekly Leaderboard Reset").
		Line("Weekly leaderboard has been reset! Log your study times for the new week!").
		Footer("Next reset " + next.Format("Mon 2 Jan 15:04 MST")).
		Build()
}

// standingLine places the caller among everyone with time this week.
func standingLine(all []board.Row, user study.UserID) string {
	for _, r := range all {
		if r.User == user {
			return fmt.Sprintf("You are %s of %d with %s.", humanize.Ordinal(r.Rank), len(all), study.FormatMinutes(r.Minutes))
		}
	}
	return "You have no study time this week yet."
}
