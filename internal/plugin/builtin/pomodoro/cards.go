package pomodoro

import (
	"fmt"
	"time"

	"studybot/internal/study"
	"studybot/internal/study/ledger"
	"studybot/internal/study/timer"
	"studybot/internal/transport"
	"studybot/pkg/chatui"
)

func minutesOf(d time.Duration) int { return int(d / time.Minute) }

func phaseColor(ph timer.Phase) int {
	if ph == timer.PhaseBreak {
		return chatui.ColorGreen
	}
	return chatui.ColorBlue
}

// phaseTitle is "Work" or "Break".
func phaseTitle(ph timer.Phase) string {
	if ph == timer.PhaseBreak {
		return "Break"
	}
	return "Work"
}

func clock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func startCard(work time.Duration) transport.Card {
	return chatui.NewCard("Pomodoro Timer").
		Line(fmt.Sprintf("Work for %d minutes. Timer updates every second.", minutesOf(work))).
		Footer("Pomodoro Timer in progress").
		Build()
}

func breakStartCard(brk time.Duration) transport.Card {
	return chatui.NewCard("Break Timer").
		Color(chatui.ColorGreen).
		Line(fmt.Sprintf("Take a break for %d minutes. Timer updates every second.", minutesOf(brk))).
		Footer("Break Timer in progress").
		Build()
}

func footerFor(ph timer.Phase) string {
	if ph == timer.PhaseBreak {
		return "Break Timer in progress"
	}
	return "Pomodoro Timer in progress"
}

func progressCard(p timer.Progress, barLen int) transport.Card {
	bar := timer.Bar(p.Fraction(), barLen)
	var desc string
	if p.Phase == timer.PhaseBreak {
		desc = fmt.Sprintf("Break Timer: [%s] %s\nTake a break for %d minutes.", bar, clock(p.Remaining), minutesOf(p.Total))
	} else {
		desc = fmt.Sprintf("Work Timer: [%s] %s\nWork for %d minutes.", bar, clock(p.Remaining), minutesOf(p.Total))
	}
	title := "Pomodoro Timer"
	if p.Phase == timer.PhaseBreak {
		title = "Break Timer"
	}
	return chatui.NewCard(title).Color(phaseColor(p.Phase)).Line(desc).Footer(footerFor(p.Phase)).Build()
}

func recoverCard(ph timer.Phase) transport.Card {
	return chatui.NewCard("Timer Continues...").
		Color(phaseColor(ph)).
		Line("Timer is still running...").
		Footer(footerFor(ph)).
		Build()
}

func continuesCard(ph timer.Phase) transport.Card {
	verb := "work"
	if ph == timer.PhaseBreak {
		verb = "break"
	}
	return chatui.NewCard(phaseTitle(ph) + " Timer Continues...").
		Color(phaseColor(ph)).
		Line(fmt.Sprintf("Continue %sing for the remaining time.", verb)).
		Footer(footerFor(ph)).
		Build()
}

func threadNoticeCard() transport.Card {
	return chatui.Info("Timer Continues in Thread",
		"To keep things organized, the timer will continue in a new thread. You can follow the updates there. Thank you :)")
}

func threadName(name string, ph timer.Phase) string {
	return chatui.TruncRunes(fmt.Sprintf("%s's %s Timer Thread", name, phaseTitle(ph)), 100)
}

func workDoneCard(work time.Duration) transport.Card {
	return chatui.Success("Work Session Complete",
		fmt.Sprintf("**Work session complete! You worked for %d minutes. It's time for a break. Don't forget to breathe :)** 🎉", minutesOf(work)))
}

func breakOverCard() transport.Card {
	return chatui.Success("Break Over", "**You've completed a Pomodoro session! Great job buddy :)** ✅")
}

func stoppedCard(worked int) transport.Card {
	return chatui.Info("Pomodoro Timer Stopped",
		fmt.Sprintf("The timer has been stopped successfully. You worked for %d minutes.", worked))
}

func notRunningCard() transport.Card {
	return chatui.Error("No Timer Running", "No timer is currently running.")
}

func studyCard(name string, e ledger.Entry, active string) transport.Card {
	b := chatui.NewCard("Pomodoro Study Time").
		Line(fmt.Sprintf("%s, you have studied for a total of %d minutes using Pomodoro sessions!", name, e.Focus)).
		Field("Pomodoro", study.FormatMinutes(e.Focus)).
		Field("Study rooms", study.FormatMinutes(e.Presence)).
		Field("This week", study.FormatMinutes(e.Combined()))
	if active != "" {
		b.Field("Running now", active)
	}
	return b.Build()
}

func activeLine(st timer.State, remaining time.Duration) string {
	switch st {
	case timer.StateWork:
		return "Work, " + clock(remaining) + " left"
	case timer.StateBreak:
		return "Break, " + clock(remaining) + " left"
	default:
		return ""
	}
}
