// Package todo exposes the per-user task list as chat commands.
package todo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	core "studybot/internal/plugin"
	"studybot/internal/study"
	tasks "studybot/internal/study/todo"
	"studybot/internal/transport"
	"studybot/internal/transport/router"
	"studybot/pkg/chatui"
	"studybot/pkg/logx"
)

type Plugin struct {
	core.PluginBase
	book *tasks.Book
}

func New() *Plugin { return &Plugin{book: tasks.NewBook()} }

func (p *Plugin) Name() string { return "todo" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "add_task",
			Description: "Add tasks to your to-do list",
			Usage:       "/add_task <task>[, <task>...]",
			Handle:      p.cmdAdd,
		},
		{
			Route:       "show_tasks",
			Description: "Show all tasks in your to-do list",
			Usage:       "/show_tasks",
			Handle:      p.cmdShow,
		},
		{
			Route:       "remove_tasks",
			Description: "Remove tasks by their numbers",
			Usage:       "/remove_tasks <n>[, <n>...]",
			Handle:      p.cmdRemove,
		},
		{
			Route:       "mark_tasks_done",
			Description: "Mark tasks as done by their numbers",
			Usage:       "/mark_tasks_done <n>[, <n>...]",
			Handle:      p.cmdDone,
		},
	}
}

// rawText is everything after the command, quotes and flags included.
func rawText(req *core.Request) string {
	if len(req.RawArgs) > 0 {
		return strings.Join(req.RawArgs, " ")
	}
	return req.Text()
}

func (p *Plugin) cmdAdd(ctx context.Context, req *core.Request) error {
	user := study.UserID(req.FromID)
	added, err := p.book.Add(user, rawText(req))
	if errors.Is(err, tasks.ErrEmptyTask) {
		return router.Invalid("Error", "Please give at least one task, separated by commas.", nil)
	}
	if err != nil {
		return err
	}
	p.Log.Debug("tasks added", logx.Int64("user", req.FromID), logx.Int("count", len(added)))

	_, err = req.ReplyCard(ctx, chatui.NewCard("To-Do List Update").
		Line("Added tasks:\n"+render(p.book.List(user), false)).
		Build())
	return err
}

func (p *Plugin) cmdShow(ctx context.Context, req *core.Request) error {
	items := p.book.List(study.UserID(req.FromID))
	if len(items) == 0 {
		_, err := req.ReplyCard(ctx, chatui.Info("To-Do List", "Your to-do list is empty!"))
		return err
	}
	desc := fmt.Sprintf("Your to-do list:\n%s\n\n**Completion: %.2f%%**", render(items, false), tasks.Completion(items))
	_, err := req.ReplyCard(ctx, chatui.Info("To-Do List", desc))
	return err
}

func (p *Plugin) cmdRemove(ctx context.Context, req *core.Request) error {
	removed, err := p.book.Remove(study.UserID(req.FromID), rawText(req))
	if err != nil {
		return indexError(err)
	}
	_, err = req.ReplyCard(ctx, chatui.Info("To-Do List Update", "Removed tasks: "+texts(removed)))
	return err
}

func (p *Plugin) cmdDone(ctx context.Context, req *core.Request) error {
	user := study.UserID(req.FromID)
	before := p.book.List(user)
	marked, cleared, err := p.book.MarkDone(user, rawText(req))
	if err != nil {
		return indexError(err)
	}

	var card transport.Card
	if cleared {
		card = chatui.Success("To-Do List Completed",
			"Congratulations! All tasks have been completed:\n"+render(before, true)+
				"\n\nYour to-do list has been cleared. Feel free to add new tasks!")
	} else {
		card = chatui.Success("To-Do List Update",
			"Marked tasks: "+texts(marked)+" as done ✅. Look at you finishing those tasks, good luck with your other tasks :)")
	}
	_, err = req.ReplyCard(ctx, card)
	return err
}

func indexError(err error) error {
	if errors.Is(err, tasks.ErrIndexOutOfRange) {
		return router.Invalid("Error", "Invalid task numbers! Make sure the numbers are within the range of your tasks.", err)
	}
	if errors.Is(err, tasks.ErrBadIndex) || errors.Is(err, tasks.ErrNoIndices) {
		return router.Invalid("Error", "Invalid task numbers! Please enter valid integers for the task indexes separated by spaces or commas.", err)
	}
	return err
}

// render numbers items from 1; allDone marks every line.
func render(items []tasks.Item, allDone bool) string {
	var l chatui.Lines
	for i, it := range items {
		if it.Done || allDone {
			l.Line("%d. %s ✅", i+1, it.Text)
		} else {
			l.Line("%d. %s", i+1, it.Text)
		}
	}
	return l.String()
}

func texts(items []tasks.Item) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return strings.Join(out, ", ")
}
