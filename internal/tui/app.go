// Package tui is the terminal rendering boundary: it turns key presses into
// controller operations and controller outcomes into screens.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/todo/internal/browser"
	"github.com/naveenspark/todo/internal/controller"
	"github.com/naveenspark/todo/pkg/client"
	"github.com/naveenspark/todo/pkg/domain"
)

// Controller is the subset of *controller.Controller the UI drives.
type Controller interface {
	Start(ctx context.Context) controller.Outcome
	Register(ctx context.Context, username, password string) controller.Outcome
	Login(ctx context.Context, username, password string) controller.Outcome
	Logout(ctx context.Context) controller.Outcome
	Fetch(ctx context.Context) controller.Outcome
	Add(ctx context.Context, description string) controller.Outcome
	Complete(ctx context.Context, id domain.ID) controller.Outcome
	SetFilter(f client.TodoFilter)
}

// outcomeMsg carries a finished controller operation.
type outcomeMsg struct {
	out controller.Outcome
}

type copyResultMsg struct {
	err error
}

type openResultMsg struct {
	err error
}

// App is the root Bubbletea model.
type App struct {
	ctrl     Controller
	webURL   string
	mode     controller.Mode
	username string
	auth     authModel
	todos    todoModel
	listSeq  uint64
	alert    string
	busy     int
	spinner  spinner.Model
	width    int
	height   int
	frame    int // title shimmer animation frame
}

// NewApp creates the TUI. webURL is what the web-client key opens.
func NewApp(c Controller, webURL string) App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = accentStyle
	return App{
		ctrl:    c,
		webURL:  webURL,
		auth:    newAuthModel(),
		todos:   newTodoModel(),
		spinner: sp,
		busy:    1, // Start runs from Init
	}
}

func (a App) Init() tea.Cmd {
	c := a.ctrl
	start := func() tea.Msg {
		return outcomeMsg{out: c.Start(context.Background())}
	}
	return tea.Batch(start, a.spinner.Tick, shimmerTickCmd(), textinput.Blink)
}

// run dispatches a controller operation on its own goroutine.
func (a App) run(op func(ctx context.Context) controller.Outcome) (App, tea.Cmd) {
	a.busy++
	cmd := func() tea.Msg {
		return outcomeMsg{out: op(context.Background())}
	}
	if a.busy == 1 {
		return a, tea.Batch(cmd, a.spinner.Tick)
	}
	return a, cmd
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + blank(1) + help(1) = 4 lines
		a.todos.width = msg.Width
		a.todos.height = msg.Height - 4
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case spinner.TickMsg:
		if a.busy == 0 {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case outcomeMsg:
		if a.busy > 0 {
			a.busy--
		}
		return a.apply(msg.out), nil

	case copyResultMsg:
		if msg.err != nil {
			a.todos.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			a.todos.status = "copied!"
		}
		return a, nil

	case openResultMsg:
		if msg.err != nil {
			a.todos.status = fmt.Sprintf("open failed: %v", msg.err)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		// The alert overlay captures all keys until dismissed.
		if a.alert != "" {
			switch msg.String() {
			case "enter", "esc", " ":
				a.alert = ""
			}
			return a, nil
		}
		if a.mode == controller.LoggedOut {
			return a.updateAuth(msg)
		}
		return a.updateTodos(msg)
	}

	// Blink and other input messages go to whatever is focused.
	var cmd tea.Cmd
	if a.mode == controller.LoggedOut {
		a.auth, cmd = a.auth.Update(msg)
	} else {
		a.todos, cmd = a.todos.updateInput(msg)
	}
	return a, cmd
}

func (a App) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		action := a.auth.form()
		username, password := a.auth.values(action)
		c := a.ctrl
		if action == controller.ActionRegister {
			return a.run(func(ctx context.Context) controller.Outcome {
				return c.Register(ctx, username, password)
			})
		}
		return a.run(func(ctx context.Context) controller.Outcome {
			return c.Login(ctx, username, password)
		})
	case "esc":
		return a, tea.Quit
	}
	var cmd tea.Cmd
	a.auth, cmd = a.auth.Update(msg)
	return a, cmd
}

func (a App) updateTodos(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := a.ctrl

	if a.todos.editing() {
		switch msg.String() {
		case "enter":
			if a.todos.adding {
				desc := a.todos.add.Value()
				return a.run(func(ctx context.Context) controller.Outcome {
					return c.Add(ctx, desc)
				})
			}
			a.todos.query = strings.TrimSpace(a.todos.search.Value())
			a.todos = a.todos.stopEditing()
			return a.refetch()
		case "esc":
			a.todos = a.todos.stopEditing()
			return a, nil
		}
		var cmd tea.Cmd
		a.todos, cmd = a.todos.updateInput(msg)
		return a, cmd
	}

	a.todos.status = ""
	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, keys.Up):
		a.todos = a.todos.moveCursor(-1)
	case key.Matches(msg, keys.Down):
		a.todos = a.todos.moveCursor(1)
	case key.Matches(msg, keys.Complete):
		it, ok := a.todos.selected()
		if !ok {
			return a, nil
		}
		if !it.Enabled {
			a.todos.status = "already completed"
			return a, nil
		}
		id := it.Todo.ID
		return a.run(func(ctx context.Context) controller.Outcome {
			return c.Complete(ctx, id)
		})
	case key.Matches(msg, keys.Add):
		var cmd tea.Cmd
		a.todos, cmd = a.todos.startAdding()
		return a, cmd
	case key.Matches(msg, keys.Search):
		var cmd tea.Cmd
		a.todos, cmd = a.todos.startSearch()
		return a, cmd
	case key.Matches(msg, keys.Filter):
		a.todos.filter = (a.todos.filter + 1) % numFilters
		return a.refetch()
	case key.Matches(msg, keys.Refresh):
		return a.run(c.Fetch)
	case key.Matches(msg, keys.Copy):
		it, ok := a.todos.selected()
		if !ok {
			return a, nil
		}
		text := it.Todo.Description
		return a, func() tea.Msg {
			return copyResultMsg{err: clipboard.WriteAll(text)}
		}
	case key.Matches(msg, keys.Open):
		u := a.webURL
		return a, func() tea.Msg {
			return openResultMsg{err: browser.Open(u)}
		}
	case key.Matches(msg, keys.Logout):
		return a.run(c.Logout)
	}
	return a, nil
}

// refetch pushes the current filter to the controller and reloads the list.
func (a App) refetch() (App, tea.Cmd) {
	a.ctrl.SetFilter(a.todos.clientFilter())
	return a.run(a.ctrl.Fetch)
}

// apply renders an outcome. Stale outcomes only update the mode and a list
// that is newer than the one shown.
func (a App) apply(o controller.Outcome) App {
	wasLoggedIn := a.mode == controller.LoggedIn
	a.mode, a.username = o.Mode, o.Username

	if wasLoggedIn && a.mode == controller.LoggedOut {
		a.todos = a.todos.reset()
		a.ctrl.SetFilter(client.TodoFilter{})
	}
	if o.List != nil && o.ListSeq >= a.listSeq {
		a.listSeq = o.ListSeq
		a.todos = a.todos.setList(o.List)
	}
	if o.Stale {
		return a
	}

	switch o.Action {
	case controller.ActionRegister:
		a.auth.registerMsg = o.Message
		if o.ClearInput {
			a.auth = a.auth.clear(controller.ActionRegister)
		}
	case controller.ActionLogin:
		a.auth.loginMsg = o.Message
		if o.ClearInput {
			a.auth = a.auth.clear(controller.ActionLogin)
		}
	case controller.ActionAdd:
		if o.ClearInput {
			a.todos.add.Reset()
			a.todos = a.todos.stopEditing()
		}
	}
	if o.Alert != "" {
		a.alert = o.Alert
	}
	return a
}

func (a App) View() string {
	title := renderShimmerTitle(a.frame)
	pad := max((a.width-lipgloss.Width(title))/2, 0)
	header := strings.Repeat(" ", pad) + title

	status := dimStyle.Render("not logged in")
	if a.mode == controller.LoggedIn {
		status = a.todos.header(a.username)
	}
	if a.busy > 0 {
		status += " " + a.spinner.View()
	}
	spad := max((a.width-lipgloss.Width(status))/2, 0)
	header += "\n" + strings.Repeat(" ", spad) + status

	var body, help string
	switch {
	case a.mode == controller.LoggedOut:
		body = a.auth.View()
		if a.todos.list != nil && a.todos.list.Placeholder != "" {
			body += "  " + dimStyle.Render(a.todos.list.Placeholder) + "\n"
		}
		help = " " + helpEntry("tab", "next field") + "  " + helpEntry("enter", "submit") + "  " + helpEntry("esc", "quit")
	case a.todos.adding:
		body = a.todos.View()
		help = " " + helpEntry("enter", "add") + "  " + helpEntry("esc", "cancel")
	case a.todos.searching:
		body = a.todos.View()
		help = " " + helpEntry("enter", "search") + "  " + helpEntry("esc", "cancel")
	default:
		body = a.todos.View()
		help = helpBar(keys.Up, keys.Complete, keys.Add, keys.Refresh, keys.Filter, keys.Search,
			keys.Copy, keys.Open, keys.Logout, keys.Quit)
	}

	if a.alert != "" {
		box := alertBoxStyle.Render(goldStyle.Render(a.alert) + "\n\n" + metaStyle.Render("enter to dismiss"))
		body = lipgloss.Place(max(a.width, lipgloss.Width(box)), max(a.height-4, lipgloss.Height(box)),
			lipgloss.Center, lipgloss.Center, box,
			lipgloss.WithWhitespaceForeground(borderColor))
		help = " " + helpEntry("enter", "dismiss")
	}

	chrome := 4
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")
	return fmt.Sprintf("%s\n\n%s\n%s", header, body, help)
}
