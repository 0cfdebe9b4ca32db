package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/todo/internal/controller"
	"github.com/naveenspark/todo/pkg/client"
)

// completedFilter cycles all -> open -> done.
type completedFilter int

const (
	filterAll completedFilter = iota
	filterOpen
	filterDone
	numFilters
)

func (f completedFilter) String() string {
	return [...]string{"all", "open", "done"}[f]
}

// todoModel is the todo section: the rendered list plus the add and search
// inputs.
type todoModel struct {
	list      *controller.ListState
	cursor    int
	adding    bool
	searching bool
	add       textinput.Model
	search    textinput.Model
	filter    completedFilter
	query     string
	status    string
	width     int
	height    int
}

func newTodoModel() todoModel {
	m := todoModel{
		add:    newInput("what needs doing?", false),
		search: newInput("search descriptions", false),
	}
	m.search.Prompt = "/ "
	return m
}

func (m todoModel) editing() bool {
	return m.adding || m.searching
}

// clientFilter is the filter the list is fetched with.
func (m todoModel) clientFilter() client.TodoFilter {
	f := client.TodoFilter{Description: m.query}
	switch m.filter {
	case filterOpen:
		open := false
		f.Completed = &open
	case filterDone:
		done := true
		f.Completed = &done
	}
	return f
}

func (m todoModel) setList(l *controller.ListState) todoModel {
	m.list = l
	if m.cursor >= len(l.Items) {
		m.cursor = max(len(l.Items)-1, 0)
	}
	return m
}

// selected returns the item under the cursor.
func (m todoModel) selected() (controller.Item, bool) {
	if m.list == nil || m.cursor < 0 || m.cursor >= len(m.list.Items) {
		return controller.Item{}, false
	}
	return m.list.Items[m.cursor], true
}

func (m todoModel) startAdding() (todoModel, tea.Cmd) {
	m.adding = true
	m.status = ""
	cmd := m.add.Focus()
	return m, cmd
}

func (m todoModel) startSearch() (todoModel, tea.Cmd) {
	m.searching = true
	m.status = ""
	m.search.SetValue(m.query)
	cmd := m.search.Focus()
	return m, cmd
}

func (m todoModel) stopEditing() todoModel {
	m.adding, m.searching = false, false
	m.add.Blur()
	m.search.Blur()
	return m
}

// reset drops everything tied to the previous session.
func (m todoModel) reset() todoModel {
	m = m.stopEditing()
	m.add.Reset()
	m.search.Reset()
	m.query = ""
	m.filter = filterAll
	m.cursor = 0
	m.status = ""
	return m
}

func (m todoModel) moveCursor(delta int) todoModel {
	if m.list == nil || len(m.list.Items) == 0 {
		return m
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.list.Items) {
		m.cursor = len(m.list.Items) - 1
	}
	return m
}

// updateInput feeds a message to whichever input is focused.
func (m todoModel) updateInput(msg tea.Msg) (todoModel, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.adding:
		m.add, cmd = m.add.Update(msg)
	case m.searching:
		m.search, cmd = m.search.Update(msg)
	}
	return m, cmd
}

func (m todoModel) header(username string) string {
	parts := []string{selectedStyle.Render(username)}
	if m.list != nil && len(m.list.Items) > 0 {
		parts = append(parts, fmt.Sprintf("%d shown", len(m.list.Items)))
		parts = append(parts, fmt.Sprintf("%d done", m.list.Done()))
	}
	if m.list != nil && m.list.TotalKnown {
		parts = append(parts, fmt.Sprintf("%d total", m.list.Total))
	}
	if m.filter != filterAll {
		parts = append(parts, accentStyle.Render(m.filter.String()))
	}
	if m.query != "" {
		parts = append(parts, searchStyle.Render("/"+m.query))
	}
	return strings.Join(parts, metaStyle.Render(" · "))
}

func (m todoModel) View() string {
	var b strings.Builder

	switch {
	case m.list == nil:
		b.WriteString("  " + dimStyle.Render("Loading...") + "\n")
	case len(m.list.Items) == 0:
		b.WriteString("  " + dimStyle.Render(m.list.Placeholder) + "\n")
	default:
		rows := m.height - 2
		if rows < 1 {
			rows = len(m.list.Items)
		}
		start := 0
		if m.cursor >= rows {
			start = m.cursor - rows + 1
		}
		end := min(start+rows, len(m.list.Items))
		for i := start; i < end; i++ {
			b.WriteString(m.renderRow(m.list.Items[i], i == m.cursor) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.adding:
		b.WriteString(" " + m.add.View() + "\n")
	case m.searching:
		b.WriteString(" " + m.search.View() + "\n")
	default:
		b.WriteString(" " + inputPromptStyle.Render("> ") + inputPlaceholderStyle.Render("press a to add a todo") + "\n")
	}
	if m.status != "" {
		b.WriteString(" " + dimStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m todoModel) renderRow(it controller.Item, selected bool) string {
	control := completedControlStyle.Render("[" + it.Control + "]")
	text := doneStyle.Render(m.description(it))
	if it.Enabled {
		control = completeControlStyle.Render("[" + it.Control + "]")
		text = normalStyle.Render(m.description(it))
	}
	prefix := "  "
	if selected {
		prefix = accentStyle.Render("> ")
		if it.Enabled {
			text = selectedStyle.Render(m.description(it))
		}
	}
	line := prefix + control + " " + text
	if ts := formatTime(it.Todo.CreatedAt.Time); ts != "" {
		line += "  " + metaStyle.Render(ts)
	}
	if selected {
		return selectedRowBg.Render(line)
	}
	return line
}

func (m todoModel) description(it controller.Item) string {
	width := m.width - 30
	if width < 20 {
		width = 60
	}
	return truncStr(cleanLine(it.Todo.Description), width)
}
