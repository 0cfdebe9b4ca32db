package tui

import "github.com/charmbracelet/bubbles/key"

// listKeys are the todo section bindings, active while no input is focused.
type listKeys struct {
	Up       key.Binding
	Down     key.Binding
	Complete key.Binding
	Add      key.Binding
	Refresh  key.Binding
	Filter   key.Binding
	Search   key.Binding
	Copy     key.Binding
	Logout   key.Binding
	Open     key.Binding
	Quit     key.Binding
}

var keys = listKeys{
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "nav")),
	Down:     key.NewBinding(key.WithKeys("j", "down")),
	Complete: key.NewBinding(key.WithKeys("enter", "x"), key.WithHelp("x", "complete")),
	Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Filter:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Copy:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy")),
	Logout:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
	Open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "web")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// helpBar renders the bindings that have help text.
func helpBar(bs ...key.Binding) string {
	out := ""
	for _, b := range bs {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		if out != "" {
			out += "  "
		}
		out += helpEntry(h.Key, h.Desc)
	}
	return " " + out
}
