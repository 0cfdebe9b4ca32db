package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

func printHelp(w io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4ade80")).
		Bold(true).
		Render("T O D O")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commands := []struct{ cmd, desc string }{
		{"todo", "Open the interactive list (TUI)"},
		{"todo register <user>", "Create an account (-password or TODO_PASSWORD)"},
		{"todo login <user>", "Log in and show your todos"},
		{"todo logout", "Clear your session"},
		{"todo ls", "List todos (-open, -done, -search text)"},
		{"todo add <text>", "Add a todo"},
		{"todo done <id>", "Mark a todo complete"},
		{"todo show <id>", "Show one todo"},
		{"todo whoami", "Show the logged-in user"},
		{"todo open", "Open the web client in a browser"},
		{"todo --version", "Show version"},
		{"todo help", "You are here"},
	}

	fmt.Fprintf(w, "\n  %s\n\n  Commands:\n", title)
	for _, c := range commands {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-22s", c.cmd)), descStyle.Render(c.desc))
	}
	env := descStyle.Render("Environment: TODO_API_URL, TODO_WEB_URL, TODO_SESSION_FILE, TODO_LOG_FILE, TODO_LOG_LEVEL, TODO_TIMEOUT_SEC, TODO_CONFIG")
	fmt.Fprintf(w, "\n  %s\n\n", env)
}
