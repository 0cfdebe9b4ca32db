package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/todo/internal/browser"
	"github.com/naveenspark/todo/internal/controller"
	"github.com/naveenspark/todo/pkg/client"
	"github.com/naveenspark/todo/pkg/domain"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8890a0"))
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#505868")).Strikethrough(true)
	idStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#d4a844"))
)

// credentialFlags parses "<username> [-password p]". The password falls back
// to TODO_PASSWORD so it can stay out of shell history.
func credentialFlags(name string, args []string, stderr io.Writer) (string, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	password := fs.String("password", "", "account password (or set TODO_PASSWORD)")
	username := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		username, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if username == "" {
		username = fs.Arg(0)
	}
	pw := *password
	if pw == "" {
		pw = os.Getenv("TODO_PASSWORD")
	}
	return username, pw, nil
}

func (e *env) runRegister(ctx context.Context, args []string) error {
	username, password, err := credentialFlags("register", args, e.out)
	if err != nil {
		return err
	}
	out := e.ctrl.Register(ctx, username, password)
	if !out.ClearInput {
		return errors.New(out.Message)
	}
	fmt.Fprintln(e.out, okStyle.Render(out.Message))
	return nil
}

func (e *env) runLogin(ctx context.Context, args []string) error {
	username, password, err := credentialFlags("login", args, e.out)
	if err != nil {
		return err
	}
	out := e.ctrl.Login(ctx, username, password)
	if out.Mode != controller.LoggedIn {
		return errors.New(out.Message)
	}
	fmt.Fprintf(e.out, "%s %s\n", okStyle.Render(out.Message), dimStyle.Render("as "+out.Username))
	if out.List != nil {
		printList(e.out, out.List)
	}
	return nil
}

func (e *env) runLogout(ctx context.Context) error {
	if e.ctrl.Mode() == controller.LoggedOut {
		fmt.Fprintln(e.out, "Already logged out.")
		return nil
	}
	out := e.ctrl.Logout(ctx)
	fmt.Fprintln(e.out, out.List.Placeholder)
	return nil
}

func (e *env) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(e.out)
	open := fs.Bool("open", false, "only todos not yet completed")
	done := fs.Bool("done", false, "only completed todos")
	search := fs.String("search", "", "description substring")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *open && *done {
		return errors.New("-open and -done are mutually exclusive")
	}

	f := client.TodoFilter{Description: strings.TrimSpace(*search)}
	switch {
	case *open:
		v := false
		f.Completed = &v
	case *done:
		v := true
		f.Completed = &v
	}
	e.ctrl.SetFilter(f)

	out := e.ctrl.Fetch(ctx)
	if err := outcomeErr(out); err != nil {
		return err
	}
	if out.Mode == controller.LoggedOut || out.List.Placeholder == controller.PlaceholderLoadFailed {
		return errors.New(out.List.Placeholder)
	}
	printList(e.out, out.List)
	return nil
}

func (e *env) runAdd(ctx context.Context, args []string) error {
	out := e.ctrl.Add(ctx, strings.Join(args, " "))
	if err := outcomeErr(out); err != nil {
		return err
	}
	fmt.Fprintln(e.out, okStyle.Render("added"))
	if out.List != nil {
		printList(e.out, out.List)
	}
	return nil
}

func (e *env) runDone(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("usage: todo done <id>")
	}
	id := domain.ID(strings.TrimSpace(args[0]))
	// No list has been rendered in this process, so ask the server first.
	if e.ctrl.Mode() == controller.LoggedIn {
		td, out := e.ctrl.Lookup(ctx, id)
		if err := outcomeErr(out); err != nil {
			return err
		}
		if td.Completed {
			return fmt.Errorf("Todo %s is already completed.", id)
		}
	}
	out := e.ctrl.Complete(ctx, id)
	if err := outcomeErr(out); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s %s\n", okStyle.Render("completed"), idStyle.Render(id.String()))
	if out.List != nil {
		printList(e.out, out.List)
	}
	return nil
}

func (e *env) runShow(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("usage: todo show <id>")
	}
	td, out := e.ctrl.Lookup(ctx, domain.ID(strings.TrimSpace(args[0])))
	if err := outcomeErr(out); err != nil {
		return err
	}
	status := "open"
	if td.Completed {
		status = "done"
	}
	fmt.Fprintf(e.out, "%s %s\n", idStyle.Render(td.ID.String()), td.Description)
	fmt.Fprintf(e.out, "%s\n", dimStyle.Render(fmt.Sprintf("status: %s  created: %s", status, td.CreatedAt.Format("2006-01-02 15:04"))))
	return nil
}

func (e *env) runOpen() error {
	if err := browser.Open(e.cfg.WebURL); err != nil {
		fmt.Fprintln(e.out, e.cfg.WebURL)
	}
	return nil
}

func (e *env) runWhoami() error {
	name := e.ctrl.Username()
	if name == "" {
		return errors.New(controller.PlaceholderLogin)
	}
	fmt.Fprintf(e.out, "%s %s\n", name, dimStyle.Render("("+e.store.Path()+")"))
	return nil
}

// outcomeErr turns an alert into a command failure.
func outcomeErr(out controller.Outcome) error {
	if out.Alert != "" {
		return errors.New(out.Alert)
	}
	return nil
}

func printList(w io.Writer, l *controller.ListState) {
	if len(l.Items) == 0 {
		fmt.Fprintln(w, dimStyle.Render(l.Placeholder))
		return
	}
	for _, it := range l.Items {
		mark, text := "[ ]", it.Todo.Description
		if !it.Enabled {
			mark, text = "[x]", doneStyle.Render(text)
		}
		fmt.Fprintf(w, "%s %s %s\n", mark, idStyle.Render(fmt.Sprintf("%-8s", it.Todo.ID)), text)
	}
	summary := fmt.Sprintf("%d shown, %d done", len(l.Items), l.Done())
	if l.TotalKnown {
		summary += fmt.Sprintf(", %d total", l.Total)
	}
	fmt.Fprintln(w, dimStyle.Render(summary))
}
