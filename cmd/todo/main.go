package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/todo/internal/config"
	"github.com/naveenspark/todo/internal/controller"
	"github.com/naveenspark/todo/internal/logging"
	"github.com/naveenspark/todo/internal/session"
	"github.com/naveenspark/todo/internal/tui"
	"github.com/naveenspark/todo/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is everything a command needs, built once from config.
type env struct {
	cfg   config.Config
	ctrl  *controller.Controller
	store *session.FileStore
	out   io.Writer
}

func setup(out io.Writer) (*env, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, closeLog, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	store, err := session.NewFileStore(cfg.SessionFile)
	if err != nil {
		closeLog() //nolint:errcheck
		return nil, nil, err
	}
	api := client.New(cfg.APIURL, "",
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(logger),
	)
	logger.Debug("starting", "version", version, "api_url", cfg.APIURL)
	return &env{
		cfg:   cfg,
		ctrl:  controller.New(api, store, logger),
		store: store,
		out:   out,
	}, closeLog, nil
}

func run(args []string, out io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "version", "-v":
			fmt.Fprintln(out, "todo "+version)
			return nil
		case "help", "--help", "-h":
			printHelp(out)
			return nil
		}
	}

	e, closeLog, err := setup(out)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	if len(args) == 0 {
		return e.runTUI()
	}

	ctx := context.Background()
	switch args[0] {
	case "register":
		return e.runRegister(ctx, args[1:])
	case "login":
		return e.runLogin(ctx, args[1:])
	case "logout":
		return e.runLogout(ctx)
	case "ls", "list":
		return e.runList(ctx, args[1:])
	case "add":
		return e.runAdd(ctx, args[1:])
	case "done", "complete":
		return e.runDone(ctx, args[1:])
	case "show":
		return e.runShow(ctx, args[1:])
	case "open":
		return e.runOpen()
	case "whoami":
		return e.runWhoami()
	}
	printHelp(out)
	return fmt.Errorf("unknown command %q", args[0])
}

func (e *env) runTUI() error {
	app := tui.NewApp(e.ctrl, e.cfg.WebURL)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
