package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Magniswerfer/Podhaven-sub000/internal/feeds"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/Magniswerfer/Podhaven-sub000/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal interface. Logs go to a file so
// they do not tear the screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	remote, _, err := r.buildRemote(ctx, store)
	if err != nil {
		return err
	}

	if err := os.MkdirAll("./tmp", 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	fileLogger, logFile, err := shared.NewFileLogger("./tmp/podhaven-tui.log")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	r.logger = fileLogger

	engine := tasks.NewOrchestrator(remote, feeds.NewFetcher(), store, fileLogger)
	model := ui.NewModel(ctx, store, engine)

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// tuiCommand launches the terminal interface
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse subscriptions and run sync passes interactively",
		Action:  r.TUI,
	}
}
