package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/desertthunder/songdl/internal/ui"
	"github.com/urfave/cli/v3"
)

// UI launches the live download display.
func (r *Runner) UI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Downloads.ErrorLog)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	if r.errLog == nil {
		r.errLog = fileLogger
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := r.newDownloader(nil)
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()

	if n, err := d.Seed(ctx); err != nil {
		r.logger.Warn("could not read recovery file", "error", err)
	} else if n > 0 {
		r.logger.Info("recovered songs from the last run", "count", n)
	}

	model := ui.NewModel(ctx, d, r.searcher)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	_, runErr := p.Run()
	cancel()
	<-stopped

	if runErr != nil {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	if !model.Exited() {
		r.writePlain("Stopped. Unfinished songs stay in %s for next time.\n", r.config.Downloads.RecoveryFile)
	}
	return nil
}
