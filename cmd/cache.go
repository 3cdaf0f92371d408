package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songdl/internal/formatter"
	"github.com/desertthunder/songdl/internal/tasks"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

// Queue lists the URLs in the recovery file, i.e. the songs that were still queued when songdl last stopped.
func (r *Runner) Queue(ctx context.Context, cmd *cli.Command) error {
	recovery := tasks.NewRecoveryFile(r.config.Downloads.RecoveryFile)
	urls, err := recovery.Load()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if urls == nil {
			urls = []string{}
		}
		return r.writeJSON(urls, true)
	}

	if len(urls) == 0 {
		r.writePlain("Nothing queued in %s\n", recovery.Path())
		return nil
	}

	formatter.RenderURLs(r.output, urls)
	r.writePlainln("Run 'songdl get' to download them.")
	return nil
}

// Failed lists the songs that ran out of retries.
func (r *Runner) Failed(ctx context.Context, cmd *cli.Command) error {
	failed := tasks.NewFailedList(r.config.Downloads.FailedFile)
	entries, err := failed.Load()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if entries == nil {
			entries = []tasks.FailedEntry{}
		}
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		r.writePlain("No failed songs in %s\n", failed.Path())
		return nil
	}

	formatter.RenderFailed(r.output, entries)
	return nil
}

// FailedRetry clears the failed list and downloads every song on it again.
//
// Songs that fail again are appended back to the list.
func (r *Runner) FailedRetry(ctx context.Context, cmd *cli.Command) error {
	failed := tasks.NewFailedList(r.config.Downloads.FailedFile)
	entries, err := failed.Load()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		r.writePlain("No failed songs in %s\n", failed.Path())
		return nil
	}

	urls := lo.Uniq(lo.Map(entries, func(e tasks.FailedEntry, _ int) string { return e.URL }))
	if err := failed.Clear(); err != nil {
		return fmt.Errorf("failed to clear failed list: %w", err)
	}

	r.logger.Info("retrying failed songs", "count", len(urls))
	return r.download(ctx, urls, "", false)
}
