package main

import (
	"context"
	"sync"

	"github.com/desertthunder/songdl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// summary counts the outcomes reported while downloading headlessly.
type summary struct {
	done     int
	already  int
	failed   int
	rejected int
}

// Get downloads the given URLs, plus anything left in the recovery file, and exits once the queue is empty.
func (r *Runner) Get(ctx context.Context, cmd *cli.Command) error {
	return r.download(ctx, cmd.Args().Slice(), cmd.String("folder"), !cmd.Bool("no-recover"))
}

// download drives a [tasks.Downloader] without the live display. Progress is written to the output.
func (r *Runner) download(ctx context.Context, urls []string, folder string, recover bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exited := make(chan struct{})
	var once sync.Once
	d := r.newDownloader(func() { once.Do(func() { close(exited) }) })

	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()

	reported := make(chan summary, 1)
	go func() {
		reported <- r.report(ctx, d.Updates())
	}()

	if recover {
		n, err := d.Seed(ctx)
		if err != nil {
			r.logger.Warn("could not read recovery file", "error", err)
		} else if n > 0 {
			r.logger.Info("recovered songs from the last run", "count", n)
		}
	}

	for _, u := range urls {
		command, target := tasks.NormalizeInput(u)
		if command != tasks.CommandAdd {
			r.logger.Warn("not a link, skipping", "input", u)
			continue
		}
		if err := d.Add(ctx, target, folder); err != nil {
			r.logger.Debug("rejected", "url", target, "error", err)
		}
	}

	d.RequestQuit()

	var waitErr error
	select {
	case <-exited:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	cancel()
	<-stopped
	s := <-reported

	r.writePlain("\n═══════════════════════════════════════\n")
	r.writePlain("Downloaded: %d (%d already saved)\n", s.done, s.already)
	if s.failed > 0 {
		r.writePlain("Failed: %d, see %s\n", s.failed, r.config.Downloads.FailedFile)
	}
	if s.rejected > 0 {
		r.writePlain("Rejected: %d\n", s.rejected)
	}
	return waitErr
}

// report prints updates until ctx is done, then drains what is left in the channel.
func (r *Runner) report(ctx context.Context, updates <-chan tasks.Update) summary {
	var s summary
	for {
		select {
		case u := <-updates:
			r.printUpdate(u, &s)
		case <-ctx.Done():
			for {
				select {
				case u := <-updates:
					r.printUpdate(u, &s)
				default:
					return s
				}
			}
		}
	}
}

func (r *Runner) printUpdate(u tasks.Update, s *summary) {
	switch u.Kind {
	case tasks.SongAdded:
		if u.Song.ID == "" {
			r.writePlain("+ %s\n", u.Message)
		} else {
			r.logger.Debug("added", "url", u.Song.URL, "folder", u.Song.ParentFolder)
		}
	case tasks.SongStatus:
		if u.Song.ID == "" {
			r.writePlain("  %s\n", u.Message)
		}
	case tasks.SongRetry:
		r.writePlain("! %s: %s\n", u.Song.Display(), u.Message)
	case tasks.SongDone:
		s.done++
		if u.Song.Already {
			s.already++
		}
		r.writePlain("✓ %s\n", u.Song.Display())
	case tasks.SongFailed:
		s.failed++
		r.writePlain("✗ %s: %s\n", u.Song.Display(), u.Message)
	case tasks.InputRejected:
		s.rejected++
		r.writePlain("✗ %s\n", u.Message)
	case tasks.QueueEmpty, tasks.Exit:
		r.logger.Debug(u.Message)
	}
}
