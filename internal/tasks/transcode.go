package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/shared"
)

// transcode is the transcode lane's work function.
func (d *Downloader) transcode(ctx context.Context, s *models.Song) {
	raw, final := s.Paths()
	if shared.FileExists(final) {
		s.MarkProcessed()
		return
	}

	if d.transcoder == nil {
		s.Fail(models.PhaseTranscode, "no transcoder configured", false)
		return
	}

	s.BeginTranscode()
	d.sendProgress(songStatusUpdate(s.Snapshot()))

	err := d.transcoder.Transcode(ctx, raw, final, func(pos time.Duration) {
		s.SetStatus("processing %s", pos.Truncate(time.Second))
		d.sendProgress(songStatusUpdate(s.Snapshot()))
	})

	switch {
	case errors.Is(err, shared.ErrEngineMissing):
		if d.installEngine(ctx) {
			s.RollbackTranscode()
			return
		}
		d.errLog.Error("transcoder unavailable", "url", s.URL(), "error", err, "install_error", d.installErr)
		s.Fail(models.PhaseTranscode, "ffmpeg unavailable", false)
	case err != nil:
		d.errLog.Error("transcode failed", "url", s.URL(), "try", s.Snapshot().ProcessTries, "error", err)
		s.Fail(models.PhaseTranscode, "couldn't process song", true)
	default:
		if d.cfg.Downloads.RemoveRaw {
			if err := os.Remove(raw); err != nil {
				d.logger.Warn("could not remove raw download", "path", raw, "error", err)
			}
		}
		s.MarkProcessed()
	}
}

// installEngine installs the transcoder the first time it is found missing. It reports whether
// this call performed a successful install, so only that song is retried without counting.
func (d *Downloader) installEngine(ctx context.Context) bool {
	installed := false
	d.installOnce.Do(func() {
		d.sendProgress(Update{Kind: SongStatus, Message: "ffmpeg not found, installing..."})
		if err := d.transcoder.Install(ctx); err != nil {
			d.installErr = fmt.Errorf("install failed: %w", err)
			d.sendProgress(Update{Kind: SongStatus, Message: "Couldn't install ffmpeg"})
			return
		}
		installed = true
		d.sendProgress(Update{Kind: SongStatus, Message: "ffmpeg installed"})
	})
	return installed
}
