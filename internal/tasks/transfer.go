package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/services"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/samber/lo"
)

const (
	maxNameLength = 200
	chunkSize     = 32 * 1024
)

// download is the provider lanes' work function.
func (d *Downloader) download(ctx context.Context, adapter services.Adapter, s *models.Song) {
	if prev, ok := d.finishedBefore(s); ok && shared.FileExists(prev.FinalPath) {
		s.SetMetadata(prev.Title, prev.Author)
		s.SetPaths(prev.DownloadPath, prev.FinalPath)
		s.MarkAlready()
		return
	}

	s.BeginDownload()
	d.sendProgress(songStatusUpdate(s.Snapshot()))

	metaCtx, cancel := context.WithTimeout(ctx, d.cfg.Queue.MetadataTimeout.Duration)
	meta, err := adapter.FetchMetadata(metaCtx, s.URL())
	if err != nil && errors.Is(metaCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: metadata after %s: %v", shared.ErrTimeout, d.cfg.Queue.MetadataTimeout, err)
	}
	cancel()
	if err != nil {
		d.failDownload(s, "couldn't get song info", err)
		return
	}

	s.SetMetadata(meta.Title, meta.Author)
	raw, final := d.outputPaths(s, meta)
	s.SetPaths(raw, final)

	if shared.FileExists(final) {
		s.MarkAlready()
		return
	}

	s.SetStatus("downloading")
	d.sendProgress(songStatusUpdate(s.Snapshot()))

	if err := d.fetch(ctx, adapter, meta, raw, s); err != nil {
		d.failDownload(s, "download failed", err)
		return
	}

	if !d.needsTranscode(s.Provider()) && raw != final {
		if err := os.Rename(raw, final); err != nil {
			d.failDownload(s, "couldn't move download", err)
			return
		}
	}
	s.MarkDownloaded()
}

// finishedBefore finds a song with the same URL and folder in the history.
func (d *Downloader) finishedBefore(s *models.Song) (models.SongView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := lo.Find(d.history, func(h *models.Song) bool {
		return h.URL() == s.URL() && h.ParentFolder() == s.ParentFolder()
	})
	if !ok {
		return models.SongView{}, false
	}
	return prev.Snapshot(), true
}

// outputPaths derives the raw and final locations from the song's metadata.
//
// Providers that deliver the final format download straight next to the final file.
func (d *Downloader) outputPaths(s *models.Song, meta *services.Metadata) (raw, final string) {
	name := shared.SanitizeFileName(shared.TruncateName(s.Display(), maxNameLength))
	if name == "" {
		name = s.ID()
	}

	final = filepath.Join(d.cfg.Downloads.OutputDir, s.ParentFolder(), name+".mp3")
	if !d.needsTranscode(s.Provider()) {
		return final + ".part", final
	}
	return filepath.Join(d.cfg.Downloads.RawDir, s.ParentFolder(), name+meta.Extension), final
}

// fetch appends the stream to raw, resuming from whatever raw already holds.
func (d *Downloader) fetch(ctx context.Context, adapter services.Adapter, meta *services.Metadata, raw string, s *models.Song) error {
	if err := os.MkdirAll(filepath.Dir(raw), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	f, err := os.OpenFile(raw, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", raw, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	written := info.Size()

	if meta.ContentLength > 0 && written >= meta.ContentLength {
		return nil
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The stall window starts before the stream opens and covers the wait for the first chunk.
	stall := d.cfg.Queue.StallTimeout.Duration
	timer := time.AfterFunc(stall, func() { cancel(shared.ErrStalled) })
	defer timer.Stop()

	stream, err := adapter.OpenStream(streamCtx, meta, written)
	if err != nil {
		if errors.Is(context.Cause(streamCtx), shared.ErrStalled) {
			return fmt.Errorf("%w: stream did not open within %s", shared.ErrStalled, stall)
		}
		return err
	}
	defer stream.Body.Close()

	if stream.Offset == 0 && written > 0 {
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("failed to restart download: %w", err)
		}
		written = 0
	}

	total := stream.Total
	if total <= 0 {
		total = meta.ContentLength
	}
	if total > 0 && written >= total {
		return nil
	}

	buf := make([]byte, chunkSize)
	lastPercent := int64(-1)
	for {
		n, rerr := stream.Body.Read(buf)
		if n > 0 {
			timer.Reset(stall)
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write %s: %w", raw, err)
			}
			written += int64(n)

			if total > 0 {
				if pct := written * 100 / total; pct != lastPercent {
					lastPercent = pct
					s.SetStatus("downloading %d%%", pct)
					d.sendProgress(songStatusUpdate(s.Snapshot()))
				}
			}
		}

		if errors.Is(context.Cause(streamCtx), shared.ErrStalled) {
			return fmt.Errorf("%w: no data for %s", shared.ErrStalled, stall)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("stream interrupted: %w", rerr)
		}
	}

	if total > 0 && written < total {
		return fmt.Errorf("%w: got %d of %d bytes", shared.ErrShortRead, written, total)
	}
	return nil
}

// failDownload marks a download attempt failed. Details go to the error log, the status stays generic.
func (d *Downloader) failDownload(s *models.Song, status string, err error) {
	retryable := !errors.Is(err, shared.ErrUnavailable)
	d.errLog.Error(status, "url", s.URL(), "try", s.Snapshot().DownloadTries, "error", err)

	reason := status
	switch {
	case errors.Is(err, shared.ErrStalled):
		reason = "stalled"
	case errors.Is(err, shared.ErrTimeout):
		reason = "timed out"
	case !retryable:
		reason = "unavailable"
	}
	s.Fail(models.PhaseDownload, reason, retryable)
}
