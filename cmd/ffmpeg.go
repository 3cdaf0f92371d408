package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/desertthunder/songdl/internal/services"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/urfave/cli/v3"
)

// FFmpegInstall downloads ffmpeg into the configured bin directory.
func (r *Runner) FFmpegInstall(ctx context.Context, cmd *cli.Command) error {
	r.services()

	r.logger.Info("installing ffmpeg", "url", r.config.FFmpeg.InstallURL, "dir", r.config.FFmpeg.BinDir)
	r.writePlain("Installing ffmpeg...\n")

	if err := r.transcoder.Install(ctx); err != nil {
		return fmt.Errorf("failed to install ffmpeg: %w", err)
	}

	r.writePlain("✓ ffmpeg installed\n")
	if f, ok := r.transcoder.(*services.FFmpeg); ok {
		r.writePlain("Binary: %s\n", f.Path())
	}
	return nil
}

// FFmpegPath prints the ffmpeg binary songdl will run and whether it can be found.
func (r *Runner) FFmpegPath(ctx context.Context, cmd *cli.Command) error {
	r.services()

	f, ok := r.transcoder.(*services.FFmpeg)
	if !ok {
		return fmt.Errorf("%w: transcoder is not ffmpeg", shared.ErrNotImplemented)
	}

	path := f.Path()
	if _, err := exec.LookPath(path); err != nil {
		r.writePlain("%s (not found, run 'songdl ffmpeg install')\n", path)
		return nil
	}
	r.writePlain("%s\n", path)
	return nil
}

// Open opens the output folder with the system file browser, creating it first.
func (r *Runner) Open(ctx context.Context, cmd *cli.Command) error {
	dir := r.config.Downloads.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	r.logger.Debug("opening output folder", "path", dir)
	return shared.OpenPath(dir)
}
