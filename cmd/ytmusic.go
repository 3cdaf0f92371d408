package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songdl/internal/formatter"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search searches YouTube Music for songs, optionally exporting or downloading a result.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	download := int(cmd.Int("download"))
	exportPath := cmd.String("output")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if query == "" {
		return fmt.Errorf("%w: a search query is required", shared.ErrMissingArgument)
	}

	r.services()
	r.logger.Info("searching youtube music", "query", query)

	tracks, err := r.searcher.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if exportPath != "" {
		if err := formatter.WriteTracksExport(tracks, exportPath); err != nil {
			return err
		}
		r.logger.Info("results exported", "path", exportPath, "count", len(tracks))
	}

	if download != 0 {
		if download < 1 || download > len(tracks) {
			return fmt.Errorf("%w: --download must be between 1 and %d", shared.ErrInvalidArgument, len(tracks))
		}
		track := tracks[download-1]
		r.writePlain("Downloading %s - %s\n", track.Artist, track.Title)
		return r.download(ctx, []string{track.URL}, "", false)
	}

	if useJSON {
		return r.writeJSON(tracks, pretty)
	}

	if len(tracks) == 0 {
		r.writePlain("No songs found for %q\n", query)
		return nil
	}

	formatter.RenderTracks(r.output, tracks)
	r.writePlainln("Download one with: songdl search %q --download <#>", query)
	return nil
}
