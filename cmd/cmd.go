// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles first-run configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml populated with the defaults",
				Action: r.SetupConfig,
			},
			{
				Name:    "youtube",
				Aliases: []string{"yt", "ytmusic"},
				Usage:   "Save browser headers used for YouTube and YouTube Music requests",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Where to save the command (default: ~/.songdl/youtube.sh)",
					},
				},
				Action: r.SetupYouTube,
			},
		},
	}
}

// getCommand downloads songs without the live display.
func getCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"download", "dl"},
		Usage:     "Download songs and playlists, then exit once the queue is empty",
		ArgsUsage: "[url...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "folder",
				Usage: "Folder inside the output directory to save songs in",
			},
			&cli.BoolFlag{
				Name:  "no-recover",
				Usage: "Skip songs left over in the recovery file",
			},
		},
		Action: r.Get,
	}
}

// uiCommand returns the top-level command for the live display.
func uiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ui",
		Aliases: []string{"tui", "interactive"},
		Usage:   "Launch the live download display",
		Action:  r.UI,
	}
}

// searchCommand handles YouTube Music search.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "search",
		Aliases: []string{"s"},
		Usage:   "Search YouTube Music for songs",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "download",
				Aliases: []string{"d"},
				Usage:   "Download the Nth result",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Export results to a .csv, .json or .txt file",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Search,
	}
}

// queueCommand lists the songs left in the recovery file.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "List songs that were queued when songdl last stopped",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Queue,
	}
}

// failedCommand handles the list of songs that ran out of retries.
func failedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "failed",
		Usage: "List songs that failed too many times",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Failed,
		Commands: []*cli.Command{
			{
				Name:   "retry",
				Usage:  "Download every failed song again and clear the list",
				Action: r.FailedRetry,
			},
		},
	}
}

// ffmpegCommand handles the transcoding engine.
func ffmpegCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ffmpeg",
		Usage: "Transcoding engine operations",
		Commands: []*cli.Command{
			{
				Name:   "install",
				Usage:  "Download ffmpeg into the configured bin directory",
				Action: r.FFmpegInstall,
			},
			{
				Name:   "path",
				Usage:  "Print the ffmpeg binary that will be used",
				Action: r.FFmpegPath,
			},
		},
	}
}

// openCommand opens the output directory.
func openCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "open",
		Usage:  "Open the output folder with the system file browser",
		Action: r.Open,
	}
}
