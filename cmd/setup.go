package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/songdl/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes a config.toml populated from the embedded example.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Songs are saved to: %s\n", r.config.Downloads.OutputDir)
	return nil
}

// SetupYouTube saves browser headers used for YouTube and YouTube Music requests.
//
// Accepts a cURL command copied from the browser and stores it where
// credentials.youtube.headers_path can point to it.
func (r *Runner) SetupYouTube(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for YouTube headers")

	var raw []byte
	if curlFile != "" {
		content, err := os.ReadFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to read cURL file: %w", err)
		}
		raw = content
	} else {
		raw = []byte(curlCmd)
	}

	headers, err := shared.ParseCurlCommand(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if headers.Cookie == "" {
		r.logger.Warn("no cookie found in cURL command, requests will not be signed in")
	}
	r.logger.Debug("parsed cURL command", "headers", len(headers.Headers))

	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".songdl", "youtube.sh")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write headers file: %w", err)
	}

	r.logger.Info("headers saved", "path", outputPath)

	r.writePlain("✓ YouTube headers saved to: %s\n", outputPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Update %s with: credentials.youtube.headers_path = \"%s\"\n", r.configPath, outputPath)
	r.writePlain("2. Run 'songdl search \"your song\"' to test it\n")

	return nil
}
