package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songdl/internal/services"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/desertthunder/songdl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	errLog     *log.Logger
	output     io.Writer
	adapters   []services.Adapter
	resolver   services.PlaylistResolver
	searcher   services.Searcher
	transcoder services.Transcoder
	retryDelay time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Providers left nil are built from the config on first use.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	ErrorLog   *log.Logger
	Output     io.Writer
	Adapters   []services.Adapter
	Resolver   services.PlaylistResolver
	Searcher   services.Searcher
	Transcoder services.Transcoder
	RetryDelay time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		errLog:     opts.ErrorLog,
		output:     opts.Output,
		adapters:   opts.Adapters,
		resolver:   opts.Resolver,
		searcher:   opts.Searcher,
		transcoder: opts.Transcoder,
		retryDelay: opts.RetryDelay,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, getCommand, uiCommand, searchCommand, queueCommand, failedCommand, ffmpegCommand, openCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger, e.g. to keep log lines out of the live display.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// SetConfig replaces the config that providers are built from.
func (r *Runner) SetConfig(c *shared.Config) {
	r.config = c
}

// client returns the HTTP client shared by every provider.
//
// network.timeout bounds connecting and waiting for headers only, so long
// streams are limited by the stall timeout instead.
func (r *Runner) client() *http.Client {
	timeout := r.config.Network.Timeout.Duration
	if timeout <= 0 || r.httpClient != http.DefaultClient {
		return r.httpClient
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	transport.TLSHandshakeTimeout = timeout
	return &http.Client{Transport: transport}
}

// services builds whichever providers were not injected.
func (r *Runner) services() {
	if r.adapters != nil && r.resolver != nil && r.searcher != nil && r.transcoder != nil {
		return
	}

	cfg := r.config
	client := r.client()

	cookie, err := cfg.YouTubeCookie()
	if err != nil {
		r.logger.Warn("ignoring saved YouTube headers", "error", err)
	}

	if r.adapters == nil || r.resolver == nil {
		youtube := services.NewYouTubeService(services.YouTubeOpts{
			HTTPClient: client,
			Cookie:     cookie,
			Logger:     r.logger,
		})
		soundcloud := services.NewSoundCloudService(services.SoundCloudOpts{
			ClientID:          cfg.Credentials.SoundCloud.ClientID,
			HTTPClient:        client,
			RequestsPerSecond: cfg.Network.RequestsPerSecond,
			Logger:            r.logger,
		})
		if r.adapters == nil {
			r.adapters = []services.Adapter{youtube, soundcloud}
		}
		if r.resolver == nil {
			r.resolver = youtube
		}
	}

	if r.searcher == nil {
		var headers *shared.CurlHeaders
		if path := cfg.Credentials.YouTube.HeadersPath; path != "" {
			if headers, err = shared.ParseCurlFile(path); err != nil {
				r.logger.Warn("ignoring saved YouTube Music headers", "path", path, "error", err)
				headers = nil
			}
		}
		r.searcher = services.NewYouTubeMusicService(services.YouTubeMusicOpts{
			Cookie:            cfg.Credentials.YouTube.Cookie,
			Headers:           headers,
			HTTPClient:        client,
			RequestsPerSecond: cfg.Network.RequestsPerSecond,
			Logger:            r.logger,
		})
	}

	if r.transcoder == nil {
		r.transcoder = services.NewFFmpeg(services.FFmpegOpts{
			Path:       cfg.FFmpeg.Path,
			BinDir:     cfg.FFmpeg.BinDir,
			InstallURL: cfg.FFmpeg.InstallURL,
			HTTPClient: client,
			Logger:     r.logger,
		})
	}
}

// errorLog returns the side log that collects failure details, opening it on first use.
func (r *Runner) errorLog() *log.Logger {
	if r.errLog != nil {
		return r.errLog
	}

	l, err := shared.NewFileLogger(r.config.Downloads.ErrorLog)
	if err != nil {
		r.logger.Warn("could not open error log, logging failures here", "path", r.config.Downloads.ErrorLog, "error", err)
		return r.logger
	}
	r.errLog = l
	return l
}

// newDownloader wires a [tasks.Downloader] over the runner's providers.
func (r *Runner) newDownloader(onExit func()) *tasks.Downloader {
	r.services()
	return tasks.NewDownloader(tasks.DownloaderOpts{
		Config:     r.config,
		Adapters:   r.adapters,
		Resolver:   r.resolver,
		Transcoder: r.transcoder,
		Logger:     r.logger,
		ErrorLog:   r.errorLog(),
		OnExit:     onExit,
		RetryDelay: r.retryDelay,
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
