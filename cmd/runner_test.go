package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/services"
	"github.com/desertthunder/songdl/internal/shared"
	tu "github.com/desertthunder/songdl/internal/testing"
)

type stubSearcher struct {
	tracks []models.Track
	err    error
}

func (s stubSearcher) Search(context.Context, string) ([]models.Track, error) {
	return s.tracks, s.err
}

// newTestRunner builds a runner over fakes with every path inside a temp dir.
func newTestRunner(t *testing.T, yt *tu.FakeAdapter, searcher services.Searcher) (*Runner, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := shared.DefaultConfig()
	cfg.Downloads.OutputDir = filepath.Join(dir, "out")
	cfg.Downloads.RawDir = filepath.Join(dir, "raw")
	cfg.Downloads.RecoveryFile = filepath.Join(dir, "songs.txt")
	cfg.Downloads.FailedFile = filepath.Join(dir, "failed.txt")
	cfg.Downloads.ErrorLog = filepath.Join(dir, "errors.log")

	logger := shared.NewLogger(io.Discard)
	output := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{
		Config:     cfg,
		Logger:     logger,
		ErrorLog:   logger,
		Output:     output,
		Adapters:   []services.Adapter{yt, tu.NewFakeAdapter(models.SoundCloud)},
		Resolver:   &tu.FakeResolver{Playlists: map[string]*services.Playlist{}},
		Searcher:   searcher,
		Transcoder: &tu.FakeTranscoder{},
	})
	return r, output
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	return r.app().Run(context.Background(), append([]string{"songdl"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			transcoder := &tu.FakeTranscoder{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Transcoder: transcoder,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.transcoder != transcoder {
				t.Error("expected transcoder to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("builds missing providers from config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
			runner.services()

			if len(runner.adapters) != 2 {
				t.Errorf("expected youtube and soundcloud adapters, got %d", len(runner.adapters))
			}
			if runner.resolver == nil || runner.searcher == nil || runner.transcoder == nil {
				t.Error("expected resolver, searcher and transcoder to be built")
			}
			if _, ok := runner.transcoder.(*services.FFmpeg); !ok {
				t.Errorf("expected ffmpeg transcoder, got %T", runner.transcoder)
			}
		})

		t.Run("keeps injected providers", func(t *testing.T) {
			yt := tu.NewFakeAdapter(models.YouTube)
			runner, _ := newTestRunner(t, yt, stubSearcher{})
			runner.services()

			if len(runner.adapters) != 2 || runner.adapters[0] != yt {
				t.Error("expected injected adapters to be kept")
			}
		})
	})

	t.Run("client", func(t *testing.T) {
		t.Run("applies network timeout to the default client", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			client := runner.client()

			if client == http.DefaultClient {
				t.Fatal("expected a dedicated client")
			}
			if client.Timeout != 0 {
				t.Error("expected no overall timeout so long downloads are not cut off")
			}
			transport, ok := client.Transport.(*http.Transport)
			if !ok || transport.ResponseHeaderTimeout != runner.config.Network.Timeout.Duration {
				t.Error("expected the header timeout to come from network.timeout")
			}
		})

		t.Run("keeps an injected client", func(t *testing.T) {
			httpClient := &http.Client{}
			runner := NewRunner(RunnerOpts{HTTPClient: httpClient})

			if runner.client() != httpClient {
				t.Error("expected the injected client")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for _, c := range commands {
			names[c.Name] = true
		}
		for _, want := range []string{"setup", "get", "ui", "search", "queue", "failed", "ffmpeg", "open"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})
}

func TestCommands(t *testing.T) {
	song := "https://www.youtube.com/watch?v=abc"

	t.Run("get downloads and transcodes", func(t *testing.T) {
		yt := tu.NewFakeAdapter(models.YouTube).
			AddTrack(song, &tu.FakeTrack{Title: "Song", Author: "Artist", Data: []byte("audio")})
		r, output := newTestRunner(t, yt, stubSearcher{})

		if err := run(t, r, "get", song); err != nil {
			t.Fatalf("get: %v", err)
		}

		final := filepath.Join(r.config.Downloads.OutputDir, "Artist - Song.mp3")
		if got := tu.MustReadFile(t, final); !strings.HasPrefix(got, "mp3:") {
			t.Errorf("unexpected output file %q", got)
		}
		if !strings.Contains(output.String(), "✓ Artist - Song") {
			t.Errorf("expected a done line, got:\n%s", output.String())
		}
		if !strings.Contains(output.String(), "Downloaded: 1") {
			t.Errorf("expected a summary, got:\n%s", output.String())
		}
		if got := tu.MustReadFile(t, r.config.Downloads.RecoveryFile); strings.TrimSpace(got) != "" {
			t.Errorf("expected an empty recovery file, got %q", got)
		}
	})

	t.Run("get into a folder", func(t *testing.T) {
		yt := tu.NewFakeAdapter(models.YouTube).
			AddTrack(song, &tu.FakeTrack{Title: "Song", Author: "Artist", Data: []byte("audio")})
		r, _ := newTestRunner(t, yt, stubSearcher{})

		if err := run(t, r, "get", "--folder", "mixes", song); err != nil {
			t.Fatalf("get: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(r.config.Downloads.OutputDir, "mixes", "Artist - Song.mp3"))
	})

	t.Run("get resumes the recovery file", func(t *testing.T) {
		yt := tu.NewFakeAdapter(models.YouTube).
			AddTrack(song, &tu.FakeTrack{Title: "Song", Author: "Artist", Data: []byte("audio")})
		r, _ := newTestRunner(t, yt, stubSearcher{})
		tu.MustWriteFile(t, r.config.Downloads.RecoveryFile, song+"\n")

		if err := run(t, r, "get"); err != nil {
			t.Fatalf("get: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(r.config.Downloads.OutputDir, "Artist - Song.mp3"))
	})

	t.Run("get records songs that fail", func(t *testing.T) {
		yt := tu.NewFakeAdapter(models.YouTube)
		r, output := newTestRunner(t, yt, stubSearcher{})

		if err := run(t, r, "get", song); err != nil {
			t.Fatalf("get: %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, r.config.Downloads.FailedFile), song) {
			t.Error("expected the song in the failed list")
		}
		if !strings.Contains(output.String(), "Failed: 1") {
			t.Errorf("expected a failure in the summary, got:\n%s", output.String())
		}
	})

	t.Run("queue lists the recovery file", func(t *testing.T) {
		r, output := newTestRunner(t, tu.NewFakeAdapter(models.YouTube), stubSearcher{})
		tu.MustWriteFile(t, r.config.Downloads.RecoveryFile, song+"\nhttps://soundcloud.com/a/b\n")

		if err := run(t, r, "queue"); err != nil {
			t.Fatalf("queue: %v", err)
		}
		if !strings.Contains(output.String(), "soundcloud.com/a/b") {
			t.Errorf("expected queued urls, got:\n%s", output.String())
		}
	})

	t.Run("queue with nothing queued", func(t *testing.T) {
		r, output := newTestRunner(t, tu.NewFakeAdapter(models.YouTube), stubSearcher{})

		if err := run(t, r, "queue", "--json"); err != nil {
			t.Fatalf("queue: %v", err)
		}
		if strings.TrimSpace(output.String()) != "[]" {
			t.Errorf("expected an empty JSON list, got %q", output.String())
		}
	})

	t.Run("failed lists and retries", func(t *testing.T) {
		yt := tu.NewFakeAdapter(models.YouTube).
			AddTrack(song, &tu.FakeTrack{Title: "Song", Author: "Artist", Data: []byte("audio")})
		r, output := newTestRunner(t, yt, stubSearcher{})
		tu.MustWriteFile(t, r.config.Downloads.FailedFile, song+" - Artist - Song\n")

		if err := run(t, r, "failed"); err != nil {
			t.Fatalf("failed: %v", err)
		}
		if !strings.Contains(output.String(), "Artist - Song") {
			t.Errorf("expected the failed entry, got:\n%s", output.String())
		}

		if err := run(t, r, "failed", "retry"); err != nil {
			t.Fatalf("failed retry: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(r.config.Downloads.OutputDir, "Artist - Song.mp3"))
		tu.AssertNoFile(t, r.config.Downloads.FailedFile)
	})

	t.Run("search", func(t *testing.T) {
		tracks := []models.Track{
			{ID: "abc", Title: "Song", Artist: "Artist", URL: song},
			{ID: "def", Title: "Other", Artist: "Band", URL: "https://youtu.be/def"},
		}

		tests := []struct {
			name     string
			args     []string
			searcher stubSearcher
			wantErr  error
			contains string
		}{
			{name: "renders a table", args: []string{"search", "song"}, searcher: stubSearcher{tracks: tracks}, contains: "Other"},
			{name: "json", args: []string{"search", "--json", "song"}, searcher: stubSearcher{tracks: tracks}, contains: `"title": "Song"`},
			{name: "no results", args: []string{"search", "nothing"}, searcher: stubSearcher{}, contains: "No songs found"},
			{name: "missing query", args: []string{"search"}, searcher: stubSearcher{}, wantErr: shared.ErrMissingArgument},
			{name: "search failure", args: []string{"search", "song"}, searcher: stubSearcher{err: errors.New("boom")}, wantErr: shared.ErrAPIRequest},
			{name: "download out of range", args: []string{"search", "--download", "3", "song"}, searcher: stubSearcher{tracks: tracks}, wantErr: shared.ErrInvalidArgument},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r, output := newTestRunner(t, tu.NewFakeAdapter(models.YouTube), tt.searcher)
				err := run(t, r, tt.args...)

				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("expected %v, got %v", tt.wantErr, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(output.String(), tt.contains) {
					t.Errorf("expected %q in output, got:\n%s", tt.contains, output.String())
				}
			})
		}
	})

	t.Run("search downloads a result", func(t *testing.T) {
		yt := tu.NewFakeAdapter(models.YouTube).
			AddTrack(song, &tu.FakeTrack{Title: "Song", Author: "Artist", Data: []byte("audio")})
		r, _ := newTestRunner(t, yt, stubSearcher{tracks: []models.Track{{Title: "Song", Artist: "Artist", URL: song}}})

		if err := run(t, r, "search", "--download", "1", "song"); err != nil {
			t.Fatalf("search: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(r.config.Downloads.OutputDir, "Artist - Song.mp3"))
	})

	t.Run("search exports results", func(t *testing.T) {
		r, _ := newTestRunner(t, tu.NewFakeAdapter(models.YouTube), stubSearcher{tracks: []models.Track{{Title: "Song", Artist: "Artist", URL: song}}})
		path := filepath.Join(t.TempDir(), "results.csv")

		if err := run(t, r, "search", "--output", path, "song"); err != nil {
			t.Fatalf("search: %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, path), "Artist") {
			t.Error("expected the export to contain the result")
		}
	})

	t.Run("ffmpeg install reports download failures", func(t *testing.T) {
		notFound := &http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Body:       io.NopCloser(strings.NewReader("")),
		}
		tests := []struct {
			name      string
			transport http.RoundTripper
		}{
			{name: "network error", transport: tu.NewMockRoundTripper(nil, errors.New("offline"))},
			{name: "bad status", transport: tu.NewMockRoundTripper(notFound, nil)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := shared.DefaultConfig()
				cfg.FFmpeg.BinDir = t.TempDir()
				cfg.FFmpeg.InstallURL = "https://example.com/ffmpeg.tar.xz"

				logger := shared.NewLogger(io.Discard)
				r := NewRunner(RunnerOpts{
					Config:     cfg,
					HTTPClient: &http.Client{Transport: tt.transport},
					Logger:     logger,
					ErrorLog:   logger,
					Output:     &bytes.Buffer{},
					Adapters:   []services.Adapter{tu.NewFakeAdapter(models.YouTube)},
					Resolver:   &tu.FakeResolver{},
					Searcher:   stubSearcher{},
				})

				err := run(t, r, "ffmpeg", "install")
				if !errors.Is(err, shared.ErrServiceUnavailable) {
					t.Fatalf("expected ErrServiceUnavailable, got %v", err)
				}
				tu.AssertNoFile(t, filepath.Join(cfg.FFmpeg.BinDir, "ffmpeg"))
			})
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		r, _ := newTestRunner(t, tu.NewFakeAdapter(models.YouTube), stubSearcher{})
		err := run(t, r, "--config", filepath.Join(t.TempDir(), "nope.toml"), "queue")
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("setup config", func(t *testing.T) {
		r, output := newTestRunner(t, tu.NewFakeAdapter(models.YouTube), stubSearcher{})
		path := filepath.Join(t.TempDir(), "config.toml")

		// --config names a file that does not exist yet, so it is set directly
		r.configPath = path
		if err := r.SetupConfig(context.Background(), nil); err != nil {
			t.Fatalf("setup: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), path) {
			t.Errorf("expected the path in the output, got %q", output.String())
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("written config does not load: %v", err)
		}
	})

	t.Run("setup youtube", func(t *testing.T) {
		r, _ := newTestRunner(t, tu.NewFakeAdapter(models.YouTube), stubSearcher{})
		dir := t.TempDir()
		out := filepath.Join(dir, "youtube.sh")
		curl := `curl 'https://music.youtube.com/youtubei/v1/browse' -H 'user-agent: test' -b 'SID=abc'`

		if err := run(t, r, "setup", "youtube", "--curl", curl, "--output", out); err != nil {
			t.Fatalf("setup youtube: %v", err)
		}

		headers, err := shared.ParseCurlFile(out)
		if err != nil {
			t.Fatalf("saved headers do not parse: %v", err)
		}
		if headers.Cookie != "SID=abc" {
			t.Errorf("cookie = %q", headers.Cookie)
		}

		err = run(t, r, "setup", "youtube")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
