// ffmpeg [Transcoder] implementation
package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/mholt/archives"
)

const progressTimePrefix = "out_time_us="

// FFmpeg transcodes with an ffmpeg binary found on PATH or installed into binDir.
type FFmpeg struct {
	binDir     string
	installURL string
	httpClient *http.Client
	logger     *log.Logger

	mu   sync.RWMutex
	path string
}

// FFmpegOpts configures [FFmpeg].
type FFmpegOpts struct {
	Path       string // binary name or path, defaults to "ffmpeg"
	BinDir     string
	InstallURL string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewFFmpeg creates a transcoder. A binary previously installed into BinDir is preferred.
func NewFFmpeg(opts FFmpegOpts) *FFmpeg {
	if opts.Path == "" {
		opts.Path = "ffmpeg"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	f := &FFmpeg{
		path:       opts.Path,
		binDir:     opts.BinDir,
		installURL: opts.InstallURL,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "engine", "ffmpeg"),
	}
	if installed := f.installedPath(); installed != "" && shared.FileExists(installed) {
		f.path = installed
	}
	return f
}

// Path returns the binary Transcode will run.
func (f *FFmpeg) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.path
}

// Args builds the ffmpeg command line that encodes in to out as MP3.
//
// Progress goes to stderr in key=value form.
func Args(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-vn",
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		"-f", "mp3",
		"-progress", "pipe:2",
		"-nostats",
		out,
	}
}

// Transcode encodes in to out through a temporary .part file, so out only appears when complete.
func (f *FFmpeg) Transcode(ctx context.Context, in, out string, progress func(time.Duration)) error {
	bin, err := exec.LookPath(f.Path())
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrEngineMissing, err)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := out + ".part"
	cmd := exec.CommandContext(ctx, bin, Args(in, tmp)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to ffmpeg: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", shared.ErrEngineMissing, err)
		}
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := monitorProgress(stderr, progress)

	if err := cmd.Wait(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.Join(tail, " | "))
	}

	if err := os.Rename(tmp, out); err != nil {
		return fmt.Errorf("failed to move transcoded file: %w", err)
	}
	return nil
}

// monitorProgress reports out_time_us values and returns the last few other lines for error messages.
func monitorProgress(r io.Reader, progress func(time.Duration)) []string {
	const keep = 5
	var tail []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if d, ok := parseProgressLine(line); ok {
			if progress != nil {
				progress(d)
			}
			continue
		}
		if line == "" || strings.Contains(line, "=") {
			continue
		}
		tail = append(tail, line)
		if len(tail) > keep {
			tail = tail[1:]
		}
	}
	return tail
}

func parseProgressLine(line string) (time.Duration, bool) {
	if !strings.HasPrefix(line, progressTimePrefix) {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimPrefix(line, progressTimePrefix), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

// Install downloads the configured archive and extracts the ffmpeg binary into the bin directory.
func (f *FFmpeg) Install(ctx context.Context) error {
	if f.installURL == "" {
		return fmt.Errorf("%w: no ffmpeg install_url configured", shared.ErrEngineMissing)
	}

	f.logger.Info("installing ffmpeg", "url", f.installURL, "dir", f.binDir)

	archive, err := f.fetchArchive(ctx)
	if err != nil {
		return err
	}
	defer os.Remove(archive)

	target := f.installedPath()
	if err := extractBinary(ctx, archive, binaryName(), target); err != nil {
		return err
	}

	f.mu.Lock()
	f.path = target
	f.mu.Unlock()

	f.logger.Info("ffmpeg installed", "path", target)
	return nil
}

func (f *FFmpeg) installedPath() string {
	if f.binDir == "" {
		return ""
	}
	return filepath.Join(f.binDir, binaryName())
}

func (f *FFmpeg) fetchArchive(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.installURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ffmpeg download returned %s", shared.ErrServiceUnavailable, resp.Status)
	}

	tmp, err := os.CreateTemp("", "ffmpeg-*"+archiveSuffix(f.installURL))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to download ffmpeg: %w", err)
	}
	return tmp.Name(), nil
}

// extractBinary copies the first archive entry named name to target.
func extractBinary(ctx context.Context, archivePath, name, target string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("cannot open archive: %w", err)
	}
	defer file.Close()

	format, reader, err := archives.Identify(ctx, archivePath, file)
	if err != nil {
		return fmt.Errorf("cannot identify archive format: %w", err)
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("format does not support extraction")
	}

	var input io.Reader = reader
	if _, isZip := format.(archives.Zip); isZip {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		input = file
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("cannot create bin directory: %w", err)
	}

	found := false
	err = extractor.Extract(ctx, input, func(ctx context.Context, fi archives.FileInfo) error {
		if found || fi.IsDir() || filepath.Base(fi.NameInArchive) != name {
			return nil
		}

		src, err := fi.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
		if err != nil {
			return err
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to extract ffmpeg: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %s not in archive", shared.ErrEngineMissing, name)
	}
	return nil
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// archiveSuffix keeps the download's extension so format detection can use the name.
func archiveSuffix(url string) string {
	base := filepath.Base(url)
	for _, ext := range []string{".tar.xz", ".tar.gz", ".tgz", ".zip", ".7z"} {
		if strings.HasSuffix(base, ext) {
			return ext
		}
	}
	return ""
}
