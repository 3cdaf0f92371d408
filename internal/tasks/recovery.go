package tasks

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// RecoveryFile is the plain-text list of backlog URLs, one per line, used to resume after a crash.
type RecoveryFile struct {
	path string
	mu   sync.Mutex
}

func NewRecoveryFile(path string) *RecoveryFile {
	return &RecoveryFile{path: path}
}

func (r *RecoveryFile) Path() string { return r.path }

// Load returns the URLs in the file. A missing file holds no URLs.
func (r *RecoveryFile) Load() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *RecoveryFile) load() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read recovery file: %w", err)
	}

	return lo.FilterMap(strings.Split(string(data), "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	}), nil
}

// Ensure appends every URL in urls that the file does not already list.
func (r *RecoveryFile) Ensure(urls []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listed, err := r.load()
	if err != nil {
		return err
	}

	missing := lo.Uniq(lo.Filter(urls, func(u string, _ int) bool { return !slices.Contains(listed, u) }))
	if len(missing) == 0 {
		return nil
	}

	f, err := openAppend(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("\n" + strings.Join(missing, "\n")); err != nil {
		return fmt.Errorf("failed to update recovery file: %w", err)
	}
	return nil
}

// Rewrite replaces the file's contents with urls.
func (r *RecoveryFile) Rewrite(urls []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ensureParent(r.path); err != nil {
		return err
	}
	if err := os.WriteFile(r.path, []byte(strings.Join(urls, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to rewrite recovery file: %w", err)
	}
	return nil
}

// FailedEntry is one line of the failed list.
type FailedEntry struct {
	URL     string `json:"url"`
	Display string `json:"display"`
}

// FailedList is the append-only list of songs that were given up on.
type FailedList struct {
	path string
	mu   sync.Mutex
}

func NewFailedList(path string) *FailedList {
	return &FailedList{path: path}
}

func (f *FailedList) Path() string { return f.path }

// Append records a song as "<url> - <display>".
func (f *FailedList) Append(url, display string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := openAppend(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%s - %s\n", url, display); err != nil {
		return fmt.Errorf("failed to update failed list: %w", err)
	}
	return nil
}

// Load parses every entry in the list. A missing file holds no entries.
func (f *FailedList) Load() ([]FailedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read failed list: %w", err)
	}
	defer file.Close()

	var entries []FailedEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		url, display, _ := strings.Cut(line, " - ")
		entries = append(entries, FailedEntry{URL: url, Display: display})
	}
	return entries, scanner.Err()
}

// Clear empties the list.
func (f *FailedList) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear failed list: %w", err)
	}
	return nil
}

func openAppend(path string) (*os.File, error) {
	if err := ensureParent(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
