package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/services"
	"github.com/desertthunder/songdl/internal/shared"
)

// FakeTrack scripts what a [FakeAdapter] serves for one URL.
type FakeTrack struct {
	Title  string
	Author string
	Data   []byte

	MetaErrs    []error // returned by successive FetchMetadata calls before succeeding
	StreamErrs  []error // returned by successive OpenStream calls before succeeding
	Stalls      int     // number of streams that stop after StallAfter bytes
	StallAfter  int
	Hangs       int  // number of OpenStream calls that block until their context ends
	IgnoreRange bool // serve from byte 0 regardless of offset
	HideLength  bool // report no ContentLength in metadata
	Panic       bool // panic inside FetchMetadata
}

// FakeAdapter is a scripted [services.Adapter] that records how it was called.
type FakeAdapter struct {
	Kind  models.Provider
	Delay time.Duration // held inside FetchMetadata so overlapping calls are visible

	mu          sync.Mutex
	tracks      map[string]*FakeTrack
	active      int
	maxActive   int
	metaCalls   map[string]int
	streamCalls int
	offsets     []int64
	order       []string
}

func NewFakeAdapter(kind models.Provider) *FakeAdapter {
	return &FakeAdapter{
		Kind:      kind,
		tracks:    make(map[string]*FakeTrack),
		metaCalls: make(map[string]int),
	}
}

// AddTrack registers the script for url.
func (f *FakeAdapter) AddTrack(url string, tr *FakeTrack) *FakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks[url] = tr
	return f
}

func (f *FakeAdapter) Name() string              { return "fake-" + f.Kind.String() }
func (f *FakeAdapter) Provider() models.Provider { return f.Kind }

func (f *FakeAdapter) FetchMetadata(ctx context.Context, url string) (*services.Metadata, error) {
	f.mu.Lock()
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.metaCalls[url]++
	f.order = append(f.order, url)
	tr, ok := f.tracks[url]
	var err error
	if ok && len(tr.MetaErrs) > 0 {
		err, tr.MetaErrs = tr.MetaErrs[0], tr.MetaErrs[1:]
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", shared.ErrUnavailable, url)
	case tr.Panic:
		panic("fake adapter exploded")
	case err != nil:
		return nil, err
	}

	meta := &services.Metadata{
		Title:      tr.Title,
		Author:     tr.Author,
		Extension:  ".webm",
		Descriptor: url,
	}
	if !tr.HideLength {
		meta.ContentLength = int64(len(tr.Data))
	}
	return meta, nil
}

func (f *FakeAdapter) OpenStream(ctx context.Context, m *services.Metadata, offset int64) (*services.Stream, error) {
	url, _ := m.Descriptor.(string)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.streamCalls++
	f.offsets = append(f.offsets, offset)

	tr, ok := f.tracks[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnavailable, url)
	}
	if tr.Hangs > 0 {
		tr.Hangs--
		f.mu.Unlock()
		<-ctx.Done()
		f.mu.Lock()
		return nil, context.Cause(ctx)
	}
	if len(tr.StreamErrs) > 0 {
		err := tr.StreamErrs[0]
		tr.StreamErrs = tr.StreamErrs[1:]
		return nil, err
	}

	total := int64(len(tr.Data))
	if tr.IgnoreRange {
		offset = 0
	}
	offset = min(offset, total)
	rest := tr.Data[offset:]

	if tr.Stalls > 0 {
		tr.Stalls--
		n := min(tr.StallAfter, len(rest))
		return &services.Stream{Body: NewStallReader(ctx, rest[:n]), Offset: offset, Total: total}, nil
	}
	return &services.Stream{Body: io.NopCloser(bytes.NewReader(rest)), Offset: offset, Total: total}, nil
}

// MaxActive reports the most FetchMetadata calls that were ever in flight at once.
func (f *FakeAdapter) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// MetaCalls reports how many times url's metadata was requested.
func (f *FakeAdapter) MetaCalls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls[url]
}

// StreamCalls reports how many streams were opened.
func (f *FakeAdapter) StreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

// Offsets lists the start offsets of every opened stream.
func (f *FakeAdapter) Offsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.offsets...)
}

// Order lists URLs in the order their metadata was requested.
func (f *FakeAdapter) Order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// FakeResolver is a [services.PlaylistResolver] backed by a map.
type FakeResolver struct {
	Playlists map[string]*services.Playlist

	mu    sync.Mutex
	calls int
}

func (r *FakeResolver) ResolvePlaylist(ctx context.Context, url string) (*services.Playlist, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	pl, ok := r.Playlists[url]
	if !ok {
		return nil, fmt.Errorf("no playlist at %s", url)
	}
	return pl, nil
}

func (r *FakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// FakeTranscoder copies input to output with an "mp3:" prefix.
type FakeTranscoder struct {
	Missing    bool    // report a missing engine until Install runs
	InstallErr error   // returned by Install
	Errs       []error // returned by successive Transcode calls before succeeding

	mu        sync.Mutex
	calls     int
	installs  int
	active    int
	maxActive int
}

func (f *FakeTranscoder) Transcode(ctx context.Context, in, out string, progress func(time.Duration)) error {
	f.mu.Lock()
	f.calls++
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	missing := f.Missing
	var err error
	if !missing && len(f.Errs) > 0 {
		err, f.Errs = f.Errs[0], f.Errs[1:]
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if missing {
		return fmt.Errorf("%w: fake", shared.ErrEngineMissing)
	}
	if err != nil {
		return err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if progress != nil {
		progress(time.Second)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	return os.WriteFile(out, append([]byte("mp3:"), data...), 0644)
}

func (f *FakeTranscoder) Install(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs++
	if f.InstallErr != nil {
		return f.InstallErr
	}
	f.Missing = false
	return nil
}

func (f *FakeTranscoder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeTranscoder) Installs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs
}

func (f *FakeTranscoder) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
