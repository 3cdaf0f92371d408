// package services defines the provider adapter interfaces used by the download queue
package services

import (
	"context"
	"io"
	"time"

	"github.com/desertthunder/songdl/internal/models"
)

// Adapter fetches metadata and audio for one provider.
type Adapter interface {
	// Name returns the adapter's display name, used to name its lane.
	Name() string

	// Provider returns the provider tag the adapter is registered under.
	Provider() models.Provider

	// FetchMetadata resolves url to display metadata and a stream descriptor.
	FetchMetadata(ctx context.Context, url string) (*Metadata, error)

	// OpenStream opens the stream described by m, starting at byte offset.
	// Servers that ignore the range return a [Stream] with Offset 0.
	OpenStream(ctx context.Context, m *Metadata, offset int64) (*Stream, error)
}

// PlaylistResolver expands a playlist or channel URL to its member URLs.
type PlaylistResolver interface {
	ResolvePlaylist(ctx context.Context, url string) (*Playlist, error)
}

// Searcher finds tracks by free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Track, error)
}

// Transcoder converts raw downloaded audio into the final MP3.
type Transcoder interface {
	// Transcode converts in to out, reporting the encoded position through progress.
	Transcode(ctx context.Context, in, out string, progress func(time.Duration)) error

	// Install fetches the engine when Transcode reported it missing.
	Install(ctx context.Context) error
}

// Metadata is what an [Adapter] knows about a URL before downloading it.
type Metadata struct {
	Title         string
	Author        string
	ContentLength int64  // 0 when unknown until the stream is opened
	Extension     string // raw file extension, including the dot
	Descriptor    any    // adapter-private stream locator
}

// Stream is an open byte stream positioned at Offset.
type Stream struct {
	Body   io.ReadCloser
	Offset int64
	Total  int64 // full content length, 0 when unknown
}

// Playlist is a resolved playlist with the URLs of its members in order.
type Playlist struct {
	ID    string
	Title string
	URLs  []string
}
