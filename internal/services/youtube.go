// YouTube [Adapter] implementation
//
// Extraction is delegated to github.com/kkdai/youtube/v2. Audio is fetched with a
// plain ranged GET on the resolved stream URL so partial files can resume.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
)

const youtubeWatchURL = "https://www.youtube.com/watch?v="

// YouTubeService implements [Adapter] and [PlaylistResolver] for YouTube.
type YouTubeService struct {
	client     *youtube.Client
	httpClient *http.Client
	logger     *log.Logger
}

// YouTubeOpts configures a [YouTubeService].
type YouTubeOpts struct {
	HTTPClient *http.Client
	Cookie     string
	Logger     *log.Logger
}

type youtubeStream struct {
	video  *youtube.Video
	format *youtube.Format
}

// NewYouTubeService creates a YouTube adapter. A non-empty cookie is sent with every request.
func NewYouTubeService(opts YouTubeOpts) *YouTubeService {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	httpClient := opts.HTTPClient
	if opts.Cookie != "" {
		clone := *opts.HTTPClient
		clone.Transport = &cookieTransport{cookie: opts.Cookie, next: opts.HTTPClient.Transport}
		httpClient = &clone
	}

	return &YouTubeService{
		client:     &youtube.Client{HTTPClient: httpClient},
		httpClient: httpClient,
		logger:     shared.WithLogger(opts.Logger, "adapter", "youtube"),
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string { return "youtube" }

// Provider returns [models.YouTube].
func (y *YouTubeService) Provider() models.Provider { return models.YouTube }

// FetchMetadata loads the video and picks its best audio-only format.
func (y *YouTubeService) FetchMetadata(ctx context.Context, rawURL string) (*Metadata, error) {
	video, err := y.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, wrapYouTubeError(err)
	}

	format, err := pickAudioFormat(video.Formats)
	if err != nil {
		return nil, err
	}

	y.logger.Debug("selected format", "video", video.ID, "itag", format.ItagNo, "mime", format.MimeType)

	return &Metadata{
		Title:         video.Title,
		Author:        video.Author,
		ContentLength: format.ContentLength,
		Extension:     extensionForMime(format.MimeType),
		Descriptor:    &youtubeStream{video: video, format: format},
	}, nil
}

// OpenStream resolves the format's signed URL and opens it at offset.
func (y *YouTubeService) OpenStream(ctx context.Context, m *Metadata, offset int64) (*Stream, error) {
	desc, ok := m.Descriptor.(*youtubeStream)
	if !ok {
		return nil, fmt.Errorf("%w: descriptor is not a youtube stream", shared.ErrInvalidArgument)
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, desc.video, desc.format)
	if err != nil {
		return nil, wrapYouTubeError(err)
	}

	stream, err := OpenRanged(ctx, y.httpClient, streamURL, offset, nil)
	if err != nil {
		return nil, err
	}
	if stream.Total == 0 {
		stream.Total = desc.format.ContentLength
	}
	return stream, nil
}

// ResolvePlaylist expands /playlist?list= and /channel/UC… links to watch URLs.
func (y *YouTubeService) ResolvePlaylist(ctx context.Context, rawURL string) (*Playlist, error) {
	target, err := playlistTarget(rawURL)
	if err != nil {
		return nil, err
	}

	playlist, err := y.client.GetPlaylistContext(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
	}

	urls := lo.FilterMap(playlist.Videos, func(e *youtube.PlaylistEntry, _ int) (string, bool) {
		if e == nil || e.ID == "" {
			return "", false
		}
		return youtubeWatchURL + e.ID, true
	})

	title := playlist.Title
	if title == "" {
		title = playlist.ID
	}
	return &Playlist{ID: playlist.ID, Title: title, URLs: urls}, nil
}

// playlistTarget maps a channel link to its uploads playlist.
//
// Channel ids start with "UC"; the matching uploads playlist swaps that for "UU".
func playlistTarget(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if !strings.HasPrefix(u.Path, "/channel") {
		return rawURL, nil
	}

	id := strings.Trim(strings.TrimPrefix(u.Path, "/channel"), "/")
	id, _, _ = strings.Cut(id, "/")
	if !strings.HasPrefix(id, "UC") || len(id) < 3 {
		return "", fmt.Errorf("%w: unsupported channel link %s", shared.ErrInvalidInput, rawURL)
	}
	return "https://www.youtube.com/playlist?list=UU" + id[2:], nil
}

// pickAudioFormat prefers opus, then the highest bitrate among audio-only formats.
func pickAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	var candidates []*youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels > 0 && f.Width == 0 && f.Height == 0 {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no audio-only formats", shared.ErrUnavailable)
	}

	return lo.MaxBy(candidates, func(a, b *youtube.Format) bool {
		ao, bo := strings.Contains(a.MimeType, "opus"), strings.Contains(b.MimeType, "opus")
		if ao != bo {
			return ao
		}
		return bitrate(a) > bitrate(b)
	}), nil
}

func bitrate(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

func extensionForMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(mime, "audio/mp4"):
		return ".m4a"
	case strings.HasPrefix(mime, "audio/mpeg"):
		return ".mp3"
	default:
		return ".audio"
	}
}

// wrapYouTubeError marks refusals that retrying cannot fix.
func wrapYouTubeError(err error) error {
	var status *youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength),
		errors.As(err, &status):
		return fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
}

// cookieTransport adds a Cookie header to every outgoing request.
type cookieTransport struct {
	cookie string
	next   http.RoundTripper
}

func (c *cookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := c.next
	if next == nil {
		next = http.DefaultTransport
	}
	r := req.Clone(req.Context())
	r.Header.Set("Cookie", c.cookie)
	return next.RoundTrip(r)
}
