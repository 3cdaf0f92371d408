// SoundCloud [Adapter] implementation
//
// Tracks are resolved through api-v2, which needs a client id. Without a configured
// one it is scraped from the script bundles on soundcloud.com.
package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

const (
	defaultSoundCloudAPI  = "https://api-v2.soundcloud.com"
	defaultSoundCloudSite = "https://soundcloud.com"
)

var scriptSrcRe = regexp.MustCompile(`<script crossorigin src="([^"]+)"`)

// SoundCloudService implements [Adapter] for SoundCloud.
type SoundCloudService struct {
	apiURL     string
	siteURL    string
	client     *resty.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	mu       sync.Mutex
	clientID string
}

// SoundCloudOpts configures a [SoundCloudService].
type SoundCloudOpts struct {
	ClientID          string
	APIURL            string // defaults to api-v2.soundcloud.com
	SiteURL           string // defaults to soundcloud.com
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Logger            *log.Logger
}

type soundCloudTrack struct {
	Title              string `json:"title"`
	TrackAuthorization string `json:"track_authorization"`
	User               struct {
		Username string `json:"username"`
	} `json:"user"`
	Media struct {
		Transcodings []soundCloudTranscoding `json:"transcodings"`
	} `json:"media"`
}

type soundCloudTranscoding struct {
	URL    string `json:"url"`
	Format struct {
		Protocol string `json:"protocol"`
		MimeType string `json:"mime_type"`
	} `json:"format"`
}

type soundCloudMedia struct {
	URL string `json:"url"`
}

// NewSoundCloudService creates a SoundCloud adapter.
func NewSoundCloudService(opts SoundCloudOpts) *SoundCloudService {
	if opts.APIURL == "" {
		opts.APIURL = defaultSoundCloudAPI
	}
	if opts.SiteURL == "" {
		opts.SiteURL = defaultSoundCloudSite
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SoundCloudService{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		siteURL:    strings.TrimRight(opts.SiteURL, "/"),
		client:     resty.NewWithClient(opts.HTTPClient),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:     shared.WithLogger(opts.Logger, "adapter", "soundcloud"),
		clientID:   opts.ClientID,
	}
}

// Name returns the service name.
func (s *SoundCloudService) Name() string { return "soundcloud" }

// Provider returns [models.SoundCloud].
func (s *SoundCloudService) Provider() models.Provider { return models.SoundCloud }

// Close releases the underlying HTTP client.
func (s *SoundCloudService) Close() error {
	return s.client.Close()
}

// FetchMetadata resolves a track page and exchanges its progressive transcoding for a stream URL.
func (s *SoundCloudService) FetchMetadata(ctx context.Context, trackURL string) (*Metadata, error) {
	clientID, err := s.ClientID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"url":       trackURL,
			"client_id": clientID,
		}).
		SetResult(&soundCloudTrack{}).
		Get(s.apiURL + "/resolve")
	if err != nil {
		return nil, fmt.Errorf("%w: resolve: %v", shared.ErrAPIRequest, err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s not found", shared.ErrUnavailable, trackURL)
	case http.StatusUnauthorized, http.StatusForbidden:
		s.forgetClientID()
		return nil, fmt.Errorf("%w: resolve returned %d", shared.ErrAPIRequest, res.StatusCode())
	default:
		return nil, fmt.Errorf("%w: resolve returned %d: %s", shared.ErrAPIRequest, res.StatusCode(), res.String())
	}

	track := res.Result().(*soundCloudTrack)
	if track.TrackAuthorization == "" {
		return nil, fmt.Errorf("%w: missing track authorization", shared.ErrUnavailable)
	}

	progressive, ok := lo.Find(track.Media.Transcodings, func(t soundCloudTranscoding) bool {
		return t.Format.Protocol == "progressive"
	})
	if !ok {
		return nil, fmt.Errorf("%w: no progressive transcoding", shared.ErrUnavailable)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err = s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":           clientID,
			"track_authorization": track.TrackAuthorization,
		}).
		SetResult(&soundCloudMedia{}).
		Get(progressive.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: media: %v", shared.ErrAPIRequest, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: media returned %d", shared.ErrAPIRequest, res.StatusCode())
	}

	media := res.Result().(*soundCloudMedia)
	if media.URL == "" {
		return nil, fmt.Errorf("%w: empty media url", shared.ErrAPIRequest)
	}

	return &Metadata{
		Title:      track.Title,
		Author:     track.User.Username,
		Extension:  ".mp3",
		Descriptor: media.URL,
	}, nil
}

// OpenStream opens the signed MP3 URL at offset.
func (s *SoundCloudService) OpenStream(ctx context.Context, m *Metadata, offset int64) (*Stream, error) {
	streamURL, ok := m.Descriptor.(string)
	if !ok || streamURL == "" {
		return nil, fmt.Errorf("%w: descriptor is not a stream url", shared.ErrInvalidArgument)
	}
	return OpenRanged(ctx, s.httpClient, streamURL, offset, nil)
}

// ClientID returns the configured client id, scraping and caching one when unset.
func (s *SoundCloudService) ClientID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clientID != "" {
		return s.clientID, nil
	}

	id, err := s.scrapeClientID(ctx)
	if err != nil {
		return "", err
	}
	s.logger.Debug("scraped client id")
	s.clientID = id
	return id, nil
}

func (s *SoundCloudService) forgetClientID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = ""
}

func (s *SoundCloudService) scrapeClientID(ctx context.Context) (string, error) {
	res, err := s.client.R().SetContext(ctx).Get(s.siteURL + "/")
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	for _, m := range scriptSrcRe.FindAllStringSubmatch(res.String(), -1) {
		script, err := s.client.R().SetContext(ctx).Get(m[1])
		if err != nil || script.StatusCode() != http.StatusOK {
			continue
		}
		if id := extractClientID(script.String()); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: soundcloud client id not found", shared.ErrMissingCredentials)
}

func extractClientID(script string) string {
	_, rest, ok := strings.Cut(script, `,client_id:"`)
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, `"`)
	if !ok {
		return ""
	}
	return id
}
