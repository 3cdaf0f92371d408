// YouTube Music [Searcher] implementation
//
// Queries the same youtubei search endpoint the music.youtube.com web client uses,
// filtered to songs.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

const (
	defaultYTMusicURL = "https://music.youtube.com"
	ytMusicClientVer  = "1.20230712.01.00"
	// songsOnlyParams restricts results to the "Songs" shelf.
	songsOnlyParams = "EgWKAQIIAWoSEAMQBBAJEA4QChAFEBEQEBAV"

	pageTypeArtist = "MUSIC_PAGE_TYPE_ARTIST"
	pageTypeAlbum  = "MUSIC_PAGE_TYPE_ALBUM"
)

// YouTubeMusicService implements [Searcher] for YouTube Music.
type YouTubeMusicService struct {
	baseURL string
	headers map[string]string
	client  *resty.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// YouTubeMusicOpts configures a [YouTubeMusicService].
type YouTubeMusicOpts struct {
	BaseURL           string
	Cookie            string
	Headers           *shared.CurlHeaders // browser headers captured from a saved cURL command
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Logger            *log.Logger
}

type ytmSearchRequest struct {
	Context ytmContext `json:"context"`
	Query   string     `json:"query"`
	Params  string     `json:"params"`
}

type ytmContext struct {
	Client struct {
		ClientName    string `json:"clientName"`
		ClientVersion string `json:"clientVersion"`
		HL            string `json:"hl"`
		GL            string `json:"gl"`
	} `json:"client"`
}

type ytmRun struct {
	Text               string `json:"text"`
	NavigationEndpoint *struct {
		BrowseEndpoint *struct {
			Configs struct {
				Music struct {
					PageType string `json:"pageType"`
				} `json:"browseEndpointContextMusicConfig"`
			} `json:"browseEndpointContextSupportedConfigs"`
		} `json:"browseEndpoint"`
	} `json:"navigationEndpoint"`
}

func (r ytmRun) pageType() string {
	if r.NavigationEndpoint == nil || r.NavigationEndpoint.BrowseEndpoint == nil {
		return ""
	}
	return r.NavigationEndpoint.BrowseEndpoint.Configs.Music.PageType
}

type ytmFlexColumn struct {
	Renderer struct {
		Text struct {
			Runs []ytmRun `json:"runs"`
		} `json:"text"`
	} `json:"musicResponsiveListItemFlexColumnRenderer"`
}

type ytmListItem struct {
	Renderer *struct {
		FlexColumns []ytmFlexColumn `json:"flexColumns"`
		Overlay     struct {
			Thumbnail struct {
				Content struct {
					PlayButton struct {
						Endpoint struct {
							Watch struct {
								VideoID string `json:"videoId"`
							} `json:"watchEndpoint"`
						} `json:"playNavigationEndpoint"`
					} `json:"musicPlayButtonRenderer"`
				} `json:"content"`
			} `json:"musicItemThumbnailOverlayRenderer"`
		} `json:"overlay"`
	} `json:"musicResponsiveListItemRenderer"`
}

type ytmSearchResponse struct {
	Contents struct {
		Tabbed struct {
			Tabs []struct {
				TabRenderer struct {
					Content struct {
						SectionList struct {
							Contents []struct {
								Shelf *struct {
									Contents []ytmListItem `json:"contents"`
								} `json:"musicShelfRenderer"`
							} `json:"contents"`
						} `json:"sectionListRenderer"`
					} `json:"content"`
				} `json:"tabRenderer"`
			} `json:"tabs"`
		} `json:"tabbedSearchResultsRenderer"`
	} `json:"contents"`
}

// NewYouTubeMusicService creates a YouTube Music search client.
func NewYouTubeMusicService(opts YouTubeMusicOpts) *YouTubeMusicService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultYTMusicURL
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

	base := strings.TrimRight(opts.BaseURL, "/")
	headers := map[string]string{
		"accept":                   "*/*",
		"content-type":             "application/json",
		"x-youtube-client-name":    "67",
		"x-youtube-client-version": ytMusicClientVer,
		"Referer":                  base + "/",
	}
	if opts.Headers != nil {
		headers = opts.Headers.Merge(headers)
	}
	if opts.Cookie != "" {
		headers["cookie"] = opts.Cookie
	}

	return &YouTubeMusicService{
		baseURL: base,
		headers: headers,
		client:  resty.NewWithClient(opts.HTTPClient),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:  shared.WithLogger(opts.Logger, "adapter", "ytmusic"),
	}
}

// Name returns the service name.
func (y *YouTubeMusicService) Name() string { return "YouTube Music" }

// Close releases the underlying HTTP client.
func (y *YouTubeMusicService) Close() error {
	return y.client.Close()
}

// Search returns the songs matching query, in the order YouTube Music ranks them.
func (y *YouTubeMusicService) Search(ctx context.Context, query string) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrMissingArgument)
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := ytmSearchRequest{Query: query, Params: songsOnlyParams}
	body.Context.Client.ClientName = "WEB_REMIX"
	body.Context.Client.ClientVersion = ytMusicClientVer
	body.Context.Client.HL = "en"
	body.Context.Client.GL = "US"

	res, err := y.client.R().
		SetContext(ctx).
		SetHeaders(y.headers).
		SetQueryParam("prettyPrint", "false").
		SetBody(body).
		SetResult(&ytmSearchResponse{}).
		Post(y.baseURL + "/youtubei/v1/search")
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", shared.ErrAPIRequest, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: search returned %d", shared.ErrAPIRequest, res.StatusCode())
	}

	tracks := parseSearchResponse(res.Result().(*ytmSearchResponse))
	y.logger.Debug("search finished", "query", query, "results", len(tracks))
	return tracks, nil
}

// parseSearchResponse reads the first song shelf of a search response.
func parseSearchResponse(resp *ytmSearchResponse) []models.Track {
	if len(resp.Contents.Tabbed.Tabs) == 0 {
		return nil
	}

	for _, section := range resp.Contents.Tabbed.Tabs[0].TabRenderer.Content.SectionList.Contents {
		if section.Shelf == nil {
			continue
		}
		return lo.FilterMap(section.Shelf.Contents, func(item ytmListItem, _ int) (models.Track, bool) {
			return trackFromListItem(item)
		})
	}
	return nil
}

func trackFromListItem(item ytmListItem) (models.Track, bool) {
	r := item.Renderer
	if r == nil || len(r.FlexColumns) < 2 {
		return models.Track{}, false
	}

	id := r.Overlay.Thumbnail.Content.PlayButton.Endpoint.Watch.VideoID
	titleRuns := r.FlexColumns[0].Renderer.Text.Runs
	if id == "" || len(titleRuns) == 0 {
		return models.Track{}, false
	}

	subtitle := r.FlexColumns[1].Renderer.Text.Runs
	artist, ok := lo.Find(subtitle, func(run ytmRun) bool { return run.pageType() == pageTypeArtist })
	if !ok && len(subtitle) > 0 {
		artist = subtitle[0]
	}
	album, _ := lo.Find(subtitle, func(run ytmRun) bool { return run.pageType() == pageTypeAlbum })

	return models.Track{
		ID:       id,
		URL:      "https://youtu.be/" + id,
		Title:    titleRuns[0].Text,
		Artist:   artist.Text,
		Album:    album.Text,
		Provider: models.YouTubeMusic,
	}, true
}
