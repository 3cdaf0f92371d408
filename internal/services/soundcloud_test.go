package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/shared"
)

// newSoundCloudServer fakes soundcloud.com, api-v2 and the media CDN on one host.
func newSoundCloudServer(t *testing.T, clientID string) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><script crossorigin src="%s/assets/0.js"></script><script crossorigin src="%s/assets/1.js"></script></html>`, srv.URL, srv.URL)
	})
	mux.HandleFunc("/assets/0.js", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `var a=1;`)
	})
	mux.HandleFunc("/assets/1.js", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `({env:"prod",client_id:"%s",x:1})`, clientID)
	})
	mux.HandleFunc("/resolve", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("client_id") != clientID {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("url") == "https://soundcloud.com/artist/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"title":               "Night Drive",
			"track_authorization": "auth-token",
			"user":                map[string]any{"username": "synthkid"},
			"media": map[string]any{
				"transcodings": []map[string]any{
					{"url": srv.URL + "/media/hls", "format": map[string]any{"protocol": "hls", "mime_type": "audio/mpeg"}},
					{"url": srv.URL + "/media/progressive", "format": map[string]any{"protocol": "progressive", "mime_type": "audio/mpeg"}},
				},
			},
		})
	})
	mux.HandleFunc("/media/progressive", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("track_authorization") != "auth-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"url":"%s/cdn/track.mp3"}`, srv.URL)
	})
	mux.HandleFunc("/cdn/track.mp3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ID3-mp3-bytes")
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSoundCloudService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name and Provider", func(t *testing.T) {
		svc := NewSoundCloudService(SoundCloudOpts{ClientID: "x"})
		defer svc.Close()

		if svc.Name() != "soundcloud" || svc.Provider() != models.SoundCloud {
			t.Errorf("unexpected identity %s/%v", svc.Name(), svc.Provider())
		}
	})

	t.Run("scrapes client id", func(t *testing.T) {
		srv := newSoundCloudServer(t, "scraped123")
		svc := NewSoundCloudService(SoundCloudOpts{APIURL: srv.URL, SiteURL: srv.URL, HTTPClient: srv.Client()})
		defer svc.Close()

		id, err := svc.ClientID(ctx)
		if err != nil {
			t.Fatalf("ClientID() error = %v", err)
		}
		if id != "scraped123" {
			t.Errorf("ClientID() = %q, want scraped123", id)
		}
	})

	t.Run("configured client id skips scraping", func(t *testing.T) {
		svc := NewSoundCloudService(SoundCloudOpts{ClientID: "configured", SiteURL: "http://127.0.0.1:0"})
		defer svc.Close()

		id, err := svc.ClientID(ctx)
		if err != nil || id != "configured" {
			t.Errorf("ClientID() = %q, %v", id, err)
		}
	})

	t.Run("FetchMetadata and OpenStream", func(t *testing.T) {
		srv := newSoundCloudServer(t, "cid")
		svc := NewSoundCloudService(SoundCloudOpts{
			ClientID:          "cid",
			APIURL:            srv.URL,
			SiteURL:           srv.URL,
			HTTPClient:        srv.Client(),
			RequestsPerSecond: 100,
		})
		defer svc.Close()

		meta, err := svc.FetchMetadata(ctx, "https://soundcloud.com/synthkid/night-drive")
		if err != nil {
			t.Fatalf("FetchMetadata() error = %v", err)
		}
		if meta.Title != "Night Drive" || meta.Author != "synthkid" {
			t.Errorf("unexpected metadata %+v", meta)
		}
		if meta.Extension != ".mp3" {
			t.Errorf("expected .mp3 extension, got %s", meta.Extension)
		}

		stream, err := svc.OpenStream(ctx, meta, 0)
		if err != nil {
			t.Fatalf("OpenStream() error = %v", err)
		}
		defer stream.Body.Close()

		body, _ := io.ReadAll(stream.Body)
		if string(body) != "ID3-mp3-bytes" {
			t.Errorf("stream body = %q", body)
		}
	})

	t.Run("missing track is unavailable", func(t *testing.T) {
		srv := newSoundCloudServer(t, "cid")
		svc := NewSoundCloudService(SoundCloudOpts{ClientID: "cid", APIURL: srv.URL, HTTPClient: srv.Client(), RequestsPerSecond: 100})
		defer svc.Close()

		_, err := svc.FetchMetadata(ctx, "https://soundcloud.com/artist/missing")
		if !errors.Is(err, shared.ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("rejected client id is forgotten", func(t *testing.T) {
		srv := newSoundCloudServer(t, "fresh")
		svc := NewSoundCloudService(SoundCloudOpts{
			ClientID:          "stale",
			APIURL:            srv.URL,
			SiteURL:           srv.URL,
			HTTPClient:        srv.Client(),
			RequestsPerSecond: 100,
		})
		defer svc.Close()

		if _, err := svc.FetchMetadata(ctx, "https://soundcloud.com/a/b"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}

		if _, err := svc.FetchMetadata(ctx, "https://soundcloud.com/a/b"); err != nil {
			t.Errorf("retry with scraped id failed: %v", err)
		}
	})
}

func TestExtractClientID(t *testing.T) {
	tc := []struct {
		name   string
		script string
		want   string
	}{
		{name: "present", script: `a,client_id:"abc123",b`, want: "abc123"},
		{name: "absent", script: `var x = 1`, want: ""},
		{name: "unterminated", script: `,client_id:"abc`, want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractClientID(tt.script); got != tt.want {
				t.Errorf("extractClientID() = %q, want %q", got, tt.want)
			}
		})
	}
}
