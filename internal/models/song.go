package models

import (
	"fmt"
	"sync"

	"github.com/desertthunder/songdl/internal/shared"
)

// Song is one submitted URL tracked through download and transcode.
type Song struct {
	id           string
	url          string
	provider     Provider
	parentFolder string

	mu            sync.Mutex
	state         State
	failure       *Failure
	downloadTries int
	processTries  int
	already       bool
	title         string
	author        string
	downloadPath  string
	finalPath     string
	status        string
}

// SongView is a point-in-time copy of a [Song].
type SongView struct {
	ID            string
	URL           string
	Provider      Provider
	ParentFolder  string
	State         State
	Failure       *Failure
	DownloadTries int
	ProcessTries  int
	Already       bool
	Title         string
	Author        string
	DownloadPath  string
	FinalPath     string
	Status        string
}

// NewSong creates a Fresh song. parentFolder is relative to the output directory.
func NewSong(url string, provider Provider, parentFolder string) *Song {
	return &Song{
		id:           shared.GenerateID(),
		url:          url,
		provider:     provider,
		parentFolder: parentFolder,
		state:        Fresh,
		status:       "waiting",
	}
}

func (s *Song) ID() string           { return s.id }
func (s *Song) URL() string          { return s.url }
func (s *Song) Provider() Provider   { return s.provider }
func (s *Song) ParentFolder() string { return s.parentFolder }

// Snapshot copies the song's current fields.
func (s *Song) Snapshot() SongView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := SongView{
		ID:            s.id,
		URL:           s.url,
		Provider:      s.provider,
		ParentFolder:  s.parentFolder,
		State:         s.state,
		DownloadTries: s.downloadTries,
		ProcessTries:  s.processTries,
		Already:       s.already,
		Title:         s.title,
		Author:        s.author,
		DownloadPath:  s.downloadPath,
		FinalPath:     s.finalPath,
		Status:        s.status,
	}
	if s.failure != nil {
		f := *s.failure
		v.Failure = &f
	}
	return v
}

// State returns the current pipeline state.
func (s *Song) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Display returns "<author> - <title>", or the URL until metadata arrives.
func (s *Song) Display() string {
	return s.Snapshot().Display()
}

// SetMetadata records provider-supplied display metadata.
func (s *Song) SetMetadata(title, author string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title, s.author = title, author
}

// SetPaths records the raw download location and the final output location.
func (s *Song) SetPaths(download, final string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloadPath, s.finalPath = download, final
}

// Paths returns the raw download location and the final output location.
func (s *Song) Paths() (download, final string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloadPath, s.finalPath
}

// SetStatus replaces the human-readable status line.
func (s *Song) SetStatus(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = fmt.Sprintf(format, args...)
}

// Queue moves a Fresh song onto a download lane.
func (s *Song) Queue() {
	s.transition(Queued, "queued for download")
}

// BeginDownload starts a download attempt and counts it.
func (s *Song) BeginDownload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Downloading
	s.downloadTries++
	s.status = fmt.Sprintf("fetching info (try %d)", s.downloadTries)
}

// MarkDownloaded records a finished download.
func (s *Song) MarkDownloaded() {
	s.transition(Downloaded, "downloaded")
}

// MarkAlready records that the final output existed before any work was done.
func (s *Song) MarkAlready() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Processed
	s.already = true
	s.status = "already downloaded"
}

// QueueTranscode moves a Downloaded song onto the transcode lane.
func (s *Song) QueueTranscode() {
	s.transition(QueuedTranscode, "queued for processing")
}

// BeginTranscode starts a transcode attempt and counts it.
func (s *Song) BeginTranscode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Transcoding
	s.processTries++
	s.status = fmt.Sprintf("processing (try %d)", s.processTries)
}

// RollbackTranscode undoes a transcode attempt that never really ran.
func (s *Song) RollbackTranscode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processTries > 0 {
		s.processTries--
	}
	s.state = Downloaded
	s.status = "waiting for ffmpeg"
}

// MarkProcessed records a finished transcode.
func (s *Song) MarkProcessed() {
	s.transition(Processed, "done")
}

// Fail records a failed attempt in the given phase.
func (s *Song) Fail(phase Phase, reason string, retryable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Failed
	s.failure = &Failure{Phase: phase, Reason: reason, Retryable: retryable}
	s.status = fmt.Sprintf("%s failed: %s", phase, reason)
}

// Requeue clears a failure and rewinds the song to the start of the failed phase.
func (s *Song) Requeue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Failed {
		return
	}

	s.state = Fresh
	if s.failure != nil && s.failure.Phase == PhaseTranscode {
		s.state = Downloaded
	}
	s.failure = nil
	s.status = "retrying"
}

func (s *Song) transition(to State, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
	s.status = status
}

// Display returns "<author> - <title>", or the URL until metadata arrives.
func (v SongView) Display() string {
	switch {
	case v.Title == "":
		return v.URL
	case v.Author == "":
		return v.Title
	default:
		return v.Author + " - " + v.Title
	}
}
