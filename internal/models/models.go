// package models defines the data model for the song downloader
package models

// Provider identifies the service a song is fetched from.
type Provider int

const (
	YouTube Provider = iota
	YouTubeMusic
	SoundCloud
)

func (p Provider) String() string {
	switch p {
	case YouTube:
		return "YouTube"
	case YouTubeMusic:
		return "YouTube Music"
	case SoundCloud:
		return "SoundCloud"
	default:
		return "unknown"
	}
}

// NeedsTranscode reports whether downloaded audio must be converted to MP3.
//
// SoundCloud's progressive stream is already MP3.
func (p Provider) NeedsTranscode() bool {
	return p != SoundCloud
}

// Track represents a search result from any service
type Track struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	Album    string   `json:"album,omitempty"`
	Provider Provider `json:"provider"`
}

// State is a song's position in the download/transcode pipeline.
type State int

const (
	Fresh State = iota
	Queued
	Downloading
	Downloaded
	QueuedTranscode
	Transcoding
	Processed
	Failed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Queued:
		return "queued"
	case Downloading:
		return "downloading"
	case Downloaded:
		return "downloaded"
	case QueuedTranscode:
		return "queued_transcode"
	case Transcoding:
		return "transcoding"
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Working reports whether the song is waiting in, or running on, a download lane.
func (s State) Working() bool {
	return s == Queued || s == Downloading
}

// Processing reports whether the song is waiting in, or running on, the transcode lane.
func (s State) Processing() bool {
	return s == QueuedTranscode || s == Transcoding
}

// Phase names the step a failure happened in.
type Phase int

const (
	PhaseDownload Phase = iota
	PhaseTranscode
)

func (p Phase) String() string {
	if p == PhaseTranscode {
		return "transcode"
	}
	return "download"
}

// Failure describes why a song is in the [Failed] state.
type Failure struct {
	Phase     Phase
	Reason    string
	Retryable bool
}
