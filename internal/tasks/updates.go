package tasks

import (
	"fmt"

	"github.com/desertthunder/songdl/internal/models"
)

// Update represents a change in the backlog or one of its songs.
//
// Used to send real-time updates to the CLI or UI layer for display.
type Update struct {
	Kind    Kind            // Event kind
	Song    models.SongView // Song the event concerns, zero for queue-wide events
	Message string          // Human-readable message for display
}

// Update kind enumeration
type Kind int

const (
	SongAdded Kind = iota
	SongStatus
	SongDone
	SongFailed
	SongRetry
	QueueEmpty
	InputRejected
	Exit
)

func (k Kind) String() string {
	switch k {
	case SongAdded:
		return "song_added"
	case SongStatus:
		return "song_status"
	case SongDone:
		return "song_done"
	case SongFailed:
		return "song_failed"
	case SongRetry:
		return "song_retry"
	case QueueEmpty:
		return "queue_empty"
	case InputRejected:
		return "input_rejected"
	case Exit:
		return "exit"
	default:
		return ""
	}
}

// Droppable reports whether an update of kind k may be discarded when the consumer falls behind.
// Only progress that a later update supersedes is droppable.
func (k Kind) Droppable() bool {
	return k == SongStatus || k == QueueEmpty
}

func songAddedUpdate(v models.SongView) Update {
	return Update{
		Kind:    SongAdded,
		Song:    v,
		Message: fmt.Sprintf("Added %s", v.URL),
	}
}

func songStatusUpdate(v models.SongView) Update {
	return Update{Kind: SongStatus, Song: v, Message: v.Status}
}

func playlistAddedUpdate(count int, title string) Update {
	return Update{
		Kind:    SongAdded,
		Message: fmt.Sprintf("Added %d songs from YouTube playlist: %s", count, title),
	}
}

func songDoneUpdate(v models.SongView) Update {
	msg := "Downloaded, check the output folder"
	if v.Already {
		msg = "Already downloaded, check the output folder"
	}
	return Update{Kind: SongDone, Song: v, Message: msg}
}

func songFailedUpdate(v models.SongView) Update {
	failed := v.DownloadTries + v.ProcessTries
	return Update{
		Kind:    SongFailed,
		Song:    v,
		Message: fmt.Sprintf("Failed too many times (%d), added to failed list", failed),
	}
}

func songRetryUpdate(v models.SongView) Update {
	failed := v.DownloadTries + v.ProcessTries
	return Update{
		Kind:    SongRetry,
		Song:    v,
		Message: fmt.Sprintf("Failed, retrying later (%d failed attempts)", failed),
	}
}

func queueEmptyUpdate() Update {
	return Update{Kind: QueueEmpty, Message: "Queue is empty, waiting for new songs"}
}

func inputRejectedUpdate(input string, err error) Update {
	return Update{Kind: InputRejected, Message: fmt.Sprintf("Couldn't add %s: %v", input, err)}
}

func exitUpdate() Update {
	return Update{Kind: Exit, Message: "Queue finished, exiting"}
}
