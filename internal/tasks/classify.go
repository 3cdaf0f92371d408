package tasks

import "github.com/desertthunder/songdl/internal/models"

// Action is what a classification pass does with a song.
type Action int

const (
	Skip      Action = iota // in flight, leave it alone
	Dispatch                // send to its provider lane
	Requeue                 // clear the failure and move to the back of the backlog
	Transcode               // send to the transcode lane
	Done                    // retire to the history
	Evict                   // give up and record in the failed list
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Dispatch:
		return "dispatch"
	case Requeue:
		return "requeue"
	case Transcode:
		return "transcode"
	case Done:
		return "done"
	case Evict:
		return "evict"
	default:
		return ""
	}
}

// Limits are the retry ceilings. A phase may be attempted max+1 times.
type Limits struct {
	MaxDownloadTries int
	MaxProcessTries  int
}

// Classify decides the next action for a song from a snapshot of it.
func Classify(v models.SongView, needsTranscode bool, lim Limits) Action {
	switch v.State {
	case models.Failed:
		switch {
		case v.Failure != nil && !v.Failure.Retryable:
			return Evict
		case v.Failure != nil && v.Failure.Phase == models.PhaseTranscode:
			if v.ProcessTries > lim.MaxProcessTries {
				return Evict
			}
		case v.DownloadTries > lim.MaxDownloadTries:
			return Evict
		}
		return Requeue
	case models.Fresh:
		if v.DownloadTries > lim.MaxDownloadTries {
			return Evict
		}
		return Dispatch
	case models.Downloaded:
		if !needsTranscode {
			return Done
		}
		if v.ProcessTries > lim.MaxProcessTries {
			return Evict
		}
		return Transcode
	case models.Processed:
		return Done
	default:
		return Skip
	}
}
