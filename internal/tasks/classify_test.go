package tasks

import (
	"testing"

	"github.com/desertthunder/songdl/internal/models"
)

func TestClassify(t *testing.T) {
	lim := Limits{MaxDownloadTries: 3, MaxProcessTries: 2}
	failure := func(phase models.Phase, retryable bool) *models.Failure {
		return &models.Failure{Phase: phase, Reason: "x", Retryable: retryable}
	}

	tests := []struct {
		name      string
		view      models.SongView
		transcode bool
		want      Action
	}{
		{"fresh song is dispatched", models.SongView{State: models.Fresh}, true, Dispatch},
		{"fresh song past download ceiling", models.SongView{State: models.Fresh, DownloadTries: 4}, true, Evict},
		{"fresh song at download ceiling", models.SongView{State: models.Fresh, DownloadTries: 3}, true, Dispatch},
		{"queued song is skipped", models.SongView{State: models.Queued}, true, Skip},
		{"downloading song is skipped", models.SongView{State: models.Downloading}, true, Skip},
		{"transcoding song is skipped", models.SongView{State: models.Transcoding}, true, Skip},
		{"queued transcode is skipped", models.SongView{State: models.QueuedTranscode}, true, Skip},
		{"downloaded song needing transcode", models.SongView{State: models.Downloaded}, true, Transcode},
		{"downloaded song without transcode", models.SongView{State: models.Downloaded}, false, Done},
		{"downloaded song past process ceiling", models.SongView{State: models.Downloaded, ProcessTries: 3}, true, Evict},
		{"processed song", models.SongView{State: models.Processed}, true, Done},
		{
			"retryable download failure",
			models.SongView{State: models.Failed, DownloadTries: 1, Failure: failure(models.PhaseDownload, true)},
			true, Requeue,
		},
		{
			"download failure past ceiling",
			models.SongView{State: models.Failed, DownloadTries: 4, Failure: failure(models.PhaseDownload, true)},
			true, Evict,
		},
		{
			"non-retryable failure",
			models.SongView{State: models.Failed, DownloadTries: 1, Failure: failure(models.PhaseDownload, false)},
			true, Evict,
		},
		{
			"retryable transcode failure",
			models.SongView{State: models.Failed, DownloadTries: 1, ProcessTries: 1, Failure: failure(models.PhaseTranscode, true)},
			true, Requeue,
		},
		{
			"transcode failure past ceiling",
			models.SongView{State: models.Failed, DownloadTries: 1, ProcessTries: 3, Failure: failure(models.PhaseTranscode, true)},
			true, Evict,
		},
		{
			"transcode failure ignores download ceiling",
			models.SongView{State: models.Failed, DownloadTries: 4, ProcessTries: 1, Failure: failure(models.PhaseTranscode, true)},
			true, Requeue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.view, tt.transcode, lim); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}
