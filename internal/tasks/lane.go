package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/shared"
)

// WorkFunc processes a single song. It reports its outcome through the song's state.
type WorkFunc func(ctx context.Context, s *models.Song)

// Lane runs songs through a [WorkFunc] one at a time, in the order they were added.
type Lane struct {
	name   string
	work   WorkFunc
	onDone func(*models.Song)
	logger *log.Logger

	mu      sync.Mutex
	pending []*models.Song
	busy    bool
	wake    chan struct{}
}

// NewLane creates a lane. onDone runs on the lane's goroutine after every song, panics included.
func NewLane(name string, work WorkFunc, onDone func(*models.Song)) *Lane {
	return &Lane{
		name:   name,
		work:   work,
		onDone: onDone,
		logger: shared.NewLogger(nil),
		wake:   make(chan struct{}, 1),
	}
}

// SetLogger sets where recovered panics are reported.
func (l *Lane) SetLogger(logger *log.Logger) {
	l.logger = shared.WithLogger(logger, "lane", l.name)
}

func (l *Lane) Name() string { return l.name }

// Add appends s to the lane without blocking.
func (l *Lane) Add(s *models.Song) {
	l.mu.Lock()
	l.pending = append(l.pending, s)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Busy reports whether a song is being worked on right now.
func (l *Lane) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy
}

// Pending reports how many songs are waiting behind the current one.
func (l *Lane) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Run is the lane's worker loop. It returns when ctx is done, but never interrupts a running song.
func (l *Lane) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			if ctx.Err() != nil {
				return
			}
			s := l.next()
			if s == nil {
				break
			}
			l.runOne(ctx, s)
		}
	}
}

func (l *Lane) next() *models.Song {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}
	s := l.pending[0]
	l.pending = l.pending[1:]
	l.busy = true
	return s
}

func (l *Lane) runOne(ctx context.Context, s *models.Song) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("worker panicked", "url", s.URL(), "panic", r, "stack", string(debug.Stack()))
			phase := models.PhaseDownload
			if s.State().Processing() {
				phase = models.PhaseTranscode
			}
			s.Fail(phase, fmt.Sprintf("internal error: %v", r), true)
		}

		l.mu.Lock()
		l.busy = false
		l.mu.Unlock()

		if l.onDone != nil {
			l.onDone(s)
		}
	}()

	l.work(ctx, s)
}
