package tasks

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/services"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/samber/lo"
)

const updateBuffer = 256

// DownloaderOpts contains the collaborators of a [Downloader].
type DownloaderOpts struct {
	Config     *shared.Config
	Adapters   []services.Adapter // one download lane per adapter
	Resolver   services.PlaylistResolver
	Transcoder services.Transcoder
	Logger     *log.Logger
	ErrorLog   *log.Logger   // receives failure details and recovered panics
	OnExit     func()        // called once the backlog drains after [Downloader.RequestQuit]
	RetryDelay time.Duration // pause before the pass that redispatches requeued songs
}

// Downloader owns the backlog and drives every song through its lanes.
type Downloader struct {
	cfg        *shared.Config
	limits     Limits
	lanes      map[models.Provider]*Lane
	transcoder services.Transcoder
	resolver   services.PlaylistResolver
	transcodes *Lane
	recovery   *RecoveryFile
	failed     *FailedList
	logger     *log.Logger
	errLog     *log.Logger
	onExit     func()
	retryDelay time.Duration
	retry      chan struct{}
	updates    chan Update

	outMu    sync.Mutex
	overflow []Update // undroppable updates waiting for room in updates
	flush    chan struct{}

	installOnce sync.Once
	installErr  error

	mu      sync.Mutex
	backlog []*models.Song
	history []*models.Song
	quit    bool
	exited  bool
	empty   chan struct{} // closed while the backlog is empty
}

// NewDownloader creates a Downloader. Nothing runs until [Downloader.Run].
func NewDownloader(opts DownloaderOpts) *Downloader {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.ErrorLog == nil {
		opts.ErrorLog = opts.Logger
	}

	empty := make(chan struct{})
	close(empty)

	d := &Downloader{
		cfg: opts.Config,
		limits: Limits{
			MaxDownloadTries: opts.Config.Queue.MaxDownloadTries,
			MaxProcessTries:  opts.Config.Queue.MaxProcessTries,
		},
		lanes:      make(map[models.Provider]*Lane),
		transcoder: opts.Transcoder,
		resolver:   opts.Resolver,
		recovery:   NewRecoveryFile(opts.Config.Downloads.RecoveryFile),
		failed:     NewFailedList(opts.Config.Downloads.FailedFile),
		logger:     opts.Logger,
		errLog:     opts.ErrorLog,
		onExit:     opts.OnExit,
		retryDelay: opts.RetryDelay,
		retry:      make(chan struct{}, 1),
		updates:    make(chan Update, updateBuffer),
		flush:      make(chan struct{}, 1),
		empty:      empty,
	}

	for _, a := range opts.Adapters {
		adapter := a
		lane := NewLane(adapter.Name(), func(ctx context.Context, s *models.Song) {
			d.download(ctx, adapter, s)
		}, d.finished)
		lane.SetLogger(d.errLog)
		d.lanes[adapter.Provider()] = lane
	}

	d.transcodes = NewLane("transcode", d.transcode, d.finished)
	d.transcodes.SetLogger(d.errLog)
	return d
}

// Updates returns the channel on which progress is reported.
//
// When it is full, status updates are dropped. Every other kind is held back and delivered in order
// once the consumer catches up.
func (d *Downloader) Updates() <-chan Update {
	return d.updates
}

// sendProgress sends an update through the channel without blocking.
func (d *Downloader) sendProgress(update Update) {
	d.outMu.Lock()
	defer d.outMu.Unlock()

	if len(d.overflow) == 0 {
		select {
		case d.updates <- update:
			return
		default:
		}
	}
	if update.Kind.Droppable() {
		return
	}

	d.overflow = append(d.overflow, update)
	select {
	case d.flush <- struct{}{}:
	default:
	}
}

// flushLoop delivers held back updates as room frees up in the channel.
func (d *Downloader) flushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.flush:
		}

		for {
			d.outMu.Lock()
			if len(d.overflow) == 0 {
				d.outMu.Unlock()
				break
			}
			next := d.overflow[0]
			d.outMu.Unlock()

			select {
			case d.updates <- next:
			case <-ctx.Done():
				return
			}

			d.outMu.Lock()
			d.overflow = d.overflow[1:]
			d.outMu.Unlock()
		}
	}
}

// Run starts every lane and blocks until ctx is done and every lane has stopped.
func (d *Downloader) Run(ctx context.Context) {
	lanes := append(lo.Values(d.lanes), d.transcodes)

	var wg sync.WaitGroup
	for _, lane := range lanes {
		wg.Add(1)
		go func(l *Lane) {
			defer wg.Done()
			l.Run(ctx)
		}(lane)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		d.retryLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		d.flushLoop(ctx)
	}()
	wg.Wait()
}

// retryLoop runs the passes requested by scheduleRetry.
func (d *Downloader) retryLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.retry:
		}

		if d.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryDelay):
			}
		}
		d.ProcessQueue()
	}
}

// DetectProvider maps a URL's hostname to the provider that serves it.
func DetectProvider(u *url.URL) (models.Provider, error) {
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, "soundcloud.com"):
		return models.SoundCloud, nil
	case strings.HasSuffix(host, "youtube.com"), strings.HasSuffix(host, "youtu.be"):
		return models.YouTube, nil
	default:
		return 0, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, u.Hostname())
	}
}

func isCollectionPath(p string) bool {
	return strings.HasPrefix(p, "/playlist") || strings.HasPrefix(p, "/channel")
}

// Add submits a URL. YouTube playlists and channels are expanded into their videos, stored under a
// folder named after the playlist.
func (d *Downloader) Add(ctx context.Context, rawURL, parentFolder string) error {
	if err := d.add(ctx, rawURL, parentFolder); err != nil {
		d.sendProgress(inputRejectedUpdate(rawURL, err))
		return err
	}
	d.ProcessQueue()
	return nil
}

func (d *Downloader) add(ctx context.Context, rawURL, parentFolder string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: couldn't parse URL %q", shared.ErrInvalidInput, rawURL)
	}

	provider, err := DetectProvider(u)
	if err != nil {
		return err
	}

	urls, folder := []string{u.String()}, parentFolder
	if provider == models.YouTube && isCollectionPath(u.Path) {
		if d.resolver == nil {
			return fmt.Errorf("%w: no playlist resolver configured", shared.ErrPlaylistNotFound)
		}

		d.sendProgress(Update{Kind: SongStatus, Message: "Getting songs from YouTube playlist..."})
		pl, err := d.resolver.ResolvePlaylist(ctx, u.String())
		if err != nil {
			d.errLog.Error("playlist lookup failed", "url", u.String(), "error", err)
			return fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
		}

		urls = pl.URLs
		folder = path.Join(parentFolder, shared.SanitizeFileName(pl.Title))
		defer d.sendProgress(playlistAddedUpdate(len(urls), pl.Title))
	}

	d.mu.Lock()
	var added []*models.Song
	for _, u := range urls {
		if d.waiting(u, folder) {
			d.logger.Debug("already in backlog", "url", u, "folder", folder)
			continue
		}
		s := models.NewSong(u, provider, folder)
		d.backlog = append(d.backlog, s)
		added = append(added, s)
	}
	if len(added) > 0 {
		d.markBusy()
	}
	d.mu.Unlock()

	for _, s := range added {
		d.sendProgress(songAddedUpdate(s.Snapshot()))
	}
	return nil
}

// waiting reports whether url is already in the backlog for folder. Callers hold d.mu.
func (d *Downloader) waiting(url, folder string) bool {
	return slices.ContainsFunc(d.backlog, func(s *models.Song) bool {
		return s.URL() == url && s.ParentFolder() == folder
	})
}

// markBusy re-arms [Downloader.Wait]. Callers hold d.mu.
func (d *Downloader) markBusy() {
	select {
	case <-d.empty:
		d.empty = make(chan struct{})
	default:
	}
}

func (d *Downloader) needsTranscode(p models.Provider) bool {
	return p.NeedsTranscode()
}

func (d *Downloader) laneFor(p models.Provider) *Lane {
	if lane, ok := d.lanes[p]; ok {
		return lane
	}
	if p == models.YouTubeMusic {
		return d.lanes[models.YouTube]
	}
	return nil
}

// finished runs after a lane is done with a song.
func (d *Downloader) finished(s *models.Song) {
	d.sendProgress(songStatusUpdate(s.Snapshot()))
	d.ProcessQueue()
}

// ProcessQueue runs one classification pass over the backlog.
func (d *Downloader) ProcessQueue() {
	d.mu.Lock()

	snapshot := slices.Clone(d.backlog)
	if err := d.recovery.Ensure(lo.Map(snapshot, func(s *models.Song, _ int) string { return s.URL() })); err != nil {
		d.logger.Warn("could not update recovery file", "error", err)
	}

	requeued := false
	for _, s := range snapshot {
		v := s.Snapshot()
		switch Classify(v, d.needsTranscode(v.Provider), d.limits) {
		case Evict:
			d.evict(s, v)
		case Requeue:
			s.Requeue()
			d.remove(s)
			d.backlog = append(d.backlog, s)
			requeued = true
			d.sendProgress(songRetryUpdate(s.Snapshot()))
		case Transcode:
			s.QueueTranscode()
			d.transcodes.Add(s)
			d.sendProgress(songStatusUpdate(s.Snapshot()))
		case Done:
			d.remove(s)
			d.history = append([]*models.Song{s}, d.history...)
			d.sendProgress(songDoneUpdate(s.Snapshot()))
		case Dispatch:
			d.dispatch(s)
		}
	}

	if err := d.recovery.Rewrite(lo.Map(d.backlog, func(s *models.Song, _ int) string { return s.URL() })); err != nil {
		d.logger.Warn("could not rewrite recovery file", "error", err)
	}

	drained := len(d.backlog) == 0
	exit := drained && d.quit && !d.exited
	if drained {
		select {
		case <-d.empty:
		default:
			close(d.empty)
		}
	}
	if exit {
		d.exited = true
	}
	d.mu.Unlock()

	switch {
	case exit:
		d.exit()
	case drained:
		d.sendProgress(queueEmptyUpdate())
	case requeued:
		d.scheduleRetry()
	}
}

// scheduleRetry asks for another pass so requeued songs are redispatched even when no lane is active.
func (d *Downloader) scheduleRetry() {
	select {
	case d.retry <- struct{}{}:
	default:
	}
}

// dispatch hands s to its provider's lane. A song no lane can serve is evicted at once. Callers hold d.mu.
func (d *Downloader) dispatch(s *models.Song) {
	lane := d.laneFor(s.Provider())
	if lane == nil {
		s.Fail(models.PhaseDownload, fmt.Sprintf("no downloader for %s", s.Provider()), false)
		d.evict(s, s.Snapshot())
		return
	}
	s.Queue()
	lane.Add(s)
	d.sendProgress(songStatusUpdate(s.Snapshot()))
}

// evict records s in the failed list and drops it. Callers hold d.mu.
func (d *Downloader) evict(s *models.Song, v models.SongView) {
	if err := d.failed.Append(v.URL, v.Display()); err != nil {
		d.logger.Error("could not record failed song", "url", v.URL, "error", err)
	}
	if v.Failure != nil {
		d.errLog.Warn("giving up on song", "url", v.URL, "phase", v.Failure.Phase, "reason", v.Failure.Reason,
			"download_tries", v.DownloadTries, "process_tries", v.ProcessTries)
	}
	d.remove(s)
	d.sendProgress(songFailedUpdate(v))
}

// remove drops s from the backlog. Callers hold d.mu.
func (d *Downloader) remove(s *models.Song) {
	d.backlog = slices.DeleteFunc(d.backlog, func(o *models.Song) bool { return o == s })
}

// Queue returns a snapshot of the backlog in order.
func (d *Downloader) Queue() []models.SongView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Map(d.backlog, func(s *models.Song, _ int) models.SongView { return s.Snapshot() })
}

// History returns the finished songs, newest first.
func (d *Downloader) History() []models.SongView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Map(d.history, func(s *models.Song, _ int) models.SongView { return s.Snapshot() })
}

// Waiting returns the songs not yet handed to any lane.
func (d *Downloader) Waiting() []models.SongView {
	return lo.Filter(d.Queue(), func(v models.SongView, _ int) bool { return v.State == models.Fresh })
}

// RequestQuit asks the downloader to exit once the backlog drains.
func (d *Downloader) RequestQuit() {
	d.mu.Lock()
	d.quit = true
	exit := len(d.backlog) == 0 && !d.exited
	if exit {
		d.exited = true
	}
	d.mu.Unlock()

	if exit {
		d.exit()
	}
}

func (d *Downloader) exit() {
	d.sendProgress(exitUpdate())
	if d.onExit != nil {
		d.onExit()
	}
}

// Seed re-submits every URL in the recovery file.
func (d *Downloader) Seed(ctx context.Context) (int, error) {
	urls, err := d.recovery.Load()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, u := range urls {
		if err := d.Add(ctx, u, ""); err != nil {
			d.logger.Warn("skipping recovered URL", "url", u, "error", err)
			continue
		}
		added++
	}
	return added, nil
}

// Wait blocks until the backlog is empty or ctx is done.
func (d *Downloader) Wait(ctx context.Context) error {
	d.mu.Lock()
	empty := d.empty
	d.mu.Unlock()

	select {
	case <-empty:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lanes reports how busy every lane is, keyed by lane name.
func (d *Downloader) Lanes() map[string]int {
	stats := make(map[string]int, len(d.lanes)+1)
	for _, l := range append(lo.Values(d.lanes), d.transcodes) {
		n := l.Pending()
		if l.Busy() {
			n++
		}
		stats[l.Name()] = n
	}
	return stats
}
