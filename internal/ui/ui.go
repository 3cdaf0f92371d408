package ui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/services"
	"github.com/desertthunder/songdl/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	SearchView
	HistoryView
)

// chrome is the number of lines around the song list: title, progress, output, input and help.
const chrome = 9

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	downloader *tasks.Downloader
	searcher   services.Searcher
	width      int
	height     int
	input      textinput.Model
	spinner    spinner.Model
	progress   progress.Model
	songs      viewport.Model
	results    list.Model
	history    list.Model
	active     map[string]models.SongView
	order      []string
	finished   int
	failed     int
	output     string
	outputErr  bool
	searching  bool
	exited     bool
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model. searcher may be nil, which disables search.
func NewModel(ctx context.Context, downloader *tasks.Downloader, searcher services.Searcher) *Model {
	input := textinput.New()
	input.Placeholder = "paste a YouTube or SoundCloud link, or type a search and press ctrl+s"
	input.Prompt = "> "
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.warn))

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "Downloaded this session"

	return &Model{
		ctx:        ctx,
		view:       QueueView,
		downloader: downloader,
		searcher:   searcher,
		input:      input,
		spinner:    sp,
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		songs:      viewport.New(80, 10),
		results:    results,
		history:    history,
		active:     make(map[string]models.SongView),
		output:     "Waiting for songs",
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init starts the cursor, the spinner, and the wait for downloader updates.
func (m *Model) Init() tea.Cmd {
	m.seedQueue()
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForUpdate())
}

// seedQueue shows songs that were added before the display started.
func (m *Model) seedQueue() {
	for _, v := range m.downloader.Queue() {
		m.track(v)
	}
	m.refreshSongs()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshSongs()
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInput(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDownloaderUpdate:
		update := msg.data.(tasks.Update)
		m.apply(update)
		if update.Kind == tasks.Exit {
			m.exited = true
			return m, tea.Quit
		}
		return m, m.waitForUpdate()

	case MsgUpdatesClosed:
		return m, nil

	case MsgInputHandled:
		res := msg.data.(inputResult)
		switch {
		case res.err != nil:
			m.setOutput(res.err.Error(), true)
		case res.message != "":
			m.setOutput(res.message, false)
		}
		return m, nil

	case MsgSearchDone:
		res := msg.data.(searchResult)
		m.searching = false
		if res.err != nil {
			m.setOutput(fmt.Sprintf("Search failed: %v", res.err), true)
			return m, nil
		}
		if len(res.tracks) == 0 {
			m.setOutput(fmt.Sprintf("No songs found for %q", res.query), true)
			return m, nil
		}

		items := make([]list.Item, len(res.tracks))
		for i, tr := range res.tracks {
			items[i] = trackItem{track: tr}
		}
		m.results.SetItems(items)
		m.results.Title = fmt.Sprintf("Results for %q", res.query)
		m.results.ResetSelected()
		m.view = SearchView
		return m, nil
	}
	return m, nil
}

// apply folds a downloader update into the display state.
func (m *Model) apply(update tasks.Update) {
	switch update.Kind {
	case tasks.SongAdded, tasks.SongStatus:
		if update.Song.ID == "" {
			m.setOutput(update.Message, false)
			break
		}
		m.track(update.Song)
	case tasks.SongRetry:
		m.track(update.Song)
		m.setOutput(fmt.Sprintf("%s: %s", update.Song.Display(), update.Message), true)
	case tasks.SongDone:
		m.untrack(update.Song.ID)
		m.finished++
		m.history.InsertItem(0, songItem{song: update.Song})
		m.setOutput(fmt.Sprintf("%s: %s", update.Song.Display(), update.Message), false)
	case tasks.SongFailed:
		m.untrack(update.Song.ID)
		m.failed++
		m.setOutput(fmt.Sprintf("%s: %s", update.Song.Display(), update.Message), true)
	case tasks.QueueEmpty:
		m.setOutput(update.Message, false)
	case tasks.InputRejected:
		m.setOutput(update.Message, true)
	case tasks.Exit:
		m.setOutput(update.Message, false)
	}
	m.refreshSongs()
}

func (m *Model) track(v models.SongView) {
	if _, ok := m.active[v.ID]; !ok {
		m.order = append(m.order, v.ID)
	}
	m.active[v.ID] = v
}

func (m *Model) untrack(id string) {
	delete(m.active, id)
	m.order = slices.DeleteFunc(m.order, func(o string) bool { return o == id })
}

func (m *Model) setOutput(s string, isErr bool) {
	m.output, m.outputErr = s, isErr
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(width-4, 10)
	m.progress.Width = min(max(width-20, 10), 60)
	m.songs.Width = width
	m.songs.Height = max(height-chrome, 3)
	m.results.SetSize(width-4, height-4)
	m.history.SetSize(width-4, height-4)
	m.refreshSongs()
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.submit):
		line := m.input.Value()
		m.input.Reset()
		return m, m.handleInput(line)
	case key.Matches(msg, m.keys.search):
		query := strings.TrimSpace(m.input.Value())
		if query == "" || m.searcher == nil || m.searching {
			return m, nil
		}
		m.input.Reset()
		m.searching = true
		m.setOutput(fmt.Sprintf("Searching for %q...", query), false)
		return m, m.search(query)
	case key.Matches(msg, m.keys.history):
		m.view = HistoryView
		return m, nil
	case key.Matches(msg, m.keys.force):
		return m, m.handleInput("force")
	case key.Matches(msg, m.keys.up), key.Matches(msg, m.keys.down):
		if msg.Type == tea.KeyUp || msg.Type == tea.KeyDown {
			var cmd tea.Cmd
			m.songs, cmd = m.songs.Update(msg)
			return m, cmd
		}
	}
	return m.updateInput(msg)
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.results.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.view = QueueView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.view = QueueView
		if item, ok := m.results.SelectedItem().(trackItem); ok {
			return m, m.handleInput(item.track.URL)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.back) || key.Matches(msg, m.keys.history) {
		m.view = QueueView
		return m, nil
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m *Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != QueueView {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleInput runs a line of input off the UI goroutine, since adding a playlist hits the network.
func (m *Model) handleInput(line string) tea.Cmd {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return func() tea.Msg {
		message, err := m.downloader.Handle(m.ctx, line)
		return inputHandledMsg(message, err)
	}
}

func (m *Model) search(query string) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.searcher.Search(m.ctx, query)
		return searchDoneMsg(query, tracks, err)
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.downloader.Updates()
	return func() tea.Msg {
		select {
		case update, ok := <-updates:
			if !ok {
				return updatesClosedMsg()
			}
			return downloaderUpdateMsg(update)
		case <-m.ctx.Done():
			return updatesClosedMsg()
		}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SearchView:
		return m.renderSearch()
	case HistoryView:
		return m.renderHistory()
	default:
		return m.renderQueue()
	}
}

func (m *Model) renderQueue() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("songdl"))
	b.WriteString("  ")
	b.WriteString(styles.help.Render(m.laneSummary()))
	b.WriteString("\n")

	total := m.finished + m.failed + len(m.order)
	percent := 0.0
	if total > 0 {
		percent = float64(m.finished+m.failed) / float64(total)
	}
	fmt.Fprintf(&b, "%s  %d done · %d failed · %d in queue\n\n",
		m.progress.ViewAs(percent), m.finished, m.failed, len(m.order))

	b.WriteString(m.songs.View())
	b.WriteString("\n\n")

	output := m.output
	if m.searching {
		output = m.spinner.View() + " " + output
	}
	if m.outputErr {
		b.WriteString(styles.err.Render(output))
	} else {
		b.WriteString(styles.ok.Render(output))
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// laneSummary lists the songs not yet handed to a lane and how busy each lane is.
func (m *Model) laneSummary() string {
	stats := m.downloader.Lanes()
	parts := []string{fmt.Sprintf("%d waiting", len(m.downloader.Waiting()))}
	for _, name := range slices.Sorted(maps.Keys(stats)) {
		parts = append(parts, fmt.Sprintf("%s %d", name, stats[name]))
	}
	return strings.Join(parts, " · ")
}

// refreshSongs re-renders the song lines into the viewport.
func (m *Model) refreshSongs() {
	if len(m.order) == 0 {
		m.songs.SetContent(styles.help.Render("No songs in the queue"))
		return
	}

	lines := make([]string, 0, len(m.order))
	for _, id := range m.order {
		lines = append(lines, m.renderSong(m.active[id]))
	}
	m.songs.SetContent(strings.Join(lines, "\n"))
}

func (m *Model) renderSong(v models.SongView) string {
	marker := "  "
	switch {
	case v.State == models.Downloading || v.State == models.Transcoding:
		marker = m.spinner.View() + " "
	case v.State == models.Failed:
		marker = styles.err.Render("✗") + " "
	}

	status := v.Status
	if v.State == models.Failed {
		status = styles.warn.Render(status)
	} else {
		status = styles.help.Render(status)
	}

	name := v.Display()
	if v.ParentFolder != "" {
		name = v.ParentFolder + "/" + name
	}
	return fmt.Sprintf("%s%s  %s", marker, name, status)
}

func (m *Model) renderSearch() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.results.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderHistory() string {
	if len(m.history.Items()) == 0 {
		return styles.box.Render("Nothing downloaded yet") + "\n\n" +
			m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	}
	return fmt.Sprintf("%s\n\n%s", m.history.View(), m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
}

// Exited reports whether the display closed because the downloader finished after a quit request.
func (m *Model) Exited() bool { return m.exited }
