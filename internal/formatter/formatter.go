// package formatter renders search results, the backlog, and the failed list as tables, CSV, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/shared"
	"github.com/desertthunder/songdl/internal/tasks"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxCellWidth = 60

// TracksToCSV converts search results to CSV with columns: #, Title, Artist, Album, URL
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"#", "Title", "Artist", "Album", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range tracks {
		record := []string{strconv.Itoa(i + 1), track.Title, track.Artist, track.Album, track.URL}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// TracksToText converts search results to a numbered plain text list
func TracksToText(tracks []models.Track) []byte {
	var buf bytes.Buffer
	for i, track := range tracks {
		line := fmt.Sprintf("%d. %s - %s", i+1, track.Artist, track.Title)
		if track.Album != "" {
			line += fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%s\n   %s\n", line, track.URL)
	}
	return buf.Bytes()
}

// TracksToJSON converts search results to indented JSON
func TracksToJSON(tracks []models.Track) ([]byte, error) {
	if tracks == nil {
		tracks = []models.Track{}
	}
	return json.MarshalIndent(tracks, "", "  ")
}

// WriteTracksExport writes search results to path, choosing CSV, JSON or text from its extension.
func WriteTracksExport(tracks []models.Track, path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err = TracksToCSV(tracks)
	case ".json":
		data, err = TracksToJSON(tracks)
	case ".txt", "":
		data = TracksToText(tracks)
	default:
		return fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderTracks renders search results as a table
func RenderTracks(w io.Writer, tracks []models.Track) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Title", "Artist", "Album", "URL"})
	for i, track := range tracks {
		t.AppendRow(table.Row{
			i + 1,
			shared.TruncateName(track.Title, maxCellWidth),
			shared.TruncateName(track.Artist, maxCellWidth),
			shared.TruncateName(track.Album, maxCellWidth),
			track.URL,
		})
	}
	t.Render()
}

// RenderQueue renders a backlog snapshot as a table
func RenderQueue(w io.Writer, songs []models.SongView) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Song", "Folder", "State", "Tries", "Status"})
	for i, s := range songs {
		t.AppendRow(table.Row{
			i + 1,
			shared.TruncateName(s.Display(), maxCellWidth),
			s.ParentFolder,
			stateColor(s.State).Sprint(s.State),
			fmt.Sprintf("%d/%d", s.DownloadTries, s.ProcessTries),
			s.Status,
		})
	}
	t.Render()
}

// RenderURLs renders a plain URL list, such as the recovery file, as a table
func RenderURLs(w io.Writer, urls []string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "URL"})
	for i, u := range urls {
		t.AppendRow(table.Row{i + 1, u})
	}
	t.Render()
}

// RenderFailed renders the failed list as a table
func RenderFailed(w io.Writer, entries []tasks.FailedEntry) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Song", "URL"})
	for i, e := range entries {
		t.AppendRow(table.Row{i + 1, text.FgRed.Sprint(shared.TruncateName(e.Display, maxCellWidth)), e.URL})
	}
	t.Render()
}

func stateColor(s models.State) text.Colors {
	switch s {
	case models.Processed:
		return text.Colors{text.FgGreen}
	case models.Failed:
		return text.Colors{text.FgRed}
	case models.Downloading, models.Transcoding:
		return text.Colors{text.FgCyan}
	default:
		return text.Colors{}
	}
}
