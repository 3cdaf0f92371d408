package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/songdl/internal/models"
)

var (
	_ list.Item = trackItem{}
	_ list.Item = songItem{}
)

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return desc
}

// songItem wraps a finished [models.SongView] to implement [list.Item].
type songItem struct {
	song models.SongView
}

func (i songItem) FilterValue() string { return i.song.Display() }
func (i songItem) Title() string       { return i.song.Display() }
func (i songItem) Description() string {
	desc := i.song.FinalPath
	if i.song.Already {
		desc = fmt.Sprintf("%s • already downloaded", desc)
	}
	return desc
}
