package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songdl/internal/models"
	"github.com/desertthunder/songdl/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgDownloaderUpdate MsgKind = iota
	MsgUpdatesClosed
	MsgInputHandled
	MsgSearchDone
)

type inputResult struct {
	message string
	err     error
}

type searchResult struct {
	query  string
	tracks []models.Track
	err    error
}

// downloaderUpdateMsg is the constructor for [MsgDownloaderUpdate]
func downloaderUpdateMsg(update tasks.Update) Msg {
	return Msg{kind: MsgDownloaderUpdate, data: update}
}

// updatesClosedMsg is the constructor for [MsgUpdatesClosed]
func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}

// inputHandledMsg is the constructor for [MsgInputHandled]
func inputHandledMsg(message string, err error) Msg {
	return Msg{kind: MsgInputHandled, data: inputResult{message, err}}
}

// searchDoneMsg is the constructor for [MsgSearchDone]
func searchDoneMsg(query string, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSearchDone, data: searchResult{query, tracks, err}}
}
