// Package ui implements the live terminal display using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [QueueView] : Every song in the backlog with a live status line, plus an input for new URLs
//  2. [SearchView] : YouTube Music search results, any of which can be queued
//  3. [HistoryView] : Songs finished during this session
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Updates flow through a channel from the [tasks.Downloader], which never blocks on a slow display.
//
// The input line accepts URLs with or without a scheme, and the words queue, force and quit.
// Bindings are displayed via charmbracelet/bubbles/help.
package ui
