package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	submit  key.Binding
	search  key.Binding
	history key.Binding
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	force   key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add url")),
		search:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "search")),
		history: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "history")),
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		force:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "process queue")),
		quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit now")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.submit, k.search, k.history, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.submit, k.search, k.history},
		{k.up, k.down, k.enter, k.back},
		{k.force, k.quit},
	}
}
