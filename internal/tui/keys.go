package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit         key.Binding
	Help         key.Binding
	TabNext      key.Binding
	TabPrev      key.Binding
	Enter        key.Binding
	Back         key.Binding
	StartStop    key.Binding
	Restart      key.Binding
	Mode         key.Binding
	TestSingle   key.Binding
	TestAll      key.Binding
	CloseConn    key.Binding
	CloseAll     key.Binding
	ClearHistory key.Binding
	ShowHistory  key.Binding
	Sort         key.Binding
	Search       key.Binding
	Refresh      key.Binding
	Update       key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	TabNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next tab"),
	),
	TabPrev: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev tab"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	StartStop: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start/stop"),
	),
	Restart: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "restart"),
	),
	Mode: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "cycle mode"),
	),
	TestSingle: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "test delay"),
	),
	TestAll: key.NewBinding(
		key.WithKeys("T"),
		key.WithHelp("T", "test all"),
	),
	CloseConn: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "close conn"),
	),
	CloseAll: key.NewBinding(
		key.WithKeys("X"),
		key.WithHelp("X", "close all"),
	),
	ClearHistory: key.NewBinding(
		key.WithKeys("C"),
		key.WithHelp("C", "clear history"),
	),
	ShowHistory: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "live/history"),
	),
	Sort: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "sort"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Update: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "update sub"),
	),
}

// ShortHelp returns a compact list for the help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TabNext, k.StartStop, k.Mode, k.TestSingle, k.Search, k.Help, k.Quit}
}

// FullHelp returns grouped bindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TabNext, k.TabPrev, k.Enter, k.Back},
		{k.StartStop, k.Restart, k.Mode, k.Refresh},
		{k.TestSingle, k.TestAll, k.Update},
		{k.CloseConn, k.CloseAll, k.ClearHistory, k.ShowHistory, k.Sort, k.Search},
		{k.Help, k.Quit},
	}
}
