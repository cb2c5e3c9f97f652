package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Up             key.Binding
	Down           key.Binding
	Enter          key.Binding
	Right          key.Binding
	Back           key.Binding
	Left           key.Binding
	Select         key.Binding
	ClearSelection key.Binding
	Open           key.Binding
	Rescan         key.Binding
	Refresh        key.Binding
	Abort          key.Binding
	ReadCache      key.Binding
	WriteCache     key.Binding
	Sort           key.Binding
	Hidden         key.Binding
	Search         key.Binding
	ExtFilter      key.Binding
	SizeFilter     key.Binding
	ClearFilter    key.Binding
	Complete       key.Binding
	Help           key.Binding
	Quit           key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "expand"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "enter"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace"),
			key.WithHelp("backspace", "up"),
		),
		Left: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle select"),
		),
		ClearSelection: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "unselect all"),
		),
		Open: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "open path"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "rescan all"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh dir"),
		),
		Abort: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "abort"),
		),
		ReadCache: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "read cache"),
		),
		WriteCache: key.NewBinding(
			key.WithKeys("W"),
			key.WithHelp("W", "write cache"),
		),
		Sort: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "order"),
		),
		Hidden: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "hidden"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		ExtFilter: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "ext"),
		),
		SizeFilter: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "min size"),
		),
		ClearFilter: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear filters"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "complete path"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
