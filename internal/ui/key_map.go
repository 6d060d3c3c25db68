package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter  key.Binding
	back   key.Binding
	toggle key.Binding
	yes    key.Binding
	no     key.Binding
	filter key.Binding
	rarity key.Binding
	search key.Binding
	image  key.Binding
	reload key.Binding
	open   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open set")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		toggle: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "toggle variant")),
		yes:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "uncheck")),
		no:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "keep")),
		filter: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "completion")),
		rarity: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rarity")),
		search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		image:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "image")),
		reload: key.NewBinding(key.WithKeys("I"), key.WithHelp("I", "refetch image")),
		open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open image")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.enter, k.back, k.toggle},
		{k.yes, k.no, k.filter, k.rarity},
		{k.search, k.image, k.reload, k.open, k.quit},
	}
}
