package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/binder/internal/tracker"
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
	MsgTrackerUpdate MsgKind = iota
	MsgUpdatesClosed
	MsgImageResolved
	MsgTick
	MsgToggled
	MsgImageOpened
)

// trackerUpdateMsg is the constructor for [MsgTrackerUpdate]
func trackerUpdateMsg(u tracker.Update) Msg {
	return Msg{kind: MsgTrackerUpdate, data: u}
}

// imageResolvedMsg is the constructor for [MsgImageResolved]
func imageResolvedMsg(card string, url string) Msg {
	return Msg{
		kind: MsgImageResolved,
		data: struct {
			card string
			url  string
		}{card, url},
	}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// toggledMsg is the constructor for [MsgToggled]
func toggledMsg(err error) Msg {
	return Msg{kind: MsgToggled, data: err}
}

// imageOpenedMsg is the constructor for [MsgImageOpened]
func imageOpenedMsg(err error) Msg {
	return Msg{kind: MsgImageOpened, data: err}
}
