// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [SetListView] : Browse sets with their progress
//  2. [CardListView] : Toggle variants on the cards of one set
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union
// type. Tracker updates flow through a channel and every update makes the view re-read the store, so toggles, remote
// snapshots and confirmation timeouts all render the same way.
//
// Unchecking a variant on a complete card opens a toast that must be answered with y (uncheck) or n (keep). It
// closes on its own after the confirmation timeout and the variant stays checked.
package ui
