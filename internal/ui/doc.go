// Package ui renders the live task watch view with Bubble Tea.
//
// The view reads snapshots from a state.Store that a poller keeps current,
// so rendering never blocks on the network. The only outbound call is the
// cancel key, which runs as a tea.Cmd.
package ui
