package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/starlight/internal/acquire"
)

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e ErrMsg) Unwrap() error { return e.Err }

// SessionEventMsg carries one event of the acquisition session
type SessionEventMsg struct {
	Event   acquire.Event
	NextCmd tea.Cmd // Continuation command reading the next event
}

// SessionClosedMsg signals that the event channel closed
type SessionClosedMsg struct{}
