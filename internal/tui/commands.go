package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/starlight/internal/acquire"
	"github.com/mmcdole/starlight/internal/service"
)

// StartSessionCmd starts an acquisition session with streaming events
func StartSessionCmd(ctx context.Context, svc *service.UpdateService, req acquire.Request) tea.Cmd {
	return func() tea.Msg {
		events, err := svc.Start(ctx, req)
		if err != nil {
			return ErrMsg{Err: err, Context: "starting update"}
		}
		return readSessionEvent(events)
	}
}

// readSessionEvent reads one event from the channel
func readSessionEvent(events <-chan acquire.Event) tea.Msg {
	e, ok := <-events
	if !ok {
		return SessionClosedMsg{}
	}
	msg := SessionEventMsg{Event: e}
	if !e.State.Terminal() {
		msg.NextCmd = listenToSessionCmd(events)
	}
	return msg
}

// listenToSessionCmd returns a command that reads the next event
func listenToSessionCmd(events <-chan acquire.Event) tea.Cmd {
	return func() tea.Msg {
		return readSessionEvent(events)
	}
}
