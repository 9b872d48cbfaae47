// Package tui renders an acquisition session as a Bubble Tea program.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/starlight/internal/acquire"
	"github.com/mmcdole/starlight/internal/service"
	"github.com/mmcdole/starlight/internal/tui/styles"
)

const maxBarWidth = 60

// Model is the session view
type Model struct {
	start  tea.Cmd
	cancel context.CancelFunc // stops the session on quit
	keys   KeyMap

	spinner spinner.Model
	phase   progress.Model
	overall progress.Model
	width   int

	event    acquire.Event
	result   *acquire.Result
	alert    *acquire.Alert
	err      error
	done     bool
	quitting bool
}

// NewModel creates a view that runs one session on svc. Quitting the view
// cancels the session.
func NewModel(ctx context.Context, svc *service.UpdateService, req acquire.Request) Model {
	ctx, cancel := context.WithCancel(ctx)
	m := newModel(StartSessionCmd(ctx, svc, req))
	m.cancel = cancel
	return m
}

func newModel(start tea.Cmd) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.SpinnerStyle))
	return Model{
		start:   start,
		keys:    DefaultKeyMap(),
		spinner: sp,
		phase:   progress.New(progress.WithSolidFill(string(styles.Pink)), progress.WithoutPercentage()),
		overall: progress.New(progress.WithDefaultGradient()),
		width:   maxBarWidth,
	}
}

// Init starts the session and the spinner
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = min(msg.Width-4, maxBarWidth)
		m.phase.Width = m.width
		m.overall.Width = m.width
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SessionEventMsg:
		m.event = msg.Event
		switch msg.Event.State {
		case acquire.StateReady:
			m.result = msg.Event.Result
			m.done = true
			return m, tea.Quit
		case acquire.StateFailed:
			m.alert = msg.Event.Alert
			m.done = true
			return m, tea.Quit
		}
		return m, msg.NextCmd

	case SessionClosedMsg:
		m.done = true
		return m, tea.Quit

	case ErrMsg:
		m.err = msg
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the session
func (m Model) View() string {
	if m.quitting && !m.done {
		return styles.DimStyle.Render("Cancelled.") + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("starlight") + " " + styles.SubtitleStyle.Render("resource update") + "\n\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.ErrorStyle.Render(m.err.Error()) + "\n")
		return b.String()

	case m.alert != nil:
		body := styles.AlertTitleStyle.Render(m.alert.Title) + "\n" + m.alert.Message
		b.WriteString(styles.AlertStyle.Width(m.width).Render(body) + "\n")
		return b.String()

	case m.result != nil:
		b.WriteString(styles.SuccessStyle.Render("✓ ") + renderResult(m.result) + "\n")
		return b.String()
	}

	text := m.event.Text
	if text == "" {
		text = "Starting"
	}
	b.WriteString(m.spinner.View() + " " + styles.Truncate(text, m.width) + "\n")
	b.WriteString(m.phase.ViewAs(m.event.Loading/100) + "\n")
	b.WriteString(m.overall.ViewAs(m.event.Overall/100) + "\n\n")
	b.WriteString(styles.HelpKeyStyle.Render(m.keys.Quit.Help().Key) + " " + styles.HelpDescStyle.Render(m.keys.Quit.Help().Desc) + "\n")
	return b.String()
}

func renderResult(res *acquire.Result) string {
	parts := []string{fmt.Sprintf("Resource version %d (%s)", res.Version, res.Source)}
	if res.Offline {
		parts = append(parts, styles.DimStyle.Render("offline"))
	}
	if res.Master != nil && res.Master.EventHappening {
		parts = append(parts, styles.AccentStyle.Render(res.Master.Event.Name))
	}
	line := strings.Join(parts, "  ")
	if len(res.Assets) > 0 {
		line += "\n" + lipgloss.NewStyle().PaddingLeft(2).Render(
			styles.DimStyle.Render(strings.Join(res.Assets, "\n")))
	}
	return line
}

// Run shows the session until it ends and returns its outcome
func Run(ctx context.Context, svc *service.UpdateService, req acquire.Request) (*acquire.Result, error) {
	m := NewModel(ctx, svc, req)
	defer m.cancel()
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, fmt.Errorf("run tui: %w", err)
	}
	return Outcome(final.(Model))
}

// Outcome converts the final view state into a result or error
func Outcome(m Model) (*acquire.Result, error) {
	switch {
	case m.err != nil:
		return nil, m.err
	case m.alert != nil:
		return nil, fmt.Errorf("%s: %s", m.alert.Title, m.alert.Message)
	case m.result != nil:
		return m.result, nil
	default:
		return nil, context.Canceled
	}
}
