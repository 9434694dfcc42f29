// Package tui runs the live terminal dashboard of a benchmark run.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"pseudobench/internal/banner"
	"pseudobench/internal/runner"
	"pseudobench/internal/tui/live"
	"pseudobench/internal/tui/styles"
)

type updateMsg runner.Update

// finishedMsg is sent once the driver closed the updates channel.
type finishedMsg struct{}

type Model struct {
	Live     live.Model
	Backend  string
	Finished []runner.Update
	Quitting bool

	updates <-chan runner.Update
	cancel  context.CancelFunc
}

// NewModel follows updates until the channel is closed. cancel is called when the user quits.
func NewModel(backend string, updates <-chan runner.Update, cancel context.CancelFunc) Model {
	return Model{
		Live:    live.NewModel(),
		Backend: backend,
		updates: updates,
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func waitForUpdate(ch <-chan runner.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return finishedMsg{}
		}
		return updateMsg(u)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if m.cancel != nil {
				m.cancel()
			}
			m.Quitting = true
			return m, tea.Quit
		}

	case updateMsg:
		u := runner.Update(msg)
		if u.Phase == runner.Done {
			m.Finished = append(m.Finished, u)
		}
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(u)
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case finishedMsg:
		m.Quitting = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.Quitting {
		return fmt.Sprintf("Finished %d scenario(s).\n", len(m.Finished))
	}
	s := strings.Builder{}
	s.WriteString(banner.String())
	s.WriteString(styles.Title.Render("Pseudonym backend benchmark: " + m.Backend))
	s.WriteString("\n\n")
	s.WriteString(m.Live.View())
	s.WriteString("\n\n")
	for _, u := range m.Finished {
		s.WriteString(styles.Subtle.Render(fmt.Sprintf("done  %-28s %8d ops  %8.1f TPS",
			u.Scenario, u.Snapshot.Total(), u.Snapshot.OverallTPS())))
		s.WriteString("\n")
	}
	s.WriteString(styles.RenderKey("q", "stop the run"))
	return s.String()
}

// Run shows the dashboard until updates is closed or the user quits.
func Run(backend string, updates <-chan runner.Update, cancel context.CancelFunc) error {
	_, err := tea.NewProgram(NewModel(backend, updates, cancel), tea.WithAltScreen()).Run()
	return err
}
