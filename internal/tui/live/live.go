// Package live renders the dashboard of the scenario that is currently running.
package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pseudobench/internal/runner"
	"pseudobench/internal/tui/components"
	"pseudobench/internal/tui/styles"
	"pseudobench/internal/workload"
)

type Model struct {
	Last     runner.Update
	Progress progress.Model

	TPSLine     components.Sparkline
	LatencyLine components.Sparkline

	Width  int
	Height int
}

func NewModel() Model {
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		TPSLine:     components.NewSparkline(40, "Interval TPS", "ops/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Worst P99", "ms", styles.Warn),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.Update:
		if msg.Scenario != m.Last.Scenario {
			m.TPSLine.Reset()
			m.LatencyLine.Reset()
		}
		if msg.Phase == runner.Running {
			m.TPSLine.Add(msg.Snapshot.LastTPS)
			m.LatencyLine.Add(worstP99(msg) / float64(time.Millisecond))
		}
		m.Last = msg
		return m, m.Progress.SetPercent(msg.Progress())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-4, 10)

		half := max(msg.Width/2-6, 10)
		m.TPSLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func worstP99(u runner.Update) float64 {
	var worst time.Duration
	for _, l := range u.Snapshot.Latency {
		worst = max(worst, l.P99)
	}
	return float64(worst)
}

func (m Model) View() string {
	u := m.Last
	if u.Scenario == "" {
		return styles.Subtle.Render("Waiting for the first scenario...")
	}
	s := strings.Builder{}

	phase := u.Phase.String()
	s.WriteString(fmt.Sprintf("Scenario %d/%d  %s  %s\n",
		u.Index+1, u.Total, styles.Value.Render(u.Scenario), styles.Phase(phase).Render("["+phase+"]")))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Elapsed %s of %s",
		u.Snapshot.Elapsed.Round(time.Second), u.MaxTime)))
	s.WriteString("\n\n")

	ignoredStyle := styles.Active
	if u.Snapshot.Ignored > 0 {
		ignoredStyle = styles.Warn
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(fmt.Sprintf("OPS: %d\nTPS: %.1f", u.Snapshot.Total(), u.Snapshot.OverallTPS())),
		styles.Box.Render(fmt.Sprintf("LAST: %.1f TPS", u.Snapshot.LastTPS)),
		styles.Box.Render(ignoredStyle.Render(fmt.Sprintf("IGNORED: %d", u.Snapshot.Ignored))),
	)
	s.WriteString(summary)
	s.WriteString("\n\n")

	var kinds []string
	for _, k := range workload.Kinds {
		lat := u.Snapshot.Latency[k]
		kinds = append(kinds, styles.Box.Render(fmt.Sprintf("%s\n%d\np50 %s\np99 %s",
			styles.Kind(k).Render(strings.ToUpper(k.String())), u.Snapshot.Counts[k], ms(lat.P50), ms(lat.P99))))
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, kinds...))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.TPSLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	return s.String()
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
