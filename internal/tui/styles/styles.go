package styles

import (
	"github.com/charmbracelet/lipgloss"

	"pseudobench/internal/workload"
)

// --- Palette ---
var (
	ColorPrimary   = lipgloss.Color("#7D56F4")
	ColorSecondary = lipgloss.Color("#04B575")
	ColorError     = lipgloss.Color("#FF5F87")
	ColorWarning   = lipgloss.Color("#FFAF00")
	ColorText      = lipgloss.Color("#FAFAFA")
	ColorSubtle    = lipgloss.Color("#767676")
	ColorBorder    = lipgloss.Color("#3C3C3C")
	ColorBanner    = lipgloss.Color("#5FAFFF")
)

// KindColors gives every work kind its own column colour.
var KindColors = [workload.NumKinds]lipgloss.Color{
	workload.Create: lipgloss.Color("#04B575"),
	workload.Read:   lipgloss.Color("#5FAFFF"),
	workload.Update: lipgloss.Color("#FFAF00"),
	workload.Delete: lipgloss.Color("#FF5F87"),
	workload.Ping:   lipgloss.Color("#AF87FF"),
}

var (
	Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(ColorSubtle)

	Text   = lipgloss.NewStyle().Foreground(ColorText)
	Subtle = lipgloss.NewStyle().Foreground(ColorSubtle)

	Value   = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	Active  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	Error   = lipgloss.NewStyle().Foreground(ColorError)
	Warn    = lipgloss.NewStyle().Foreground(ColorWarning)
	Success = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)

	KeyKey  = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	KeyDesc = lipgloss.NewStyle().Foreground(ColorSubtle)

	// Box is the card around every dashboard figure.
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1).
		Margin(0, 1)
)

// Kind returns the style used for kind.
func Kind(kind workload.Kind) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(KindColors[kind]).Bold(true)
}

// Phase picks the style of a driver phase label.
func Phase(name string) lipgloss.Style {
	switch name {
	case "running":
		return Active
	case "stopping":
		return Warn
	case "done":
		return Success
	default:
		return Subtle
	}
}

func RenderKey(key, desc string) string {
	return lipgloss.JoinHorizontal(lipgloss.Center,
		KeyKey.Render("<"+key+">"),
		" ",
		KeyDesc.Render(desc),
	)
}
