package banner

import (
	"github.com/charmbracelet/lipgloss"

	"pseudobench/internal/tui/styles"
)

const ascii = `
                          _       _                     _
  _ __  ___  ___ _  _  __| | ___ | |__  ___ _ _   __ _ | |_
 | '_ \(_-< / -_) || |/ _' |/ _ \| '_ \/ -_) ' \ / _|| ' \
 | .__//__/ \___|\_,_|\__,_|\___/|_.__/\___|_||_|\__||_||_|
 |_|                                                       `

// String returns the coloured start banner.
func String() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)
	return "\n" + style.Render(ascii) + "\n"
}
