package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/user/clipengine/tui/styles"
)

// PadToWidth pads or truncates s to exactly width cells. Truncation is
// ANSI-aware and keeps double-width characters whole.
func PadToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := lipgloss.Width(s)
	if w > width {
		s = ansi.Truncate(s, width, "")
		w = lipgloss.Width(s)
	}
	if w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// StatusBar renders left-aligned status text and right-aligned key hints
// across width cells. The hints are dropped when both do not fit.
func StatusBar(status, hints string, width int) string {
	left := " " + status
	right := styles.SecondaryText.Render(hints + " ")
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return PadToWidth(left, width)
	}
	return left + strings.Repeat(" ", gap) + right
}
