// Package components provides reusable rendering pieces for terminal output.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/user/clipengine/tui/styles"
)

// RenderInfoBox renders lines inside a rounded box with the title set into
// the top border:
//
//	╭─ Title ─────╮
//	│content      │
//	╰─────────────╯
//
// Lines wider than the box are truncated.
func RenderInfoBox(title string, contentLines []string, width int) string {
	if width < 4 {
		return ""
	}
	innerWidth := width - 2

	border := lipgloss.NewStyle().Foreground(styles.Purple)
	header := styles.Header.Render(" " + title + " ")

	fill := innerWidth - 1 - lipgloss.Width(header)
	if fill < 0 {
		fill = 0
	}
	lines := []string{border.Render("╭─") + header + border.Render(strings.Repeat("─", fill)+"╮")}

	for _, line := range contentLines {
		if lipgloss.Width(line) > innerWidth {
			line = ansi.Truncate(line, innerWidth-1, "…")
		}
		lines = append(lines, border.Render("│")+PadToWidth(line, innerWidth)+border.Render("│"))
	}

	lines = append(lines, border.Render("╰"+strings.Repeat("─", innerWidth)+"╯"))
	return strings.Join(lines, "\n")
}

// ProgressBar renders done/total as a bar followed by a percentage, width
// cells wide in total.
func ProgressBar(done, total, width int) string {
	barWidth := width - 5
	if barWidth < 4 {
		barWidth = 4
	}
	var pct, filled int
	if total > 0 {
		pct = done * 100 / total
		filled = min(barWidth*done/total, barWidth)
	}
	bar := lipgloss.NewStyle().Foreground(styles.Green).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(styles.Amber).Render(strings.Repeat("░", barWidth-filled))
	return bar + styles.PrimaryText.Render(fmt.Sprintf(" %3d%%", pct))
}
