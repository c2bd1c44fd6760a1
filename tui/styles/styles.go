// Package styles provides Lipgloss styles for terminal output using the Ciapre colour palette.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/user/clipengine/model"
)

// Color palette - Ciapre (warm, earthy) theme from Gogh
const (
	// DeepPurple is the main background colour (Ciapre background)
	DeepPurple = lipgloss.Color("#191C27")
	// Purple is the border/dim accent colour (Ciapre ANSI 6 brown)
	Purple = lipgloss.Color("#5C4F4B")
	// BrightPurple is used for highlights and focus states (Ciapre ANSI 5 magenta)
	BrightPurple = lipgloss.Color("#724D7C")
	// Lavender is a secondary text colour (Ciapre foreground)
	Lavender = lipgloss.Color("#AEA47A")
	// LightLavender is the primary text colour (Ciapre ANSI 14 cream)
	LightLavender = lipgloss.Color("#F3DBB2")
	// Pink is an accent colour for headers (Ciapre ANSI 13 bright magenta)
	Pink = lipgloss.Color("#D33061")
	// Cyan is an accent colour for in-flight work (Ciapre ANSI 12 bright blue)
	Cyan = lipgloss.Color("#3097C6")
	// Amber marks cache hits and pending work (Ciapre derived)
	Amber = lipgloss.Color("#CC8B3F")
	// Red is used for failures (Ciapre ANSI 1)
	Red = lipgloss.Color("#AC3835")
	// Green is used for indexed clips (Ciapre ANSI 2)
	Green = lipgloss.Color("#A6A75D")
)

// Header is the style for section titles
var Header = lipgloss.NewStyle().
	Foreground(Pink).
	Bold(true)

// Border is the style for bordered panels
var Border = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Purple)

// PrimaryText is the style for primary text content
var PrimaryText = lipgloss.NewStyle().
	Foreground(LightLavender)

// SecondaryText is the style for less prominent text
var SecondaryText = lipgloss.NewStyle().
	Foreground(Lavender)

// Warning is the style for warning messages
var Warning = lipgloss.NewStyle().
	Foreground(Red).
	Bold(true)

// Success is the style for success messages
var Success = lipgloss.NewStyle().
	Foreground(Green).
	Bold(true)

// Cached marks results served from the content cache
var Cached = lipgloss.NewStyle().
	Foreground(Amber)

// State returns the style for a request state.
func State(s model.State) lipgloss.Style {
	switch s {
	case model.StateIndexed:
		return Success
	case model.StateFailed:
		return Warning
	case model.StateCutting, model.StateCut:
		return lipgloss.NewStyle().Foreground(Cyan)
	}
	return SecondaryText
}

// StateIcon is the single-cell marker shown next to a request.
func StateIcon(s model.State) string {
	switch s {
	case model.StateIndexed:
		return "✓"
	case model.StateFailed:
		return "✗"
	case model.StateCutting:
		return "◐"
	case model.StateCut:
		return "●"
	case model.StateMapped:
		return "○"
	}
	return "·"
}
