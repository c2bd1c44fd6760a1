package forms

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/clipengine/tui/styles"
)

// Theme returns a huh theme that matches the report palette.
func Theme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Base = t.Focused.Base.
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.BrightPurple).
		PaddingLeft(1)
	t.Focused.Title = styles.Header
	t.Focused.Description = styles.SecondaryText
	t.Focused.ErrorIndicator = lipgloss.NewStyle().Foreground(styles.Pink).Bold(true)
	t.Focused.ErrorMessage = lipgloss.NewStyle().Foreground(styles.Pink)

	selector := lipgloss.NewStyle().SetString("▸ ").Foreground(styles.Cyan)
	t.Focused.SelectSelector = selector
	t.Focused.MultiSelectSelector = selector
	t.Focused.Option = styles.PrimaryText
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(styles.Cyan)
	t.Focused.SelectedPrefix = lipgloss.NewStyle().SetString("[✓] ").Foreground(styles.Cyan)
	t.Focused.UnselectedOption = styles.SecondaryText
	t.Focused.UnselectedPrefix = lipgloss.NewStyle().SetString("[ ] ").Foreground(styles.Lavender)

	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(styles.Cyan)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(styles.Purple)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(styles.Cyan)
	t.Focused.TextInput.Text = styles.PrimaryText

	t.Focused.FocusedButton = lipgloss.NewStyle().
		Background(styles.BrightPurple).
		Foreground(styles.LightLavender).
		Bold(true).
		Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().
		Background(styles.Purple).
		Foreground(styles.Lavender).
		Padding(0, 1)
	t.Focused.Next = t.Focused.FocusedButton

	// Blurred fields stay readable but recede.
	t.Blurred = t.Focused
	t.Blurred.Base = t.Blurred.Base.BorderStyle(lipgloss.HiddenBorder())
	t.Blurred.Title = styles.SecondaryText
	t.Blurred.Description = lipgloss.NewStyle().Foreground(styles.Purple)
	t.Blurred.SelectSelector = lipgloss.NewStyle().SetString("  ")
	t.Blurred.MultiSelectSelector = lipgloss.NewStyle().SetString("  ")
	t.Blurred.TextInput.Cursor = lipgloss.NewStyle().Foreground(styles.Purple)
	t.Blurred.TextInput.Text = styles.SecondaryText

	return t
}
