package tui

import "github.com/charmbracelet/lipgloss"

// Theme is the palette of the terminal client. Colors are ANSI 256 codes
// so they work on most terminals.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color

	Income  lipgloss.Color
	Expense lipgloss.Color
	Balance lipgloss.Color
	Warning lipgloss.Color
	Settled lipgloss.Color
}

// DefaultTheme suits dark terminals.
var DefaultTheme = Theme{
	NormalText:       lipgloss.Color("252"),
	FaintText:        lipgloss.Color("243"),
	HeaderForeground: lipgloss.Color("75"),
	BorderColor:      lipgloss.Color("240"),
	Income:           lipgloss.Color("42"),
	Expense:          lipgloss.Color("203"),
	Balance:          lipgloss.Color("81"),
	Warning:          lipgloss.Color("214"),
	Settled:          lipgloss.Color("36"),
}
