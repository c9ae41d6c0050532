package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Roomlink dashboard colors
var (
	ColorBackground   = lipgloss.Color("#0f0f0f")
	ColorSurface      = lipgloss.Color("#161616")
	ColorSurfaceLight = lipgloss.Color("#1a1a1a")
	ColorBorder       = lipgloss.Color("#2a2a2a")

	// Accent (Teal)
	ColorAccent    = lipgloss.Color("#14b8a6")
	ColorAccentDim = lipgloss.Color("#0f766e")

	ColorSuccess = lipgloss.Color("#30d158")
	ColorWarning = lipgloss.Color("#ffd60a")
	ColorError   = lipgloss.Color("#ff453a")
	ColorInfo    = lipgloss.Color("#64d2ff")

	ColorTextPrimary   = lipgloss.Color("#ffffff")
	ColorTextSecondary = lipgloss.Color("#d0d0d0")
	ColorTextMuted     = lipgloss.Color("#808080")
)

// Theme contains the styled components used by the dashboard
type Theme struct {
	Panel lipgloss.Style

	Logo    lipgloss.Style
	LogoDot lipgloss.Style

	Title      lipgloss.Style
	Label      lipgloss.Style
	Value      lipgloss.Style
	ValueMuted lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusInfo    lipgloss.Style

	TableHeader lipgloss.Style
	TableRow    lipgloss.Style

	EventTime lipgloss.Style
	EventText lipgloss.Style

	Help    lipgloss.Style
	HelpKey lipgloss.Style
	Spinner lipgloss.Style
}

// NewTheme creates the roomlink themed styles
func NewTheme() *Theme {
	t := &Theme{}

	t.Panel = lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	t.Logo = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorTextPrimary)

	t.LogoDot = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	t.Title = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	t.Label = lipgloss.NewStyle().
		Foreground(ColorTextSecondary)

	t.Value = lipgloss.NewStyle().
		Foreground(ColorTextPrimary)

	t.ValueMuted = lipgloss.NewStyle().
		Foreground(ColorTextMuted)

	t.StatusSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	t.StatusError = lipgloss.NewStyle().Foreground(ColorError)
	t.StatusWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	t.StatusInfo = lipgloss.NewStyle().Foreground(ColorInfo)

	t.TableHeader = lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Bold(true)

	t.TableRow = lipgloss.NewStyle().
		Foreground(ColorTextPrimary)

	t.EventTime = lipgloss.NewStyle().
		Foreground(ColorTextMuted).
		Width(9)

	t.EventText = lipgloss.NewStyle().
		Foreground(ColorTextSecondary)

	t.Help = lipgloss.NewStyle().Foreground(ColorTextMuted)
	t.HelpKey = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	t.Spinner = lipgloss.NewStyle().Foreground(ColorAccent)

	return t
}

// DefaultTheme is the global theme instance
var DefaultTheme = NewTheme()

// StatusDot returns a colored status indicator dot
func StatusDot(healthy bool) string {
	if healthy {
		return DefaultTheme.StatusSuccess.Render("●")
	}
	return DefaultTheme.StatusError.Render("●")
}

// RenderKeyHelp renders a key binding hint
func RenderKeyHelp(key, label string) string {
	return DefaultTheme.HelpKey.Render(key) + " " + DefaultTheme.Help.Render(label)
}

// HorizontalLine creates a horizontal divider
func HorizontalLine(width int) string {
	return lipgloss.NewStyle().Foreground(ColorBorder).Render(strings.Repeat("─", width))
}
