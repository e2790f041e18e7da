package presenter

import (
	"github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

var palette = catppuccingo.Mocha

func hex(c catppuccingo.Color) lipgloss.Color {
	return lipgloss.Color(c.Hex)
}

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(hex(palette.Mauve()))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(hex(palette.Overlay0()))
)

// Status styles, one per task.State the presenter renders.
var (
	StyleStatusRunning = lipgloss.NewStyle().Foreground(hex(palette.Yellow())).Bold(true)
	StyleStatusPaused  = lipgloss.NewStyle().Foreground(hex(palette.Peach()))
	StyleStatusSucceeded = lipgloss.NewStyle().Foreground(hex(palette.Green())).Bold(true)
	StyleStatusFailed    = lipgloss.NewStyle().Foreground(hex(palette.Red())).Bold(true)
	StyleStatusCanceled  = lipgloss.NewStyle().Foreground(hex(palette.Overlay1()))
	StyleStatusPending   = lipgloss.NewStyle().Foreground(hex(palette.Subtext0()))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(hex(palette.Text()))
	StyleHelp  = lipgloss.NewStyle().Foreground(hex(palette.Overlay0()))
)
