// Package theme provides the Lip Gloss palette and shared styles for the
// matchmaker TUI. It is a leaf package with no internal imports.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorDisconnected = lipgloss.Color("#dc2626")
)

// Queue colors.
var (
	ColorSearching = lipgloss.Color("#2563eb")
	ColorMatched   = lipgloss.Color("#a855f7")
	ColorTimedOut  = lipgloss.Color("#854d0e")
)

// Presence colors.
var (
	ColorIdle    = lipgloss.Color("#16a34a")
	ColorInMatch = lipgloss.Color("#7c3aed")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// ConnectionColor returns the color for a connection status name.
func ConnectionColor(status string) lipgloss.Color {
	switch status {
	case "connected":
		return ColorConnected
	case "connecting":
		return ColorConnecting
	case "disconnected":
		return ColorDisconnected
	default:
		return ColorDefault
	}
}

// PresenceColor returns the color for a roster presence.
func PresenceColor(presence string) lipgloss.Color {
	switch presence {
	case "idle":
		return ColorIdle
	case "in_match":
		return ColorInMatch
	default:
		return ColorDefault
	}
}

// ConnectionGlyph returns a glyph for a connection status name.
func ConnectionGlyph(status string) string {
	switch status {
	case "connected":
		return "●"
	case "connecting":
		return "◌"
	default:
		return "○"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)
