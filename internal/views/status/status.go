package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/duel-legacy/matchmaker/internal/session"
	"github.com/duel-legacy/matchmaker/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	State session.State
	Now   time.Time
	Width int
}

func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	conn := m.State.Connection.String()
	connStr := lipgloss.NewStyle().
		Foreground(theme.ConnectionColor(conn)).
		Render(theme.ConnectionGlyph(conn) + " " + connLabel(m.State.Connection))

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + m.queueLabel() + sep +
		fmt.Sprintf("%d online  %d available", len(m.State.Roster), m.State.AvailablePlayers())

	if m.State.LastError != "" {
		content += sep + theme.StyleError.Render(m.State.LastError)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func connLabel(c session.ConnectionStatus) string {
	switch c {
	case session.Connected:
		return "Connected"
	case session.Connecting:
		return "Connecting..."
	default:
		return "Disconnected"
	}
}

func (m Model) queueLabel() string {
	s := m.State
	switch {
	case s.Queue == session.Queued:
		pos := 0
		if s.QueuePosition != nil {
			pos = *s.QueuePosition
		}
		elapsed := s.SearchElapsed(m.Now).Truncate(time.Second)
		return lipgloss.NewStyle().Foreground(theme.ColorSearching).
			Render(fmt.Sprintf("Searching #%d  %s", pos, FormatElapsed(elapsed)))
	case s.Match != nil:
		return lipgloss.NewStyle().Foreground(theme.ColorMatched).
			Render("Match vs " + s.Match.Opponent)
	case s.SearchTimedOut:
		return lipgloss.NewStyle().Foreground(theme.ColorTimedOut).Render("No match found")
	}
	return theme.StyleDimmed.Render("Not queued")
}

// FormatElapsed renders d as m:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
