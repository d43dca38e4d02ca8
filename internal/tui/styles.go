package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/releasedesk/internal/activity"
	"github.com/kingrea/releasedesk/internal/order"
)

var (
	colorAccent  = lipgloss.Color("#5B8DEF")
	colorBrand   = lipgloss.Color("#F2B705")
	colorMuted   = lipgloss.Color("#888888")
	colorSubtle  = lipgloss.Color("#AAAAAA")
	colorBorder  = lipgloss.Color("#444444")
	colorSuccess = lipgloss.Color("#3DDC84")
	colorWarning = lipgloss.Color("#FFB74D")
	colorError   = lipgloss.Color("#FF6B6B")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand)
	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)
	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
	activeChipStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(colorAccent).
			Padding(0, 1)
	inactiveChipStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 1)
	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)
	statusLineStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)

func severityStyle(s activity.Severity) lipgloss.Style {
	switch s {
	case activity.SeveritySuccess:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case activity.SeverityWarning:
		return lipgloss.NewStyle().Foreground(colorWarning)
	case activity.SeverityError:
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return lipgloss.NewStyle().Foreground(colorSubtle)
	}
}

// statusLabel is the grid badge text for a status.
func statusLabel(s order.Status) string {
	switch s {
	case order.StatusPending:
		return "Pending"
	case order.StatusProcessing:
		return "Processing"
	case order.StatusReleased:
		return "Released"
	case order.StatusFailed:
		return "Failed"
	}
	return string(s)
}

func statusStyle(s order.Status) lipgloss.Style {
	switch s {
	case order.StatusProcessing:
		return lipgloss.NewStyle().Foreground(colorAccent)
	case order.StatusReleased:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case order.StatusFailed:
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}
