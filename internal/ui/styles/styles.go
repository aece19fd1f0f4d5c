// Package styles defines the visual styling for the application.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// Color definitions for the monitor theme.
var (
	// Primary colors
	Primary   = lipgloss.Color("209") // Coral
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	// Model family colors
	Opus    = lipgloss.Color("208") // Orange
	Sonnet  = lipgloss.Color("39")  // Blue
	Haiku   = lipgloss.Color("42")  // Green
	OtherAI = lipgloss.Color("141") // Lavender

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow

	// Background colors
	BgDark   = lipgloss.Color("235")
	BgLight  = lipgloss.Color("237")
	BgAccent = lipgloss.Color("236")

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")

	// ToastStyle for floating notifications.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary).
	MarginBottom(1)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().
	Margin(1, 2).
	Padding(0, 1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(1, 2).
	MarginBottom(1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// ProgressLabelStyle styles progress bar labels.
var ProgressLabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Width(20)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// HelpSeparatorStyle styles separators in help text.
var HelpSeparatorStyle = lipgloss.NewStyle().
	Foreground(Subtle)

// HelpPanelStyle creates the help overlay panel.
var HelpPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(Primary).
	Padding(1, 3).
	Background(BgDark)

// TableHeaderStyle styles table headers.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	BorderStyle(lipgloss.NormalBorder()).
	BorderBottom(true).
	BorderForeground(Subtle)

// BudgetOKStyle for spend well below budget.
var BudgetOKStyle = lipgloss.NewStyle().
	Foreground(Success)

// BudgetWarnStyle for spend approaching budget.
var BudgetWarnStyle = lipgloss.NewStyle().
	Foreground(Warning)

// BudgetOverStyle for spend at or over budget.
var BudgetOverStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true)

// SessionActiveStyle marks sessions with activity in the last few minutes.
var SessionActiveStyle = lipgloss.NewStyle().
	Foreground(Success).
	Bold(true)

// SessionIdleStyle marks sessions inside their window but quiet.
var SessionIdleStyle = lipgloss.NewStyle().
	Foreground(Warning)

// SessionDeadStyle marks expired sessions.
var SessionDeadStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

var ProjectionSafeStyle = lipgloss.NewStyle().
	Foreground(Success)

var ProjectionWarningStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Bold(true)

var ProjectionCriticalStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true)

var ProjectionUnknownStyle = lipgloss.NewStyle().
	Foreground(Subtle)

// GetBudgetStyle returns the style for a share of budget used, in percent.
func GetBudgetStyle(percentUsed float64) lipgloss.Style {
	switch {
	case percentUsed >= 100:
		return BudgetOverStyle
	case percentUsed >= 80:
		return BudgetWarnStyle
	default:
		return BudgetOKStyle
	}
}

// GetProjectionStyle returns the style for a projection status.
func GetProjectionStyle(status models.ProjectionStatus) lipgloss.Style {
	switch status {
	case models.ProjectionSafe:
		return ProjectionSafeStyle
	case models.ProjectionWarning:
		return ProjectionWarningStyle
	case models.ProjectionCritical:
		return ProjectionCriticalStyle
	default:
		return ProjectionUnknownStyle
	}
}

// GetSessionStyle returns the style for a session status.
func GetSessionStyle(status models.SessionStatus) lipgloss.Style {
	switch status {
	case models.SessionActive:
		return SessionActiveStyle
	case models.SessionIdle:
		return SessionIdleStyle
	default:
		return SessionDeadStyle
	}
}

// ModelColor picks a color by model family.
func ModelColor(model string) lipgloss.Color {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "opus"):
		return Opus
	case strings.Contains(m, "sonnet"):
		return Sonnet
	case strings.Contains(m, "haiku"):
		return Haiku
	default:
		return OtherAI
	}
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
