package app

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

// Styles holds the styles used by the root model for chrome around the tabs.
type Styles struct {
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style
	StatusBar   lipgloss.Style

	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	Content   lipgloss.Style
	Spinner   lipgloss.Style
	Toast     lipgloss.Style
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
	Warning   lipgloss.Style
}

// DefaultStyles derives the chrome styles from the shared palette.
func DefaultStyles() Styles {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}

	return Styles{
		TabBar: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(styles.Subtle),
		ActiveTab:   fg(styles.Primary).Bold(true).Padding(0, 2),
		InactiveTab: fg(styles.TextMuted).Padding(0, 2),
		StatusBar:   fg(styles.TextSecondary).Padding(0, 1),

		NotificationSuccess: fg(styles.Success).Padding(0, 1),
		NotificationError:   fg(styles.Error).Bold(true).Padding(0, 1),
		NotificationWarning: fg(styles.Warning).Padding(0, 1),
		NotificationInfo:    fg(styles.Sonnet).Padding(0, 1),

		Content:   lipgloss.NewStyle().Padding(1, 2),
		Spinner:   fg(styles.Primary),
		Toast:     styles.ToastStyle,
		Title:     fg(styles.Primary).Bold(true),
		Subtle:    fg(styles.TextMuted),
		Highlight: fg(styles.Secondary).Bold(true),
		Warning:   styles.WarningTextStyle.Bold(true),
	}
}
