package projects

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/ui/components"
	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

// View renders the projects tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	sections := []string{m.renderTitle()}
	if m.filtering || m.filter.Value() != "" {
		sections = append(sections, m.filter.View(), "")
	}

	if len(m.state.GetProjects()) == 0 {
		sections = append(sections, m.renderEmptyState())
	} else {
		sections = append(sections, m.renderTable(), m.renderDetail())
	}
	sections = append(sections, m.renderFooter())

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Projects")

	projects := m.state.GetProjects()
	active := 0
	for _, p := range projects {
		if p.ActiveSessions > 0 {
			active++
		}
	}
	subtitle := fmt.Sprintf("%d projects · %d with live sessions", len(projects), active)
	if q := m.filter.Value(); q != "" {
		subtitle += fmt.Sprintf(" · %d match %q", len(m.visible), q)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, styles.HelpStyle.Render(subtitle), "")
}

func (m *Model) renderTable() string {
	cardWidth := max(m.width-6, 60)
	if len(m.visible) == 0 {
		return styles.CardStyle.Width(cardWidth).Render(styles.HelpStyle.Render("No projects match the filter"))
	}
	return styles.CardStyle.Width(cardWidth).Render(m.table.View())
}

func (m *Model) renderEmptyState() string {
	cardWidth := max(m.width-6, 40)

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.SubTitleStyle.Render("No Projects Yet"),
		"",
		styles.HelpStyle.Render("Usage logs are grouped by the project directory they were written under."),
		"",
	)

	return styles.CardStyle.Width(cardWidth).Render(content)
}

// renderDetail shows the selected project's models and sessions.
func (m *Model) renderDetail() string {
	p, ok := m.selectedProject()
	if !ok {
		return ""
	}
	now := m.now()

	rows := []string{
		styles.CardTitleStyle.Render(p.DisplayName),
		styles.HelpStyle.Render(p.ProjectPath),
	}

	if len(p.Models) > 0 {
		names := make([]string, len(p.Models))
		for i, name := range p.Models {
			names[i] = lipgloss.NewStyle().Foreground(styles.ModelColor(name)).Render(name)
		}
		rows = append(rows, "Models: "+strings.Join(names, ", "))
	}

	var sessions []models.SessionInfo
	for _, s := range m.state.GetDashboard().Sessions {
		if s.ProjectPath == p.ProjectPath {
			sessions = append(sessions, s)
		}
	}
	if len(sessions) > 0 {
		rows = append(rows, "")
		for _, s := range sessions[:min(len(sessions), 4)] {
			rows = append(rows, fmt.Sprintf("%s %s  %s  %s",
				styles.GetSessionStyle(s.Status).Width(6).Render(string(s.Status)),
				components.Truncate(s.ID, 12, false),
				components.FormatCost(s.TotalCostUSD),
				styles.HelpStyle.Render(components.FormatAgo(s.LastActivity, now)),
			))
		}
	}

	return lipgloss.NewStyle().Padding(0, 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderFooter() string {
	var shortcuts []string
	if m.filtering {
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Enter") + " apply",
			styles.HelpKeyStyle.Render("Esc") + " clear",
		}
	} else {
		shortcuts = []string{
			styles.HelpKeyStyle.Render("↑/↓") + " select",
			styles.HelpKeyStyle.Render("/") + " filter",
			styles.HelpKeyStyle.Render("r") + " refresh",
		}
	}

	return lipgloss.NewStyle().
		MarginTop(1).
		Foreground(styles.TextMuted).
		Render(strings.Join(shortcuts, styles.HelpSeparatorStyle.Render(" | ")))
}
