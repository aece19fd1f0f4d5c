package dashboard

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/ui/components"
	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

const (
	maxSessionRows = 6
	maxModelRows   = 5
)

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return m.renderLoading()
	}

	data := m.state.GetDashboard()
	now := m.now()
	cardWidth := max(m.width-6, 40)

	sections := []string{
		m.renderTitle(data, now),
		m.renderToday(data, cardWidth),
		m.renderBurnRate(data, cardWidth),
		m.renderBudget(data, now, cardWidth),
		m.renderModels(data, cardWidth),
		m.renderSessions(data, now, cardWidth),
	}
	if !data.Progress.Done && data.Progress.FilesTotal > 0 {
		sections = append(sections, components.RenderScanProgress(data.Progress, cardWidth))
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoading() string {
	progress := m.state.GetProgress()
	if progress.FilesTotal == 0 {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}
	content := lipgloss.JoinVertical(lipgloss.Center,
		m.spinner.ViewWithLabel(),
		"",
		components.RenderScanProgress(progress, min(max(m.width-10, 20), 60)),
	)
	return styles.CenterBoth(content, m.width, m.height)
}

func (m *Model) renderTitle(data models.DashboardData, now time.Time) string {
	title := styles.TitleStyle.Render("CCMonitor")
	subtitle := styles.HelpStyle.Render(fmt.Sprintf(
		"LLM usage monitor · updated %s · %d files tracked",
		components.FormatAgo(data.UpdatedAt, now), data.TrackedFiles,
	))
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func cardTitle(icon, title string) string {
	return fmt.Sprintf("%s %s",
		lipgloss.NewStyle().Foreground(styles.Primary).Render(icon),
		styles.CardTitleStyle.Render(title),
	)
}

func kv(label, value string) string {
	return fmt.Sprintf("  %s %s",
		lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(16).Render(label),
		value,
	)
}

func (m *Model) renderToday(data models.DashboardData, width int) string {
	today := data.Today
	rows := []string{cardTitle("◈", "Today"), ""}

	if today.IsZero() {
		rows = append(rows, styles.HelpStyle.Render("  No usage recorded today"))
	} else {
		rows = append(rows,
			kv("Cost", lipgloss.NewStyle().Bold(true).Render(components.FormatCost(today.TotalCostUSD))),
			kv("Requests", components.FormatCount(today.RequestCount)),
			kv("Tokens", fmt.Sprintf("%s  (in %s · out %s · cache w %s · cache r %s)",
				components.FormatTokens(today.TotalTokens()),
				components.FormatTokens(today.InputTokens),
				components.FormatTokens(today.OutputTokens),
				components.FormatTokens(today.CacheCreationTokens),
				components.FormatTokens(today.CacheReadTokens),
			)),
		)
		if data.TopModel != "" {
			rows = append(rows, kv("Top model", lipgloss.NewStyle().Foreground(styles.ModelColor(data.TopModel)).Render(data.TopModel)))
		}
	}

	rows = append(rows, "", styles.HelpStyle.Render(fmt.Sprintf(
		"  All time %s over %s requests",
		components.FormatCost(data.Totals.CostUSD), components.FormatCount(data.Totals.Requests),
	)))

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderBurnRate(data models.DashboardData, width int) string {
	br := data.BurnRate
	rows := []string{cardTitle("◎", "Burn Rate"), ""}

	if br.IsZero() {
		rows = append(rows, styles.HelpStyle.Render("  Idle, no requests in the burn-rate window"))
	} else {
		rows = append(rows,
			kv("Cost", fmt.Sprintf("%s  %s",
				components.FormatRate(br.CostPerMinute, "min"),
				components.FormatRate(br.CostPerHour, "h"))),
			kv("Tokens", fmt.Sprintf("%s/min", components.FormatTokens(int64(br.TokensPerMinute)))),
			kv("Projected", fmt.Sprintf("%s today · %s this month",
				components.FormatCost(br.ProjectedDailyCost),
				components.FormatCost(br.ProjectedMonthlyCost))),
		)
	}

	rows = append(rows, "", m.renderActivityChart(data, width-8))

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderActivityChart(data models.DashboardData, width int) string {
	if m.showHourly {
		return "  " + styles.HelpStyle.Render("hourly ") + components.RenderHourlyHeatmap(hourlyCosts(data.HourlySeries, m.now()))
	}
	costs := make([]float64, len(data.MinuteSeries))
	for i, b := range data.MinuteSeries {
		costs[i] = b.Summary.TotalCostUSD
	}
	if len(costs) == 0 {
		return "  " + styles.HelpStyle.Render("no per-minute activity yet")
	}
	return "  " + styles.HelpStyle.Render("per minute ") + components.RenderColoredSparkline(costs, max(width-12, 10))
}

// hourlyCosts folds hourly buckets from the last 24 hours into clock-hour slots.
func hourlyCosts(series []models.BucketUsage, now time.Time) []float64 {
	hours := make([]float64, 24)
	cutoff := now.Add(-24 * time.Hour)
	for _, b := range series {
		if b.Bucket.Start.Before(cutoff) {
			continue
		}
		hours[b.Bucket.Start.In(now.Location()).Hour()] += b.Summary.TotalCostUSD
	}
	return hours
}

func (m *Model) renderBudget(data models.DashboardData, now time.Time, width int) string {
	rows := []string{cardTitle("◆", "Budget"), ""}
	inner := width - 4

	for _, b := range []struct {
		key   string
		label string
		p     models.BudgetProjection
		start time.Time
	}{
		{animDaily, "Daily", data.Budget.Daily, data.Budget.Daily.PeriodResetAt.AddDate(0, 0, -1)},
		{animMonthly, "Monthly", data.Budget.Monthly, data.Budget.Monthly.PeriodResetAt.AddDate(0, -1, 0)},
	} {
		p := b.p
		p.PercentUsed = m.displayPercent(b.key, p.PercentUsed)
		rows = append(rows, m.budgetBar.View(p, b.label, inner))
		if p.Budget > 0 {
			rows = append(rows, m.budgetBar.ViewProjection(b.p, now))
			if !p.PeriodResetAt.IsZero() {
				rows = append(rows, m.periodBar.View(b.start, p.PeriodResetAt, now, inner))
			}
		}
		rows = append(rows, "")
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows[:len(rows)-1]...))
}

func (m *Model) renderModels(data models.DashboardData, width int) string {
	rows := []string{cardTitle("▤", "Models"), ""}

	if len(data.Models) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No model usage yet"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	items := make([]components.BarItem, 0, maxModelRows)
	for _, share := range data.Models[:min(len(data.Models), maxModelRows)] {
		items = append(items, components.BarItem{
			Label: components.Truncate(share.Model, 28, false),
			Value: share.Percent,
			Text: fmt.Sprintf("%.0f%% · %s reqs · %s",
				share.Percent,
				components.FormatCount(share.Summary.RequestCount),
				components.FormatCost(share.Summary.TotalCostUSD)),
			Color: styles.ModelColor(share.Model),
		})
	}
	rows = append(rows, components.RenderBarChart(items, width-8))
	if extra := len(data.Models) - maxModelRows; extra > 0 {
		rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf("  +%d more", extra)))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderSessions(data models.DashboardData, now time.Time, width int) string {
	rows := []string{cardTitle("●", fmt.Sprintf("Sessions (%d active)", data.ActiveSessions)), ""}

	var shown []models.SessionInfo
	for _, s := range data.Sessions {
		if s.Status != models.SessionDead {
			shown = append(shown, s)
		}
	}
	if len(shown) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No live sessions"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	for _, s := range shown[:min(len(shown), maxSessionRows)] {
		status := styles.GetSessionStyle(s.Status).Width(8).Render(string(s.Status))
		project := components.Truncate(models.ProjectDisplayName(s.ProjectPath), 30, true)
		rows = append(rows, fmt.Sprintf("  %s %-10s %-30s %8s %9s  %s",
			status,
			components.Truncate(s.ID, 10, false),
			project,
			components.FormatTokens(s.TotalTokens),
			components.FormatCost(s.TotalCostUSD),
			styles.HelpStyle.Render(components.FormatAgo(s.LastActivity, now)),
		))
	}
	if extra := len(shown) - maxSessionRows; extra > 0 {
		rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf("  +%d more", extra)))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

