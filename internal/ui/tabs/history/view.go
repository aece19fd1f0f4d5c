package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/ui/components"
	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

const maxPeriodRows = 14

var allRanges = []models.TimeRange{
	models.TimeRange24Hours,
	models.TimeRange7Days,
	models.TimeRange30Days,
	models.TimeRangeAllTime,
}

// View renders the history tab.
func (m *Model) View() string {
	var body string
	switch {
	case m.loading && m.history == nil:
		body = styles.HelpStyle.Render(fmt.Sprintf("Loading %s of history...", m.timeRange))
	case m.errorMsg != "":
		body = fmt.Sprintf("%s %s", styles.ErrorTextStyle.Render("Error:"), m.errorMsg)
	case m.history == nil || !m.history.HasData():
		body = lipgloss.JoinVertical(lipgloss.Left,
			styles.HelpStyle.Render("No usage recorded in this range."),
			styles.HelpStyle.Render("Buckets are saved as usage logs are processed."),
		)
	default:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.renderSummary(),
			m.renderCostChart(),
			m.renderTokenChart(),
			m.renderPattern(),
			m.renderPeriods(),
		)
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("History")

	tabs := make([]string, len(allRanges))
	for i, r := range allRanges {
		if r == m.timeRange {
			tabs[i] = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render("[" + r.String() + "]")
		} else {
			tabs[i] = styles.HelpStyle.Render(" " + r.String() + " ")
		}
	}
	selector := strings.Join(tabs, " ") + styles.HelpStyle.Render("  (t to switch)")

	var status string
	if m.loading {
		status = styles.HelpStyle.Render("refreshing...")
	} else if !m.lastRefresh.IsZero() {
		status = styles.HelpStyle.Render("loaded " + components.FormatAgo(m.lastRefresh, time.Now()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, selector, status, "")
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func card(icon, title string, width int, body ...string) string {
	head := fmt.Sprintf("%s %s",
		lipgloss.NewStyle().Foreground(styles.Primary).Render(icon),
		styles.CardTitleStyle.Render(title),
	)
	rows := append([]string{head, ""}, body...)
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func indent(block string) []string {
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return lines
}

// periodLabel formats a bucket start for its granularity.
func periodLabel(p models.HistoryPoint) string {
	if p.Granularity == models.GranularityHour {
		return p.PeriodStart.Local().Format("Jan 2 15:04")
	}
	return p.PeriodStart.Local().Format("Mon Jan 2")
}

func (m *Model) renderSummary() string {
	h := m.history
	avg := h.TotalCost / float64(len(h.Points))
	unit := "day"
	if m.timeRange.Granularity() == models.GranularityHour {
		unit = "hour"
	}

	return card("◈", "Summary "+m.timeRange.String(), m.cardWidth(),
		fmt.Sprintf("  Cost      %s", lipgloss.NewStyle().Bold(true).Render(components.FormatCost(h.TotalCost))),
		fmt.Sprintf("  Tokens    %s", components.FormatTokens(h.TotalTokens)),
		fmt.Sprintf("  Requests  %s", components.FormatCount(h.Requests)),
		fmt.Sprintf("  Average   %s per active %s", components.FormatCost(avg), unit),
		fmt.Sprintf("  Peak      %s on %s",
			components.FormatCost(h.PeakCost),
			periodLabel(models.HistoryPoint{PeriodStart: h.PeakPeriod, Granularity: m.timeRange.Granularity()})),
	)
}

func (m *Model) renderCostChart() string {
	width := m.cardWidth()
	chart := components.RenderLineChart(m.history.Costs(), max(width-16, 30), 8,
		fmt.Sprintf("Cost (USD) per %s", strings.ToLower(granularityName(m.timeRange))))
	return card("📈", "Spend", width, indent(chart)...)
}

func (m *Model) renderTokenChart() string {
	width := m.cardWidth()
	input := make([]float64, len(m.history.Points))
	output := make([]float64, len(m.history.Points))
	for i, p := range m.history.Points {
		input[i] = float64(p.Summary.InputTokens)
		output[i] = float64(p.Summary.OutputTokens)
	}

	rows := indent(components.RenderTokenChart(input, output, max(width-16, 30), 6, "Input vs output tokens"))
	rows = append(rows, "", "  "+components.RenderLegend([]components.LegendItem{
		{Label: "input", Color: components.ChartInputColor},
		{Label: "output", Color: components.ChartOutputColor},
	}))
	return card("≋", "Tokens", width, rows...)
}

// renderPattern shows spend by clock hour for the 24 hour range and by
// weekday otherwise.
func (m *Model) renderPattern() string {
	if m.timeRange.Granularity() == models.GranularityHour {
		hours := make([]float64, 24)
		for _, p := range m.history.Points {
			hours[p.PeriodStart.Local().Hour()] += p.Summary.TotalCostUSD
		}
		return card("🕐", "Hourly Pattern", m.cardWidth(), "  "+components.RenderHourlyHeatmap(hours))
	}

	days := make([]float64, 7)
	for _, p := range m.history.Points {
		days[p.PeriodStart.Local().Weekday()] += p.Summary.TotalCostUSD
	}
	return card("📅", "Weekday Pattern", m.cardWidth(), "  "+components.RenderWeekdayPattern(days))
}

func (m *Model) renderPeriods() string {
	points := m.history.Points
	header := styles.TableHeaderStyle.Render(fmt.Sprintf("  %-14s %11s %9s %9s  %s", "Period", "Cost", "Tokens", "Requests", "Top model"))
	rows := []string{header}

	for i := len(points) - 1; i >= 0 && len(rows) <= maxPeriodRows; i-- {
		p := points[i]
		rows = append(rows, fmt.Sprintf("  %-14s %11s %9s %9s  %s",
			periodLabel(p),
			components.FormatCost(p.Summary.TotalCostUSD),
			components.FormatTokens(p.Summary.TotalTokens()),
			components.FormatCount(p.Summary.RequestCount),
			topModel(p.Summary.ModelDistribution),
		))
	}
	if extra := len(points) - maxPeriodRows; extra > 0 {
		rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf("  %d older periods not shown", extra)))
	}
	return card("▤", "Periods", m.cardWidth(), rows...)
}

func granularityName(r models.TimeRange) string {
	if r.Granularity() == models.GranularityHour {
		return "Hour"
	}
	return "Day"
}

// topModel picks the most requested model, breaking ties by name.
func topModel(dist map[string]int64) string {
	best, bestN := "", int64(-1)
	for name, n := range dist {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best
}
