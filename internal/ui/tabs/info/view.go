package info

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/ui/components"
	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
	"github.com/AgentsMesh/CCMonitor/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderPipelineCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, pipeline counters and build information")
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

func (m *Model) card(title string, rows ...string) string {
	body := append([]string{styles.CardTitleStyle.Render(title), ""}, rows...)
	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func row(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(20).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func budgetValue(v float64) string {
	if v <= 0 {
		return "off"
	}
	return components.FormatCost(v)
}

func (m *Model) renderConfigCard() string {
	cfg := m.config
	if cfg == nil {
		return m.card("Configuration", styles.HelpStyle.Render("Configuration not loaded"))
	}

	roots := "none found"
	if len(cfg.ClaudePaths) > 0 {
		roots = strings.Join(cfg.ClaudePaths, ", ")
	}
	alerts := "off"
	if cfg.BudgetAlerts {
		alerts = "on"
	}

	return m.card("Configuration",
		row("Log roots", roots),
		row("Cache dir", cfg.CacheDir),
		row("Database", cfg.DatabasePath),
		row("Log file", cfg.LogPath()),
		row("Log level", cfg.LogLevel),
		"",
		row("Session window", cfg.SessionDuration.String()),
		row("Burn-rate window", cfg.BurnRateWindow.String()),
		row("Refresh interval", cfg.RefreshInterval.String()),
		row("Save interval", cfg.SaveInterval.String()),
		row("Pricing refresh", cfg.PricingRefreshInterval.String()),
		"",
		row("Daily budget", budgetValue(cfg.DailyBudget)),
		row("Monthly budget", budgetValue(cfg.MonthlyBudget)),
		row("Budget alerts", alerts),
	)
}

func (m *Model) renderPipelineCard() string {
	d := m.state.GetDiagnostics()
	now := m.now()

	storage := "memory only"
	if d.HasDatabase {
		storage = "sqlite"
	}
	snapshot := "none"
	if d.HasSnapshot {
		snapshot = "loaded"
	}

	rows := []string{
		row("Tracked files", components.FormatCount(int64(d.TrackedFiles))),
		row("Seen hashes", components.FormatCount(int64(d.SeenHashes))),
		row("Pricing", fmt.Sprintf("%s (%d models)", d.PricingSource, d.PricingModels)),
		row("History storage", storage),
		row("Snapshot", snapshot),
		"",
		row("Lines read", components.FormatCount(d.Parse.Lines)),
		row("Entries parsed", components.FormatCount(d.Parse.Parsed)),
		row("Lines skipped", fmt.Sprintf("%s (%s blank, %s without usage, %s undecodable, %s api errors)",
			components.FormatCount(d.Parse.Skipped()),
			components.FormatCount(d.Parse.Blank),
			components.FormatCount(d.Parse.NoUsageKeyword+d.Parse.NoUsageField),
			components.FormatCount(d.Parse.DecodeErrors),
			components.FormatCount(d.Parse.APIErrors),
		)),
		row("Aggregated", components.FormatCount(d.Aggregate.Processed)),
		row("Duplicates", components.FormatCount(d.Aggregate.Duplicates)),
		row("Bad timestamps", components.FormatCount(d.Aggregate.BadTimestamps)),
		row("Pruned buckets", components.FormatCount(d.Aggregate.PrunedBuckets)),
		row("Evicted sessions", components.FormatCount(d.Aggregate.EvictedSessions)),
	}

	if scan := m.state.GetLastScan(); scan != nil {
		rows = append(rows, "", row("Last scan", fmt.Sprintf("%d files, %d entries in %s",
			scan.Processed, scan.Entries, scan.Duration.Round(time.Millisecond))))
	}
	if alert := m.state.GetLastAlert(); alert != nil {
		p := alert.Projection
		rows = append(rows, row("Last alert", fmt.Sprintf("%s %s budget at %.0f%%, resets in %s",
			alert.Level, p.Period, p.PercentUsed, components.FormatUntil(p.PeriodResetAt, now))))
	}

	return m.card("Pipeline", rows...)
}

func (m *Model) renderAboutCard() string {
	return m.card("About CCMonitor",
		row("Version", version.GetVersion()),
		row("Build date", version.GetDate()),
		row("Git commit", version.GetCommit()),
		row("Go version", runtime.Version()),
		row("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	)
}
