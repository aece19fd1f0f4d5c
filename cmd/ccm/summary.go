package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/services"
	"github.com/AgentsMesh/CCMonitor/internal/ui/components"
)

const summaryProjects = 10

// printSummary writes the --once report.
func printSummary(w io.Writer, d models.DashboardData, diag services.Diagnostics) {
	fmt.Fprintf(w, "Scanned %d files, %d entries (%d lines skipped, %d duplicates)\n",
		diag.TrackedFiles, diag.Aggregate.Processed, diag.Parse.Skipped(), diag.Aggregate.Duplicates)
	fmt.Fprintf(w, "Pricing: %s (%d models)\n\n", diag.PricingSource, diag.PricingModels)

	fmt.Fprintf(w, "Today     %s  %s tokens  %s requests\n",
		components.FormatCost(d.Today.TotalCostUSD),
		components.FormatTokens(d.Today.TotalTokens()),
		components.FormatCount(d.Today.RequestCount))
	fmt.Fprintf(w, "All time  %s  %s tokens  %s requests\n",
		components.FormatCost(d.Totals.CostUSD),
		components.FormatTokens(d.Totals.Tokens),
		components.FormatCount(d.Totals.Requests))

	if !d.BurnRate.IsZero() {
		fmt.Fprintf(w, "Burn rate %s  %s  projected %s today\n",
			components.FormatRate(d.BurnRate.CostPerMinute, "min"),
			components.FormatRate(d.BurnRate.CostPerHour, "h"),
			components.FormatCost(d.BurnRate.ProjectedDailyCost))
	}
	for _, b := range []models.BudgetProjection{d.Budget.Daily, d.Budget.Monthly} {
		if b.Budget <= 0 {
			continue
		}
		fmt.Fprintf(w, "Budget    %-7s %s of %s (%.0f%%, %s)\n",
			b.Period,
			components.FormatCost(b.Spent),
			components.FormatCost(b.Budget),
			b.PercentUsed,
			b.Status)
	}

	if len(d.Models) > 0 {
		fmt.Fprintln(w)
		t := newTable("Model", "Requests", "Share", "Cost")
		for _, m := range d.Models {
			t.Row(m.Model,
				components.FormatCount(m.Summary.RequestCount),
				fmt.Sprintf("%.1f%%", m.Percent),
				components.FormatCost(m.Summary.TotalCostUSD))
		}
		fmt.Fprintln(w, t.Render())
	}

	if len(d.Projects) > 0 {
		fmt.Fprintln(w)
		t := newTable("Project", "Cost", "Tokens", "Requests")
		for _, p := range d.Projects[:min(len(d.Projects), summaryProjects)] {
			t.Row(components.Truncate(p.DisplayName, 48, true),
				components.FormatCost(p.TotalCostUSD),
				components.FormatTokens(p.TotalTokens),
				components.FormatCount(p.RequestCount))
		}
		fmt.Fprintln(w, t.Render())
		if extra := len(d.Projects) - summaryProjects; extra > 0 {
			fmt.Fprintf(w, "... and %d more projects\n", extra)
		}
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...)
}
