// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

// Series colors for token charts.
var (
	ChartInputColor  = lipgloss.Color("#4285f4")
	ChartOutputColor = lipgloss.Color("#cc785c")
	ChartCostColor   = lipgloss.Color("#D97757")
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// HeatmapBlocks are Unicode block characters for heatmaps (low to high intensity).
var HeatmapBlocks = []rune{'░', '▒', '▓', '█'}

func clampChart(width, height int) (int, int) {
	return max(width, 20), max(height, 3)
}

func maxOf(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		m = max(m, v)
	}
	if m == 0 {
		return 1
	}
	return m
}

// level maps v onto 0..steps-1 relative to peak.
func level(v, peak float64, steps int) int {
	return min(max(int((v/peak)*float64(steps-1)), 0), steps-1)
}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	width, height = clampChart(width, height)

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.Precision(2),
	)
}

// RenderTokenChart plots input and output tokens per period on one graph.
// The shorter series is padded with zeros.
func RenderTokenChart(input, output []float64, width, height int, caption string) string {
	if len(input) == 0 && len(output) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	width, height = clampChart(width, height)

	n := max(len(input), len(output))
	in := make([]float64, n)
	out := make([]float64, n)
	copy(in, input)
	copy(out, output)

	return asciigraph.PlotMany([][]float64{in, out},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
	)
}

// BarItem is one row of a horizontal bar chart.
type BarItem struct {
	Label string
	Value float64
	Text  string
	Color lipgloss.Color
}

// RenderBarChart renders labelled horizontal bars scaled to the largest value.
// Text is printed after the bar; an empty Text falls back to the raw value.
func RenderBarChart(items []BarItem, width int) string {
	if len(items) == 0 {
		return ""
	}

	values := make([]float64, len(items))
	texts := make([]string, len(items))
	labelWidth, textWidth := 0, 0
	for i, it := range items {
		values[i] = it.Value
		texts[i] = it.Text
		if texts[i] == "" {
			texts[i] = fmt.Sprintf("%.1f", it.Value)
		}
		labelWidth = max(labelWidth, lipgloss.Width(it.Label))
		textWidth = max(textWidth, lipgloss.Width(texts[i]))
	}
	peak := maxOf(values)
	barWidth := max(width-labelWidth-textWidth-4, 10)

	lines := make([]string, 0, len(items))
	for i, it := range items {
		text := texts[i]
		color := it.Color
		if color == "" {
			color = styles.Primary
		}
		n := max(int(it.Value/peak*float64(barWidth)), 0)
		bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", n))
		lines = append(lines, fmt.Sprintf("%*s │%s %s", labelWidth, it.Label, bar, text))
	}
	return strings.Join(lines, "\n")
}

// RenderHourlyHeatmap renders 24 hourly values as one colored row.
func RenderHourlyHeatmap(hours []float64) string {
	if len(hours) != 24 {
		padded := make([]float64, 24)
		copy(padded, hours)
		hours = padded
	}
	peak := maxOf(hours)
	palette := []lipgloss.Color{styles.Subtle, styles.Success, styles.Warning, styles.Error}

	var b strings.Builder
	b.WriteString("00 ")
	for i, v := range hours {
		l := level(v, peak, len(HeatmapBlocks))
		b.WriteString(lipgloss.NewStyle().Foreground(palette[l]).Render(string(HeatmapBlocks[l])))
		if i == 11 {
			b.WriteString(" ")
		}
	}
	b.WriteString(" 23")
	return b.String()
}

// RenderWeekdayPattern renders one spark per weekday, Sunday first.
func RenderWeekdayPattern(days []float64) string {
	if len(days) != 7 {
		padded := make([]float64, 7)
		copy(padded, days)
		days = padded
	}
	names := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	peak := maxOf(days)

	parts := make([]string, 7)
	for i, v := range days {
		parts[i] = names[i] + " " + string(sparkChars[level(v, peak, len(sparkChars))])
	}
	return strings.Join(parts, " ")
}

// sample picks at most width values evenly from values.
func sample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		return values
	}
	step := float64(len(values)) / float64(width)
	out := make([]float64, 0, width)
	for i := range width {
		out = append(out, values[int(float64(i)*step)])
	}
	return out
}

// RenderSparkline creates a compact inline sparkline chart.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	values = sample(values, width)
	peak := maxOf(values)

	var b strings.Builder
	for _, v := range values {
		b.WriteRune(sparkChars[level(v, peak, len(sparkChars))])
	}
	return b.String()
}

// RenderColoredSparkline colors each spark by its share of the peak, so
// the heaviest periods stand out in the budget warning colors.
func RenderColoredSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	values = sample(values, width)
	peak := maxOf(values)

	var b strings.Builder
	for _, v := range values {
		style := styles.GetBudgetStyle(v / peak * 100)
		b.WriteString(style.Render(string(sparkChars[level(v, peak, len(sparkChars))])))
	}
	return b.String()
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		box := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, box+" "+item.Label)
	}
	return strings.Join(parts, "  ")
}
