package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

// Gradient endpoints. Consumption bars run green to red.
const (
	gradientLow   = "#51cf66"
	gradientHigh  = "#ff6b6b"
	periodStart   = "#ffd93d"
	periodEnd     = "#6c5ce7"
	labelWidth    = 10
	amountWidth   = 22
	minBarWidth   = 10
	percentColumn = 6
)

// BudgetBar renders spend against a budget.
type BudgetBar struct {
	progress progress.Model
}

// NewBudgetBar creates a budget bar with a green to red gradient.
func NewBudgetBar() BudgetBar {
	return BudgetBar{
		progress: progress.New(
			progress.WithScaledGradient(gradientLow, gradientHigh),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
	}
}

// View renders "label [bar] pct  $spent / $budget". Spend past the budget
// fills the bar completely.
func (b BudgetBar) View(p models.BudgetProjection, label string, width int) string {
	labelStr := styles.ProgressLabelStyle.Width(labelWidth).Render(label)

	if p.Budget <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Center,
			labelStr,
			styles.HelpStyle.Render("no budget set, spent "+FormatCost(p.Spent)),
		)
	}

	b.progress.Width = max(width-labelWidth-percentColumn-amountWidth-2, minBarWidth)
	bar := b.progress.ViewAs(min(p.PercentUsed, 100) / 100)

	percentStr := styles.GetBudgetStyle(p.PercentUsed).
		Width(percentColumn).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", p.PercentUsed))

	amountStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(amountWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%s / %s", FormatCost(p.Spent), FormatCost(p.Budget)))

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", percentStr, amountStr)
}

// ViewProjection renders the projected end-of-period spend and its status.
func (b BudgetBar) ViewProjection(p models.BudgetProjection, now time.Time) string {
	if p.Budget <= 0 {
		return ""
	}
	status := styles.GetProjectionStyle(p.Status).Render(string(p.Status))
	line := fmt.Sprintf("projected %s · resets in %s", FormatCost(p.Projected), FormatUntil(p.PeriodResetAt, now))
	if p.WillExceed {
		line += styles.WarningTextStyle.Render(" · will exceed")
	}
	return strings.Repeat(" ", labelWidth) + status + " " + styles.HelpStyle.Render(line)
}

// PeriodBar visualizes how much of a budget period has elapsed.
type PeriodBar struct{}

// NewPeriodBar creates a period bar.
func NewPeriodBar() PeriodBar {
	return PeriodBar{}
}

// View fills the bar as the period runs out and prints the time left.
func (PeriodBar) View(start, resetAt, now time.Time, width int) string {
	percent := 1.0
	if total := resetAt.Sub(start); total > 0 {
		percent = float64(now.Sub(start)) / float64(total)
	}
	percent = min(max(percent, 0), 1)

	barWidth := max(width-labelWidth-percentColumn-amountWidth-4, minBarWidth)
	bar := renderGradient(percent, barWidth, periodStart, periodEnd)

	timeStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(percentColumn + amountWidth).
		Align(lipgloss.Right).
		Render(FormatUntil(resetAt, now) + " left")

	return fmt.Sprintf("%s[%s]%s", strings.Repeat(" ", labelWidth), bar, timeStr)
}

// RenderGradientBar renders a green to red bar filled to percent (0-100).
func RenderGradientBar(percent float64, width int) string {
	return renderGradient(percent/100, width, gradientLow, gradientHigh)
}

func renderGradient(fraction float64, width int, fromHex, toHex string) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*fraction), 0), width)

	var bar strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor(fromHex, toHex, t)
			bar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			bar.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return bar.String()
}

// SimpleBudgetBar renders "label [bar] pct" without the bubbles progress model.
func SimpleBudgetBar(percent float64, label string, width int) string {
	barWidth := max(width-len(label)-1-percentColumn-4, 5)

	labelStr := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(label)
	percentStr := styles.GetBudgetStyle(percent).
		Width(percentColumn).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))

	return fmt.Sprintf("%s [%s] %s", labelStr, RenderGradientBar(min(percent, 100), barWidth), percentStr)
}

// RenderScanProgress renders the startup scan as a bar with a file counter.
func RenderScanProgress(p models.ScanProgress, width int) string {
	fraction := 0.0
	if p.FilesTotal > 0 {
		fraction = float64(p.FilesProcessed) / float64(p.FilesTotal)
	}
	counter := fmt.Sprintf(" %d/%d files", p.FilesProcessed, p.FilesTotal)
	barWidth := max(width-len(counter)-2, minBarWidth)
	return "[" + renderGradient(fraction, barWidth, periodStart, periodEnd) + "]" + styles.HelpStyle.Render(counter)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}

// RenderLoadingBar renders a shimmer that sweeps back and forth while data loads.
func RenderLoadingBar(width int, frame int) string {
	barWidth := max(width, minBarWidth)
	const cycle = 120

	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	shimmerPos := int(eased * float64(barWidth))

	var bar strings.Builder
	for i := range barWidth {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}

		switch {
		case dist < 3:
			bar.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render("▓"))
		case dist < 5:
			bar.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("▒"))
		default:
			bar.WriteString(lipgloss.NewStyle().Foreground(styles.BgLight).Render("░"))
		}
	}

	dots := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	dot := lipgloss.NewStyle().Foreground(styles.Primary).Render(dots[(frame/2)%len(dots)])

	return bar.String() + " " + dot
}
