package components

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatTokens renders a token count compactly: 950, 12.3K, 4.5M.
func FormatTokens(n int64) string {
	if n < 1000 && n > -1000 {
		return fmt.Sprintf("%d", n)
	}
	value, prefix := humanize.ComputeSI(float64(n))
	return fmt.Sprintf("%.1f%s", value, strings.ToUpper(prefix))
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatCost renders a USD amount with thousands separators. Sub-cent
// amounts keep four decimals.
func FormatCost(usd float64) string {
	if usd > 0 && usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	sign := ""
	cents := int64(math.Round(usd * 100))
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}

// FormatRate renders a per-unit rate such as "$0.12/min".
func FormatRate(usd float64, unit string) string {
	return fmt.Sprintf("%s/%s", FormatCost(usd), unit)
}

// FormatAgo renders t relative to now, or "never" for the zero time.
func FormatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatUntil renders the remaining time to t as "3h 05m".
func FormatUntil(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "now"
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours >= 48 {
		return fmt.Sprintf("%dd %02dh", hours/24, hours%24)
	}
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}

// Truncate shortens s to width cells, marking the cut with an ellipsis.
// The left side is cut when keepRight is set, which suits paths.
func Truncate(s string, width int, keepRight bool) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	if keepRight {
		return "…" + string(r[len(r)-width+1:])
	}
	return string(r[:width-1]) + "…"
}
