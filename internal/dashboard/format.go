package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"pulsechart/internal/viewport"
)

// FormatPrice formats a price with two decimals and thousands separators,
// or "-" for NaN.
func FormatPrice(p float64) string {
	if math.IsNaN(p) {
		return "-"
	}
	return humanize.FormatFloat("#,###.##", p)
}

// FormatDelta formats a signed price change as "+1.25" or "-0.40".
func FormatDelta(d float64) string {
	if d >= 0 {
		return "+" + fmt.Sprintf("%.2f", d)
	}
	return fmt.Sprintf("%.2f", d)
}

// FormatPercent formats a percentage (25 means 25%) as "+25.00%".
// Drops decimals for values >= 100% to keep width compact.
func FormatPercent(pct float64) string {
	sign := "+"
	if pct < 0 {
		sign = "-"
	}
	a := math.Abs(pct)
	if a >= 100 {
		return fmt.Sprintf("%s%.0f%%", sign, a)
	}
	return fmt.Sprintf("%s%.2f%%", sign, a)
}

// FormatRatio formats a fraction (0.25 means 25%) as a percentage.
func FormatRatio(r float64) string {
	return FormatPercent(r * 100)
}

// FormatCount formats a count with SI suffixes above ten thousand.
func FormatCount(n int64) string {
	if n < 10_000 {
		return humanize.Comma(n)
	}
	return humanize.SIWithDigits(float64(n), 1, "")
}

// FormatTooltip renders the scrub tooltip: value, delta and percent change,
// prefixed by the sample time when known.
func FormatTooltip(p viewport.DerivedPoint, at time.Time) string {
	var b strings.Builder
	if !at.IsZero() {
		b.WriteString(at.Format("2006-01-02 15:04"))
		b.WriteString("  ")
	}
	fmt.Fprintf(&b, "%s  %s (%s)", FormatPrice(p.Value), FormatDelta(p.Delta), FormatPercent(p.Percent))
	return b.String()
}

// FormatRange renders the visible time span, e.g. "Jan 2 2024 → Mar 1 2024
// (2 months)".
func FormatRange(from, to time.Time) string {
	if from.IsZero() || to.IsZero() {
		return ""
	}
	span := strings.TrimSpace(humanize.RelTime(from, to, "", ""))
	return fmt.Sprintf("%s → %s (%s)", from.Format("Jan 2 2006"), to.Format("Jan 2 2006"), span)
}

// FormatStats renders WindowStats on one line.
func FormatStats(s WindowStats) string {
	if s.Points == 0 {
		return "no data"
	}
	return fmt.Sprintf("O %s  H %s  L %s  C %s  %s  max gain %s  max dd %s",
		FormatPrice(s.Open), FormatPrice(s.High), FormatPrice(s.Low), FormatPrice(s.Close),
		FormatRatio(s.Change), FormatRatio(s.MaxGain), FormatRatio(-s.MaxLoss))
}
