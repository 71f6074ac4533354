package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pulsechart/internal/viewport"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{12, 14, 11, 15})
	assert.Equal(t, 4, s.Points)
	assert.Equal(t, 12.0, s.Open)
	assert.Equal(t, 15.0, s.Close)
	assert.Equal(t, 15.0, s.High)
	assert.Equal(t, 11.0, s.Low)
	assert.InDelta(t, 0.25, s.Change, 1e-12)
	assert.InDelta(t, 4.0/11.0, s.MaxGain, 1e-12) // 11 -> 15
	assert.InDelta(t, 3.0/14.0, s.MaxLoss, 1e-12) // 14 -> 11
}

func TestSummarizeEdges(t *testing.T) {
	assert.Equal(t, WindowStats{}, Summarize(nil))

	s := Summarize([]float64{0, 5})
	assert.Equal(t, 0.0, s.Change)
	assert.Equal(t, 0.0, s.MaxGain)

	falling := Summarize([]float64{10, 9, 8})
	assert.Equal(t, 0.0, falling.MaxGain)
	assert.InDelta(t, 0.2, falling.MaxLoss, 1e-12)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1,234.50", FormatPrice(1234.5))
	assert.Equal(t, "12.00", FormatPrice(12))
	assert.Equal(t, "+3.00", FormatDelta(3))
	assert.Equal(t, "-0.40", FormatDelta(-0.4))
	assert.Equal(t, "+25.00%", FormatPercent(25))
	assert.Equal(t, "-8.33%", FormatPercent(-8.3333))
	assert.Equal(t, "+150%", FormatPercent(150))
	assert.Equal(t, "+0.00%", FormatPercent(0))
	assert.Equal(t, "9,999", FormatCount(9999))
}

func TestFormatTooltip(t *testing.T) {
	p := viewport.DerivedPoint{Value: 15, Delta: 3, Percent: 25}
	assert.Equal(t, "15.00  +3.00 (+25.00%)", FormatTooltip(p, time.Time{}))

	at := time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-02 16:00  15.00  +3.00 (+25.00%)", FormatTooltip(p, at))
}

func TestFormatRange(t *testing.T) {
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	got := FormatRange(from, from.AddDate(0, 2, 0))
	assert.True(t, strings.HasPrefix(got, "Jan 2 2024 → Mar 2 2024 ("), got)
	assert.Equal(t, "", FormatRange(time.Time{}, from))
}

func TestFormatStats(t *testing.T) {
	assert.Equal(t, "no data", FormatStats(WindowStats{}))
	line := FormatStats(Summarize([]float64{12, 14, 11, 15}))
	assert.Contains(t, line, "O 12.00")
	assert.Contains(t, line, "+25.00%")
	assert.Contains(t, line, "max dd -21.43%")
}
