package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/canvas"
	"github.com/NimbleMarkets/ntcharts/linechart"
	"github.com/charmbracelet/lipgloss"

	"pulsechart/internal/dashboard"
	"pulsechart/internal/viewport"
)

// Styles.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	lineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	leadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	pointStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Rows outside the chart: header, tooltip, stats.
const chromeRows = 3

func (m model) chartHeight() int {
	footer := lipgloss.Height(m.help.View(keys))
	return max(m.height-chromeRows-footer, 3)
}

// newCanvas sizes a linechart for the current frame's path.
func (m model) newCanvas() (linechart.Model, []float64) {
	path := m.frame.Path()
	lo, hi := bounds(path)
	maxX := float64(max(len(path)-1, 1))
	lc := linechart.New(max(m.width, 10), m.chartHeight(), 0, maxX, lo, hi)
	lc.YLabelFormatter = func(_ int, v float64) string { return dashboard.FormatPrice(v) }
	lc.AxisStyle = dimStyle
	lc.LabelStyle = dimStyle
	lc.SetXStep(0)
	return lc, path
}

// graphRect is the plotting area in screen cells, known once the chart has
// been rendered and scanned for its zone.
func (m model) graphRect() (viewport.Rect, bool) {
	if m.zones == nil {
		return viewport.Rect{}, false
	}
	z := m.zones.Get(m.zoneID)
	if z == nil || z.IsZero() {
		return viewport.Rect{}, false
	}
	lc, _ := m.newCanvas()
	o := lc.Origin()
	return viewport.Rect{
		Left:   float64(z.StartX + o.X + 1),
		Top:    float64(z.StartY),
		Width:  float64(max(lc.GraphWidth()-1, 1)),
		Height: float64(lc.GraphHeight()),
	}, true
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	parts := []string{
		headerStyle.Render(padOrTrunc(m.headerText(), m.width)),
		m.renderChart(),
		m.tooltipLine(),
		dimStyle.Render(padOrTrunc(" "+dashboard.FormatStats(dashboard.Summarize(m.frame.Visible)), m.width)),
		m.help.View(keys),
	}
	return m.zones.Scan(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m model) headerText() string {
	var b strings.Builder
	fmt.Fprintf(&b, " %s  %s  %s pts", m.symbol, m.tf, dashboard.FormatCount(int64(m.frame.SeriesLen)))
	if m.frame.State.Scale > 1 {
		fmt.Fprintf(&b, "  %.2fx", m.frame.State.Scale)
	}
	if m.frame.From != nil && m.frame.To != nil {
		b.WriteString("  " + dashboard.FormatRange(*m.frame.From, *m.frame.To))
	}
	if m.bufferOn {
		b.WriteString("  [buffer]")
	}
	if m.loading {
		b.WriteString("  loading...")
	}
	b.WriteString(" ")
	return b.String()
}

func (m model) renderChart() string {
	h := m.chartHeight()
	switch {
	case m.err != nil:
		return placeholder(errStyle.Render("  "+m.err.Error()), h)
	case m.loading && m.frame.SeriesLen == 0:
		return placeholder(dimStyle.Render("  loading..."), h)
	case m.frame.Insufficient:
		return placeholder(dimStyle.Render("  not enough data to chart"), h)
	}

	lc, path := m.newCanvas()
	lc.DrawXYAxisAndLabel()
	for i := 1; i < len(path); i++ {
		style := lineStyle
		if i <= m.frame.Buffer {
			style = leadStyle
		}
		lc.DrawBrailleLineWithStyle(
			canvas.Float64Point{X: float64(i - 1), Y: path[i-1]},
			canvas.Float64Point{X: float64(i), Y: path[i]},
			style,
		)
	}
	if m.frame.ActiveIndex != nil && m.frame.Point != nil {
		lo, hi := bounds(path)
		x := float64(m.frame.Cursor)
		lc.DrawRuneLineWithStyle(canvas.Float64Point{X: x, Y: lo}, canvas.Float64Point{X: x, Y: hi}, '│', cursorStyle)
		lc.DrawRuneWithStyle(canvas.Float64Point{X: x, Y: m.frame.Point.Value}, '●', pointStyle)
	}
	return m.zones.Mark(m.zoneID, lc.View())
}

func (m model) tooltipLine() string {
	p := m.frame.Point
	if p == nil {
		if m.status != "" {
			return dimStyle.Render(padOrTrunc(" "+m.status, m.width))
		}
		return ""
	}
	style := gainStyle
	if p.Delta < 0 {
		style = lossStyle
	}
	text := dashboard.FormatTooltip(*p, derefTime(m.frame.At))
	return style.Render(padOrTrunc(" "+text, m.width))
}

func placeholder(s string, h int) string {
	return s + strings.Repeat("\n", max(h-1, 0))
}

// bounds returns the min and max of v, widened when flat so the line sits
// mid-chart.
func bounds(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi-lo < 1e-9 {
		pad := math.Max(math.Abs(lo)*0.01, 1)
		return lo - pad, hi + pad
	}
	return lo, hi
}

func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return s
	}
	w := lipgloss.Width(s)
	if w > width {
		r := []rune(s)
		if len(r) > width {
			return string(r[:width])
		}
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
