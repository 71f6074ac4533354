package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsechart/internal/narrate"
	"pulsechart/internal/provider"
	"pulsechart/internal/viewport"
)

type stubProvider struct {
	series map[string]viewport.Series
}

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) Series(_ context.Context, symbol string, _ provider.Timeframe) (viewport.Series, error) {
	return p.series[symbol], nil
}

type stubWatchlist struct {
	added []string
}

func (w *stubWatchlist) Symbols() ([]string, error) { return []string{"qqq"}, nil }
func (w *stubWatchlist) Add(symbol string) error {
	w.added = append(w.added, symbol)
	return nil
}

func newTestModel(t *testing.T, wl watchlist) model {
	t.Helper()
	p := stubProvider{series: map[string]viewport.Series{
		"SPY": {Closes: []float64{12, 14, 11, 15}},
		"AAPL": func() viewport.Series {
			s := viewport.Series{}
			for i := 0; i < 50; i++ {
				s.Closes = append(s.Closes, 100+float64(i))
			}
			return s
		}(),
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chart := viewport.NewChart(viewport.DefaultOptions())
	m := initialModel(chart, p, nil, wl, []string{"aapl"}, "spy", provider.OneYear, logger)
	chart.SetNarrator(narrate.Func(m.narrator()))
	return m
}

// loaded runs the model's load command and feeds the result back in.
func loaded(t *testing.T, m model) model {
	t.Helper()
	msg := m.load()()
	require.IsType(t, seriesLoadedMsg{}, msg)
	next, _ := m.Update(msg)
	return next.(model)
}

func press(m model, s string) model {
	var msg tea.KeyMsg
	switch s {
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	next, _ := m.Update(msg)
	return next.(model)
}

func TestInitialModel(t *testing.T) {
	m := newTestModel(t, nil)
	assert.Equal(t, "SPY", m.symbol)
	assert.Equal(t, []string{"AAPL", "SPY"}, m.symbols)
	assert.True(t, m.loading)

	m = loaded(t, m)
	assert.False(t, m.loading)
	assert.Equal(t, 4, m.frame.SeriesLen)
	assert.Equal(t, viewport.Identity, m.frame.State)
}

func TestKeysDriveViewport(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))

	m = press(m, "+")
	assert.InDelta(t, 1.5, m.frame.State.Scale, 1e-9)
	before := m.frame.State.PanOffset

	m = press(m, "right")
	assert.Greater(t, m.frame.State.PanOffset, before)
	m = press(m, "left")
	m = press(m, "left")
	assert.InDelta(t, 0.0, m.frame.State.PanOffset, 1e-9)

	m = press(m, "0")
	assert.Equal(t, viewport.Identity, m.frame.State)

	m = press(m, "b")
	assert.True(t, m.bufferOn)
	assert.Equal(t, 5, m.frame.Buffer)
	m = press(m, "b")
	assert.Equal(t, 0, m.frame.Buffer)
}

func TestTimeframeKeyReloads(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	m = next.(model)
	require.NotNil(t, cmd)
	assert.Equal(t, provider.FiveYears, m.tf)
	assert.True(t, m.loading)

	msg := cmd().(seriesLoadedMsg)
	assert.Equal(t, provider.FiveYears, msg.tf)
}

func TestStaleLoadIsIgnored(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))
	stale := seriesLoadedMsg{symbol: "AAPL", tf: provider.OneYear, series: viewport.Series{Closes: []float64{1, 2, 3}}}
	next, _ := m.Update(stale)
	assert.Equal(t, 4, next.(model).frame.SeriesLen)
}

func TestSymbolRotation(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	m = next.(model)
	require.NotNil(t, cmd)
	assert.Equal(t, "AAPL", m.symbol)

	next, _ = m.Update(cmd())
	m = next.(model)
	assert.Equal(t, 50, m.frame.SeriesLen)

	m = press(m, "p")
	assert.Equal(t, "SPY", m.symbol)
}

func TestMouseScrubAndNarrate(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))
	r := viewport.Rect{Left: 10, Top: 2, Width: 40, Height: 10}

	m.handleMouse(tea.MouseMsg{X: 50, Y: 5, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}, r)
	require.NotNil(t, m.frame.ActiveIndex)
	assert.Equal(t, 3, *m.frame.ActiveIndex)
	assert.Equal(t, viewport.DerivedPoint{Value: 15, Delta: 3, Percent: 25}, *m.frame.Point)

	m.handleMouse(tea.MouseMsg{X: 10, Y: 5, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft}, r)
	assert.Equal(t, 0, *m.frame.ActiveIndex)

	m.handleMouse(tea.MouseMsg{X: 10, Y: 5, Action: tea.MouseActionRelease}, r)
	assert.Nil(t, m.frame.ActiveIndex)
	assert.False(t, m.pressed)

	select {
	case p := <-m.announce:
		assert.Equal(t, 12.0, p.Value)
	default:
		t.Fatal("scrub end was not announced")
	}

	// Motion without a held button is hover, not scrub.
	m.handleMouse(tea.MouseMsg{X: 30, Y: 5, Action: tea.MouseActionMotion}, r)
	assert.Nil(t, m.frame.ActiveIndex)
}

func TestMouseWheelZooms(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))
	r := viewport.Rect{Left: 0, Width: 40, Height: 10}

	m.handleMouse(tea.MouseMsg{X: 20, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp}, r)
	assert.InDelta(t, wheelStep, m.frame.State.Scale, 1e-9)
	m.handleMouse(tea.MouseMsg{X: 20, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown}, r)
	assert.InDelta(t, 1.0, m.frame.State.Scale, 1e-9)
	assert.InDelta(t, 0.0, m.frame.State.PanOffset, 1e-9)
}

func TestWatchlist(t *testing.T) {
	wl := &stubWatchlist{}
	m := loaded(t, newTestModel(t, wl))

	next, _ := m.Update(watchlistLoadedMsg{symbols: []string{"qqq"}})
	m = next.(model)
	assert.Equal(t, []string{"AAPL", "QQQ", "SPY"}, m.symbols)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")})
	m = next.(model)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(model)
	assert.Equal(t, []string{"SPY"}, wl.added)
	assert.Equal(t, "SPY added to watchlist", m.status)
}

func TestWatchlistWithoutCredentials(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))
	m = press(m, "w")
	assert.Contains(t, m.status, "credentials")
}

func TestViewRenders(t *testing.T) {
	m := loaded(t, newTestModel(t, nil))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(model)

	out := m.View()
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "1Y")
}

func TestMergeSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "SPY"}, mergeSymbols([]string{" spy", "aapl"}, []string{"SPY", ""}))
	assert.Nil(t, mergeSymbols(nil, nil))
}

func TestBounds(t *testing.T) {
	lo, hi := bounds([]float64{3, 1, 2})
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)

	lo, hi = bounds([]float64{5, 5})
	assert.Less(t, lo, 5.0)
	assert.Greater(t, hi, 5.0)

	lo, hi = bounds(nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}
