package main

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"pulsechart/internal/narrate"
	"pulsechart/internal/prefs"
	"pulsechart/internal/provider"
	"pulsechart/internal/viewport"
)

const (
	panStep   = 0.25
	wheelStep = 1.25
)

// Messages.
type seriesLoadedMsg struct {
	symbol string
	tf     provider.Timeframe
	series viewport.Series
	err    error
}

type announcedMsg viewport.DerivedPoint

type watchlistLoadedMsg struct {
	symbols []string
	err     error
}

type watchlistAddedMsg struct {
	symbol string
	err    error
}

// Model.
type model struct {
	chart    *viewport.Chart
	frame    viewport.Frame
	provider provider.Provider
	prefs    prefs.Store
	watch    watchlist // nil without Alpaca credentials
	announce chan viewport.DerivedPoint
	logger   *slog.Logger

	symbols  []string
	symbol   string
	tf       provider.Timeframe
	bufferOn bool

	width, height int
	zones         *zone.Manager
	zoneID        string
	help          help.Model
	pressed       bool

	loading bool
	status  string
	err     error
}

func initialModel(chart *viewport.Chart, p provider.Provider, ps prefs.Store, wl watchlist, symbols []string, symbol string, tf provider.Timeframe, logger *slog.Logger) model {
	zm := zone.New()
	m := model{
		chart:    chart,
		frame:    chart.Frame(),
		provider: p,
		prefs:    ps,
		watch:    wl,
		announce: make(chan viewport.DerivedPoint, 8),
		logger:   logger,
		symbols:  mergeSymbols(symbols, []string{symbol}),
		symbol:   strings.ToUpper(symbol),
		tf:       tf,
		zones:    zm,
		zoneID:   zm.NewPrefix(),
		help:     help.New(),
		loading:  true,
	}
	if ps != nil {
		m.bufferOn = prefs.Bool(context.Background(), ps, prefs.KeyBufferEnabled, false)
	}
	m.frame = chart.SetBuffer(m.bufferOn)
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.load(), waitAnnounce(m.announce)}
	if m.watch != nil {
		wl := m.watch
		cmds = append(cmds, func() tea.Msg {
			syms, err := wl.Symbols()
			return watchlistLoadedMsg{symbols: syms, err: err}
		})
	}
	return tea.Batch(cmds...)
}

// narrator forwards scrub-end announcements into the program. Announce runs
// inside Chart.Handle, so it must not block.
func (m model) narrator() func(viewport.DerivedPoint) {
	ch := m.announce
	return func(p viewport.DerivedPoint) {
		select {
		case ch <- p:
		default:
		}
	}
}

func waitAnnounce(ch <-chan viewport.DerivedPoint) tea.Cmd {
	return func() tea.Msg {
		return announcedMsg(<-ch)
	}
}

func (m *model) load() tea.Cmd {
	m.loading = true
	m.err = nil
	p, sym, tf := m.provider, m.symbol, m.tf
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s, err := p.Series(ctx, sym, tf)
		return seriesLoadedMsg{symbol: sym, tf: tf, series: s, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if r, ok := m.graphRect(); ok {
			m.handleMouse(msg, r)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case seriesLoadedMsg:
		if msg.symbol != m.symbol || msg.tf != m.tf {
			return m, nil // superseded by a later request
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.logger.Error("loading series", "symbol", msg.symbol, "timeframe", msg.tf, "error", msg.err)
			return m, nil
		}
		if err := m.chart.SetSeries(msg.series); err != nil {
			m.err = err
			return m, nil
		}
		m.frame = m.chart.Frame()
		m.status = ""
		m.logger.Info("series loaded", "symbol", msg.symbol, "timeframe", msg.tf, "points", msg.series.Len())
		m.savePrefs()
		return m, nil

	case announcedMsg:
		m.status = narrate.Phrase(viewport.DerivedPoint(msg))
		return m, waitAnnounce(m.announce)

	case watchlistLoadedMsg:
		if msg.err != nil {
			m.logger.Warn("loading watchlist", "error", msg.err)
			return m, nil
		}
		m.symbols = mergeSymbols(m.symbols, msg.symbols)
		m.logger.Info("watchlist loaded", "symbols", len(msg.symbols))
		return m, nil

	case watchlistAddedMsg:
		if msg.err != nil {
			m.status = "watchlist: " + msg.err.Error()
			m.logger.Error("watchlist add failed", "symbol", msg.symbol, "error", msg.err)
		} else {
			m.status = msg.symbol + " added to watchlist"
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.ZoomIn):
		m.frame = m.chart.ZoomIn()
	case key.Matches(msg, keys.ZoomOut):
		m.frame = m.chart.ZoomOut()
	case key.Matches(msg, keys.PanLeft):
		m.frame = m.chart.PanBy(-panStep)
	case key.Matches(msg, keys.PanRight):
		m.frame = m.chart.PanBy(panStep)
	case key.Matches(msg, keys.Reset):
		m.frame = m.chart.Reset()
	case key.Matches(msg, keys.Timeframe):
		m.tf = m.tf.Next()
		return m, m.load()
	case key.Matches(msg, keys.Buffer):
		m.bufferOn = !m.bufferOn
		m.frame = m.chart.SetBuffer(m.bufferOn)
		if m.prefs != nil {
			if err := prefs.SetBool(context.Background(), m.prefs, prefs.KeyBufferEnabled, m.bufferOn); err != nil {
				m.logger.Warn("saving buffer preference", "error", err)
			}
		}
	case key.Matches(msg, keys.NextSym):
		return m, m.stepSymbol(1)
	case key.Matches(msg, keys.PrevSym):
		return m, m.stepSymbol(-1)
	case key.Matches(msg, keys.Watch):
		if m.watch == nil {
			m.status = "watchlist needs Alpaca credentials"
			return m, nil
		}
		wl, sym := m.watch, m.symbol
		return m, func() tea.Msg {
			return watchlistAddedMsg{symbol: sym, err: wl.Add(sym)}
		}
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// handleMouse maps terminal mouse input onto chart events within r, the
// graph area in screen cells.
func (m *model) handleMouse(msg tea.MouseMsg, r viewport.Rect) {
	x := float64(msg.X)
	pt := viewport.Point{X: x, Y: float64(msg.Y)}

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.frame = m.chart.ZoomAt(wheelStep, x, r)
	case msg.Button == tea.MouseButtonWheelDown:
		m.frame = m.chart.ZoomAt(1/wheelStep, x, r)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.pressed = true
		m.frame = m.chart.Handle(viewport.Event{Kind: viewport.EventDown, Points: []viewport.Point{pt}}, r)
	case msg.Action == tea.MouseActionMotion && m.pressed:
		m.frame = m.chart.Handle(viewport.Event{Kind: viewport.EventMove, Points: []viewport.Point{pt}}, r)
	case msg.Action == tea.MouseActionRelease:
		m.pressed = false
		m.frame = m.chart.Handle(viewport.Event{Kind: viewport.EventUp}, r)
	}
}

func (m *model) stepSymbol(delta int) tea.Cmd {
	if len(m.symbols) < 2 {
		return nil
	}
	i := sort.SearchStrings(m.symbols, m.symbol)
	i = (i + delta + len(m.symbols)) % len(m.symbols)
	m.symbol = m.symbols[i]
	return m.load()
}

func (m model) savePrefs() {
	if m.prefs == nil {
		return
	}
	ctx := context.Background()
	if err := m.prefs.Set(ctx, prefs.KeyLastSymbol, m.symbol); err != nil {
		m.logger.Warn("saving last symbol", "error", err)
	}
	if err := m.prefs.Set(ctx, prefs.KeyTimeframe, string(m.tf)); err != nil {
		m.logger.Warn("saving timeframe", "error", err)
	}
}

// mergeSymbols returns the sorted union of a and b, upper-cased.
func mergeSymbols(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
