// Command pulsechart-tui is a terminal price chart: drag to scrub, wheel to
// zoom, arrow keys to pan.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	tea "github.com/charmbracelet/bubbletea"

	"pulsechart/internal/config"
	"pulsechart/internal/domain"
	"pulsechart/internal/metrics"
	"pulsechart/internal/narrate"
	"pulsechart/internal/prefs"
	"pulsechart/internal/provider"
	"pulsechart/internal/store"
	"pulsechart/internal/util"
	"pulsechart/internal/viewport"
)

// Mouse motion arrives in whole cells, so the pixel dead zone is far too wide.
const cellDeadZone = 2

func main() {
	cfg, path, err := config.LoadForCommand()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Log to file; stdout belongs to the terminal UI.
	logger, closer, err := util.NewFileLogger(os.TempDir(), "pulsechart-tui", cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	logger.Info("starting", "config", path)

	ctx := context.Background()
	bars := store.NewParquetStore(cfg.Storage.DataDir)
	p := provider.FromConfig(cfg, bars, metrics.New())

	var ps prefs.Store
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Warn("creating data dir", "error", err)
	} else if ps, err = prefs.Open(cfg.Storage.PrefsBackend, cfg.Storage.SQLitePath, cfg.Storage.PrefsJSON); err != nil {
		logger.Warn("opening preferences, continuing without", "error", err)
		ps = nil
	}
	if ps != nil {
		defer ps.Close()
	}

	symbol := "SPY"
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	} else if ps != nil {
		symbol = prefs.String(ctx, ps, prefs.KeyLastSymbol, symbol)
	}
	symbol = strings.ToUpper(symbol)

	tfName := cfg.Viewport.Timeframe
	if ps != nil {
		tfName = prefs.String(ctx, ps, prefs.KeyTimeframe, tfName)
	}
	tf, err := provider.ParseTimeframe(tfName)
	if err != nil {
		logger.Warn("bad saved timeframe", "timeframe", tfName, "error", err)
		tf, _ = provider.ParseTimeframe(cfg.Viewport.Timeframe)
	}

	local, err := bars.ListSymbols(ctx, domain.Market(cfg.Storage.Market))
	if err != nil {
		logger.Warn("listing local symbols", "error", err)
	}

	// Optional Alpaca trading client for watchlist support.
	var wl watchlist
	if cfg.Alpaca.HasCredentials() {
		wl = newAlpacaWatchlist(alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
		}))
		logger.Info("alpaca client initialized for watchlist")
	}

	opts := cfg.Viewport.Options()
	if opts.DeadZone > cellDeadZone {
		opts.DeadZone = cellDeadZone
	}
	chart := viewport.NewChart(opts)
	defer chart.Close()

	m := initialModel(chart, p, ps, wl, local, symbol, tf, logger)
	chart.SetNarrator(narrate.Multi{narrate.NewLog(logger), narrate.Func(m.narrator())})

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := prog.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
