package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pulsechart/internal/config"
	"pulsechart/internal/domain"
	"pulsechart/internal/gather"
	"pulsechart/internal/provider"
	"pulsechart/internal/store"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to fetch")
	symbolsFile := flag.String("symbols-file", "", "file with one symbol per line")
	startFlag := flag.String("start", "", "first date for new symbols (YYYY-MM-DD, default five years back)")
	workers := flag.Int("workers", 4, "concurrent symbol fetches")
	flag.Parse()

	cfg, _, err := config.LoadForCommand()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Alpaca.HasCredentials() {
		log.Fatal("alpaca credentials required (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
	}

	symbols := splitSymbols(*symbolsFlag)
	if *symbolsFile != "" {
		more, err := readSymbols(*symbolsFile)
		if err != nil {
			log.Fatalf("reading symbols file: %v", err)
		}
		symbols = append(symbols, more...)
	}
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pulsechart-fetch -symbols AAPL,MSFT [-start 2020-01-01]")
		os.Exit(2)
	}

	start := time.Now().UTC().AddDate(-5, 0, 0)
	if *startFlag != "" {
		if start, err = time.Parse("2006-01-02", *startFlag); err != nil {
			log.Fatalf("parsing start date %q: %v", *startFlag, err)
		}
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/pulsechart-fetch-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	client := provider.NewAlpacaClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	alpaca := provider.NewAlpacaProvider(client, cfg.Alpaca.Feed, cfg.Alpaca.RateLimitPerMin)

	g := gather.NewDailyBarGatherer(alpaca, pstore, domain.Market(cfg.Storage.Market), symbols, start, *workers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting pulsechart-fetch", "logFile", logFileName, "symbols", len(symbols), "dataDir", cfg.Storage.DataDir)
	if err := g.Run(ctx); err != nil {
		log.Fatalf("fetch error: %v", err)
	}
	rep := g.Report()
	if rep.Failed > 0 {
		slog.Warn("some symbols failed", "failed", rep.Failed)
		os.Exit(1)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
