// Package gather backfills local bar storage so charts can be served
// without a live market-data connection.
package gather

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"pulsechart/internal/domain"
	"pulsechart/internal/store"
	"pulsechart/internal/util"
)

// DateRange is the span of days still to fetch for a symbol.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the range holds no time at all.
func (r DateRange) Empty() bool { return !r.End.After(r.Start) }

// BarFetcher fetches bars for one symbol. provider.AlpacaProvider
// implements it.
type BarFetcher interface {
	Bars(ctx context.Context, symbol string, start, end time.Time, size marketdata.TimeFrame) ([]domain.Bar, error)
}

// Report summarizes one DailyBarGatherer run.
type Report struct {
	Symbols int
	Updated int
	Empty   int
	Failed  int
	Bars    int64
}

// DailyBarGatherer brings the daily bars of a symbol list up to the last
// finished session. Symbols already stored resume from the day after their
// last bar; new symbols start at Start.
type DailyBarGatherer struct {
	fetcher    BarFetcher
	store      store.BarStore
	market     domain.Market
	symbols    []string
	start      time.Time
	maxWorkers int
	now        func() time.Time
	log        *slog.Logger

	mu     sync.Mutex
	report Report
}

// NewDailyBarGatherer creates a DailyBarGatherer for symbols. maxWorkers
// bounds the concurrent fetches.
func NewDailyBarGatherer(f BarFetcher, s store.BarStore, market domain.Market, symbols []string, start time.Time, maxWorkers int) *DailyBarGatherer {
	seen := make(map[string]struct{}, len(symbols))
	var uniq []string
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		uniq = append(uniq, sym)
	}
	sort.Strings(uniq)

	return &DailyBarGatherer{
		fetcher:    f,
		store:      s,
		market:     market,
		symbols:    uniq,
		start:      start.UTC(),
		maxWorkers: max(maxWorkers, 1),
		now:        time.Now,
		log:        slog.Default().With("gatherer", "daily"),
	}
}

// Report returns the totals of the last Run.
func (g *DailyBarGatherer) Report() Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.report
}

// Run fetches and stores missing daily bars for every symbol. Failures of
// single symbols are logged and counted; Run fails only when ctx ends.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	end := util.LastSession(g.now())
	g.log.Info("starting daily backfill", "symbols", len(g.symbols), "end", end.Format("2006-01-02"))

	var (
		updated, empty, failed atomic.Int64
		totalBars              atomic.Int64
		runStart               = time.Now()
	)

	sem := make(chan struct{}, g.maxWorkers)
	eg, gctx := errgroup.WithContext(ctx)

	for _, sym := range g.symbols {
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			n, err := g.gatherSymbol(gctx, sym, end)
			switch {
			case gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				failed.Add(1)
				g.log.Error("symbol backfill failed", "symbol", sym, "error", err)
			case n == 0:
				empty.Add(1)
			default:
				updated.Add(1)
				totalBars.Add(int64(n))
				g.log.Info("symbol updated", "symbol", sym, "bars", n)
			}
			return nil
		})
	}
	err := eg.Wait()

	rep := Report{
		Symbols: len(g.symbols),
		Updated: int(updated.Load()),
		Empty:   int(empty.Load()),
		Failed:  int(failed.Load()),
		Bars:    totalBars.Load(),
	}
	g.mu.Lock()
	g.report = rep
	g.mu.Unlock()

	g.log.Info("daily backfill done",
		"updated", rep.Updated,
		"empty", rep.Empty,
		"failed", rep.Failed,
		"bars", rep.Bars,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return err
}

// Range returns the dates still missing for symbol, up to end.
func (g *DailyBarGatherer) Range(ctx context.Context, symbol string, end time.Time) (DateRange, error) {
	r := DateRange{Start: g.start, End: end}
	last, ok, err := g.store.LastBar(ctx, symbol, g.market)
	if err != nil {
		return r, fmt.Errorf("reading last bar: %w", err)
	}
	if ok {
		next := last.Timestamp.UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
		if next.After(r.Start) {
			r.Start = next
		}
	}
	return r, nil
}

func (g *DailyBarGatherer) gatherSymbol(ctx context.Context, symbol string, end time.Time) (int, error) {
	r, err := g.Range(ctx, symbol, end)
	if err != nil {
		return 0, err
	}
	// End is midnight of the last session, so include that whole day.
	r.End = r.End.Add(24*time.Hour - time.Nanosecond)
	if r.Empty() {
		return 0, nil
	}

	bars, err := g.fetcher.Bars(ctx, symbol, r.Start, r.End, marketdata.OneDay)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}
	if err := g.store.WriteBars(ctx, g.market, bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	return len(bars), nil
}
