// Package provider loads chart series by symbol and timeframe, either from
// the local Parquet store or from the Alpaca market-data API.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pulsechart/internal/domain"
	"pulsechart/internal/metrics"
	"pulsechart/internal/util"
	"pulsechart/internal/viewport"
)

// ErrUnknownTimeframe is returned by ParseTimeframe.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Provider fetches the closing-price series for a symbol. An empty series is
// a valid result; the chart renders it as insufficient data.
type Provider interface {
	Name() string
	Series(ctx context.Context, symbol string, tf Timeframe) (viewport.Series, error)
}

// Timeframe is the lookback window of a chart.
type Timeframe string

const (
	OneDay    Timeframe = "1D"
	FiveDays  Timeframe = "5D"
	OneMonth  Timeframe = "1M"
	SixMonths Timeframe = "6M"
	OneYear   Timeframe = "1Y"
	FiveYears Timeframe = "5Y"
)

// Timeframes lists every Timeframe in display order.
var Timeframes = []Timeframe{OneDay, FiveDays, OneMonth, SixMonths, OneYear, FiveYears}

// ParseTimeframe accepts the display names case-insensitively.
func ParseTimeframe(s string) (Timeframe, error) {
	up := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	for _, tf := range Timeframes {
		if tf == up {
			return tf, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
}

// Next cycles to the following timeframe, wrapping after 5Y.
func (tf Timeframe) Next() Timeframe {
	for i, t := range Timeframes {
		if t == tf {
			return Timeframes[(i+1)%len(Timeframes)]
		}
	}
	return OneYear
}

// Start returns the beginning of the lookback window ending at end. 1D
// starts at the most recent session so weekends still show a full day.
func (tf Timeframe) Start(end time.Time) time.Time {
	switch tf {
	case OneDay:
		return util.LastSession(end)
	case FiveDays:
		return util.LastSession(end).AddDate(0, 0, -7)
	case OneMonth:
		return end.AddDate(0, -1, 0)
	case SixMonths:
		return end.AddDate(0, -6, 0)
	case FiveYears:
		return end.AddDate(-5, 0, 0)
	default:
		return end.AddDate(-1, 0, 0)
	}
}

// Intraday reports whether the timeframe needs bars finer than one day.
func (tf Timeframe) Intraday() bool {
	return tf == OneDay || tf == FiveDays
}

func seriesFromBars(bars []domain.Bar) viewport.Series {
	closes, stamps := domain.Closes(bars)
	return viewport.Series{Closes: closes, Timestamps: stamps}
}

// Chain tries each provider in order and returns the first non-empty
// series. Errors from earlier providers are logged and skipped; the last
// error is returned only when nothing produced data.
type Chain struct {
	providers []Provider
	metrics   *metrics.Recorder
	log       *slog.Logger
}

// NewChain creates a Chain over ps. rec may be nil.
func NewChain(rec *metrics.Recorder, ps ...Provider) *Chain {
	return &Chain{
		providers: ps,
		metrics:   rec,
		log:       slog.Default().With("component", "provider"),
	}
}

// Name lists the chained providers.
func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

// Series implements Provider.
func (c *Chain) Series(ctx context.Context, symbol string, tf Timeframe) (viewport.Series, error) {
	var lastErr error
	for _, p := range c.providers {
		start := time.Now()
		s, err := p.Series(ctx, symbol, tf)
		c.metrics.RecordSeriesLoad(p.Name(), err, time.Since(start))
		if err != nil {
			c.log.Warn("series fetch failed", "provider", p.Name(), "symbol", symbol, "timeframe", tf, "error", err)
			lastErr = err
			continue
		}
		if s.Len() > 0 {
			c.log.Debug("series loaded", "provider", p.Name(), "symbol", symbol, "timeframe", tf, "points", s.Len())
			return s, nil
		}
	}
	return viewport.Series{}, lastErr
}
