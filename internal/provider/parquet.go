package provider

import (
	"context"
	"fmt"
	"strings"

	"pulsechart/internal/domain"
	"pulsechart/internal/store"
	"pulsechart/internal/viewport"
)

// ParquetProvider serves daily closes from a BarStore. The lookback is
// measured back from the newest stored bar, so offline data stays viewable.
type ParquetProvider struct {
	store  store.BarStore
	market domain.Market
}

// NewParquetProvider creates a ParquetProvider reading market from s.
func NewParquetProvider(s store.BarStore, market domain.Market) *ParquetProvider {
	return &ParquetProvider{store: s, market: market}
}

func (p *ParquetProvider) Name() string { return "parquet" }

// Series implements Provider. Intraday timeframes resolve to the last one or
// five daily bars.
func (p *ParquetProvider) Series(ctx context.Context, symbol string, tf Timeframe) (viewport.Series, error) {
	symbol = strings.ToUpper(symbol)
	last, ok, err := p.store.LastBar(ctx, symbol, p.market)
	if err != nil {
		return viewport.Series{}, fmt.Errorf("locating last bar for %s: %w", symbol, err)
	}
	if !ok {
		return viewport.Series{}, nil
	}

	end := last.Timestamp
	bars, err := p.store.ReadBars(ctx, symbol, p.market, tf.Start(end), end)
	if err != nil {
		return viewport.Series{}, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	return seriesFromBars(bars), nil
}
