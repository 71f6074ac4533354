// Package store persists daily bars on local disk. The chart viewer and the
// server read from it; pulsechart-fetch fills it.
package store

import (
	"context"
	"time"

	"pulsechart/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for market.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end],
	// sorted by timestamp.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)

	// LastBar returns the most recent stored bar for symbol, or false when
	// nothing is stored.
	LastBar(ctx context.Context, symbol string, market domain.Market) (domain.Bar, bool, error)
}
