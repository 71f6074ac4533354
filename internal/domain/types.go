// Package domain holds the market-data types shared by the stores, the
// series providers and the chart service.
package domain

import "time"

// Market identifies the exchange family a symbol trades on. It doubles as
// the top-level directory of the Parquet data layout.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one OHLCV bar.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// Closes extracts the closing prices and timestamps of bars, in order.
func Closes(bars []Bar) ([]float64, []time.Time) {
	closes := make([]float64, len(bars))
	stamps := make([]time.Time, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		stamps[i] = b.Timestamp
	}
	return closes, stamps
}
