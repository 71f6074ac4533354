package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"pulsechart/internal/domain"
	"pulsechart/internal/util"
	"pulsechart/internal/viewport"
)

// BarsClient is the subset of *marketdata.Client the provider uses.
type BarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaProvider fetches bars from the Alpaca market-data API under a rate
// limiter, retrying transient failures.
type AlpacaProvider struct {
	client  BarsClient
	feed    string
	limiter *util.RateLimiter
	now     func() time.Time

	attempts  int
	baseDelay time.Duration
}

// NewAlpacaClient builds the market-data client from credentials. dataURL may
// be empty for the default endpoint.
func NewAlpacaClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// NewAlpacaProvider creates an AlpacaProvider. feed is "iex", "sip", etc.
func NewAlpacaProvider(client BarsClient, feed string, ratePerMin int) *AlpacaProvider {
	return &AlpacaProvider{
		client:    client,
		feed:      feed,
		limiter:   util.NewBurstRateLimiter(ratePerMin, 5),
		now:       time.Now,
		attempts:  3,
		baseDelay: 500 * time.Millisecond,
	}
}

func (p *AlpacaProvider) Name() string { return "alpaca" }

// Series implements Provider.
func (p *AlpacaProvider) Series(ctx context.Context, symbol string, tf Timeframe) (viewport.Series, error) {
	bars, err := p.Bars(ctx, symbol, tf.Start(p.now()), p.now(), barSize(tf))
	if err != nil {
		return viewport.Series{}, err
	}
	return seriesFromBars(bars), nil
}

// Bars fetches bars of the given size for symbol in [start, end].
func (p *AlpacaProvider) Bars(ctx context.Context, symbol string, start, end time.Time, size marketdata.TimeFrame) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	req := marketdata.GetBarsRequest{
		TimeFrame: size,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(p.feed),
	}

	raw, err := util.RetryValue(ctx, p.attempts, p.baseDelay, func() ([]marketdata.Bar, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return p.client.GetBars(symbol, req)
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars, nil
}

func barSize(tf Timeframe) marketdata.TimeFrame {
	switch tf {
	case OneDay:
		return marketdata.NewTimeFrame(5, marketdata.Min)
	case FiveDays:
		return marketdata.NewTimeFrame(30, marketdata.Min)
	case FiveYears:
		return marketdata.NewTimeFrame(1, marketdata.Week)
	default:
		return marketdata.OneDay
	}
}
