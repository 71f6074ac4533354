package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsechart/internal/config"
	"pulsechart/internal/domain"
	"pulsechart/internal/store"
	"pulsechart/internal/viewport"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("6m")
	require.NoError(t, err)
	assert.Equal(t, SixMonths, tf)

	_, err = ParseTimeframe("2W")
	assert.ErrorIs(t, err, ErrUnknownTimeframe)
}

func TestTimeframeNextCycles(t *testing.T) {
	tf := OneDay
	seen := map[Timeframe]bool{}
	for range Timeframes {
		seen[tf] = true
		tf = tf.Next()
	}
	assert.Equal(t, OneDay, tf)
	assert.Len(t, seen, len(Timeframes))
}

func TestTimeframeStart(t *testing.T) {
	end := time.Date(2024, 6, 15, 15, 0, 0, 0, time.UTC) // Saturday
	assert.Equal(t, day(2024, 6, 14), OneDay.Start(end))
	assert.Equal(t, day(2024, 6, 7), FiveDays.Start(end))
	assert.Equal(t, end.AddDate(0, -1, 0), OneMonth.Start(end))
	assert.Equal(t, end.AddDate(-1, 0, 0), OneYear.Start(end))
	assert.Equal(t, end.AddDate(-5, 0, 0), FiveYears.Start(end))
	assert.True(t, FiveDays.Intraday())
	assert.False(t, OneYear.Intraday())
}

func writeBars(t *testing.T, ps *store.ParquetStore, symbol string, start time.Time, closes ...float64) {
	t.Helper()
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: symbol, Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	require.NoError(t, ps.WriteBars(context.Background(), domain.MarketUS, bars))
}

func TestParquetProviderLookbackFromLastBar(t *testing.T) {
	ps := store.NewParquetStore(t.TempDir())
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	writeBars(t, ps, "AAPL", day(2023, 1, 1), closes...)

	p := NewParquetProvider(ps, domain.MarketUS)
	s, err := p.Series(context.Background(), "aapl", OneMonth)
	require.NoError(t, err)

	// Last bar is 2023-03-01; one month back is 2023-02-01.
	require.Equal(t, 29, s.Len())
	assert.Equal(t, 159.0, s.Closes[s.Len()-1])
	assert.Equal(t, day(2023, 2, 1), s.Timestamps[0])
	assert.NoError(t, s.Validate())
}

func TestParquetProviderUnknownSymbolIsEmpty(t *testing.T) {
	p := NewParquetProvider(store.NewParquetStore(t.TempDir()), domain.MarketUS)
	s, err := p.Series(context.Background(), "NOPE", OneYear)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

type fakeBars struct {
	mu    sync.Mutex
	calls []marketdata.GetBarsRequest
	fail  int
	bars  []marketdata.Bar
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("503 service unavailable")
	}
	return f.bars, nil
}

func newTestAlpaca(c BarsClient, now time.Time) *AlpacaProvider {
	p := NewAlpacaProvider(c, "iex", 6000)
	p.now = func() time.Time { return now }
	p.baseDelay = 0
	return p
}

func TestAlpacaProviderRetriesAndConverts(t *testing.T) {
	now := day(2024, 6, 12).Add(20 * time.Hour)
	fake := &fakeBars{
		fail: 1,
		bars: []marketdata.Bar{
			{Timestamp: day(2024, 6, 10), Close: 10, Volume: 5},
			{Timestamp: day(2024, 6, 11), Close: 11, Volume: 6},
		},
	}
	p := newTestAlpaca(fake, now)

	s, err := p.Series(context.Background(), "spy", SixMonths)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, s.Closes)
	assert.Len(t, s.Timestamps, 2)

	require.Len(t, fake.calls, 2)
	req := fake.calls[1]
	assert.Equal(t, marketdata.OneDay, req.TimeFrame)
	assert.Equal(t, now.AddDate(0, -6, 0), req.Start)
	assert.Equal(t, now, req.End)
}

func TestAlpacaProviderBarSizes(t *testing.T) {
	assert.Equal(t, marketdata.NewTimeFrame(5, marketdata.Min), barSize(OneDay))
	assert.Equal(t, marketdata.NewTimeFrame(30, marketdata.Min), barSize(FiveDays))
	assert.Equal(t, marketdata.OneDay, barSize(OneYear))
	assert.Equal(t, marketdata.NewTimeFrame(1, marketdata.Week), barSize(FiveYears))
}

func TestAlpacaProviderGivesUp(t *testing.T) {
	fake := &fakeBars{fail: 10}
	p := newTestAlpaca(fake, time.Now())
	_, err := p.Series(context.Background(), "SPY", OneYear)
	assert.Error(t, err)
	assert.Len(t, fake.calls, 3)
}

type stubProvider struct {
	name   string
	series viewport.Series
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Series(context.Context, string, Timeframe) (viewport.Series, error) {
	s.calls++
	return s.series, s.err
}

func TestChainFallsThrough(t *testing.T) {
	failing := &stubProvider{name: "alpaca", err: errors.New("unauthorized")}
	empty := &stubProvider{name: "cache"}
	good := &stubProvider{name: "parquet", series: viewport.Series{Closes: []float64{1, 2}}}

	c := NewChain(nil, failing, empty, good)
	assert.Equal(t, "alpaca+cache+parquet", c.Name())

	s, err := c.Series(context.Background(), "X", OneYear)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
}

func TestChainReportsLastError(t *testing.T) {
	boom := errors.New("boom")
	c := NewChain(nil, &stubProvider{name: "a", err: boom}, &stubProvider{name: "b"})
	s, err := c.Series(context.Background(), "X", OneYear)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())

	s, err = NewChain(nil, &stubProvider{name: "b"}).Series(context.Background(), "X", OneYear)
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestFromConfig(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET_KEY", "")
	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_API_SECRET", "")
	cfg, err := config.Default()
	require.NoError(t, err)
	ps := store.NewParquetStore(t.TempDir())

	assert.Equal(t, "parquet", FromConfig(cfg, ps, nil).Name())

	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "key", "secret"
	assert.Equal(t, "parquet+alpaca", FromConfig(cfg, ps, nil).Name())
}
