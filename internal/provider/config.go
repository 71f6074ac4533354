package provider

import (
	"pulsechart/internal/config"
	"pulsechart/internal/domain"
	"pulsechart/internal/metrics"
	"pulsechart/internal/store"
)

// FromConfig builds the provider the commands share: local Parquet bars
// first, then Alpaca when credentials are configured.
func FromConfig(cfg *config.Config, bars store.BarStore, rec *metrics.Recorder) Provider {
	ps := []Provider{NewParquetProvider(bars, domain.Market(cfg.Storage.Market))}
	if cfg.Alpaca.HasCredentials() {
		client := NewAlpacaClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
		ps = append(ps, NewAlpacaProvider(client, cfg.Alpaca.Feed, cfg.Alpaca.RateLimitPerMin))
	}
	return NewChain(rec, ps...)
}
