// Package chartsvc keeps the set of live chart sessions the HTTP API, the
// gRPC stream and the refresh job operate on.
package chartsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulsechart/internal/metrics"
	"pulsechart/internal/provider"
	"pulsechart/internal/viewport"
)

var (
	// ErrNotFound is returned for an unknown chart id.
	ErrNotFound = errors.New("chart not found")
	// ErrInvalidSpec is returned when a create request names neither a
	// symbol nor inline closes.
	ErrInvalidSpec = errors.New("invalid chart spec")
	// ErrNoSource is returned when reloading a chart created from inline data.
	ErrNoSource = errors.New("chart has no symbol source")
	// ErrSuperseded is returned when the chart's series or source changed
	// while a load for it was in flight.
	ErrSuperseded = errors.New("chart changed while loading")
)

// Spec describes a chart to create: either Symbol (with an optional
// Timeframe) or inline Closes.
type Spec struct {
	Symbol     string      `json:"symbol,omitempty"`
	Timeframe  string      `json:"timeframe,omitempty"`
	Closes     []float64   `json:"closes,omitempty"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
}

// Source records where a symbol-backed chart loads from.
type Source struct {
	Symbol    string             `json:"symbol"`
	Timeframe provider.Timeframe `json:"timeframe"`
}

// Entry is one registered chart.
type Entry struct {
	ID      string
	Chart   *viewport.Chart
	Created time.Time

	mu     sync.Mutex
	source *Source
	gen    uint64 // bumped whenever the series or source is swapped
}

// snapshot returns a copy of the source with the generation it belongs to.
func (e *Entry) snapshot() (*Source, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == nil {
		return nil, e.gen
	}
	src := *e.source
	return &src, e.gen
}

// swap installs series and src together, provided nothing else was swapped
// in since generation gen was read.
func (e *Entry) swap(gen uint64, series viewport.Series, src *Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return ErrSuperseded
	}
	if err := e.Chart.SetSeries(series); err != nil {
		return err
	}
	e.source = src
	e.gen++
	return nil
}

// Source returns the chart's symbol source, or nil for inline charts.
func (e *Entry) Source() *Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == nil {
		return nil
	}
	s := *e.source
	return &s
}

// Info is the listing view of an Entry.
type Info struct {
	ID        string    `json:"id"`
	Source    *Source   `json:"source,omitempty"`
	SeriesLen int       `json:"seriesLen"`
	Created   time.Time `json:"created"`
}

// Service is the chart registry. It is safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	charts map[string]*Entry

	provider  provider.Provider
	opts      viewport.Options
	narrator  viewport.Narrator
	defaultTF provider.Timeframe
	metrics   *metrics.Recorder
	log       *slog.Logger
}

// New creates a Service. p may be nil when only inline charts are used.
func New(p provider.Provider, opts viewport.Options, rec *metrics.Recorder) *Service {
	return &Service{
		charts:    make(map[string]*Entry),
		provider:  p,
		opts:      opts,
		defaultTF: provider.OneYear,
		metrics:   rec,
		log:       slog.Default().With("component", "chartsvc"),
	}
}

// SetNarrator sets the narrator attached to charts created afterwards.
func (s *Service) SetNarrator(n viewport.Narrator) { s.narrator = n }

// SetDefaultTimeframe sets the timeframe used when a Spec names none.
func (s *Service) SetDefaultTimeframe(tf provider.Timeframe) { s.defaultTF = tf }

// Create builds a chart from spec, loading the series through the provider
// when spec names a symbol.
func (s *Service) Create(ctx context.Context, spec Spec) (*Entry, error) {
	var (
		series viewport.Series
		src    *Source
	)
	switch {
	case spec.Symbol != "":
		tf := s.defaultTF
		if spec.Timeframe != "" {
			var err error
			if tf, err = provider.ParseTimeframe(spec.Timeframe); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
			}
		}
		src = &Source{Symbol: strings.ToUpper(spec.Symbol), Timeframe: tf}
		var err error
		if series, err = s.load(ctx, *src); err != nil {
			return nil, err
		}
	case spec.Closes != nil:
		series = viewport.Series{Closes: spec.Closes, Timestamps: spec.Timestamps}
	default:
		return nil, fmt.Errorf("%w: symbol or closes required", ErrInvalidSpec)
	}

	c := viewport.NewChart(s.opts)
	if err := c.SetSeries(series); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if s.narrator != nil {
		c.SetNarrator(s.narrator)
	}

	e := &Entry{ID: uuid.NewString(), Chart: c, Created: time.Now(), source: src}
	s.mu.Lock()
	s.charts[e.ID] = e
	n := len(s.charts)
	s.mu.Unlock()

	s.metrics.SetChartsOpen(n)
	s.log.Info("chart created", "id", e.ID, "points", series.Len(), "source", src)
	return e, nil
}

// Get returns the chart registered under id.
func (s *Service) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.charts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Delete removes a chart and closes its subscriptions.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.charts[id]
	if ok {
		delete(s.charts, id)
	}
	n := len(s.charts)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.Chart.Close()
	s.metrics.SetChartsOpen(n)
	s.log.Info("chart deleted", "id", id)
	return nil
}

// List returns every chart ordered by creation time.
func (s *Service) List() []Info {
	s.mu.RLock()
	out := make([]Info, 0, len(s.charts))
	for _, e := range s.charts {
		out = append(out, Info{
			ID:        e.ID,
			Source:    e.Source(),
			SeriesLen: e.Chart.Series().Len(),
			Created:   e.Created,
		})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Replace swaps in a new series, resetting the chart's viewport. The chart
// no longer follows its symbol source afterwards, and loads still in flight
// for the old source are dropped.
func (s *Service) Replace(id string, series viewport.Series) (viewport.Frame, error) {
	e, err := s.Get(id)
	if err != nil {
		return viewport.Frame{}, err
	}
	e.mu.Lock()
	err = e.Chart.SetSeries(series)
	if err == nil {
		e.source = nil
		e.gen++
	}
	e.mu.Unlock()
	if err != nil {
		return viewport.Frame{}, err
	}
	return e.Chart.Frame(), nil
}

// SetTimeframe switches a symbol-backed chart to tf and reloads it.
func (s *Service) SetTimeframe(ctx context.Context, id string, tf provider.Timeframe) (viewport.Frame, error) {
	e, err := s.Get(id)
	if err != nil {
		return viewport.Frame{}, err
	}
	src, gen := e.snapshot()
	if src == nil {
		return viewport.Frame{}, ErrNoSource
	}
	src.Timeframe = tf
	series, err := s.load(ctx, *src)
	if err != nil {
		return viewport.Frame{}, err
	}
	if err := e.swap(gen, series, src); err != nil {
		return viewport.Frame{}, err
	}
	return e.Chart.Frame(), nil
}

// Reload refetches a symbol-backed chart. The series is replaced, and the
// viewport reset, only when the data changed; changed reports which. A
// reload overtaken by Replace or SetTimeframe is discarded.
func (s *Service) Reload(ctx context.Context, id string) (changed bool, err error) {
	e, err := s.Get(id)
	if err != nil {
		return false, err
	}
	src, gen := e.snapshot()
	if src == nil {
		return false, ErrNoSource
	}
	series, err := s.load(ctx, *src)
	if err != nil {
		return false, err
	}
	if series.Len() == 0 || series.Equal(e.Chart.Series()) {
		return false, nil
	}
	if err := e.swap(gen, series, src); err != nil {
		if errors.Is(err, ErrSuperseded) {
			s.log.Info("reload superseded", "id", id, "symbol", src.Symbol)
			return false, nil
		}
		return false, err
	}
	s.log.Info("chart reloaded", "id", id, "symbol", src.Symbol, "points", series.Len())
	return true, nil
}

// Sourced returns the ids of charts that follow a symbol.
func (s *Service) Sourced() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, e := range s.charts {
		if e.Source() != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close deletes every chart.
func (s *Service) Close() {
	s.mu.Lock()
	charts := s.charts
	s.charts = make(map[string]*Entry)
	s.mu.Unlock()
	for _, e := range charts {
		e.Chart.Close()
	}
	s.metrics.SetChartsOpen(0)
}

func (s *Service) load(ctx context.Context, src Source) (viewport.Series, error) {
	if s.provider == nil {
		return viewport.Series{}, fmt.Errorf("%w: no series provider configured", ErrInvalidSpec)
	}
	series, err := s.provider.Series(ctx, src.Symbol, src.Timeframe)
	if err != nil {
		return viewport.Series{}, fmt.Errorf("loading %s %s: %w", src.Symbol, src.Timeframe, err)
	}
	return series, nil
}
