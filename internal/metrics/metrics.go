// Package metrics records pulsechart's Prometheus metrics. A nil *Recorder is
// valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	chartsOpen      prometheus.Gauge
	chartEvents     *prometheus.CounterVec
	seriesLoads     *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	subscribers     prometheus.Gauge
	refreshRuns     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates a Recorder on a fresh registry that also exports the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		chartsOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "pulsechart_charts_open",
			Help: "Number of chart sessions currently registered",
		}),
		chartEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsechart_chart_events_total",
				Help: "Pointer and touch events fed into charts",
			},
			[]string{"kind"},
		),
		seriesLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsechart_series_loads_total",
				Help: "Series fetched from providers",
			},
			[]string{"provider", "status"},
		),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsechart_provider_duration_seconds",
				Help:    "Duration of provider series fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "pulsechart_stream_subscribers",
			Help: "Open gRPC frame streams",
		}),
		refreshRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsechart_refresh_total",
				Help: "Chart refresh outcomes",
			},
			[]string{"result"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsechart_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsechart_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"route", "method"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SetChartsOpen records the number of registered charts.
func (r *Recorder) SetChartsOpen(n int) {
	if r == nil {
		return
	}
	r.chartsOpen.Set(float64(n))
}

// RecordEvent counts one chart event of the given kind.
func (r *Recorder) RecordEvent(kind string) {
	if r == nil {
		return
	}
	r.chartEvents.WithLabelValues(kind).Inc()
}

// RecordSeriesLoad records a provider fetch and its duration.
func (r *Recorder) RecordSeriesLoad(provider string, err error, d time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.seriesLoads.WithLabelValues(provider, status).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// StreamOpened and StreamClosed track live gRPC subscribers.
func (r *Recorder) StreamOpened() {
	if r == nil {
		return
	}
	r.subscribers.Inc()
}

func (r *Recorder) StreamClosed() {
	if r == nil {
		return
	}
	r.subscribers.Dec()
}

// RecordRefresh counts one chart refresh by outcome: "replaced",
// "unchanged" or "error".
func (r *Recorder) RecordRefresh(result string) {
	if r == nil {
		return
	}
	r.refreshRuns.WithLabelValues(result).Inc()
}

// RecordHTTP records one served request. route should be the registered
// pattern, not the raw URL.
func (r *Recorder) RecordHTTP(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
