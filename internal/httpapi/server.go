package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pulsechart/internal/chartsvc"
	"pulsechart/internal/metrics"
	"pulsechart/internal/prefs"
	"pulsechart/internal/provider"
	"pulsechart/internal/viewport"
)

const maxBodyBytes = 4 << 20

// ChartServer serves the chart HTTP API.
type ChartServer struct {
	charts  *chartsvc.Service
	prefs   prefs.Store
	metrics *metrics.Recorder
	log     *slog.Logger
}

// NewChartServer creates a ChartServer. store and rec may be nil; the prefs
// routes then answer 404 and /metrics is not served.
func NewChartServer(charts *chartsvc.Service, store prefs.Store, rec *metrics.Recorder, log *slog.Logger) *ChartServer {
	if log == nil {
		log = slog.Default()
	}
	return &ChartServer{
		charts:  charts,
		prefs:   store,
		metrics: rec,
		log:     log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *ChartServer) RegisterRoutes(mux *http.ServeMux) {
	s.handle(mux, "GET /api/charts", s.handleListCharts)
	s.handle(mux, "POST /api/charts", s.handleCreateChart)
	s.handle(mux, "GET /api/charts/{id}", s.handleGetFrame)
	s.handle(mux, "DELETE /api/charts/{id}", s.handleDeleteChart)
	s.handle(mux, "PUT /api/charts/{id}/series", s.handleReplaceSeries)
	s.handle(mux, "PUT /api/charts/{id}/timeframe", s.handleSetTimeframe)
	s.handle(mux, "PUT /api/charts/{id}/buffer", s.handleSetBuffer)
	s.handle(mux, "POST /api/charts/{id}/events", s.handleEvent)
	s.handle(mux, "POST /api/charts/{id}/reset", s.action(func(c *viewport.Chart) viewport.Frame { return c.Reset() }))
	s.handle(mux, "POST /api/charts/{id}/zoom-in", s.action(func(c *viewport.Chart) viewport.Frame { return c.ZoomIn() }))
	s.handle(mux, "POST /api/charts/{id}/zoom-out", s.action(func(c *viewport.Chart) viewport.Frame { return c.ZoomOut() }))
	s.handle(mux, "POST /api/charts/{id}/zoom", s.handleZoom)
	s.handle(mux, "POST /api/charts/{id}/pan", s.handlePan)
	s.handle(mux, "GET /api/prefs", s.handleListPrefs)
	s.handle(mux, "GET /api/prefs/{key}", s.handleGetPref)
	s.handle(mux, "PUT /api/prefs/{key}", s.handleSetPref)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *ChartServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// handle registers fn under pattern, recording request metrics against the
// pattern rather than the raw path.
func (s *ChartServer) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		fn(sw, r)
		s.metrics.RecordHTTP(pattern, r.Method, sw.status, time.Since(start))
		if sw.status >= 500 {
			s.log.Error("request failed", "route", pattern, "status", sw.status)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chartsvc.ErrNotFound), errors.Is(err, prefs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chartsvc.ErrInvalidSpec),
		errors.Is(err, viewport.ErrTimestampMismatch),
		errors.Is(err, provider.ErrUnknownTimeframe):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chartsvc.ErrNoSource), errors.Is(err, chartsvc.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *ChartServer) entry(w http.ResponseWriter, r *http.Request) (*chartsvc.Entry, bool) {
	e, err := s.charts.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return e, true
}

// ---------------------------------------------------------------------------
// Chart handlers
// ---------------------------------------------------------------------------

func (s *ChartServer) handleListCharts(w http.ResponseWriter, _ *http.Request) {
	list := s.charts.List()
	out := make([]ChartJSON, len(list))
	for i, info := range list {
		out[i] = ChartJSON{Info: info}
	}
	writeJSON(w, out)
}

func (s *ChartServer) handleCreateChart(w http.ResponseWriter, r *http.Request) {
	var spec chartsvc.Spec
	if !decode(w, r, &spec) {
		return
	}
	e, err := s.charts.Create(r.Context(), spec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	f := NewFrameJSON(e.ID, e.Chart.Frame())
	writeJSONStatus(w, http.StatusCreated, ChartJSON{
		Info: chartsvc.Info{
			ID:        e.ID,
			Source:    e.Source(),
			SeriesLen: f.Frame.SeriesLen,
			Created:   e.Created,
		},
		Frame: &f,
	})
}

func (s *ChartServer) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, NewFrameJSON(e.ID, e.Chart.Frame()))
}

func (s *ChartServer) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	if err := s.charts.Delete(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ChartServer) handleReplaceSeries(w http.ResponseWriter, r *http.Request) {
	var req SeriesRequest
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	f, err := s.charts.Replace(id, viewport.Series{Closes: req.Closes, Timestamps: req.Timestamps})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, NewFrameJSON(id, f))
}

func (s *ChartServer) handleSetTimeframe(w http.ResponseWriter, r *http.Request) {
	var req TimeframeRequest
	if !decode(w, r, &req) {
		return
	}
	tf, err := provider.ParseTimeframe(req.Timeframe)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id := r.PathValue("id")
	f, err := s.charts.SetTimeframe(r.Context(), id, tf)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, NewFrameJSON(id, f))
}

func (s *ChartServer) handleSetBuffer(w http.ResponseWriter, r *http.Request) {
	var req BufferRequest
	if !decode(w, r, &req) {
		return
	}
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, NewFrameJSON(e.ID, e.Chart.SetBuffer(req.Enabled)))
}

func (s *ChartServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decode(w, r, &req) {
		return
	}
	kind, err := viewport.ParseEventKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	s.metrics.RecordEvent(kind.String())
	f := e.Chart.Handle(viewport.Event{Kind: kind, Points: req.Points}, req.Rect)
	writeJSON(w, NewFrameJSON(e.ID, f))
}

func (s *ChartServer) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !decode(w, r, &req) {
		return
	}
	if !(req.Factor > 0) {
		writeError(w, http.StatusBadRequest, "factor must be positive")
		return
	}
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, NewFrameJSON(e.ID, e.Chart.ZoomAt(req.Factor, req.X, req.Rect)))
}

func (s *ChartServer) handlePan(w http.ResponseWriter, r *http.Request) {
	var req PanRequest
	if !decode(w, r, &req) {
		return
	}
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, NewFrameJSON(e.ID, e.Chart.PanBy(req.Fraction)))
}

// action wraps a body-less chart operation.
func (s *ChartServer) action(fn func(*viewport.Chart) viewport.Frame) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := s.entry(w, r)
		if !ok {
			return
		}
		writeJSON(w, NewFrameJSON(e.ID, fn(e.Chart)))
	}
}

// ---------------------------------------------------------------------------
// Preference handlers
// ---------------------------------------------------------------------------

func (s *ChartServer) handleListPrefs(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		writeError(w, http.StatusNotFound, "preferences not configured")
		return
	}
	all, err := s.prefs.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, all)
}

func (s *ChartServer) handleGetPref(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		writeError(w, http.StatusNotFound, "preferences not configured")
		return
	}
	key := r.PathValue("key")
	v, err := s.prefs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, prefs.ErrNotFound) {
			writeServiceError(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"key": key, "value": v})
}

func (s *ChartServer) handleSetPref(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		writeError(w, http.StatusNotFound, "preferences not configured")
		return
	}
	var req PrefRequest
	if !decode(w, r, &req) {
		return
	}
	key := r.PathValue("key")
	if err := s.prefs.Set(r.Context(), key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"key": key, "value": req.Value})
}
