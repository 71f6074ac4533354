// Package httpapi serves the chart sessions over a JSON REST API so browser
// and other remote render layers can drive a chart and draw its frames.
package httpapi

import (
	"time"

	"pulsechart/internal/chartsvc"
	"pulsechart/internal/dashboard"
	"pulsechart/internal/viewport"
)

// EventRequest is one pointer/touch event. Kind accepts the short names
// ("down", "move", ...) and the DOM event names.
type EventRequest struct {
	Kind   string           `json:"kind"`
	Points []viewport.Point `json:"points"`
	Rect   viewport.Rect    `json:"rect"`
}

// ZoomRequest zooms by Factor keeping the sample under X in place.
type ZoomRequest struct {
	Factor float64       `json:"factor"`
	X      float64       `json:"x"`
	Rect   viewport.Rect `json:"rect"`
}

// PanRequest shifts the window by Fraction of its width.
type PanRequest struct {
	Fraction float64 `json:"fraction"`
}

// BufferRequest toggles the lead-in buffer.
type BufferRequest struct {
	Enabled bool `json:"enabled"`
}

// TimeframeRequest switches a symbol chart's lookback.
type TimeframeRequest struct {
	Timeframe string `json:"timeframe"`
}

// SeriesRequest replaces a chart's series.
type SeriesRequest struct {
	Closes     []float64   `json:"closes"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
}

// PrefRequest sets a preference value.
type PrefRequest struct {
	Value string `json:"value"`
}

// FrameJSON is a chart frame plus the values a client needs to draw it.
type FrameJSON struct {
	ID      string                `json:"id"`
	Frame   viewport.Frame        `json:"frame"`
	Path    []float64             `json:"path"`
	Stats   dashboard.WindowStats `json:"stats"`
	Tooltip string                `json:"tooltip,omitempty"`
	Range   string                `json:"range,omitempty"`
}

// ChartJSON is the create/list view of a chart.
type ChartJSON struct {
	chartsvc.Info
	Frame *FrameJSON `json:"frame,omitempty"`
}

// NewFrameJSON builds the response body for a frame.
func NewFrameJSON(id string, f viewport.Frame) FrameJSON {
	out := FrameJSON{
		ID:    id,
		Frame: f,
		Path:  f.Path(),
		Stats: dashboard.Summarize(f.Visible),
	}
	if f.Point != nil {
		var at time.Time
		if f.At != nil {
			at = *f.At
		}
		out.Tooltip = dashboard.FormatTooltip(*f.Point, at)
	}
	if f.From != nil && f.To != nil {
		out.Range = dashboard.FormatRange(*f.From, *f.To)
	}
	return out
}
