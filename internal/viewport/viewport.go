// Package viewport implements the interactive chart viewport: windowing a
// price series by zoom/pan state, a gesture state machine that turns pointer
// and touch events into zoom/pan updates, and a scrub mapper that converts a
// pointer position into a highlighted data point.
//
// Everything here is pure in-memory state driven synchronously by the caller.
// Render layers (the terminal viewer, HTTP clients, gRPC subscribers) call
// into a Chart and read back Frames.
package viewport

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrTimestampMismatch is returned when a Series carries timestamps whose
// count differs from the number of closes.
var ErrTimestampMismatch = errors.New("timestamps length does not match closes length")

// Series is an ordered sequence of closing prices, optionally paired with
// timestamps of equal length. A Series is replaced wholesale, never appended.
type Series struct {
	Closes     []float64   `json:"closes"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
}

// Validate reports whether the timestamps (when present) line up with the
// closes.
func (s Series) Validate() error {
	if len(s.Timestamps) > 0 && len(s.Timestamps) != len(s.Closes) {
		return fmt.Errorf("%w: %d timestamps, %d closes", ErrTimestampMismatch, len(s.Timestamps), len(s.Closes))
	}
	return nil
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.Closes) }

// Equal reports whether two series hold the same samples.
func (s Series) Equal(o Series) bool {
	if len(s.Closes) != len(o.Closes) || len(s.Timestamps) != len(o.Timestamps) {
		return false
	}
	for i := range s.Closes {
		if s.Closes[i] != o.Closes[i] {
			return false
		}
	}
	for i := range s.Timestamps {
		if !s.Timestamps[i].Equal(o.Timestamps[i]) {
			return false
		}
	}
	return true
}

func (s Series) clone() Series {
	out := Series{Closes: append([]float64(nil), s.Closes...)}
	if len(s.Timestamps) > 0 {
		out.Timestamps = append([]time.Time(nil), s.Timestamps...)
	}
	return out
}

// State is the zoom/pan viewport. PanOffset is the left edge of the visible
// window as a fraction of the full series; the window spans 1/Scale of it.
type State struct {
	Scale     float64 `json:"scale"`
	PanOffset float64 `json:"panOffset"`
}

// Identity is the unzoomed viewport.
var Identity = State{Scale: 1, PanOffset: 0}

// Rect is the chart's rendered bounding box in screen coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether (x, y) lies inside r. A zero Height disables the
// vertical check so callers that only track the horizontal axis still work.
func (r Rect) Contains(x, y float64) bool {
	if x < r.Left || x > r.Left+r.Width {
		return false
	}
	if r.Height > 0 && (y < r.Top || y > r.Top+r.Height) {
		return false
	}
	return true
}

// fraction maps x to [0, 1] across the rect's width.
func (r Rect) fraction(x float64) float64 {
	if !(r.Width > 0) {
		return 0
	}
	return clamp((x-r.Left)/r.Width, 0, 1)
}

// Buffer configures the flat lead-in drawn before the first real sample.
type Buffer struct {
	Enabled   bool    `json:"enabled"`
	Fraction  float64 `json:"fraction"`
	MinPoints int     `json:"minPoints"`
}

// Options bound and tune the gesture machine.
type Options struct {
	MinScale      float64
	MaxScale      float64
	ZoomStep      float64 // multiplicative factor for ZoomIn/ZoomOut
	DeadZone      float64 // pixels a single contact must travel before panning
	AxisLockRatio float64 // |dx| must exceed |dy|*AxisLockRatio to start a pan
	Buffer        Buffer
}

// DefaultOptions returns the bounds observed in the dashboard charts.
func DefaultOptions() Options {
	return Options{
		MinScale:      1,
		MaxScale:      5,
		ZoomStep:      1.5,
		DeadZone:      10,
		AxisLockRatio: 1.2,
		Buffer: Buffer{
			Enabled:   false,
			Fraction:  0.15,
			MinPoints: 5,
		},
	}
}

// normalized replaces out-of-range values with defaults.
func (o Options) normalized() Options {
	def := DefaultOptions()
	if !(o.MinScale >= 1) {
		o.MinScale = def.MinScale
	}
	if !(o.MaxScale >= o.MinScale) {
		o.MaxScale = math.Max(def.MaxScale, o.MinScale)
	}
	if !(o.ZoomStep > 1) {
		o.ZoomStep = def.ZoomStep
	}
	if !(o.DeadZone >= 0) {
		o.DeadZone = def.DeadZone
	}
	if !(o.AxisLockRatio >= 1) {
		o.AxisLockRatio = def.AxisLockRatio
	}
	if o.Buffer.Fraction < 0 || math.IsNaN(o.Buffer.Fraction) {
		o.Buffer.Fraction = def.Buffer.Fraction
	}
	if o.Buffer.MinPoints < 0 {
		o.Buffer.MinPoints = 0
	}
	return o
}

// Phase is the gesture machine's current mode.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePanning
	PhaseZooming
)

func (p Phase) String() string {
	switch p {
	case PhasePanning:
		return "panning"
	case PhaseZooming:
		return "zooming"
	default:
		return "idle"
	}
}

// EventKind identifies a pointer or touch event.
type EventKind int

const (
	EventDown EventKind = iota
	EventMove
	EventUp
	EventCancel
	EventLeave
)

var eventKindNames = [...]string{"down", "move", "up", "cancel", "leave"}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// ParseEventKind accepts the lower-case names as well as the DOM spellings
// (pointerdown, touchstart, touchend, ...).
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down", "pointerdown", "touchstart", "mousedown":
		return EventDown, nil
	case "move", "pointermove", "touchmove", "mousemove":
		return EventMove, nil
	case "up", "pointerup", "touchend", "mouseup":
		return EventUp, nil
	case "cancel", "pointercancel", "touchcancel":
		return EventCancel, nil
	case "leave", "pointerleave", "mouseleave":
		return EventLeave, nil
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Point is one active contact.
type Point struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Event is a pointer or touch event. Points lists the contacts active at the
// time of the event; for Up and Cancel it lists the contacts still down
// after the release.
type Event struct {
	Kind   EventKind
	Points []Point
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
