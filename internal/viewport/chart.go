package viewport

import (
	"sync"
	"time"
)

// Narrator announces the highlighted value when a scrub ends. It stands in
// for the dashboard's speech/beep output.
type Narrator interface {
	Announce(p DerivedPoint)
}

// Frame is a render snapshot of a Chart.
type Frame struct {
	Seq          uint64        `json:"seq"`
	Phase        string        `json:"phase"`
	State        State         `json:"state"`
	Window       Window        `json:"window"`
	SeriesLen    int           `json:"seriesLen"`
	Visible      []float64     `json:"visible"`
	Buffer       int           `json:"buffer"`
	ActiveIndex  *int          `json:"activeIndex"`
	Cursor       int           `json:"cursor"` // index into the padded path
	Point        *DerivedPoint `json:"point,omitempty"`
	At           *time.Time    `json:"at,omitempty"` // timestamp of the active sample
	From         *time.Time    `json:"from,omitempty"`
	To           *time.Time    `json:"to,omitempty"`
	Insufficient bool          `json:"insufficient"`
}

// Path returns the values to draw: the visible window with the buffer
// lead-in prepended.
func (f Frame) Path() []float64 { return PadSeries(f.Visible, f.Buffer) }

// Chart owns one series together with its viewport and scrub state. Charts
// never share state with each other. A Chart is safe for concurrent use.
type Chart struct {
	mu       sync.Mutex
	opts     Options
	series   Series
	machine  *Machine
	active   *int // scrubbed index into the visible real samples
	cursor   int
	owned    bool // zoom/pan claimed the gesture; held until every contact lifts
	narrator Narrator
	seq      uint64

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Frame
}

// NewChart creates an empty Chart.
func NewChart(opts Options) *Chart {
	opts = opts.normalized()
	return &Chart{
		opts:    opts,
		machine: NewMachine(opts),
		subs:    make(map[int]chan Frame),
	}
}

// SetNarrator installs n; nil disables announcements.
func (c *Chart) SetNarrator(n Narrator) {
	c.mu.Lock()
	c.narrator = n
	c.mu.Unlock()
}

// SetSeries replaces the series. Viewport and scrub state, including any
// gesture in flight, are reset to identity.
func (c *Chart) SetSeries(s Series) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.series = s.clone()
	c.machine.Reset()
	c.clearScrub()
	c.owned = false
	c.seq++
	f := c.frameLocked()
	c.mu.Unlock()
	c.publish(f)
	return nil
}

// Series returns a copy of the current series.
func (c *Chart) Series() Series {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.series.clone()
}

// SetBuffer toggles the lead-in buffer.
func (c *Chart) SetBuffer(enabled bool) Frame {
	return c.mutate(func() {
		c.opts.Buffer.Enabled = enabled
		c.clearScrub()
	})
}

// Buffer returns the current buffer configuration.
func (c *Chart) Buffer() Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Buffer
}

// Reset returns the viewport to identity and drops any scrub.
func (c *Chart) Reset() Frame {
	return c.mutate(func() {
		c.machine.Reset()
		c.clearScrub()
		c.owned = false
	})
}

// ZoomIn steps the zoom in around the viewport centre.
func (c *Chart) ZoomIn() Frame {
	return c.mutate(func() {
		c.machine.ZoomIn()
		c.clearScrub()
	})
}

// ZoomOut steps the zoom out around the viewport centre.
func (c *Chart) ZoomOut() Frame {
	return c.mutate(func() {
		c.machine.ZoomOut()
		c.clearScrub()
	})
}

// ZoomAt zooms by factor keeping the sample under x in place.
func (c *Chart) ZoomAt(factor, x float64, rect Rect) Frame {
	return c.mutate(func() {
		c.machine.ZoomAt(factor, x, rect)
		c.clearScrub()
	})
}

// PanBy shifts the window by a fraction of its width.
func (c *Chart) PanBy(fraction float64) Frame {
	return c.mutate(func() {
		c.machine.PanBy(fraction)
		c.clearScrub()
	})
}

// Handle feeds a pointer or touch event through gesture arbitration: the
// zoom/pan machine sees every event, and scrubbing only happens while it
// does not own the gesture.
func (c *Chart) Handle(ev Event, rect Rect) Frame {
	var (
		announce *DerivedPoint
		n        Narrator
	)
	f := c.mutate(func() {
		if ev.Kind == EventDown && len(ev.Points) == 1 {
			// Only one contact is down, so any earlier gesture is over.
			c.owned = false
		}

		c.machine.Handle(ev, rect)
		if c.machine.Active() {
			c.owned = true
			c.clearScrub()
		}

		switch ev.Kind {
		case EventDown:
			if len(ev.Points) == 1 && !c.owned {
				p := ev.Points[0]
				if rect.Contains(p.X, p.Y) {
					c.scrub(p.X, rect)
				}
			}
		case EventMove:
			// Pointer capture: once scrubbing, moves outside the rect still
			// update (and clamp) the index.
			if len(ev.Points) == 1 && !c.owned && c.active != nil {
				c.scrub(ev.Points[0].X, rect)
			}
		case EventUp, EventCancel, EventLeave:
			if c.active != nil && c.narrator != nil {
				if p, ok := c.derivedLocked(); ok {
					announce, n = &p, c.narrator
				}
			}
			c.clearScrub()
			if len(ev.Points) == 0 {
				c.owned = false
			}
		}
	})
	if announce != nil {
		n.Announce(*announce)
	}
	return f
}

// Frame returns the current render snapshot.
func (c *Chart) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked()
}

// Subscribe registers for Frames published after every state change. Slow
// subscribers miss frames rather than block the chart.
func (c *Chart) Subscribe(bufSize int) (int, <-chan Frame) {
	ch := make(chan Frame, bufSize)
	c.subsMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Chart) Unsubscribe(id int) {
	c.subsMu.Lock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()
}

// Close drops every subscription.
func (c *Chart) Close() {
	c.subsMu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()
}

func (c *Chart) mutate(fn func()) Frame {
	c.mu.Lock()
	fn()
	c.seq++
	f := c.frameLocked()
	c.mu.Unlock()
	c.publish(f)
	return f
}

func (c *Chart) publish(f Frame) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// scrub sets the active index from x. Must be called with mu held.
func (c *Chart) scrub(x float64, rect Rect) {
	w := Visible(c.series.Len(), c.machine.State())
	if w.Insufficient() {
		c.clearScrub()
		return
	}
	m := w.Len()
	b := c.opts.Buffer.BufferSize(m)
	c.cursor = IndexAt(x, rect, m+b)
	idx := RealIndex(c.cursor, b, m)
	c.active = &idx
}

func (c *Chart) clearScrub() {
	c.active = nil
	c.cursor = 0
}

func (c *Chart) derivedLocked() (DerivedPoint, bool) {
	if c.active == nil {
		return DerivedPoint{}, false
	}
	w := Visible(c.series.Len(), c.machine.State())
	return Derive(w.Slice(c.series.Closes), *c.active)
}

func (c *Chart) frameLocked() Frame {
	st := c.machine.State()
	w := Visible(c.series.Len(), st)
	visible := w.Slice(c.series.Closes)
	f := Frame{
		Seq:          c.seq,
		Phase:        c.machine.Phase().String(),
		State:        st,
		Window:       w,
		SeriesLen:    c.series.Len(),
		Visible:      append([]float64(nil), visible...),
		Insufficient: w.Insufficient(),
	}
	if !f.Insufficient {
		f.Buffer = c.opts.Buffer.BufferSize(w.Len())
	}
	if len(c.series.Timestamps) == c.series.Len() && w.Len() > 0 {
		from, to := c.series.Timestamps[w.Start], c.series.Timestamps[w.End]
		f.From, f.To = &from, &to
	}
	if c.active != nil && len(visible) > 0 {
		idx := *c.active
		if idx > len(visible)-1 {
			idx = len(visible) - 1
		}
		if idx < 0 {
			idx = 0
		}
		f.ActiveIndex = &idx
		f.Cursor = c.cursor
		if p, ok := Derive(visible, idx); ok {
			f.Point = &p
		}
		if len(c.series.Timestamps) == c.series.Len() && w.Start+idx < c.series.Len() {
			at := c.series.Timestamps[w.Start+idx]
			f.At = &at
		}
	}
	return f
}
