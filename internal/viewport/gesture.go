package viewport

import "math"

// Machine turns pointer and touch events into zoom/pan state. It never
// panics on malformed sequences; anything it cannot make sense of leaves it
// Idle.
type Machine struct {
	opts  Options
	state State
	phase Phase

	// Single-contact tracking for panning.
	contact     bool
	contactID   int
	startX      float64
	startY      float64
	startOffset float64
	declined    bool // vertical-dominant move, pan refused for this contact

	// Pinch baseline.
	pinchDist  float64
	pinchScale float64
	anchor     float64 // series fraction under the initial pinch midpoint
}

// NewMachine creates a Machine at the identity state.
func NewMachine(opts Options) *Machine {
	m := &Machine{opts: opts.normalized()}
	m.Reset()
	return m
}

// State returns the current viewport.
func (m *Machine) State() State { return m.state }

// Phase returns the current gesture phase.
func (m *Machine) Phase() Phase { return m.phase }

// Active reports whether a pan or pinch currently owns the gesture.
func (m *Machine) Active() bool { return m.phase != PhaseIdle }

// Reset forces Idle at scale 1 (the minimum scale), offset 0, whatever the
// current phase.
func (m *Machine) Reset() {
	m.phase = PhaseIdle
	m.state = State{Scale: m.opts.MinScale, PanOffset: 0}
	m.endContact()
	m.pinchDist = 0
}

// ZoomIn steps the scale up by ZoomStep around the viewport centre.
func (m *Machine) ZoomIn() { m.zoomAround(m.opts.ZoomStep, 0.5) }

// ZoomOut steps the scale down by ZoomStep around the viewport centre.
func (m *Machine) ZoomOut() { m.zoomAround(1/m.opts.ZoomStep, 0.5) }

// ZoomAt multiplies the scale by factor keeping the sample under x fixed.
func (m *Machine) ZoomAt(factor, x float64, rect Rect) {
	if !(rect.Width > 0) || !finite(x) {
		m.zoomAround(factor, 0.5)
		return
	}
	m.zoomAround(factor, rect.fraction(x))
}

// PanBy shifts the window by a fraction of its own width. Positive values
// move toward later samples.
func (m *Machine) PanBy(fraction float64) {
	if !finite(fraction) {
		return
	}
	m.state = m.clampState(State{
		Scale:     m.state.Scale,
		PanOffset: m.state.PanOffset + fraction/m.state.Scale,
	})
}

func (m *Machine) zoomAround(factor, f float64) {
	if !(factor > 0) || !finite(factor) {
		return
	}
	anchor := m.state.PanOffset + f/m.state.Scale
	scale := clamp(m.state.Scale*factor, m.opts.MinScale, m.opts.MaxScale)
	m.state = m.clampState(State{Scale: scale, PanOffset: anchor - f/scale})
}

// Handle feeds one event into the machine.
func (m *Machine) Handle(ev Event, rect Rect) {
	switch ev.Kind {
	case EventDown, EventMove:
		if len(ev.Points) >= 2 {
			m.pinch(ev.Points[0], ev.Points[1], rect)
			return
		}
		if m.phase == PhaseZooming && ev.Kind == EventMove {
			// Down to one contact: the pinch is over, and the remaining
			// finger does not turn into a pan.
			m.phase = PhaseIdle
			m.endContact()
			m.pinchDist = 0
			return
		}
		if len(ev.Points) == 0 {
			return
		}
		p := ev.Points[0]
		if ev.Kind == EventDown {
			if m.phase != PhaseIdle {
				// A fresh single contact while a gesture is still open
				// means its terminal event was lost.
				m.phase = PhaseIdle
			}
			m.beginContact(p)
			return
		}
		m.move(p, rect)

	case EventUp, EventCancel, EventLeave:
		if len(ev.Points) >= 2 && m.phase == PhaseZooming {
			// A third finger lifted; re-baseline on the two that remain.
			m.pinchDist = 0
			m.pinch(ev.Points[0], ev.Points[1], rect)
			return
		}
		m.phase = PhaseIdle
		m.endContact()
		m.pinchDist = 0
	}
}

func (m *Machine) beginContact(p Point) {
	m.contact = true
	m.contactID = p.ID
	m.startX, m.startY = p.X, p.Y
	m.startOffset = m.state.PanOffset
	m.declined = false
}

func (m *Machine) endContact() {
	m.contact = false
	m.declined = false
}

func (m *Machine) move(p Point, rect Rect) {
	if !m.contact || p.ID != m.contactID || !finite(p.X) || !finite(p.Y) {
		return
	}
	dx := p.X - m.startX
	dy := p.Y - m.startY

	switch m.phase {
	case PhasePanning:
		m.pan(dx, rect)
	case PhaseIdle:
		if m.declined || m.state.Scale <= 1 {
			return
		}
		if math.Max(math.Abs(dx), math.Abs(dy)) <= m.opts.DeadZone {
			return
		}
		if math.Abs(dx) > math.Abs(dy)*m.opts.AxisLockRatio {
			m.phase = PhasePanning
			m.pan(dx, rect)
			return
		}
		m.declined = true
	}
}

func (m *Machine) pan(dx float64, rect Rect) {
	if !(rect.Width > 0) {
		return
	}
	m.state = m.clampState(State{
		Scale:     m.state.Scale,
		PanOffset: m.startOffset - dx/(rect.Width*m.state.Scale),
	})
}

func (m *Machine) pinch(a, b Point, rect Rect) {
	if !(rect.Width > 0) || !finite(a.X) || !finite(a.Y) || !finite(b.X) || !finite(b.Y) {
		return
	}
	dist := math.Hypot(a.X-b.X, a.Y-b.Y)
	if !(dist > 0) {
		return
	}
	f := rect.fraction((a.X + b.X) / 2)

	if m.phase != PhaseZooming || m.pinchDist <= 0 {
		m.phase = PhaseZooming
		m.endContact()
		m.pinchDist = dist
		m.pinchScale = m.state.Scale
		m.anchor = m.state.PanOffset + f/m.state.Scale
		return
	}

	scale := clamp(m.pinchScale*dist/m.pinchDist, m.opts.MinScale, m.opts.MaxScale)
	m.state = m.clampState(State{Scale: scale, PanOffset: m.anchor - f/scale})
}

// clampState enforces MinScale <= Scale <= MaxScale and
// 0 <= PanOffset <= 1 - 1/Scale.
func (m *Machine) clampState(st State) State {
	if !finite(st.Scale) {
		st.Scale = m.state.Scale
	}
	st.Scale = clamp(st.Scale, m.opts.MinScale, m.opts.MaxScale)
	if !finite(st.PanOffset) {
		st.PanOffset = m.state.PanOffset
	}
	st.PanOffset = clamp(st.PanOffset, 0, math.Max(0, 1-1/st.Scale))
	return st
}
