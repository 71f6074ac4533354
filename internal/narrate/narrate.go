// Package narrate provides viewport.Narrator implementations: a log line,
// a terminal bell with a spoken-style phrase, and a fan-out of both.
package narrate

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"pulsechart/internal/dashboard"
	"pulsechart/internal/viewport"
)

var (
	_ viewport.Narrator = (*Log)(nil)
	_ viewport.Narrator = (*Bell)(nil)
	_ viewport.Narrator = Multi(nil)
)

// Phrase renders p the way a screen reader would say it.
func Phrase(p viewport.DerivedPoint) string {
	dir := "unchanged"
	switch {
	case p.Delta > 0:
		dir = "up " + fmt.Sprintf("%.2f", p.Delta)
	case p.Delta < 0:
		dir = "down " + fmt.Sprintf("%.2f", math.Abs(p.Delta))
	}
	return fmt.Sprintf("%s, %s, %s percent", dashboard.FormatPrice(p.Value), dir, fmt.Sprintf("%.1f", p.Percent))
}

// Log writes each announcement at info level.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log narrator; a nil logger uses slog.Default.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{log: l.With("component", "narrator")}
}

func (n *Log) Announce(p viewport.DerivedPoint) {
	n.log.Info("scrub ended", "value", p.Value, "delta", p.Delta, "percent", p.Percent, "phrase", Phrase(p))
}

// Bell rings the terminal bell and writes the phrase to w. It stands in for
// speech output where none is available.
type Bell struct {
	mu     sync.Mutex
	w      io.Writer
	Silent bool // phrase only, no bell
}

// NewBell creates a Bell writing to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (n *Bell) Announce(p viewport.DerivedPoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.Silent {
		io.WriteString(n.w, "\a")
	}
	fmt.Fprintln(n.w, Phrase(p))
}

// Multi announces to every narrator in order.
type Multi []viewport.Narrator

func (m Multi) Announce(p viewport.DerivedPoint) {
	for _, n := range m {
		if n != nil {
			n.Announce(p)
		}
	}
}

// Func adapts a function to viewport.Narrator.
type Func func(viewport.DerivedPoint)

func (f Func) Announce(p viewport.DerivedPoint) { f(p) }

// ScrubEnds watches a stream of frames from a remote chart and announces
// the last derived point once a scrub finishes, the way a local Chart
// would.
type ScrubEnds struct {
	n    viewport.Narrator
	last *viewport.DerivedPoint
}

// NewScrubEnds creates a ScrubEnds announcing to n.
func NewScrubEnds(n viewport.Narrator) *ScrubEnds {
	return &ScrubEnds{n: n}
}

// Observe feeds the next frame in sequence.
func (s *ScrubEnds) Observe(f viewport.Frame) {
	if f.Point != nil {
		p := *f.Point
		s.last = &p
		return
	}
	if s.last != nil {
		s.n.Announce(*s.last)
		s.last = nil
	}
}
