package viewport

import "math"

// Window is the inclusive index range of the visible samples.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start + 1
}

// Insufficient reports whether there are too few samples to draw a line.
func (w Window) Insufficient() bool { return w.Len() < 2 }

// Slice returns the visible part of closes. The result shares the backing
// array.
func (w Window) Slice(closes []float64) []float64 {
	if w.Len() == 0 || w.Start >= len(closes) {
		return nil
	}
	end := w.End + 1
	if end > len(closes) {
		end = len(closes)
	}
	return closes[w.Start:end]
}

// Visible maps a series of n samples and a viewport state to the visible
// window. The window spans round(n/Scale) samples starting at
// round(PanOffset*n), shifted left when it would run past the last sample.
// Series shorter than two samples yield the full degenerate range.
func Visible(n int, st State) Window {
	if n < 2 {
		return Window{Start: 0, End: n - 1}
	}
	scale := st.Scale
	if !(scale >= 1) || math.IsInf(scale, 0) {
		scale = 1
	}
	length := int(math.Round(float64(n) / scale))
	if length < 1 {
		length = 1
	}
	if length > n {
		length = n
	}

	offset := st.PanOffset
	if !finite(offset) || offset < 0 {
		offset = 0
	}
	start := int(math.Round(offset * float64(n)))
	if start+length > n {
		start = n - length
	}
	return Window{Start: start, End: start + length - 1}
}
