package viewport

import "math"

// DerivedPoint is the tooltip payload for a highlighted sample.
type DerivedPoint struct {
	Value   float64 `json:"value"`
	Delta   float64 `json:"delta"`
	Percent float64 `json:"percent"`
}

// IndexAt converts a horizontal pointer position into an index over m
// evenly spaced samples drawn across rect. Positions outside the rect clamp
// to the first or last sample.
func IndexAt(x float64, rect Rect, m int) int {
	if m <= 0 || math.IsNaN(x) {
		return 0
	}
	return int(math.Round(rect.fraction(x) * float64(m-1)))
}

// BufferSize returns the number of lead-in points drawn before m real
// samples, or 0 when the buffer is disabled.
func (b Buffer) BufferSize(m int) int {
	if !b.Enabled || m < 2 {
		return 0
	}
	n := int(math.Round(b.Fraction * float64(m)))
	if n < b.MinPoints {
		n = b.MinPoints
	}
	return n
}

// PadSeries prepends size copies of the first real value.
func PadSeries(real []float64, size int) []float64 {
	if size <= 0 || len(real) == 0 {
		return append([]float64(nil), real...)
	}
	out := make([]float64, 0, size+len(real))
	for i := 0; i < size; i++ {
		out = append(out, real[0])
	}
	return append(out, real...)
}

// RealIndex maps an index in a padded path back into the m real samples.
// Indexes inside the lead-in report the first real sample.
func RealIndex(padded, bufferSize, m int) int {
	i := padded - bufferSize
	if i < 0 {
		return 0
	}
	if i > m-1 {
		return max(m-1, 0)
	}
	return i
}

// PercentChange returns delta/reference*100, or 0 when reference is 0.
func PercentChange(delta, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return delta / reference * 100
}

// Derive computes the tooltip values for sample idx of visible, relative to
// visible[0]. idx is clamped into range; ok is false for an empty slice.
func Derive(visible []float64, idx int) (p DerivedPoint, ok bool) {
	if len(visible) == 0 {
		return DerivedPoint{}, false
	}
	if idx < 0 {
		idx = 0
	}
	if idx > len(visible)-1 {
		idx = len(visible) - 1
	}
	ref := visible[0]
	value := visible[idx]
	delta := value - ref
	return DerivedPoint{Value: value, Delta: delta, Percent: PercentChange(delta, ref)}, true
}
