// Package dashboard turns chart frames into the text the viewers show:
// window statistics and tooltip formatting.
package dashboard

import "math"

// WindowStats summarises the visible closes of a chart.
type WindowStats struct {
	Points  int
	Open    float64 // first visible close
	Close   float64 // last visible close
	High    float64
	Low     float64
	Change  float64 // (Close-Open)/Open, 0 when Open is 0
	MaxGain float64 // best buy-then-sell return inside the window
	MaxLoss float64 // worst buy-then-sell drawdown inside the window
}

// Summarize computes WindowStats over closes in order.
func Summarize(closes []float64) WindowStats {
	s := WindowStats{Points: len(closes)}
	if len(closes) == 0 {
		return s
	}
	s.Open = closes[0]
	s.Close = closes[len(closes)-1]
	s.High = -math.MaxFloat64
	s.Low = math.MaxFloat64
	if s.Open != 0 {
		s.Change = (s.Close - s.Open) / s.Open
	}

	minPrice := math.MaxFloat64
	maxPrice := -math.MaxFloat64
	for _, p := range closes {
		s.High = math.Max(s.High, p)
		s.Low = math.Min(s.Low, p)

		// Max gain: buy at lowest seen so far, sell now.
		if p < minPrice {
			minPrice = p
		}
		if minPrice > 0 {
			if g := (p - minPrice) / minPrice; g > s.MaxGain {
				s.MaxGain = g
			}
		}
		// Max loss: buy at highest seen so far, sell now.
		if p > maxPrice {
			maxPrice = p
		}
		if maxPrice > 0 {
			if l := (maxPrice - p) / maxPrice; l > s.MaxLoss {
				s.MaxLoss = l
			}
		}
	}
	return s
}
