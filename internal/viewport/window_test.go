package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibleLengthTracksScale(t *testing.T) {
	for n := 2; n <= 240; n++ {
		for scale := 1.0; scale <= 5.0; scale += 0.25 {
			for _, f := range []float64{0, 0.3, 0.7, 1} {
				st := State{Scale: scale, PanOffset: f * (1 - 1/scale)}
				w := Visible(n, st)

				want := int(math.Round(float64(n) / scale))
				require.LessOrEqualf(t, math.Abs(float64(w.Len()-want)), 1.0,
					"n=%d scale=%.2f offset=%.3f: len %d, want %d±1", n, scale, st.PanOffset, w.Len(), want)
				require.GreaterOrEqual(t, w.Start, 0)
				require.LessOrEqualf(t, w.End, n-1, "n=%d scale=%.2f", n, scale)
				require.Equal(t, w.Start+w.Len()-1, w.End)
			}
		}
	}
}

func TestVisibleStartFollowsOffset(t *testing.T) {
	w := Visible(100, State{Scale: 2, PanOffset: 0.25})
	assert.Equal(t, Window{Start: 25, End: 74}, w)

	w = Visible(100, State{Scale: 4, PanOffset: 0.75})
	assert.Equal(t, Window{Start: 75, End: 99}, w)
}

func TestVisibleClampsOverflowingOffset(t *testing.T) {
	// An offset past 1-1/scale shifts the window back inside the series.
	w := Visible(10, State{Scale: 2, PanOffset: 0.9})
	assert.Equal(t, Window{Start: 5, End: 9}, w)
}

func TestVisibleIdentityIsFullSeries(t *testing.T) {
	w := Visible(50, Identity)
	assert.Equal(t, Window{Start: 0, End: 49}, w)
	assert.False(t, w.Insufficient())
}

func TestVisibleDegenerateSeries(t *testing.T) {
	empty := Visible(0, State{Scale: 3, PanOffset: 0.5})
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.Insufficient())
	assert.Nil(t, empty.Slice(nil))

	single := Visible(1, State{Scale: 3, PanOffset: 0.5})
	assert.Equal(t, Window{Start: 0, End: 0}, single)
	assert.True(t, single.Insufficient())
}

func TestVisibleIgnoresGarbageState(t *testing.T) {
	w := Visible(20, State{Scale: math.NaN(), PanOffset: math.Inf(1)})
	assert.Equal(t, Window{Start: 0, End: 19}, w)

	w = Visible(20, State{Scale: 0.5, PanOffset: -1})
	assert.Equal(t, Window{Start: 0, End: 19}, w)
}

func TestWindowSlice(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	assert.Equal(t, []float64{3, 4, 5}, Window{Start: 2, End: 4}.Slice(closes))
	// A window computed for a longer series is cut at the slice end.
	assert.Equal(t, []float64{5, 6}, Window{Start: 4, End: 9}.Slice(closes))
	assert.Nil(t, Window{Start: 8, End: 9}.Slice(closes))
}
