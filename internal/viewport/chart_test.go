package viewport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNarrator struct {
	mu     sync.Mutex
	points []DerivedPoint
}

func (r *recordingNarrator) Announce(p DerivedPoint) {
	r.mu.Lock()
	r.points = append(r.points, p)
	r.mu.Unlock()
}

func ramp(n int) Series {
	s := Series{Closes: make([]float64, n)}
	for i := range s.Closes {
		s.Closes[i] = 100 + float64(i)
	}
	return s
}

func newTestChart(t *testing.T, s Series) *Chart {
	t.Helper()
	c := NewChart(DefaultOptions())
	require.NoError(t, c.SetSeries(s))
	return c
}

func TestChartScrubWithBuffer(t *testing.T) {
	c := newTestChart(t, Series{Closes: []float64{12, 14, 11, 15}})
	c.SetBuffer(true)

	f := c.Handle(down(pt(0, 0, 100)), testRect)
	require.NotNil(t, f.Point)
	assert.Equal(t, DerivedPoint{Value: 12, Delta: 0, Percent: 0}, *f.Point)
	assert.Equal(t, 0, *f.ActiveIndex)
	assert.Equal(t, 5, f.Buffer)
	assert.Len(t, f.Path(), 9)

	f = c.Handle(move(pt(0, 400, 100)), testRect)
	require.NotNil(t, f.Point)
	assert.Equal(t, DerivedPoint{Value: 15, Delta: 3, Percent: 25}, *f.Point)
	assert.Equal(t, 8, f.Cursor)
	assert.Equal(t, 3, *f.ActiveIndex)

	// Inside the lead-in the first real sample is reported.
	f = c.Handle(move(pt(0, 120, 100)), testRect)
	require.NotNil(t, f.Point)
	assert.Equal(t, 12.0, f.Point.Value)
}

func TestChartScrubWithoutBuffer(t *testing.T) {
	c := newTestChart(t, Series{Closes: []float64{12, 14, 11, 15}})

	f := c.Handle(down(pt(0, 400, 100)), testRect)
	require.NotNil(t, f.Point)
	assert.Equal(t, 15.0, f.Point.Value)
	assert.Equal(t, 0, f.Buffer)
	assert.Len(t, f.Path(), 4)
}

func TestChartScrubCapturesPointerOutsideRect(t *testing.T) {
	c := newTestChart(t, ramp(11))

	// A down outside the chart does not start a scrub.
	f := c.Handle(down(pt(0, 500, 100)), testRect)
	assert.Nil(t, f.ActiveIndex)
	c.Handle(up(), testRect)

	c.Handle(down(pt(0, 200, 100)), testRect)
	f = c.Handle(move(pt(0, -300, 100)), testRect)
	require.NotNil(t, f.ActiveIndex)
	assert.Equal(t, 0, *f.ActiveIndex)

	f = c.Handle(move(pt(0, 900, 100)), testRect)
	require.NotNil(t, f.ActiveIndex)
	assert.Equal(t, 10, *f.ActiveIndex)
}

func TestChartZeroReferencePercent(t *testing.T) {
	c := newTestChart(t, Series{Closes: []float64{0, 2, 4}})
	f := c.Handle(down(pt(0, 400, 100)), testRect)
	require.NotNil(t, f.Point)
	assert.Equal(t, 4.0, f.Point.Delta)
	assert.Equal(t, 0.0, f.Point.Percent)
}

func TestChartPinchSuppressesScrub(t *testing.T) {
	c := newTestChart(t, ramp(100))

	f := c.Handle(down(pt(1, 150, 100), pt(2, 250, 100)), testRect)
	assert.Nil(t, f.ActiveIndex)
	assert.Equal(t, "zooming", f.Phase)

	f = c.Handle(move(pt(1, 100, 100), pt(2, 300, 100)), testRect)
	assert.Nil(t, f.ActiveIndex)
	assert.InDelta(t, 2.0, f.State.Scale, 1e-9)

	// One finger lifts: the pinch ends but the remaining finger still
	// belongs to the zoom gesture and must not scrub.
	f = c.Handle(up(pt(2, 300, 100)), testRect)
	assert.Equal(t, "idle", f.Phase)
	f = c.Handle(move(pt(2, 280, 100)), testRect)
	assert.Nil(t, f.ActiveIndex)

	f = c.Handle(up(), testRect)
	assert.Nil(t, f.ActiveIndex)

	// A fresh single touch scrubs again.
	f = c.Handle(down(pt(3, 200, 100)), testRect)
	assert.NotNil(t, f.ActiveIndex)
}

func TestChartSecondFingerCancelsScrub(t *testing.T) {
	c := newTestChart(t, ramp(100))
	f := c.Handle(down(pt(1, 200, 100)), testRect)
	require.NotNil(t, f.ActiveIndex)

	f = c.Handle(down(pt(1, 200, 100), pt(2, 260, 100)), testRect)
	assert.Nil(t, f.ActiveIndex)
	assert.Equal(t, "zooming", f.Phase)
}

func TestChartPanClearsScrub(t *testing.T) {
	c := newTestChart(t, ramp(100))
	c.ZoomAt(2, 200, testRect)

	f := c.Handle(down(pt(0, 200, 100)), testRect)
	require.NotNil(t, f.ActiveIndex)

	f = c.Handle(move(pt(0, 100, 100)), testRect)
	assert.Equal(t, "panning", f.Phase)
	assert.Nil(t, f.ActiveIndex)
	assert.InDelta(t, 0.375, f.State.PanOffset, 1e-9)

	// Still the same contact: no scrub resumes mid-pan.
	f = c.Handle(move(pt(0, 120, 100)), testRect)
	assert.Nil(t, f.ActiveIndex)
}

func TestChartSetSeriesResetsMidGesture(t *testing.T) {
	c := newTestChart(t, ramp(100))
	c.Handle(down(pt(1, 150, 100), pt(2, 250, 100)), testRect)
	c.Handle(move(pt(1, 100, 100), pt(2, 300, 100)), testRect)
	before := c.Frame().Seq

	require.NoError(t, c.SetSeries(ramp(30)))
	f := c.Frame()
	assert.Equal(t, Identity, f.State)
	assert.Equal(t, "idle", f.Phase)
	assert.Nil(t, f.ActiveIndex)
	assert.Equal(t, 30, f.SeriesLen)
	assert.Greater(t, f.Seq, before)

	// Further moves of the stale pinch start a new baseline rather than
	// jumping the fresh viewport.
	f = c.Handle(move(pt(1, 50, 100), pt(2, 350, 100)), testRect)
	assert.Equal(t, Identity, f.State)
}

func TestChartRejectsMismatchedTimestamps(t *testing.T) {
	c := NewChart(DefaultOptions())
	err := c.SetSeries(Series{Closes: []float64{1, 2, 3}, Timestamps: []time.Time{time.Now()}})
	assert.ErrorIs(t, err, ErrTimestampMismatch)
	assert.Equal(t, 0, c.Frame().SeriesLen)
}

func TestChartFrameTimeRange(t *testing.T) {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	s := ramp(10)
	for i := range s.Closes {
		s.Timestamps = append(s.Timestamps, base.AddDate(0, 0, i))
	}
	c := newTestChart(t, s)
	c.ZoomAt(2, 400, testRect)

	f := c.Frame()
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, base.AddDate(0, 0, f.Window.Start), *f.From)
	assert.Equal(t, base.AddDate(0, 0, 9), *f.To)

	f = c.Handle(down(pt(0, 400, 100)), testRect)
	require.NotNil(t, f.At)
	assert.Equal(t, base.AddDate(0, 0, 9), *f.At)
}

func TestChartInsufficientData(t *testing.T) {
	c := newTestChart(t, Series{Closes: []float64{42}})
	f := c.Frame()
	assert.True(t, f.Insufficient)

	f = c.Handle(down(pt(0, 200, 100)), testRect)
	assert.Nil(t, f.ActiveIndex)
	assert.Nil(t, f.Point)

	require.NoError(t, c.SetSeries(Series{}))
	assert.True(t, c.Frame().Insufficient)
	assert.Empty(t, c.Frame().Visible)
}

func TestChartNarratesOnScrubEnd(t *testing.T) {
	c := newTestChart(t, Series{Closes: []float64{12, 14, 11, 15}})
	n := &recordingNarrator{}
	c.SetNarrator(n)

	c.Handle(down(pt(0, 400, 100)), testRect)
	f := c.Handle(up(), testRect)
	assert.Nil(t, f.ActiveIndex)
	require.Len(t, n.points, 1)
	assert.Equal(t, 15.0, n.points[0].Value)

	// No scrub, no announcement.
	c.Handle(cancel(), testRect)
	assert.Len(t, n.points, 1)
}

func TestChartResetAndZoomButtons(t *testing.T) {
	c := newTestChart(t, ramp(100))
	f := c.ZoomIn()
	assert.InDelta(t, 1.5, f.State.Scale, 1e-9)
	f = c.PanBy(1)
	assert.InDelta(t, 1-1/1.5, f.State.PanOffset, 1e-9)
	f = c.ZoomOut()
	assert.Equal(t, Identity, f.State)

	c.ZoomIn()
	f = c.Reset()
	assert.Equal(t, Identity, f.State)
	assert.Equal(t, Identity, c.Reset().State)
}

func TestChartSubscribe(t *testing.T) {
	c := newTestChart(t, ramp(20))
	id, ch := c.Subscribe(4)

	f := c.ZoomIn()
	select {
	case got := <-ch:
		assert.Equal(t, f.Seq, got.Seq)
		assert.Equal(t, f.State, got.State)
	case <-time.After(time.Second):
		t.Fatal("no frame published")
	}

	// Reading a frame is not a change.
	c.Frame()
	select {
	case got := <-ch:
		t.Fatalf("unexpected frame %d", got.Seq)
	default:
	}

	c.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	c.Unsubscribe(id)
}

func TestChartSlowSubscriberDoesNotBlock(t *testing.T) {
	c := newTestChart(t, ramp(20))
	_, ch := c.Subscribe(1)
	for i := 0; i < 10; i++ {
		c.ZoomIn()
	}
	assert.Len(t, ch, 1)
	c.Close()
}

func TestChartsAreIndependent(t *testing.T) {
	a := newTestChart(t, ramp(50))
	b := newTestChart(t, ramp(50))

	a.ZoomIn()
	a.Handle(down(pt(0, 100, 100)), testRect)

	fb := b.Frame()
	assert.Equal(t, Identity, fb.State)
	assert.Nil(t, fb.ActiveIndex)
	assert.NotEqual(t, a.Frame().State, fb.State)
}

func TestChartSeriesIsCopied(t *testing.T) {
	s := ramp(5)
	c := newTestChart(t, s)
	s.Closes[0] = -1
	assert.Equal(t, 100.0, c.Series().Closes[0])

	got := c.Series()
	got.Closes[1] = -1
	assert.Equal(t, 101.0, c.Series().Closes[1])
}
