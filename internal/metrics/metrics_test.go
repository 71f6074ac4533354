package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.SetChartsOpen(3)
	r.RecordEvent("down")
	r.RecordEvent("down")
	r.RecordSeriesLoad("parquet", nil, 10*time.Millisecond)
	r.RecordSeriesLoad("alpaca", errors.New("boom"), time.Second)
	r.RecordRefresh("replaced")
	r.StreamOpened()
	r.StreamOpened()
	r.StreamClosed()

	assert.Equal(t, 3.0, testutil.ToFloat64(r.chartsOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.chartEvents.WithLabelValues("down")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.seriesLoads.WithLabelValues("parquet", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.seriesLoads.WithLabelValues("alpaca", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.refreshRuns.WithLabelValues("replaced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.subscribers))
}

func TestRecordersAreIsolated(t *testing.T) {
	a, b := New(), New()
	a.RecordEvent("move")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.chartEvents.WithLabelValues("move")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SetChartsOpen(1)
		r.RecordEvent("up")
		r.RecordSeriesLoad("x", nil, 0)
		r.RecordRefresh("error")
		r.StreamOpened()
		r.StreamClosed()
		r.RecordHTTP("/", "GET", 200, 0)
	})
	assert.Nil(t, r.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.RecordHTTP("GET /api/charts", "GET", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "pulsechart_http_requests_total"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
