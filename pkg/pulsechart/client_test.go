package pulsechart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulsechart/internal/chartsvc"
	"pulsechart/internal/httpapi"
	"pulsechart/internal/viewport"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}

	if c.baseURL != "http://localhost:8080" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}

	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func newServer(t *testing.T) *Client {
	t.Helper()
	svc := chartsvc.New(nil, viewport.DefaultOptions(), nil)
	srv := httptest.NewServer(httpapi.NewChartServer(svc, nil, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestClientDrivesChart(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	chart, err := c.CreateChart(ctx, []float64{12, 14, 11, 15}, nil)
	if err != nil {
		t.Fatalf("CreateChart: %v", err)
	}
	if chart.Frame == nil || chart.Frame.Frame.SeriesLen != 4 {
		t.Fatalf("unexpected create response: %+v", chart)
	}

	f, err := c.SendEvent(ctx, chart.ID, "down", []Point{{X: 400, Y: 10}}, Rect{Width: 400, Height: 100})
	if err != nil {
		t.Fatalf("SendEvent: %v", err)
	}
	if f.Frame.Point == nil || f.Frame.Point.Value != 15 || f.Frame.Point.Percent != 25 {
		t.Errorf("unexpected scrub point: %+v", f.Frame.Point)
	}

	f, err = c.ZoomIn(ctx, chart.ID)
	if err != nil {
		t.Fatalf("ZoomIn: %v", err)
	}
	if f.Frame.State.Scale != 1.5 {
		t.Errorf("scale = %v, want 1.5", f.Frame.State.Scale)
	}

	f, err = c.Reset(ctx, chart.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if f.Frame.State.Scale != 1 {
		t.Errorf("scale after reset = %v, want 1", f.Frame.State.Scale)
	}

	list, err := c.ListCharts(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListCharts: %v %v", list, err)
	}

	if err := c.DeleteChart(ctx, chart.ID); err != nil {
		t.Fatalf("DeleteChart: %v", err)
	}
	_, err = c.GetFrame(ctx, chart.ID)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestClientSymbolChartWithoutProvider(t *testing.T) {
	c := newServer(t)
	_, err := c.CreateSymbolChart(context.Background(), "AAPL", "1Y")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected 400 APIError, got %v", err)
	}
}
