// Package pulsechart is a Go SDK for the pulsechart-server chart API.
package pulsechart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the pulsechart-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new pulsechart API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pulsechart: %d %s", e.Status, e.Message)
}

// Point is one pointer contact in chart coordinates.
type Point struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Rect is the chart's drawing area.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DerivedPoint is the scrubbed value with its change from the first visible
// sample.
type DerivedPoint struct {
	Value   float64 `json:"value"`
	Delta   float64 `json:"delta"`
	Percent float64 `json:"percent"`
}

// Frame is a render snapshot of a chart.
type Frame struct {
	Seq   uint64 `json:"seq"`
	Phase string `json:"phase"`
	State struct {
		Scale     float64 `json:"scale"`
		PanOffset float64 `json:"panOffset"`
	} `json:"state"`
	SeriesLen    int           `json:"seriesLen"`
	Visible      []float64     `json:"visible"`
	Buffer       int           `json:"buffer"`
	ActiveIndex  *int          `json:"activeIndex"`
	Cursor       int           `json:"cursor"`
	Point        *DerivedPoint `json:"point,omitempty"`
	At           *time.Time    `json:"at,omitempty"`
	From         *time.Time    `json:"from,omitempty"`
	To           *time.Time    `json:"to,omitempty"`
	Insufficient bool          `json:"insufficient"`
}

// FrameView is a frame with the values needed to draw it.
type FrameView struct {
	ID      string    `json:"id"`
	Frame   Frame     `json:"frame"`
	Path    []float64 `json:"path"`
	Tooltip string    `json:"tooltip,omitempty"`
	Range   string    `json:"range,omitempty"`
}

// Source is the symbol a chart follows.
type Source struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// Chart is the listing view of a chart.
type Chart struct {
	ID        string     `json:"id"`
	Source    *Source    `json:"source,omitempty"`
	SeriesLen int        `json:"seriesLen"`
	Created   time.Time  `json:"created"`
	Frame     *FrameView `json:"frame,omitempty"`
}

// CreateSymbolChart creates a chart that loads symbol at timeframe ("" for
// the server default).
func (c *Client) CreateSymbolChart(ctx context.Context, symbol, timeframe string) (*Chart, error) {
	var out Chart
	body := map[string]string{"symbol": symbol, "timeframe": timeframe}
	if err := c.do(ctx, http.MethodPost, "/api/charts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChart creates a chart from inline closes. timestamps may be nil.
func (c *Client) CreateChart(ctx context.Context, closes []float64, timestamps []time.Time) (*Chart, error) {
	var out Chart
	body := map[string]any{"closes": closes}
	if timestamps != nil {
		body["timestamps"] = timestamps
	}
	if err := c.do(ctx, http.MethodPost, "/api/charts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCharts lists the server's charts.
func (c *Client) ListCharts(ctx context.Context) ([]Chart, error) {
	var out []Chart
	if err := c.do(ctx, http.MethodGet, "/api/charts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetFrame retrieves the current frame of chart id.
func (c *Client) GetFrame(ctx context.Context, id string) (*FrameView, error) {
	return c.frame(ctx, http.MethodGet, chartPath(id, ""), nil)
}

// DeleteChart removes chart id.
func (c *Client) DeleteChart(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, chartPath(id, ""), nil, nil)
}

// SendEvent feeds one pointer event ("down", "move", "up", "cancel",
// "leave") to chart id.
func (c *Client) SendEvent(ctx context.Context, id, kind string, points []Point, rect Rect) (*FrameView, error) {
	body := map[string]any{"kind": kind, "points": points, "rect": rect}
	return c.frame(ctx, http.MethodPost, chartPath(id, "events"), body)
}

// Reset returns chart id to the unzoomed viewport.
func (c *Client) Reset(ctx context.Context, id string) (*FrameView, error) {
	return c.frame(ctx, http.MethodPost, chartPath(id, "reset"), nil)
}

// ZoomIn steps chart id's zoom in around the centre.
func (c *Client) ZoomIn(ctx context.Context, id string) (*FrameView, error) {
	return c.frame(ctx, http.MethodPost, chartPath(id, "zoom-in"), nil)
}

// ZoomOut steps chart id's zoom out around the centre.
func (c *Client) ZoomOut(ctx context.Context, id string) (*FrameView, error) {
	return c.frame(ctx, http.MethodPost, chartPath(id, "zoom-out"), nil)
}

// SetBuffer toggles the lead-in buffer of chart id.
func (c *Client) SetBuffer(ctx context.Context, id string, enabled bool) (*FrameView, error) {
	return c.frame(ctx, http.MethodPut, chartPath(id, "buffer"), map[string]bool{"enabled": enabled})
}

// SetTimeframe switches a symbol chart to another timeframe.
func (c *Client) SetTimeframe(ctx context.Context, id, timeframe string) (*FrameView, error) {
	return c.frame(ctx, http.MethodPut, chartPath(id, "timeframe"), map[string]string{"timeframe": timeframe})
}

// GetPref reads a preference value.
func (c *Client) GetPref(ctx context.Context, key string) (string, error) {
	var out struct {
		Value string `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/prefs/"+url.PathEscape(key), nil, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

// SetPref writes a preference value.
func (c *Client) SetPref(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPut, "/api/prefs/"+url.PathEscape(key), map[string]string{"value": value}, nil)
}

func chartPath(id, action string) string {
	p := "/api/charts/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) frame(ctx context.Context, method, path string, body any) (*FrameView, error) {
	var out FrameView
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
