// Package prefs persists small user preferences, such as whether the chart
// buffer is on, as string key/value pairs.
package prefs

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound is returned by Get for a key that was never set.
var ErrNotFound = errors.New("preference not found")

// Well-known keys.
const (
	KeyBufferEnabled = "chart.buffer.enabled"
	KeyLastSymbol    = "chart.last_symbol"
	KeyTimeframe     = "chart.timeframe"
)

// Store is a preference backend.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
	Close() error
}

// Bool reads key as a boolean, returning def when it is unset or unparsable.
func Bool(ctx context.Context, s Store, key string, def bool) bool {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// SetBool stores a boolean preference.
func SetBool(ctx context.Context, s Store, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}

// String reads key, returning def when it is unset.
func String(ctx context.Context, s Store, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil || v == "" {
		return def
	}
	return v
}

// Open returns the backend named by backend: "sqlite" opens path as a
// SQLite database, "json" as a JSON file.
func Open(backend, sqlitePath, jsonPath string) (Store, error) {
	switch backend {
	case "json":
		return NewJSONStore(jsonPath)
	default:
		return NewSQLiteStore(sqlitePath)
	}
}
