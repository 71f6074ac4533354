package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*JSONStore)(nil)

// JSONStore holds preferences in memory and rewrites a JSON file on every
// change.
type JSONStore struct {
	mu       sync.RWMutex
	values   map[string]string
	filePath string
	log      *slog.Logger
}

// NewJSONStore creates a JSONStore, loading persisted state from filePath.
// A missing file starts empty; a corrupt one is an error.
func NewJSONStore(filePath string) (*JSONStore, error) {
	s := &JSONStore{
		values:   make(map[string]string),
		filePath: filePath,
		log:      slog.Default().With("component", "prefs"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *JSONStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flush()
}

func (s *JSONStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

func (s *JSONStore) All(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.log.Info("loaded prefs", "keys", len(s.values))
	return nil
}

// flush writes the in-memory state to disk through a temp file. Must be
// called with mu held.
func (s *JSONStore) flush() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing prefs: %w", err)
	}
	return os.Rename(tmp, s.filePath)
}
