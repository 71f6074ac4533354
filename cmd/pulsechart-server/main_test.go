package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsechart/internal/config"
	"pulsechart/internal/prefs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Storage.DataDir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "pulsechart.db")
	cfg.Storage.PrefsBackend = "sqlite"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.GRPCPort = 0
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Refresh.Enabled = false
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, quietLogger()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunReturnsListenErrorAndReleasesStore(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(t)
	cfg.Server.GRPCPort = busy.Addr().(*net.TCPAddr).Port

	err = run(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")

	// The preference store was closed on the way out and opens again cleanly.
	ps, err := prefs.Open(cfg.Storage.PrefsBackend, cfg.Storage.SQLitePath, cfg.Storage.PrefsJSON)
	require.NoError(t, err)
	defer ps.Close()
	require.NoError(t, ps.Set(context.Background(), prefs.KeyLastSymbol, "SPY"))
}
