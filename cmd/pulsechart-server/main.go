package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"pulsechart/internal/chartsvc"
	"pulsechart/internal/config"
	"pulsechart/internal/httpapi"
	"pulsechart/internal/metrics"
	"pulsechart/internal/narrate"
	"pulsechart/internal/prefs"
	"pulsechart/internal/provider"
	"pulsechart/internal/refresh"
	"pulsechart/internal/store"
	"pulsechart/internal/stream"
	"pulsechart/internal/util"
)

func main() {
	cfg, cfgPath, err := config.LoadForCommand()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Info("loaded config", "path", cfgPath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or a listener fails. Everything it opens
// is closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	rec := metrics.New()
	bars := store.NewParquetStore(cfg.Storage.DataDir)
	p := provider.FromConfig(cfg, bars, rec)

	ps, err := prefs.Open(cfg.Storage.PrefsBackend, cfg.Storage.SQLitePath, cfg.Storage.PrefsJSON)
	if err != nil {
		return fmt.Errorf("opening preference store: %w", err)
	}
	defer ps.Close()

	charts := chartsvc.New(p, cfg.Viewport.Options(), rec)
	charts.SetNarrator(narrate.NewLog(logger))
	if tf, err := provider.ParseTimeframe(cfg.Viewport.Timeframe); err == nil {
		charts.SetDefaultTimeframe(tf)
	}
	defer charts.Close()

	api := httpapi.NewChartServer(charts, ps, rec, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	grpcServer := grpc.NewServer()
	stream.NewServer(charts, rec, logger).RegisterGRPC(grpcServer)
	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", grpcAddr, err)
	}

	var job *refresh.Job
	if cfg.Refresh.Enabled {
		job = refresh.New(charts, rec, logger)
		job.TradingDaysOnly = true
		if err := job.Schedule(cfg.Refresh.Schedule); err != nil {
			return fmt.Errorf("scheduling refresh: %w", err)
		}
		job.Start()
	}

	logger.Info("pulsechart-server starting",
		"http", httpServer.Addr,
		"grpc", grpcAddr,
		"provider", p.Name(),
		"refresh", cfg.Refresh.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down pulsechart-server")

		if job != nil {
			job.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		// Deleting the charts closes their subscriptions, which ends the
		// open frame streams and lets GracefulStop return.
		charts.Close()
		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}
