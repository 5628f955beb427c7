package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/app"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/config"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/telemetry"
	"github.com/flowcomply/compliance-engine/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "Run a single pass and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger, *once); err != nil {
		logger.Error("aggregator failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, once bool) error {
	a, err := app.New(ctx, cfg, logger, cfg.Telemetry.ServiceName+"-aggregator")
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	s := scheduler.New(logger, a.Repositories.Catalog, a.DWQAR, a.Scoring, scheduler.Config{
		Interval:    cfg.Scheduler.Interval,
		Concurrency: cfg.Scheduler.Concurrency,
		Period:      cfg.Scheduler.Period,
		RunOnStart:  cfg.Scheduler.RunOnStart,
		Score:       cfg.Scheduler.Score,
	}, scheduler.WithMetrics(a.Metrics))

	if once {
		summary, err := s.RunOnce(ctx)
		if err != nil {
			return err
		}
		if summary.Failures > 0 {
			return fmt.Errorf("%d of %d organizations failed", summary.Failures, summary.Organizations)
		}
		return nil
	}
	return s.Start(ctx)
}
