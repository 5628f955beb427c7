package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/api/rest"
	"github.com/flowcomply/compliance-engine/internal/app"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/config"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/telemetry"
)

func main() {
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting compliance engine api",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port))

	a, err := app.New(ctx, cfg, logger, cfg.Telemetry.ServiceName+"-api")
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

	routerCfg := rest.DefaultConfig()
	routerCfg.Version = cfg.Version
	routerCfg.RequestsPerSecond = float64(cfg.Security.RateLimit.RequestsPerSecond)
	routerCfg.RateBurst = cfg.Security.RateLimit.BurstSize
	routerCfg.Logger = logger
	if cfg.Server.WriteTimeout > 0 {
		routerCfg.RequestTimeout = cfg.Server.WriteTimeout
	}

	handler := rest.NewRouter(routerCfg, rest.Services{DWQAR: a.DWQAR, Scoring: a.Scoring}, a.HealthCheck)

	server := rest.NewServer(rest.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, logger)

	go reportPoolStats(ctx, a)

	return server.Run(ctx)
}

// reportPoolStats feeds the open-connection gauge until ctx is done.
func reportPoolStats(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Metrics.SetDBOpenConns(int64(a.Cluster.Stats().TotalConns()))
		}
	}
}
