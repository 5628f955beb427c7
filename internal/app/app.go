// Package app wires configuration, infrastructure and services into the
// components shared by the API and aggregator binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/infrastructure/cache"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/config"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/database"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/repository"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/telemetry"
	"github.com/flowcomply/compliance-engine/internal/metrics"
	dwqarsvc "github.com/flowcomply/compliance-engine/internal/service/dwqar"
	scoringsvc "github.com/flowcomply/compliance-engine/internal/service/scoring"
)

// App holds the long-lived components of one process.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Cluster      *database.Cluster
	Redis        *redis.Client
	Repositories *repository.Repositories
	Metrics      *metrics.Registry
	DWQAR        *dwqarsvc.Service
	Scoring      *scoringsvc.Service

	telemetry *telemetry.Provider
}

// New connects to every dependency. Redis is optional: without it the
// process uses an in-process lock and no score cache.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, serviceName string) (a *App, err error) {
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceName = serviceName
	telCfg.ServiceVersion = cfg.Version
	telCfg.Environment = cfg.Environment
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telCfg.Insecure = cfg.Telemetry.Insecure
	telCfg.SamplingRate = cfg.Telemetry.SamplingRate
	if a.telemetry, err = telemetry.InitializeOpenTelemetry(ctx, telCfg); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if a.Metrics, err = metrics.NewRegistry(serviceName); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	if a.Cluster, err = database.NewCluster(ctx, cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.Repositories = repository.NewRepositories(a.Cluster)

	var (
		locker dwqarsvc.Locker
		scores scoringsvc.SnapshotCache
	)
	if cfg.Redis.URL != "" {
		if a.Redis, err = cache.NewRedisClient(ctx, &cfg.Redis, logger); err != nil {
			return nil, err
		}
		locker = cache.NewRedisLocker(a.Redis, logger)
		scores = cache.NewScoreCache(a.Redis, cfg.Scoring.CacheTTL, logger)
	} else {
		logger.Warn("redis not configured; using in-process lock and no score cache")
		locker = cache.NewLocalLocker()
	}

	repos := a.Repositories
	a.DWQAR = dwqarsvc.NewService(logger,
		dwqarsvc.Repositories{
			Samples:    repos.Samples,
			Catalog:    repos.Catalog,
			Aggregates: repos.Aggregates,
			Reports:    repos.Reports,
		},
		locker,
		dwqarsvc.Config{
			PageSize:     cfg.Engine.PageSize,
			LockTTL:      cfg.Engine.LockTTL,
			Completeness: cfg.Engine.CompletenessPolicy(),
			Validation:   cfg.Engine.ValidationPolicy(),
		},
		dwqarsvc.WithMetrics(a.Metrics),
	)

	a.Scoring = scoringsvc.NewService(logger, repos.ScoreInputs, repos.Snapshots, scores,
		cfg.Scoring.Policy(), scoringsvc.WithMetrics(a.Metrics))

	return a, nil
}

// HealthCheck pings the primary and, when configured, Redis.
func (a *App) HealthCheck(ctx context.Context) error {
	if err := a.Cluster.HealthCheck(ctx); err != nil {
		return err
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases every dependency; it is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Cluster != nil {
		errs = append(errs, a.Cluster.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
