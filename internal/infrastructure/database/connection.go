package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/infrastructure/config"
)

// Cluster holds the primary pool and an optional read replica. Writes always
// go to the primary; reads go to the replica while it is healthy.
type Cluster struct {
	primary     *pgxpool.Pool
	replica     *pgxpool.Pool
	primaryDB   *sql.DB
	replicaDB   *sql.DB
	logger      *zap.Logger
	mu          sync.RWMutex
	replicaOK   bool
	stopHealth  chan struct{}
	healthEvery time.Duration
	closeOnce   sync.Once
}

// NewCluster connects to the primary and, when configured, the replica. A
// replica that cannot be reached is logged and skipped.
func NewCluster(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Cluster, error) {
	logger = logger.Named("database")

	primary, err := newPool(ctx, cfg.URL, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create primary connection pool: %w", err)
	}

	c := &Cluster{
		primary:     primary,
		primaryDB:   stdlib.OpenDBFromPool(primary),
		logger:      logger,
		stopHealth:  make(chan struct{}),
		healthEvery: 15 * time.Second,
	}

	if cfg.ReplicaURL != "" {
		replica, err := newPool(ctx, cfg.ReplicaURL, cfg, logger)
		if err != nil {
			logger.Warn("failed to connect to replica, reads will use the primary", zap.Error(err))
		} else {
			c.replica = replica
			c.replicaDB = stdlib.OpenDBFromPool(replica)
			c.replicaOK = true
			go c.healthCheckRoutine()
		}
	}

	logger.Info("database connection pool initialized",
		zap.Bool("replica", c.replica != nil),
		zap.Int32("max_connections", primary.Config().MaxConns))

	return c, nil
}

func newPool(ctx context.Context, url string, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	configurePgxPool(pc, cfg, logger)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func configurePgxPool(pc *pgxpool.Config, cfg config.DatabaseConfig, logger *zap.Logger) {
	pc.MaxConns = 25
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	pc.HealthCheckPeriod = time.Minute
	pc.ConnConfig.ConnectTimeout = 5 * time.Second

	pc.ConnConfig.RuntimeParams["application_name"] = "flowcomply_compliance_engine"
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pc.ConnConfig.RuntimeParams["statement_timeout"] = "60s"
	pc.ConnConfig.RuntimeParams["lock_timeout"] = "10s"
	pc.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = "60s"

	pc.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		logger.Debug("establishing database connection",
			zap.String("host", cc.Host),
			zap.Uint16("port", cc.Port))
		return nil
	}
}

// Primary returns the read-write handle.
func (c *Cluster) Primary() *sql.DB {
	return c.primaryDB
}

// Reader returns the replica handle when healthy, otherwise the primary.
func (c *Cluster) Reader() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.replicaDB != nil && c.replicaOK {
		return c.replicaDB
	}
	return c.primaryDB
}

// Stats returns the primary pool statistics.
func (c *Cluster) Stats() *pgxpool.Stat {
	return c.primary.Stat()
}

// HealthCheck pings the primary.
func (c *Cluster) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.primary.Ping(ctx)
}

func (c *Cluster) healthCheckRoutine() {
	ticker := time.NewTicker(c.healthEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkReplica()
		case <-c.stopHealth:
			return
		}
	}
}

func (c *Cluster) checkReplica() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.replica.Ping(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil && c.replicaOK:
		c.logger.Warn("replica unhealthy, routing reads to primary", zap.Error(err))
		c.replicaOK = false
	case err == nil && !c.replicaOK:
		c.logger.Info("replica recovered")
		c.replicaOK = true
	}
}

// Close stops health checks and closes every pool.
func (c *Cluster) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopHealth)
		if c.replicaDB != nil {
			err = c.replicaDB.Close()
			c.replica.Close()
		}
		if cerr := c.primaryDB.Close(); cerr != nil && err == nil {
			err = cerr
		}
		c.primary.Close()
	})
	return err
}

// WithTx runs fn in a transaction on db, committing on success and rolling
// back on error or panic.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
