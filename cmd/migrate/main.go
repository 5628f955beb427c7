package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/infrastructure/config"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/database"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		action = flag.String("action", "up", "Migration action: up, down, steps, version, force")
		n      = flag.Int("n", 0, "Step count for steps (negative rolls back) or version for force")
		source = flag.String("source", "", "Migration source URL (defaults to database.migrations_path)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sourceURL := *source
	if sourceURL == "" {
		sourceURL = cfg.Database.MigrationsPath
	}

	m, err := database.NewMigrator(db, sourceURL)
	if err != nil {
		return err
	}

	logger.Info("running migrations", zap.String("action", *action), zap.String("source", sourceURL))
	return database.RunMigrations(m, database.MigrationAction(*action), *n, logger)
}
