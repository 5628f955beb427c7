package containers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/infrastructure/database"
)

// PostgresContainer wraps the testcontainers postgres module with a
// migrated schema.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// NewPostgresContainer starts PostgreSQL 16 and returns its DSN.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("flowcomply_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: pgContainer,
		ConnectionString:  connStr,
	}, nil
}

// Migrate applies every up migration from sourceURL, e.g.
// file://../../../migrations relative to the calling test.
func (p *PostgresContainer) Migrate(sourceURL string, logger *zap.Logger) error {
	db, err := sql.Open("postgres", p.ConnectionString)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := database.NewMigrator(db, sourceURL)
	if err != nil {
		return err
	}
	return database.RunMigrations(m, database.MigrateUp, 0, logger)
}
