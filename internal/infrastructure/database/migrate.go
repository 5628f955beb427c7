package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// MigrationAction selects what RunMigrations does.
type MigrationAction string

const (
	MigrateUp      MigrationAction = "up"
	MigrateDown    MigrationAction = "down"
	MigrateSteps   MigrationAction = "steps"
	MigrateVersion MigrationAction = "version"
	MigrateForce   MigrationAction = "force"
)

// NewMigrator binds golang-migrate to an open database and a source URL
// such as file://migrations.
func NewMigrator(db *sql.DB, sourceURL string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration source %s: %w", sourceURL, err)
	}
	return m, nil
}

// RunMigrations applies action. n is the step count for steps (negative
// rolls back) and the target version for force. ErrNoChange is not an error.
func RunMigrations(m *migrate.Migrate, action MigrationAction, n int, logger *zap.Logger) error {
	var err error
	switch action {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	case MigrateSteps:
		if n == 0 {
			return fmt.Errorf("steps requires a non-zero count")
		}
		err = m.Steps(n)
	case MigrateForce:
		err = m.Force(n)
	case MigrateVersion:
	default:
		return fmt.Errorf("unknown migration action %q", action)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("no migrations applied", zap.String("action", string(action)))
	case err != nil:
		return fmt.Errorf("read migration version: %w", err)
	default:
		logger.Info("migration state",
			zap.String("action", string(action)),
			zap.Uint("version", version),
			zap.Bool("dirty", dirty))
	}
	return nil
}
