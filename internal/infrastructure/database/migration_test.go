//go:build integration

package database

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flowcomply/compliance-engine/internal/testutil/containers"
)

const migrationsURL = "file://../../../migrations"

func TestMigrations_UpDownUp(t *testing.T) {
	ctx := context.Background()
	pg, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	db, err := sql.Open("postgres", pg.ConnectionString)
	require.NoError(t, err)
	defer db.Close()

	m, err := NewMigrator(db, migrationsURL)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)

	require.NoError(t, RunMigrations(m, MigrateUp, 0, logger))
	for _, table := range []string{"rule_compliance", "dwqar_reports", "compliance_score_snapshots", "water_quality_tests"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	// A second up is a no-op.
	require.NoError(t, RunMigrations(m, MigrateUp, 0, logger))

	require.NoError(t, RunMigrations(m, MigrateDown, 0, logger))
	assert.False(t, tableExists(t, db, "rule_compliance"))

	require.NoError(t, RunMigrations(m, MigrateUp, 0, logger))
	assert.True(t, tableExists(t, db, "rule_compliance"))
}

func TestRunMigrations_StepsRequiresCount(t *testing.T) {
	ctx := context.Background()
	pg, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	db, err := sql.Open("postgres", pg.ConnectionString)
	require.NoError(t, err)
	defer db.Close()

	m, err := NewMigrator(db, migrationsURL)
	require.NoError(t, err)

	err = RunMigrations(m, MigrateSteps, 0, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "non-zero count")

	err = RunMigrations(m, MigrationAction("sideways"), 0, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unknown migration action")
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}
