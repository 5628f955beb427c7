package repository

import (
	"database/sql"
)

// Repositories holds all repository instances. Reads of immutable samples
// and catalog rows go to the reader handle; everything else to the primary.
type Repositories struct {
	Samples     *SampleRepository
	Catalog     *CatalogRepository
	Aggregates  *AggregateRepository
	Reports     *ReportRepository
	Snapshots   *SnapshotRepository
	ScoreInputs *ScoreInputsRepository
}

// DBHandles is satisfied by database.Cluster.
type DBHandles interface {
	Primary() *sql.DB
	Reader() *sql.DB
}

// NewRepositories creates a new repository collection
func NewRepositories(dbs DBHandles) *Repositories {
	primary := dbs.Primary()
	reader := dbs.Reader()

	return &Repositories{
		Samples:     NewSampleRepository(reader),
		Catalog:     NewCatalogRepository(reader),
		Aggregates:  NewAggregateRepository(primary),
		Reports:     NewReportRepository(primary),
		Snapshots:   NewSnapshotRepository(primary),
		ScoreInputs: NewScoreInputsRepository(reader),
	}
}
