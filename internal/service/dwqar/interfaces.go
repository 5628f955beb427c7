package dwqar

import (
	"context"
	"time"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
)

// Locker serializes recomputation per aggregation key. Acquire returns an
// UPSERT_CONFLICT error when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Repositories groups the stores the service depends on.
type Repositories struct {
	Samples    dwqar.SampleReader
	Catalog    dwqar.CatalogReader
	Aggregates dwqar.AggregateRepository
	Reports    dwqar.ReportRepository
}

// Config tunes aggregation.
type Config struct {
	PageSize     int
	LockTTL      time.Duration
	Completeness dwqar.CompletenessPolicy
	Validation   dwqar.ValidationPolicy
}

func DefaultConfig() Config {
	return Config{
		PageSize:     1000,
		LockTTL:      5 * time.Minute,
		Completeness: dwqar.DefaultCompletenessPolicy(),
		Validation:   dwqar.DefaultValidationPolicy(),
	}
}

// CurrentStatus is the dashboard view of the open annual period.
type CurrentStatus struct {
	Deadline     dwqar.DeadlineStatus `json:"deadline"`
	ReportStatus dwqar.ReportStatus   `json:"report_status,omitempty"`
	Completeness *float64             `json:"completeness,omitempty"`
	GeneratedAt  *time.Time           `json:"generated_at,omitempty"`
	HasReport    bool                 `json:"has_report"`
}
