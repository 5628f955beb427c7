package dwqar

import (
	"context"

	"github.com/google/uuid"
)

// SampleReader reads immutable test samples. Implementations may serve from a
// read replica.
type SampleReader interface {
	// ListSamples returns up to limit samples for the organization whose sample
	// date falls in r, strictly after the cursor, ordered by
	// (component, rule, sample date, id).
	ListSamples(ctx context.Context, orgID uuid.UUID, r DateRange, after SampleCursor, limit int) ([]*WaterQualityTestSample, error)
}

// CatalogReader reads the rule and component catalogs.
type CatalogReader interface {
	// GetCatalog returns every rule and the organization's components.
	GetCatalog(ctx context.Context, orgID uuid.UUID) (Catalog, error)
}

// AggregateRepository persists rule-compliance aggregates.
type AggregateRepository interface {
	// SaveAggregation stores a recomputed report in one transaction: the
	// envelope plus the period's aggregate set from r.ReportsData, keyed by
	// (organization, rule, component, period). Rows whose fields are unchanged
	// are left untouched and rows absent from the set are removed. A SUBMITTED
	// envelope is never overwritten; that case returns SubmittedReportError.
	SaveAggregation(ctx context.Context, r *DWQARReport) error

	// ListRuleCompliance returns stored aggregates for a period ordered by
	// (component, rule).
	ListRuleCompliance(ctx context.Context, orgID uuid.UUID, period ReportingPeriod) ([]RuleComplianceAggregate, error)
}

// ReportRepository persists DWQAR report envelopes. Sample and aggregate rows
// are not stored with the envelope.
type ReportRepository interface {
	// SaveReport creates or replaces the envelope for (organization, period).
	// Replacing a SUBMITTED envelope returns SubmittedReportError.
	SaveReport(ctx context.Context, r *DWQARReport) error

	// GetReport returns the stored report, or errors.ErrReportNotFound.
	GetReport(ctx context.Context, orgID uuid.UUID, period ReportingPeriod) (*DWQARReport, error)

	// ListReports returns the organization's reports, newest period first.
	ListReports(ctx context.Context, orgID uuid.UUID) ([]*DWQARReport, error)
}

// OrganizationLister enumerates organizations for scheduled recomputation.
type OrganizationLister interface {
	ListOrganizationsWithActiveComponents(ctx context.Context) ([]uuid.UUID, error)
}
