package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
)

// SampleRepository reads water quality samples. Callers typically pass the
// replica handle.
type SampleRepository struct {
	db *sql.DB
}

func NewSampleRepository(db *sql.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

const sampleColumns = `id, organization_id, rule_id, component_id, sample_date,
		parameter, value, unit, complies_with_rule, COALESCE(external_sample_id, '')`

// Text keys sort with COLLATE "C" so the read order is byte order, the same
// order dwqar.TestAggregator emits buckets in. The keyset comparison uses the
// same collation.
const listSamplesFirstPage = `
	SELECT ` + sampleColumns + `
	FROM water_quality_tests
	WHERE organization_id = $1 AND sample_date >= $2 AND sample_date < $3
	ORDER BY component_id COLLATE "C", rule_id COLLATE "C", sample_date, id
	LIMIT $4`

const listSamplesAfter = `
	SELECT ` + sampleColumns + `
	FROM water_quality_tests
	WHERE organization_id = $1 AND sample_date >= $2 AND sample_date < $3
		AND (component_id COLLATE "C", rule_id COLLATE "C", sample_date, id) > ($4, $5, $6, $7)
	ORDER BY component_id COLLATE "C", rule_id COLLATE "C", sample_date, id
	LIMIT $8`

// ListSamples returns one keyset page of samples in (component, rule, date, id) order.
func (r *SampleRepository) ListSamples(ctx context.Context, orgID uuid.UUID, rng dwqar.DateRange, after dwqar.SampleCursor, limit int) ([]*dwqar.WaterQualityTestSample, error) {
	from, to := rng.Bounds()

	var (
		rows *sql.Rows
		err  error
	)
	if after.IsZero() {
		rows, err = r.db.QueryContext(ctx, listSamplesFirstPage, orgID, from, to, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, listSamplesAfter, orgID, from, to,
			after.ComponentID, after.RuleID, after.SampleDate, after.ID, limit)
	}
	if err != nil {
		return nil, WrapRepositoryError(err, "list samples")
	}
	defer rows.Close()

	samples := make([]*dwqar.WaterQualityTestSample, 0, limit)
	for rows.Next() {
		var (
			s     dwqar.WaterQualityTestSample
			value string
		)
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.RuleID, &s.ComponentID, &s.SampleDate,
			&s.Parameter, &value, &s.Unit, &s.CompliesWithRule, &s.ExternalSampleID); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if s.Value, err = dwqar.ParseMeasuredValue(value); err != nil {
			return nil, fmt.Errorf("sample %s: %w", s.ID, err)
		}
		s.SampleDate = s.SampleDate.UTC()
		samples = append(samples, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapRepositoryError(err, "list samples")
	}
	return samples, nil
}

// CatalogRepository reads the rule and component catalogs.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const listRules = `
	SELECT rule_id, category, parameter, description, min_value, max_value, unit,
		frequency, applicability, is_active, effective_date, superseded_at
	FROM compliance_rules
	ORDER BY rule_id`

const listComponents = `
	SELECT component_id, organization_id, name, component_type, population_served,
		COALESCE(latitude, 0), COALESCE(longitude, 0), is_active
	FROM monitored_components
	WHERE organization_id = $1
	ORDER BY component_id`

func (r *CatalogRepository) GetCatalog(ctx context.Context, orgID uuid.UUID) (dwqar.Catalog, error) {
	rules, err := r.listRules(ctx)
	if err != nil {
		return dwqar.Catalog{}, err
	}
	components, err := r.listComponents(ctx, orgID)
	if err != nil {
		return dwqar.Catalog{}, err
	}
	return dwqar.Catalog{Rules: rules, Components: components}, nil
}

func (r *CatalogRepository) listRules(ctx context.Context) ([]*dwqar.ComplianceRule, error) {
	rows, err := r.db.QueryContext(ctx, listRules)
	if err != nil {
		return nil, WrapRepositoryError(err, "list rules")
	}
	defer rows.Close()

	var rules []*dwqar.ComplianceRule
	for rows.Next() {
		var (
			rule       dwqar.ComplianceRule
			category   string
			minV, maxV decimal.NullDecimal
			superseded sql.NullTime
		)
		if err := rows.Scan(&rule.RuleID, &category, &rule.Parameter, &rule.Description, &minV, &maxV,
			&rule.Unit, &rule.Frequency, &rule.Applicability, &rule.IsActive, &rule.EffectiveDate, &superseded); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Category = dwqar.RuleCategory(category)
		if minV.Valid {
			rule.MinValue = &minV.Decimal
		}
		if maxV.Valid {
			rule.MaxValue = &maxV.Decimal
		}
		if superseded.Valid {
			t := superseded.Time
			rule.SupersededAt = &t
		}
		rules = append(rules, &rule)
	}
	return rules, WrapRepositoryError(rows.Err(), "list rules")
}

func (r *CatalogRepository) listComponents(ctx context.Context, orgID uuid.UUID) ([]*dwqar.MonitoredComponent, error) {
	rows, err := r.db.QueryContext(ctx, listComponents, orgID)
	if err != nil {
		return nil, WrapRepositoryError(err, "list components")
	}
	defer rows.Close()

	var components []*dwqar.MonitoredComponent
	for rows.Next() {
		var (
			c     dwqar.MonitoredComponent
			ctype string
		)
		if err := rows.Scan(&c.ComponentID, &c.OrganizationID, &c.Name, &ctype, &c.PopulationServed,
			&c.Latitude, &c.Longitude, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		c.Type = dwqar.ComponentType(ctype)
		components = append(components, &c)
	}
	return components, WrapRepositoryError(rows.Err(), "list components")
}

const listActiveOrganizations = `
	SELECT DISTINCT organization_id
	FROM monitored_components
	WHERE is_active
	ORDER BY organization_id`

// ListOrganizationsWithActiveComponents enumerates organizations for scheduled runs.
func (r *CatalogRepository) ListOrganizationsWithActiveComponents(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, listActiveOrganizations)
	if err != nil {
		return nil, WrapRepositoryError(err, "list organizations")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan organization id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, WrapRepositoryError(rows.Err(), "list organizations")
}
