package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/database"
)

// AggregateRepository persists rule compliance aggregates, together with
// their report envelope, on the primary.
type AggregateRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewAggregateRepository(db *sql.DB) *AggregateRepository {
	return &AggregateRepository{db: db, now: time.Now}
}

// Rows whose counts and notes are unchanged are skipped by the WHERE clause,
// so re-running an unchanged period leaves them byte-identical.
const upsertRuleCompliance = `
	INSERT INTO rule_compliance (
		organization_id, rule_id, component_id, reporting_period,
		total_samples, compliant_samples, non_compliant_periods, complies, notes, updated_at
	)
	SELECT $1, u.rule_id, u.component_id, $2,
		u.total, u.compliant, u.non_compliant, u.complies, u.notes, $3
	FROM unnest($4::text[], $5::text[], $6::int[], $7::int[], $8::int[], $9::bool[], $10::text[])
		AS u(rule_id, component_id, total, compliant, non_compliant, complies, notes)
	ON CONFLICT (organization_id, rule_id, component_id, reporting_period) DO UPDATE SET
		total_samples = EXCLUDED.total_samples,
		compliant_samples = EXCLUDED.compliant_samples,
		non_compliant_periods = EXCLUDED.non_compliant_periods,
		complies = EXCLUDED.complies,
		notes = EXCLUDED.notes,
		updated_at = EXCLUDED.updated_at
	WHERE (rule_compliance.total_samples, rule_compliance.compliant_samples,
			rule_compliance.non_compliant_periods, rule_compliance.complies, rule_compliance.notes)
		IS DISTINCT FROM
		(EXCLUDED.total_samples, EXCLUDED.compliant_samples,
			EXCLUDED.non_compliant_periods, EXCLUDED.complies, EXCLUDED.notes)`

const deleteStaleRuleCompliance = `
	DELETE FROM rule_compliance
	WHERE organization_id = $1 AND reporting_period = $2
		AND (rule_id, component_id) NOT IN (
			SELECT * FROM unnest($3::text[], $4::text[])
		)`

const listRuleCompliance = `
	SELECT organization_id, rule_id, component_id, reporting_period,
		total_samples, compliant_samples, non_compliant_periods, complies, notes
	FROM rule_compliance
	WHERE organization_id = $1 AND reporting_period = $2
	ORDER BY component_id COLLATE "C", rule_id COLLATE "C"`

// SaveAggregation writes the envelope and the whole aggregate set in one
// transaction. Rows of the same (organization, period) that are absent from
// rep.ReportsData are removed, so an empty set clears the period. The
// envelope goes first so a submitted period is rejected before any aggregate
// row changes.
func (r *AggregateRepository) SaveAggregation(ctx context.Context, rep *dwqar.DWQARReport) error {
	orgID, period := rep.OrganizationID, rep.ReportingPeriod
	aggs := rep.ReportsData

	n := len(aggs)
	ruleIDs, componentIDs, notes := make([]string, 0, n), make([]string, 0, n), make([]string, 0, n)
	totals, compliant, nonCompliant := make([]int64, 0, n), make([]int64, 0, n), make([]int64, 0, n)
	complies := make([]bool, 0, n)
	for _, a := range aggs {
		if a.OrganizationID != orgID || a.ReportingPeriod != period.String() {
			return errors.NewValidationError(errors.CodeInvalidInput,
				fmt.Sprintf("aggregate %s/%s is outside %s/%s", a.RuleID, a.ComponentID, orgID, period))
		}
		ruleIDs = append(ruleIDs, a.RuleID)
		componentIDs = append(componentIDs, a.ComponentID)
		totals = append(totals, int64(a.TotalSamples))
		compliant = append(compliant, int64(a.CompliantSamples))
		nonCompliant = append(nonCompliant, int64(a.NonCompliantPeriods))
		complies = append(complies, a.Complies)
		notes = append(notes, a.Notes)
	}

	now := r.now().UTC()
	err := database.WithTx(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		if err := saveReportWith(ctx, tx, rep); err != nil {
			return err
		}
		if n > 0 {
			if _, err := tx.ExecContext(ctx, upsertRuleCompliance,
				orgID, period.String(), now,
				pq.Array(ruleIDs), pq.Array(componentIDs),
				pq.Array(totals), pq.Array(compliant), pq.Array(nonCompliant),
				pq.Array(complies), pq.Array(notes),
			); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, deleteStaleRuleCompliance,
			orgID, period.String(), pq.Array(ruleIDs), pq.Array(componentIDs))
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.HasCode(err, errors.CodeInvalidStatusTransition):
		return err
	case IsWriteConflict(err):
		return errors.NewUpsertConflictError(fmt.Sprintf("%s/%s", orgID, period)).WithCause(err)
	}
	return WrapRepositoryError(err, "save aggregation")
}

// ListRuleCompliance returns the stored aggregates for a period.
func (r *AggregateRepository) ListRuleCompliance(ctx context.Context, orgID uuid.UUID, period dwqar.ReportingPeriod) ([]dwqar.RuleComplianceAggregate, error) {
	return listAggregates(ctx, r.db, orgID, period)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listAggregates(ctx context.Context, db queryer, orgID uuid.UUID, period dwqar.ReportingPeriod) ([]dwqar.RuleComplianceAggregate, error) {
	rows, err := db.QueryContext(ctx, listRuleCompliance, orgID, period.String())
	if err != nil {
		return nil, WrapRepositoryError(err, "list rule compliance")
	}
	defer rows.Close()

	aggs := []dwqar.RuleComplianceAggregate{}
	for rows.Next() {
		var a dwqar.RuleComplianceAggregate
		if err := rows.Scan(&a.OrganizationID, &a.RuleID, &a.ComponentID, &a.ReportingPeriod,
			&a.TotalSamples, &a.CompliantSamples, &a.NonCompliantPeriods, &a.Complies, &a.Notes); err != nil {
			return nil, fmt.Errorf("scan rule compliance: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, WrapRepositoryError(rows.Err(), "list rule compliance")
}
