package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/flowcomply/compliance-engine/internal/domain/dwsp"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/database"
)

// ScoreInputsRepository loads the organizational counts the score calculator
// reads. All counts come from one read-only snapshot.
type ScoreInputsRepository struct {
	db *sql.DB
}

func NewScoreInputsRepository(db *sql.DB) *ScoreInputsRepository {
	return &ScoreInputsRepository{db: db}
}

const planStatsQuery = `
	SELECT count(*),
		count(*) FILTER (WHERE status = 'APPROVED'),
		max(GREATEST(last_reviewed_at, approved_at)) FILTER (WHERE status = 'APPROVED')
	FROM dwsp_plans
	WHERE organization_id = $1`

const latestPlanQuery = `
	SELECT id, status
	FROM dwsp_plans
	WHERE organization_id = $1
	ORDER BY version DESC
	LIMIT 1`

const planSectionsQuery = `
	SELECT element, content
	FROM dwsp_sections
	WHERE plan_id = $1
	ORDER BY element`

const assetStatsQuery = `
	SELECT count(*),
		count(*) FILTER (WHERE is_critical AND condition IN ('POOR', 'VERY_POOR')),
		count(*) FILTER (WHERE condition = 'VERY_POOR'),
		count(*) FILTER (WHERE last_inspection_at >= $2)
	FROM assets
	WHERE organization_id = $1 AND deleted_at IS NULL`

const documentStatsQuery = `
	SELECT count(*),
		COALESCE(array_agg(DISTINCT upper(document_type)) FILTER (WHERE document_type <> ''), '{}'),
		max(uploaded_at),
		max(uploaded_at) FILTER (WHERE upper(document_type) = 'RISK_ASSESSMENT')
	FROM documents
	WHERE organization_id = $1 AND deleted_at IS NULL`

const reportStatsQuery = `
	SELECT count(*) FILTER (WHERE report_type = 'ANNUAL'),
		count(*) FILTER (WHERE report_type = 'QUARTERLY'),
		count(*) FILTER (WHERE report_type = 'MONTHLY')
	FROM regulatory_reports
	WHERE organization_id = $1 AND submitted_at IS NOT NULL AND submitted_at >= $2 AND submitted_at <= $3`

const incidentCountQuery = `
	SELECT count(*)
	FROM incidents
	WHERE organization_id = $1 AND occurred_at >= $2 AND occurred_at <= $3`

const overdueItemsQuery = `
	SELECT
		(SELECT count(*) FROM dwsp_plans
			WHERE organization_id = $1 AND next_review_due < $2)
		+ (SELECT count(*) FROM regulatory_reports
			WHERE organization_id = $1 AND submitted_at IS NULL AND due_date < $2)
		+ (SELECT count(*) FROM assets
			WHERE organization_id = $1 AND deleted_at IS NULL AND next_inspection_due < $2)`

// LoadScoreInputs runs every count in a single repeatable-read transaction.
func (r *ScoreInputsRepository) LoadScoreInputs(ctx context.Context, orgID uuid.UUID, asOf time.Time, w scoring.InputWindows) (scoring.ScoreInputs, error) {
	in := scoring.ScoreInputs{OrganizationID: orgID, AsOf: asOf}

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := database.WithTx(ctx, r.db, opts, func(tx *sql.Tx) error {
		var err error
		if in.Plans, err = loadPlanStats(ctx, tx, orgID); err != nil {
			return fmt.Errorf("plan stats: %w", err)
		}

		if err = tx.QueryRowContext(ctx, assetStatsQuery, orgID, asOf.Add(-w.Inspection)).Scan(
			&in.Assets.Total, &in.Assets.CriticalPoor, &in.Assets.VeryPoor, &in.Assets.InspectedInWindow,
		); err != nil {
			return fmt.Errorf("asset stats: %w", err)
		}

		var lastUpload, lastRisk sql.NullTime
		if err = tx.QueryRowContext(ctx, documentStatsQuery, orgID).Scan(
			&in.Documents.Total, pq.Array(&in.Documents.TypesPresent), &lastUpload, &lastRisk,
		); err != nil {
			return fmt.Errorf("document stats: %w", err)
		}
		in.Documents.LastUploadAt = nullTimePtr(lastUpload)
		in.Risk.LastAssessmentAt = nullTimePtr(lastRisk)

		if err = tx.QueryRowContext(ctx, reportStatsQuery, orgID, asOf.Add(-w.Reporting), asOf).Scan(
			&in.Reports.AnnualSubmitted, &in.Reports.QuarterlySubmitted, &in.Reports.MonthlySubmitted,
		); err != nil {
			return fmt.Errorf("report stats: %w", err)
		}

		if err = tx.QueryRowContext(ctx, incidentCountQuery, orgID, asOf.Add(-w.Incident), asOf).Scan(
			&in.Risk.Incidents,
		); err != nil {
			return fmt.Errorf("incident count: %w", err)
		}

		if err = tx.QueryRowContext(ctx, overdueItemsQuery, orgID, asOf).Scan(&in.Timeliness.OverdueItems); err != nil {
			return fmt.Errorf("overdue items: %w", err)
		}
		return nil
	})
	if err != nil {
		return scoring.ScoreInputs{}, WrapRepositoryError(err, "load score inputs")
	}
	return in, nil
}

func loadPlanStats(ctx context.Context, tx *sql.Tx, orgID uuid.UUID) (scoring.PlanStats, error) {
	var (
		stats    scoring.PlanStats
		reviewed sql.NullTime
	)
	if err := tx.QueryRowContext(ctx, planStatsQuery, orgID).Scan(&stats.Total, &stats.ApprovedCount, &reviewed); err != nil {
		return stats, err
	}
	stats.LastReviewedAt = nullTimePtr(reviewed)
	if stats.Total == 0 {
		return stats, nil
	}

	var (
		plan   dwsp.Plan
		status string
	)
	if err := tx.QueryRowContext(ctx, latestPlanQuery, orgID).Scan(&plan.ID, &status); err != nil {
		return stats, err
	}
	plan.Status = dwsp.PlanStatus(status)
	stats.LatestStatus = plan.Status

	rows, err := tx.QueryContext(ctx, planSectionsQuery, plan.ID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	plan.Sections = make(map[dwsp.Element]dwsp.Section)
	for rows.Next() {
		var (
			element int
			content []byte
		)
		if err := rows.Scan(&element, &content); err != nil {
			return stats, err
		}
		e := dwsp.Element(element)
		plan.Sections[e] = dwsp.DecodeSection(e, content)
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	stats.MissingElements = plan.MissingElements()
	return stats, nil
}
