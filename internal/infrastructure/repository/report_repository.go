package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
	"github.com/flowcomply/compliance-engine/internal/domain/errors"
)

// ReportRepository stores DWQAR report envelopes. Aggregates are read back
// from rule_compliance when a report is loaded.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const saveReport = `
	INSERT INTO dwqar_reports (
		id, organization_id, reporting_period, status, completeness, completeness_detail,
		total_samples, total_rules, generated_at, validated_at, submitted_at, confirmation_number
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (organization_id, reporting_period) DO UPDATE SET
		status = EXCLUDED.status,
		completeness = EXCLUDED.completeness,
		completeness_detail = EXCLUDED.completeness_detail,
		total_samples = EXCLUDED.total_samples,
		total_rules = EXCLUDED.total_rules,
		generated_at = EXCLUDED.generated_at,
		validated_at = EXCLUDED.validated_at,
		submitted_at = EXCLUDED.submitted_at,
		confirmation_number = EXCLUDED.confirmation_number
	WHERE dwqar_reports.status <> 'SUBMITTED'`

const reportColumns = `id, organization_id, reporting_period, status, completeness, completeness_detail,
		total_samples, total_rules, generated_at, validated_at, submitted_at, confirmation_number`

const getReport = `
	SELECT ` + reportColumns + `
	FROM dwqar_reports
	WHERE organization_id = $1 AND reporting_period = $2`

const listReports = `
	SELECT ` + reportColumns + `
	FROM dwqar_reports
	WHERE organization_id = $1
	ORDER BY ` + periodNewestFirst + `, generated_at DESC`

// periodNewestFirst orders "YYYY-Annual" and "YYYY-Qn" tokens by year, then
// Annual ahead of Q4 through Q1 within the year.
const periodNewestFirst = `split_part(reporting_period, '-', 1)::int DESC,
		CASE split_part(reporting_period, '-', 2)
			WHEN 'Annual' THEN 5
			ELSE substr(split_part(reporting_period, '-', 2), 2)::int
		END DESC`

// SaveReport creates or replaces the envelope for (organization, period).
func (r *ReportRepository) SaveReport(ctx context.Context, rep *dwqar.DWQARReport) error {
	err := saveReportWith(ctx, r.db, rep)
	if errors.HasCode(err, errors.CodeInvalidStatusTransition) {
		return err
	}
	return WrapRepositoryError(err, "save report")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// saveReportWith upserts the envelope on db, which may be a transaction. An
// existing SUBMITTED row matches the conflict but is not updated, which shows
// up as zero affected rows.
func saveReportWith(ctx context.Context, db execer, rep *dwqar.DWQARReport) error {
	var detail []byte
	if rep.CompletenessDetail != nil {
		var err error
		if detail, err = json.Marshal(rep.CompletenessDetail); err != nil {
			return fmt.Errorf("marshal completeness detail: %w", err)
		}
	}

	res, err := db.ExecContext(ctx, saveReport,
		rep.ID, rep.OrganizationID, rep.ReportingPeriod.String(), string(rep.Status),
		rep.Completeness, nullJSON(detail), rep.TotalSamples, rep.TotalRules,
		rep.GeneratedAt, rep.ValidatedAt, rep.SubmittedAt, nullString(rep.ConfirmationNumber),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dwqar.SubmittedReportError(rep.ReportingPeriod)
	}
	return nil
}

// GetReport loads the envelope and its stored aggregates.
func (r *ReportRepository) GetReport(ctx context.Context, orgID uuid.UUID, period dwqar.ReportingPeriod) (*dwqar.DWQARReport, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, getReport, orgID, period.String()))
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.ErrReportNotFound
		}
		return nil, WrapRepositoryError(err, "get report")
	}

	if rep.ReportsData, err = listAggregates(ctx, r.db, orgID, period); err != nil {
		return nil, err
	}
	rep.SamplesData = []dwqar.SampleRow{}
	return rep, nil
}

// ListReports returns envelopes only.
func (r *ReportRepository) ListReports(ctx context.Context, orgID uuid.UUID) ([]*dwqar.DWQARReport, error) {
	rows, err := r.db.QueryContext(ctx, listReports, orgID)
	if err != nil {
		return nil, WrapRepositoryError(err, "list reports")
	}
	defer rows.Close()

	reports := []*dwqar.DWQARReport{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, WrapRepositoryError(rows.Err(), "list reports")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*dwqar.DWQARReport, error) {
	var (
		rep          dwqar.DWQARReport
		period       string
		status       string
		detail       []byte
		validatedAt  sql.NullTime
		submittedAt  sql.NullTime
		confirmation sql.NullString
	)
	if err := row.Scan(&rep.ID, &rep.OrganizationID, &period, &status, &rep.Completeness, &detail,
		&rep.TotalSamples, &rep.TotalRules, &rep.GeneratedAt, &validatedAt, &submittedAt, &confirmation); err != nil {
		return nil, err
	}

	p, err := dwqar.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("stored report period: %w", err)
	}
	rep.ReportingPeriod = p
	rep.Status = dwqar.ReportStatus(status)
	rep.GeneratedAt = rep.GeneratedAt.UTC()
	rep.ValidatedAt = nullTimePtr(validatedAt)
	rep.SubmittedAt = nullTimePtr(submittedAt)
	rep.ConfirmationNumber = confirmation.String

	if len(detail) > 0 {
		var c dwqar.Completeness
		if err := json.Unmarshal(detail, &c); err != nil {
			return nil, fmt.Errorf("decode completeness detail: %w", err)
		}
		rep.CompletenessDetail = &c
	}
	return &rep, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
