package dwqar

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowcomply/compliance-engine/internal/domain/errors"
)

// ReportStatus is the lifecycle state of a DWQAR report.
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "DRAFT"
	ReportStatusValidated ReportStatus = "VALIDATED"
	ReportStatusSubmitted ReportStatus = "SUBMITTED"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusDraft, ReportStatusValidated, ReportStatusSubmitted:
		return true
	}
	return false
}

// SampleRow is the exported form of one sample in the report's samples sheet.
type SampleRow struct {
	RuleID           string    `json:"rule_id"`
	ComponentID      string    `json:"component_id"`
	SampleDate       time.Time `json:"sample_date"`
	Parameter        string    `json:"parameter"`
	Value            string    `json:"value"`
	Unit             string    `json:"unit"`
	CompliesWithRule bool      `json:"complies_with_rule"`
	ExternalSampleID string    `json:"external_sample_id,omitempty"`
}

func NewSampleRow(s *WaterQualityTestSample) SampleRow {
	return SampleRow{
		RuleID:           s.RuleID,
		ComponentID:      s.ComponentID,
		SampleDate:       s.SampleDate,
		Parameter:        s.Parameter,
		Value:            s.Value.String(),
		Unit:             s.Unit,
		CompliesWithRule: s.CompliesWithRule,
		ExternalSampleID: s.ExternalSampleID,
	}
}

// DWQARReport is the Drinking Water Quality Assurance Report envelope for one
// organization and period.
type DWQARReport struct {
	ID                 uuid.UUID                 `json:"id"`
	ReportingPeriod    ReportingPeriod           `json:"reporting_period"`
	OrganizationID     uuid.UUID                 `json:"organization_id"`
	SamplesData        []SampleRow               `json:"samples_data"`
	ReportsData        []RuleComplianceAggregate `json:"reports_data"`
	GeneratedAt        time.Time                 `json:"generated_at"`
	Status             ReportStatus              `json:"status"`
	Completeness       float64                   `json:"completeness"`
	CompletenessDetail *Completeness             `json:"completeness_detail,omitempty"`
	TotalSamples       int                       `json:"total_samples"`
	TotalRules         int                       `json:"total_rules"`
	ValidatedAt        *time.Time                `json:"validated_at,omitempty"`
	SubmittedAt        *time.Time                `json:"submitted_at,omitempty"`
	ConfirmationNumber string                    `json:"confirmation_number,omitempty"`
}

// NewReport assembles a DRAFT report from a computed aggregate set.
func NewReport(orgID uuid.UUID, period ReportingPeriod, samples []SampleRow, aggs []RuleComplianceAggregate, c Completeness, now time.Time) *DWQARReport {
	summary := Summarize(aggs)
	return &DWQARReport{
		ID:                 uuid.New(),
		ReportingPeriod:    period,
		OrganizationID:     orgID,
		SamplesData:        samples,
		ReportsData:        aggs,
		GeneratedAt:        now,
		Status:             ReportStatusDraft,
		Completeness:       c.Overall,
		CompletenessDetail: &c,
		TotalSamples:       summary.TotalSamples,
		TotalRules:         summary.DistinctRules,
	}
}

// Supersede carries the stored report's identity forward. The regenerated
// report stays DRAFT because new data invalidates a prior validation.
func (r *DWQARReport) Supersede(prev *DWQARReport) {
	if prev == nil {
		return
	}
	r.ID = prev.ID
}

// Recomputable returns an INVALID_STATUS_TRANSITION error once the report has
// been submitted. A submitted report and its aggregates are frozen.
func (r *DWQARReport) Recomputable() error {
	if r.Status == ReportStatusSubmitted {
		return SubmittedReportError(r.ReportingPeriod)
	}
	return nil
}

// SubmittedReportError rejects any write over a submitted report.
func SubmittedReportError(period ReportingPeriod) error {
	return errors.NewBusinessError(errors.CodeInvalidStatusTransition,
		fmt.Sprintf("report for %s is already submitted", period)).
		WithDetails(map[string]interface{}{"period": period.String(), "status": string(ReportStatusSubmitted)})
}

// MarkValidated moves a DRAFT report to VALIDATED. Re-validating a VALIDATED
// report refreshes the timestamp.
func (r *DWQARReport) MarkValidated(now time.Time) error {
	switch r.Status {
	case ReportStatusDraft, ReportStatusValidated:
		r.Status = ReportStatusValidated
		r.ValidatedAt = &now
		return nil
	default:
		return transitionError(r.Status, ReportStatusValidated)
	}
}

// Submit records the regulator submission. Only VALIDATED reports can be submitted.
func (r *DWQARReport) Submit(confirmation string, now time.Time) error {
	if r.Status != ReportStatusValidated {
		return transitionError(r.Status, ReportStatusSubmitted)
	}
	if confirmation == "" {
		return errors.NewValidationError(errors.CodeInvalidInput, "confirmation number is required")
	}
	r.Status = ReportStatusSubmitted
	r.SubmittedAt = &now
	r.ConfirmationNumber = confirmation
	return nil
}

func transitionError(from, to ReportStatus) error {
	return errors.NewBusinessError(errors.CodeInvalidStatusTransition,
		fmt.Sprintf("cannot move report from %s to %s", from, to)).
		WithDetails(map[string]interface{}{"from": string(from), "to": string(to)})
}
