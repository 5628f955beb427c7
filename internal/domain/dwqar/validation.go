package dwqar

import (
	"fmt"
	"time"
)

// Validation issue codes.
const (
	IssueNoSamples             = "NO_SAMPLES"
	IssueUnregisteredComponent = "UNREGISTERED_COMPONENT"
	IssueUnknownRule           = "UNKNOWN_RULE"
	IssueLowCompleteness       = "LOW_COMPLETENESS"
	IssueNonCompliance         = "NON_COMPLIANCE"
	IssueDeadlineApproaching   = "DEADLINE_APPROACHING"
	IssueDeadlinePassed        = "DEADLINE_PASSED"
)

// ValidationIssue is a single pre-export finding.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// ValidationPolicy holds the warning thresholds.
type ValidationPolicy struct {
	MinCompleteness     float64
	DeadlineWarningDays int
}

func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{MinCompleteness: 90, DeadlineWarningDays: 30}
}

// ValidateReport checks a report against the organization's catalog before export.
func ValidateReport(r *DWQARReport, catalog Catalog, policy ValidationPolicy, now time.Time) ValidationResult {
	res := ValidationResult{Errors: []ValidationIssue{}, Warnings: []ValidationIssue{}}

	if r.TotalSamples == 0 {
		res.Errors = append(res.Errors, ValidationIssue{
			Code:    IssueNoSamples,
			Message: fmt.Sprintf("no water quality samples recorded for %s", r.ReportingPeriod),
		})
	}

	components := make(map[string]*MonitoredComponent, len(catalog.Components))
	for _, c := range catalog.Components {
		components[c.ComponentID] = c
	}
	rules := make(map[string]*ComplianceRule, len(catalog.Rules))
	for _, rule := range catalog.Rules {
		rules[rule.RuleID] = rule
	}

	seenComponents := make(map[string]bool)
	seenRules := make(map[string]bool)
	nonCompliant := 0
	for _, agg := range r.ReportsData {
		if !agg.Complies {
			nonCompliant++
		}
		if !seenComponents[agg.ComponentID] {
			seenComponents[agg.ComponentID] = true
			if c, ok := components[agg.ComponentID]; !ok || !c.IsActive {
				res.Errors = append(res.Errors, ValidationIssue{
					Code:    IssueUnregisteredComponent,
					Message: fmt.Sprintf("component %s is not registered or not active", agg.ComponentID),
					Ref:     agg.ComponentID,
				})
			}
		}
		if !seenRules[agg.RuleID] {
			seenRules[agg.RuleID] = true
			if _, ok := rules[agg.RuleID]; !ok {
				res.Errors = append(res.Errors, ValidationIssue{
					Code:    IssueUnknownRule,
					Message: fmt.Sprintf("rule %s is not in the compliance rule catalog", agg.RuleID),
					Ref:     agg.RuleID,
				})
			}
		}
	}

	if r.Completeness < policy.MinCompleteness {
		res.Warnings = append(res.Warnings, ValidationIssue{
			Code:    IssueLowCompleteness,
			Message: fmt.Sprintf("report completeness %.2f%% is below %.0f%%", r.Completeness, policy.MinCompleteness),
		})
	}

	if nonCompliant > 0 {
		res.Warnings = append(res.Warnings, ValidationIssue{
			Code:    IssueNonCompliance,
			Message: fmt.Sprintf("%d rule/component combinations did not comply", nonCompliant),
		})
	}

	d := Deadline(r.ReportingPeriod, now)
	switch {
	case d.DaysRemaining < 0:
		res.Warnings = append(res.Warnings, ValidationIssue{
			Code:    IssueDeadlinePassed,
			Message: fmt.Sprintf("submission deadline %s has passed", d.DueDate.Format(time.DateOnly)),
		})
	case d.DaysRemaining <= policy.DeadlineWarningDays:
		res.Warnings = append(res.Warnings, ValidationIssue{
			Code:    IssueDeadlineApproaching,
			Message: fmt.Sprintf("submission due in %d days (%s)", d.DaysRemaining, d.DueDate.Format(time.DateOnly)),
		})
	}

	res.Valid = len(res.Errors) == 0
	return res
}
