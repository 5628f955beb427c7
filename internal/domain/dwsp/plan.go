// Package dwsp models Drinking Water Safety Plans: lifecycle status, the
// twelve mandatory elements, and the typed content of each plan section.
package dwsp

import (
	"time"

	"github.com/google/uuid"
)

// PlanStatus is the approval state of a plan revision.
type PlanStatus string

const (
	StatusDraft    PlanStatus = "DRAFT"
	StatusInReview PlanStatus = "IN_REVIEW"
	StatusApproved PlanStatus = "APPROVED"
	StatusRejected PlanStatus = "REJECTED"
)

// Element is one of the twelve mandatory DWSP elements, numbered 1 to 12.
type Element int

const (
	ElementSupplyDescription Element = iota + 1
	ElementHazards
	ElementPreventiveMeasures
	ElementOperationalMonitoring
	ElementVerificationMonitoring
	ElementCorrectiveAction
	ElementIncidentResponse
	ElementSupplyManagement
	ElementDocumentation
	ElementImprovementPlanning
	ElementSupplyDetails
	ElementReviewApproval
)

var elementTitles = map[Element]string{
	ElementSupplyDescription:      "Description of the drinking water supply",
	ElementHazards:                "Hazardous events and hazards",
	ElementPreventiveMeasures:     "Preventive measures for hazards",
	ElementOperationalMonitoring:  "Operational monitoring",
	ElementVerificationMonitoring: "Verification monitoring",
	ElementCorrectiveAction:       "Corrective action",
	ElementIncidentResponse:       "Incident and emergency response",
	ElementSupplyManagement:       "Management of the drinking water supply",
	ElementDocumentation:          "Documentation and communication",
	ElementImprovementPlanning:    "Improvement planning",
	ElementSupplyDetails:          "Supply details",
	ElementReviewApproval:         "Review and approval",
}

// MandatoryElements lists all twelve elements in order.
func MandatoryElements() []Element {
	out := make([]Element, 0, len(elementTitles))
	for e := ElementSupplyDescription; e <= ElementReviewApproval; e++ {
		out = append(out, e)
	}
	return out
}

func (e Element) Title() string {
	if t, ok := elementTitles[e]; ok {
		return t
	}
	return "Unknown element"
}

func (e Element) Valid() bool {
	_, ok := elementTitles[e]
	return ok
}

// Plan is one revision of an organization's safety plan.
type Plan struct {
	ID             uuid.UUID           `json:"id"`
	OrganizationID uuid.UUID           `json:"organization_id"`
	Version        int                 `json:"version"`
	Status         PlanStatus          `json:"status"`
	SubmittedAt    *time.Time          `json:"submitted_at,omitempty"`
	ApprovedAt     *time.Time          `json:"approved_at,omitempty"`
	LastReviewedAt *time.Time          `json:"last_reviewed_at,omitempty"`
	Sections       map[Element]Section `json:"sections,omitempty"`
}

// MissingElements returns the mandatory elements with no section or with a
// section whose content is incomplete, in element order.
func (p *Plan) MissingElements() []Element {
	var missing []Element
	for _, e := range MandatoryElements() {
		s, ok := p.Sections[e]
		if !ok || s.Content == nil || !s.Content.Complete() {
			missing = append(missing, e)
		}
	}
	return missing
}

// ReviewedAt returns the most recent review or approval time, whichever is later.
func (p *Plan) ReviewedAt() *time.Time {
	switch {
	case p.LastReviewedAt == nil:
		return p.ApprovedAt
	case p.ApprovedAt == nil:
		return p.LastReviewedAt
	case p.ApprovedAt.After(*p.LastReviewedAt):
		return p.ApprovedAt
	default:
		return p.LastReviewedAt
	}
}
