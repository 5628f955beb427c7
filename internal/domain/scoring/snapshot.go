package scoring

import (
	"time"

	"github.com/google/uuid"
)

// ComplianceScoreSnapshot is an append-only record of one score calculation.
type ComplianceScoreSnapshot struct {
	ID              uuid.UUID        `json:"id"`
	OrganizationID  uuid.UUID        `json:"organization_id"`
	CalculatedAt    time.Time        `json:"calculated_at"`
	OverallScore    int              `json:"overall_score"`
	Breakdown       Breakdown        `json:"breakdown"`
	Recommendations []Recommendation `json:"recommendations"`
	Trend           Trend            `json:"trend"`
	PreviousScore   *int             `json:"previous_score,omitempty"`
}

// NewSnapshot builds the snapshot for a calculation result and the prior
// snapshot, which may be nil.
func NewSnapshot(orgID uuid.UUID, res Result, recs []Recommendation, prior *ComplianceScoreSnapshot, now time.Time) *ComplianceScoreSnapshot {
	s := &ComplianceScoreSnapshot{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		CalculatedAt:    now,
		OverallScore:    res.Overall,
		Breakdown:       res.Breakdown,
		Recommendations: recs,
		Trend:           AnalyzeTrend(res.Overall, prior),
	}
	if s.Recommendations == nil {
		s.Recommendations = []Recommendation{}
	}
	if prior != nil {
		prev := prior.OverallScore
		s.PreviousScore = &prev
	}
	return s
}
