package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowcomply/compliance-engine/internal/domain/dwsp"
)

// PlanStats summarizes an organization's safety plans.
type PlanStats struct {
	Total          int
	ApprovedCount  int
	LatestStatus   dwsp.PlanStatus
	LastReviewedAt *time.Time
	// MissingElements of the latest plan, when its sections were loaded.
	MissingElements []dwsp.Element
}

// AssetStats summarizes the asset register. InspectedInWindow counts assets
// inspected within the configured inspection window.
type AssetStats struct {
	Total             int
	CriticalPoor      int
	VeryPoor          int
	InspectedInWindow int
}

type DocumentStats struct {
	Total        int
	TypesPresent []string
	LastUploadAt *time.Time
}

// ReportStats counts regulator submissions in the trailing twelve months.
type ReportStats struct {
	AnnualSubmitted    int
	QuarterlySubmitted int
	MonthlySubmitted   int
}

type RiskStats struct {
	LastAssessmentAt *time.Time
	Incidents        int
}

type TimelinessStats struct {
	OverdueItems int
}

// ScoreInputs is everything the calculator reads for one organization.
type ScoreInputs struct {
	OrganizationID uuid.UUID
	AsOf           time.Time
	Plans          PlanStats
	Assets         AssetStats
	Documents      DocumentStats
	Reports        ReportStats
	Risk           RiskStats
	Timeliness     TimelinessStats
}

// ScorePolicy holds the tunable constants of the sub-score policies.
type ScorePolicy struct {
	Thresholds            map[SubScore]float64
	RequiredDocumentTypes []string
	ReviewCurrentWithin   time.Duration
	ReviewStaleWithin     time.Duration
	RecentUploadWindow    time.Duration
	RiskAssessmentMaxAge  time.Duration
	InspectionWindow      time.Duration
	IncidentWindow        time.Duration
	IncidentPenalty       float64
	OverduePenalty        float64
	ExpectedAnnual        int
	ExpectedQuarterly     int
	ExpectedMonthly       int
	StatusCredit          map[dwsp.PlanStatus]float64
}

const day = 24 * time.Hour

// DefaultScorePolicy returns the production defaults.
func DefaultScorePolicy() ScorePolicy {
	return ScorePolicy{
		Thresholds: map[SubScore]float64{
			SubScoreDWSP:          80,
			SubScoreAsset:         70,
			SubScoreDocumentation: 70,
			SubScoreReporting:     80,
			SubScoreRisk:          70,
			SubScoreTimeliness:    80,
		},
		RequiredDocumentTypes: []string{
			"DWSP",
			"SAMPLING_PLAN",
			"RISK_ASSESSMENT",
			"INCIDENT_RESPONSE_PLAN",
			"ASSET_REGISTER",
			"COMPLIANCE_REPORT",
		},
		ReviewCurrentWithin:  365 * day,
		ReviewStaleWithin:    730 * day,
		RecentUploadWindow:   90 * day,
		RiskAssessmentMaxAge: 365 * day,
		InspectionWindow:     365 * day,
		IncidentWindow:       365 * day,
		IncidentPenalty:      10,
		OverduePenalty:       10,
		ExpectedAnnual:       1,
		ExpectedQuarterly:    4,
		ExpectedMonthly:      12,
		StatusCredit: map[dwsp.PlanStatus]float64{
			dwsp.StatusDraft:    25,
			dwsp.StatusInReview: 50,
			dwsp.StatusRejected: 10,
		},
	}
}
