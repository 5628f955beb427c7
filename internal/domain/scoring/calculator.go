package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowcomply/compliance-engine/internal/domain/dwsp"
)

// Guard terms reported when a ratio denominator was zero and the term
// resolved to its defined fallback.
const (
	GuardAssetRatios       = "asset_ratios"
	GuardDocumentCoverage  = "document_coverage"
	GuardDocumentRatios    = "document_ratios"
	GuardReportingExpected = "reporting_expected"
)

// Component is one sub-score with the weight it contributes at.
type Component struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Breakdown holds all six sub-scores keyed by name.
type Breakdown map[SubScore]Component

// Score returns the named sub-score, or 0 when absent.
func (b Breakdown) Score(s SubScore) float64 {
	return b[s].Score
}

// Result is the output of one score calculation.
type Result struct {
	Overall   int
	Breakdown Breakdown
	// GuardedTerms lists ratios that hit a zero denominator.
	GuardedTerms []string
}

// Calculator computes the weighted compliance score. It holds no state
// beyond its policy and is safe for concurrent use.
type Calculator struct {
	policy  ScorePolicy
	weights WeightTable
}

func NewCalculator(policy ScorePolicy) *Calculator {
	return &Calculator{policy: policy, weights: Weights}
}

func (c *Calculator) Policy() ScorePolicy {
	return c.policy
}

// Calculate evaluates every sub-score and the weighted overall score.
func (c *Calculator) Calculate(in ScoreInputs) Result {
	var guards []string
	guard := func(term string) { guards = append(guards, term) }

	scores := map[SubScore]float64{
		SubScoreDWSP:          c.dwspScore(in),
		SubScoreAsset:         c.assetScore(in.Assets, guard),
		SubScoreDocumentation: c.documentationScore(in, guard),
		SubScoreReporting:     c.reportingScore(in.Reports, guard),
		SubScoreRisk:          c.riskScore(in),
		SubScoreTimeliness:    c.timelinessScore(in.Timeliness),
	}

	breakdown := make(Breakdown, len(SubScores))
	overall := decimal.Zero
	for _, s := range SubScores {
		score := clamp(scores[s])
		w := c.weights[s]
		breakdown[s] = Component{Score: score, Weight: w.InexactFloat64()}
		overall = overall.Add(decimal.NewFromFloat(score).Mul(w))
	}

	total := overall.Round(0).IntPart()
	switch {
	case total < 0:
		total = 0
	case total > 100:
		total = 100
	}

	return Result{Overall: int(total), Breakdown: breakdown, GuardedTerms: guards}
}

func (c *Calculator) dwspScore(in ScoreInputs) float64 {
	p := in.Plans
	if p.Total == 0 {
		return 0
	}
	if p.ApprovedCount > 0 || p.LatestStatus == dwsp.StatusApproved {
		return 100 * c.reviewCurrency(p.LastReviewedAt, in.AsOf)
	}
	return c.policy.StatusCredit[p.LatestStatus]
}

func (c *Calculator) reviewCurrency(reviewed *time.Time, asOf time.Time) float64 {
	if reviewed == nil {
		return 0.5
	}
	age := asOf.Sub(*reviewed)
	switch {
	case age <= c.policy.ReviewCurrentWithin:
		return 1.0
	case age <= c.policy.ReviewStaleWithin:
		return 0.75
	default:
		return 0.5
	}
}

func (c *Calculator) assetScore(a AssetStats, guard func(string)) float64 {
	if a.Total <= 0 {
		guard(GuardAssetRatios)
		return 0
	}
	total := float64(a.Total)
	criticalPoor := float64(a.CriticalPoor) / total
	inspected := float64(a.InspectedInWindow) / total
	veryPoor := float64(a.VeryPoor) / total
	return 50*(1-criticalPoor) + 50*inspected - 25*veryPoor
}

func (c *Calculator) documentationScore(in ScoreInputs, guard func(string)) float64 {
	d := in.Documents
	if d.Total <= 0 {
		guard(GuardDocumentRatios)
		return 0
	}

	coverage := 1.0
	if required := c.policy.RequiredDocumentTypes; len(required) == 0 {
		guard(GuardDocumentCoverage)
	} else {
		present := make(map[string]bool, len(d.TypesPresent))
		for _, t := range d.TypesPresent {
			present[strings.ToUpper(t)] = true
		}
		found := 0
		for _, t := range required {
			if present[strings.ToUpper(t)] {
				found++
			}
		}
		coverage = float64(found) / float64(len(required))
	}

	recency := 0.0
	if d.LastUploadAt != nil {
		age := in.AsOf.Sub(*d.LastUploadAt)
		switch {
		case age <= c.policy.RecentUploadWindow:
			recency = 1.0
		case age <= 2*c.policy.RecentUploadWindow:
			recency = 0.5
		}
	}

	return 80*coverage + 20*recency
}

func (c *Calculator) reportingScore(r ReportStats, guard func(string)) float64 {
	expected := c.policy.ExpectedAnnual + c.policy.ExpectedQuarterly + c.policy.ExpectedMonthly
	if expected <= 0 {
		guard(GuardReportingExpected)
		return 0
	}
	present := min(r.AnnualSubmitted, c.policy.ExpectedAnnual) +
		min(r.QuarterlySubmitted, c.policy.ExpectedQuarterly) +
		min(r.MonthlySubmitted, c.policy.ExpectedMonthly)
	return float64(present) / float64(expected) * 100
}

func (c *Calculator) riskScore(in ScoreInputs) float64 {
	score := 100.0
	switch {
	case in.Risk.LastAssessmentAt == nil:
		score -= 100
	case in.AsOf.Sub(*in.Risk.LastAssessmentAt) > c.policy.RiskAssessmentMaxAge:
		score -= 50
	}
	score -= c.policy.IncidentPenalty * float64(max(in.Risk.Incidents, 0))
	return score
}

func (c *Calculator) timelinessScore(t TimelinessStats) float64 {
	return 100 - c.policy.OverduePenalty*float64(max(t.OverdueItems, 0))
}

// clamp bounds a sub-score to [0, 100]; NaN resolves to 0.
func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return math.Round(v*100) / 100
	}
}
