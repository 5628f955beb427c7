package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowcomply/compliance-engine/internal/domain/dwsp"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Recommendation is generated fresh on every calculation.
type Recommendation struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Issue    string   `json:"issue"`
	Action   string   `json:"action"`
	SubScore SubScore `json:"sub_score"`
	Score    float64  `json:"score"`
}

// GenerateRecommendations emits one recommendation per sub-score below its
// threshold, critical first and then by ascending score.
func GenerateRecommendations(b Breakdown, in ScoreInputs, policy ScorePolicy) []Recommendation {
	recs := make([]Recommendation, 0, len(SubScores))
	for _, s := range SubScores {
		score := b.Score(s)
		threshold, ok := policy.Thresholds[s]
		if !ok || score >= threshold {
			continue
		}

		sev := severityForDeficit(threshold - score)
		if regulatorCritical(s, in) {
			sev = SeverityCritical
		}
		issue, action := describe(s, score, threshold, in)
		recs = append(recs, Recommendation{
			Severity: sev,
			Category: s.Category(),
			Issue:    issue,
			Action:   action,
			SubScore: s,
			Score:    score,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.SubScore.order() < b.SubScore.order()
	})
	return recs
}

func severityForDeficit(deficit float64) Severity {
	switch {
	case deficit >= 50:
		return SeverityHigh
	case deficit >= 25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// regulatorCritical reports conditions that are critical regardless of score.
func regulatorCritical(s SubScore, in ScoreInputs) bool {
	switch s {
	case SubScoreDWSP:
		return in.Plans.ApprovedCount == 0 && in.Plans.LatestStatus != dwsp.StatusApproved
	case SubScoreReporting:
		return in.Reports.AnnualSubmitted == 0
	}
	return false
}

func describe(s SubScore, score, threshold float64, in ScoreInputs) (issue, action string) {
	switch s {
	case SubScoreDWSP:
		switch {
		case in.Plans.Total == 0:
			issue = "No Drinking Water Safety Plan on record"
			action = "Prepare a DWSP covering all 12 mandatory elements and submit it for approval"
		case in.Plans.ApprovedCount == 0 && in.Plans.LatestStatus != dwsp.StatusApproved:
			issue = fmt.Sprintf("No approved Drinking Water Safety Plan (latest plan is %s)", strings.ToLower(string(in.Plans.LatestStatus)))
			action = "Complete the plan and obtain approval"
		default:
			issue = "Drinking Water Safety Plan review is not current"
			action = "Review the approved DWSP and record the review date"
		}
		if len(in.Plans.MissingElements) > 0 {
			action += ". Missing elements: " + elementList(in.Plans.MissingElements)
		}
	case SubScoreAsset:
		issue = fmt.Sprintf("Asset management score %.0f is below %.0f", score, threshold)
		if in.Assets.Total == 0 {
			action = "Register treatment and distribution assets with condition ratings"
		} else {
			action = fmt.Sprintf("Inspect uninspected assets (%d of %d inspected) and plan renewal of %d critical assets in poor condition",
				in.Assets.InspectedInWindow, in.Assets.Total, in.Assets.CriticalPoor)
		}
	case SubScoreDocumentation:
		issue = fmt.Sprintf("Documentation score %.0f is below %.0f", score, threshold)
		action = "Upload current versions of all required compliance documents"
	case SubScoreReporting:
		issue = fmt.Sprintf("Regulatory reporting score %.0f is below %.0f", score, threshold)
		if in.Reports.AnnualSubmitted == 0 {
			issue = "No annual DWQAR report submitted in the last 12 months"
		}
		action = "Submit outstanding annual, quarterly and monthly reports to the regulator"
	case SubScoreRisk:
		issue = fmt.Sprintf("Risk management score %.0f is below %.0f", score, threshold)
		switch {
		case in.Risk.LastAssessmentAt == nil:
			action = "Complete a risk assessment for the supply"
		case in.Risk.Incidents > 0:
			action = fmt.Sprintf("Investigate %d recorded incidents and update the risk assessment", in.Risk.Incidents)
		default:
			action = "Update the risk assessment"
		}
	case SubScoreTimeliness:
		issue = fmt.Sprintf("%d compliance items are overdue", in.Timeliness.OverdueItems)
		action = "Clear overdue plan reviews, reports and inspections"
	}
	return issue, action
}

func elementList(elems []dwsp.Element) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = fmt.Sprintf("%d %s", int(e), e.Title())
	}
	return strings.Join(parts, "; ")
}
