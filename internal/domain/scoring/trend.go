package scoring

// Trend compares a new overall score with the most recent prior snapshot.
type Trend string

const (
	TrendUnknown   Trend = "unknown"
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// AnalyzeTrend looks only at the single prior snapshot; nil means none exists.
func AnalyzeTrend(current int, prior *ComplianceScoreSnapshot) Trend {
	if prior == nil {
		return TrendUnknown
	}
	switch {
	case current > prior.OverallScore:
		return TrendImproving
	case current < prior.OverallScore:
		return TrendDeclining
	default:
		return TrendStable
	}
}
