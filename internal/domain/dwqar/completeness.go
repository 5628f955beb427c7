package dwqar

import "math"

// DefaultSamplesPerPeriod is the placeholder baseline of one sample per rule
// per component per month. It has no cited regulatory basis and is
// configurable through CompletenessPolicy.
const DefaultSamplesPerPeriod = 12

// CompletenessPolicy parameterises the expected testing baseline.
type CompletenessPolicy struct {
	SamplesPerPeriod int
}

func DefaultCompletenessPolicy() CompletenessPolicy {
	return CompletenessPolicy{SamplesPerPeriod: DefaultSamplesPerPeriod}
}

// CompletenessInputs are the observed and catalog counts for one period.
type CompletenessInputs struct {
	ActualSamples      int
	ActualRuleCoverage int // distinct (rule, component) pairs observed
	ActiveRules        int
	ActiveComponents   int
}

// Completeness is a heuristic estimate of how much of the expected baseline
// was observed. It is not a regulatory guarantee.
type Completeness struct {
	SampleCompleteness   float64 `json:"sample_completeness"`
	RuleCompleteness     float64 `json:"rule_completeness"`
	Overall              float64 `json:"overall"`
	ExpectedSamples      int     `json:"expected_samples"`
	ExpectedRuleCoverage int     `json:"expected_rule_coverage"`
	ActualSamples        int     `json:"actual_samples"`
	ActualRuleCoverage   int     `json:"actual_rule_coverage"`

	// GuardedTerms names the terms resolved to 0 because their expected
	// denominator was zero.
	GuardedTerms []string `json:"-"`
}

const (
	TermSampleCompleteness = "sample_completeness"
	TermRuleCompleteness   = "rule_completeness"
)

// EstimateCompleteness compares observed coverage to the expected baseline.
// A zero expected denominator yields 0 for that term, never NaN or Inf.
func EstimateCompleteness(in CompletenessInputs, policy CompletenessPolicy) Completeness {
	expectedCoverage := in.ActiveRules * in.ActiveComponents
	expectedSamples := expectedCoverage * policy.SamplesPerPeriod

	c := Completeness{
		ExpectedSamples:      expectedSamples,
		ExpectedRuleCoverage: expectedCoverage,
		ActualSamples:        in.ActualSamples,
		ActualRuleCoverage:   in.ActualRuleCoverage,
	}

	var ok bool
	if c.SampleCompleteness, ok = cappedPercent(in.ActualSamples, expectedSamples); !ok {
		c.GuardedTerms = append(c.GuardedTerms, TermSampleCompleteness)
	}
	if c.RuleCompleteness, ok = cappedPercent(in.ActualRuleCoverage, expectedCoverage); !ok {
		c.GuardedTerms = append(c.GuardedTerms, TermRuleCompleteness)
	}

	c.Overall = round2((c.SampleCompleteness + c.RuleCompleteness) / 2)
	return c
}

// cappedPercent returns min(actual/expected*100, 100) rounded to two places.
// The second result is false when expected is not positive.
func cappedPercent(actual, expected int) (float64, bool) {
	if expected <= 0 {
		return 0, false
	}
	return round2(math.Min(float64(actual)/float64(expected)*100, 100)), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
