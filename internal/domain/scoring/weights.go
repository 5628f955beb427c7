// Package scoring computes the weighted organizational compliance score, its
// trend against the prior snapshot, and the recommendations that follow from
// weak sub-scores.
package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SubScore names one of the six weighted score components.
type SubScore string

const (
	SubScoreDWSP          SubScore = "dwsp_compliance"
	SubScoreAsset         SubScore = "asset_management"
	SubScoreDocumentation SubScore = "documentation_compliance"
	SubScoreReporting     SubScore = "reporting_compliance"
	SubScoreRisk          SubScore = "risk_management"
	SubScoreTimeliness    SubScore = "timeliness"
)

// SubScores lists the components in their fixed presentation order.
var SubScores = []SubScore{
	SubScoreDWSP,
	SubScoreAsset,
	SubScoreDocumentation,
	SubScoreReporting,
	SubScoreRisk,
	SubScoreTimeliness,
}

// Category is the human-facing recommendation category for the sub-score.
func (s SubScore) Category() string {
	switch s {
	case SubScoreDWSP:
		return "DWSP Compliance"
	case SubScoreAsset:
		return "Asset Management"
	case SubScoreDocumentation:
		return "Documentation"
	case SubScoreReporting:
		return "Regulatory Reporting"
	case SubScoreRisk:
		return "Risk Management"
	case SubScoreTimeliness:
		return "Timeliness"
	default:
		return string(s)
	}
}

func (s SubScore) order() int {
	for i, v := range SubScores {
		if v == s {
			return i
		}
	}
	return len(SubScores)
}

// WeightTable maps every sub-score to its weight.
type WeightTable map[SubScore]decimal.Decimal

// Weights is the one place score weights are defined.
var Weights = WeightTable{
	SubScoreDWSP:          decimal.RequireFromString("0.35"),
	SubScoreAsset:         decimal.RequireFromString("0.20"),
	SubScoreDocumentation: decimal.RequireFromString("0.15"),
	SubScoreReporting:     decimal.RequireFromString("0.15"),
	SubScoreRisk:          decimal.RequireFromString("0.10"),
	SubScoreTimeliness:    decimal.RequireFromString("0.05"),
}

// Sum adds the weights exactly.
func (w WeightTable) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range w {
		sum = sum.Add(v)
	}
	return sum
}

// Validate checks that the table covers every sub-score, has no negative
// weights and sums to exactly one.
func (w WeightTable) Validate() error {
	if len(w) != len(SubScores) {
		return fmt.Errorf("weight table has %d entries, want %d", len(w), len(SubScores))
	}
	for _, s := range SubScores {
		v, ok := w[s]
		if !ok {
			return fmt.Errorf("weight table missing %s", s)
		}
		if v.IsNegative() {
			return fmt.Errorf("weight for %s is negative: %s", s, v)
		}
	}
	if sum := w.Sum(); !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("weights sum to %s, want 1", sum)
	}
	return nil
}

func init() {
	if err := Weights.Validate(); err != nil {
		panic(err)
	}
}
