package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
)

// SampleBuilder builds water quality test samples with sensible defaults.
type SampleBuilder struct {
	sample dwqar.WaterQualityTestSample
}

func NewSampleBuilder(orgID uuid.UUID) *SampleBuilder {
	b := &SampleBuilder{
		sample: dwqar.WaterQualityTestSample{
			ID:               uuid.New(),
			OrganizationID:   orgID,
			RuleID:           "T1.8-ecol",
			ComponentID:      "TP00001",
			SampleDate:       time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC),
			Parameter:        "ecol",
			Unit:             "MPN/100mL",
			CompliesWithRule: true,
		},
	}
	b.sample.Value, _ = dwqar.ParseMeasuredValue("<1")
	return b
}

func (b *SampleBuilder) WithRule(ruleID string) *SampleBuilder {
	b.sample.RuleID = ruleID
	b.sample.Parameter = dwqar.ParameterForRuleID(ruleID)
	return b
}

func (b *SampleBuilder) WithComponent(componentID string) *SampleBuilder {
	b.sample.ComponentID = componentID
	return b
}

func (b *SampleBuilder) WithDate(t time.Time) *SampleBuilder {
	b.sample.SampleDate = t
	return b
}

func (b *SampleBuilder) WithValue(v string) *SampleBuilder {
	b.sample.Value, _ = dwqar.ParseMeasuredValue(v)
	return b
}

func (b *SampleBuilder) NonCompliant() *SampleBuilder {
	b.sample.CompliesWithRule = false
	return b
}

// Build returns a fresh copy with a new ID per call.
func (b *SampleBuilder) Build(t *testing.T) *dwqar.WaterQualityTestSample {
	t.Helper()
	s := b.sample
	b.sample.ID = uuid.New()
	return &s
}

// Samples builds n samples for one (rule, component) pair, the first
// nonCompliant of which fail the rule. Sample dates step one day at a time.
func Samples(t *testing.T, orgID uuid.UUID, ruleID, componentID string, n, nonCompliant int) []*dwqar.WaterQualityTestSample {
	t.Helper()
	start := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	out := make([]*dwqar.WaterQualityTestSample, 0, n)
	for i := 0; i < n; i++ {
		b := NewSampleBuilder(orgID).
			WithRule(ruleID).
			WithComponent(componentID).
			WithDate(start.AddDate(0, 0, i))
		if i < nonCompliant {
			b.NonCompliant()
		}
		out = append(out, b.Build(t))
	}
	return out
}

// Catalog returns a catalog with the given active rules and components.
func Catalog(orgID uuid.UUID, ruleIDs, componentIDs []string) dwqar.Catalog {
	effective := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := dwqar.Catalog{}
	for _, id := range ruleIDs {
		c.Rules = append(c.Rules, dwqar.NewComplianceRule(id, effective))
	}
	for _, id := range componentIDs {
		c.Components = append(c.Components, &dwqar.MonitoredComponent{
			ComponentID:    id,
			OrganizationID: orgID,
			Name:           id,
			Type:           dwqar.ComponentTreatmentPlant,
			IsActive:       true,
		})
	}
	return c
}
