package dwqar

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// GroupKey identifies a (rule, monitored component) sample bucket.
type GroupKey struct {
	RuleID      string `json:"rule_id"`
	ComponentID string `json:"component_id"`
}

// SampleBucket holds every sample observed for one (rule, component) pair.
type SampleBucket struct {
	Key     GroupKey
	Samples []*WaterQualityTestSample
}

// TestAggregator groups samples into (rule, component) buckets. It is a pure
// in-memory reduction fed one page at a time.
type TestAggregator struct {
	buckets map[GroupKey]*SampleBucket
	count   int
}

func NewTestAggregator() *TestAggregator {
	return &TestAggregator{buckets: make(map[GroupKey]*SampleBucket)}
}

// Add places samples into their buckets.
func (a *TestAggregator) Add(samples ...*WaterQualityTestSample) {
	for _, s := range samples {
		key := GroupKey{RuleID: s.RuleID, ComponentID: s.ComponentID}
		b, ok := a.buckets[key]
		if !ok {
			b = &SampleBucket{Key: key}
			a.buckets[key] = b
		}
		b.Samples = append(b.Samples, s)
		a.count++
	}
}

// SampleCount is the number of samples added so far.
func (a *TestAggregator) SampleCount() int {
	return a.count
}

// Buckets returns the buckets ordered by (component, rule) in byte order,
// independent of the order samples were added. The sample store reads in the
// same order, so this is also the first-seen order of a full read.
func (a *TestAggregator) Buckets() []*SampleBucket {
	out := make([]*SampleBucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ComponentID != out[j].Key.ComponentID {
			return out[i].Key.ComponentID < out[j].Key.ComponentID
		}
		return out[i].Key.RuleID < out[j].Key.RuleID
	})
	return out
}

// GroupSamples is a one-shot convenience over TestAggregator.
func GroupSamples(samples []*WaterQualityTestSample) []*SampleBucket {
	a := NewTestAggregator()
	a.Add(samples...)
	return a.Buckets()
}

// AggregateKey is the upsert key of a RuleComplianceAggregate.
type AggregateKey struct {
	OrganizationID  uuid.UUID
	RuleID          string
	ComponentID     string
	ReportingPeriod string
}

func (k AggregateKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.OrganizationID, k.ReportingPeriod, k.ComponentID, k.RuleID)
}

// RuleComplianceAggregate is the per-(rule, component, period) pass/fail summary.
type RuleComplianceAggregate struct {
	OrganizationID      uuid.UUID `json:"organization_id"`
	RuleID              string    `json:"rule_id"`
	ComponentID         string    `json:"component_id"`
	ReportingPeriod     string    `json:"reporting_period"`
	TotalSamples        int       `json:"total_samples"`
	CompliantSamples    int       `json:"compliant_samples"`
	NonCompliantPeriods int       `json:"non_compliant_periods"`
	Complies            bool      `json:"complies"`
	Notes               string    `json:"notes,omitempty"`
}

func (a RuleComplianceAggregate) Key() AggregateKey {
	return AggregateKey{
		OrganizationID:  a.OrganizationID,
		RuleID:          a.RuleID,
		ComponentID:     a.ComponentID,
		ReportingPeriod: a.ReportingPeriod,
	}
}

// CalculateRuleCompliance reduces one bucket. Buckets are built from observed
// samples only, so TotalSamples is never zero here.
func CalculateRuleCompliance(orgID uuid.UUID, period ReportingPeriod, b *SampleBucket) RuleComplianceAggregate {
	compliant := 0
	for _, s := range b.Samples {
		if s.CompliesWithRule {
			compliant++
		}
	}

	total := len(b.Samples)
	nonCompliant := total - compliant

	agg := RuleComplianceAggregate{
		OrganizationID:      orgID,
		RuleID:              b.Key.RuleID,
		ComponentID:         b.Key.ComponentID,
		ReportingPeriod:     period.String(),
		TotalSamples:        total,
		CompliantSamples:    compliant,
		NonCompliantPeriods: nonCompliant,
		Complies:            nonCompliant == 0,
	}
	if !agg.Complies {
		agg.Notes = fmt.Sprintf("%d of %d samples non-compliant", nonCompliant, total)
	}
	return agg
}

// CalculateAll reduces every bucket, preserving bucket order.
func CalculateAll(orgID uuid.UUID, period ReportingPeriod, buckets []*SampleBucket) []RuleComplianceAggregate {
	out := make([]RuleComplianceAggregate, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, CalculateRuleCompliance(orgID, period, b))
	}
	return out
}

// AggregateSummary totals a set of aggregates.
type AggregateSummary struct {
	Groups             int `json:"groups"`
	CompliantGroups    int `json:"compliant_groups"`
	NonCompliantGroups int `json:"non_compliant_groups"`
	TotalSamples       int `json:"total_samples"`
	DistinctRules      int `json:"distinct_rules"`
	DistinctComponents int `json:"distinct_components"`
}

func Summarize(aggs []RuleComplianceAggregate) AggregateSummary {
	rules := make(map[string]struct{})
	comps := make(map[string]struct{})
	s := AggregateSummary{Groups: len(aggs)}
	for _, a := range aggs {
		s.TotalSamples += a.TotalSamples
		if a.Complies {
			s.CompliantGroups++
		} else {
			s.NonCompliantGroups++
		}
		rules[a.RuleID] = struct{}{}
		comps[a.ComponentID] = struct{}{}
	}
	s.DistinctRules = len(rules)
	s.DistinctComponents = len(comps)
	return s
}
