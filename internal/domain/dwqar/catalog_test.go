package dwqar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryForRuleID(t *testing.T) {
	tests := map[string]RuleCategory{
		"T1.8-ecol":  CategoryBacteriological,
		"T2.3-as":    CategoryChemical,
		"T3.1-proto": CategoryProtozoa,
		"T4.2-rad":   CategoryRadiological,
		"M1-ph":      CategoryMonitoring,
		"V2-turb":    CategoryVerification,
		"O3-cl":      CategoryOperational,
		"T9-other":   CategoryWaterQuality,
		"X1":         CategoryWaterQuality,
		"":           CategoryWaterQuality,
	}
	for id, want := range tests {
		assert.Equal(t, want, CategoryForRuleID(id), id)
	}
}

func TestParameterForRuleID(t *testing.T) {
	assert.Equal(t, "ecol", ParameterForRuleID("T1.8-ECOL"))
	assert.Equal(t, "", ParameterForRuleID("T1.8"))
	assert.Equal(t, "", ParameterForRuleID("T1-a-b"))
}

func TestComplianceRule_ActiveAt(t *testing.T) {
	effective := day(2022, time.January, 1)
	superseded := day(2024, time.January, 1)

	r := NewComplianceRule("T1.8-ecol", effective)
	assert.False(t, r.ActiveAt(effective.Add(-time.Second)))
	assert.True(t, r.ActiveAt(effective))

	r.SupersededAt = &superseded
	assert.True(t, r.ActiveAt(superseded.Add(-time.Second)))
	assert.False(t, r.ActiveAt(superseded))

	r.SupersededAt = nil
	r.IsActive = false
	assert.False(t, r.ActiveAt(day(2023, time.June, 1)))
}

func TestComplianceRule_Complies(t *testing.T) {
	minV := decimal.RequireFromString("6.5")
	maxV := decimal.RequireFromString("8.5")
	r := &ComplianceRule{RuleID: "M1-ph", MinValue: &minV, MaxValue: &maxV}

	for value, want := range map[string]bool{
		"7.2": true, "6.5": true, "8.5": true, "8.51": false, "<6": false, ">9": false,
	} {
		v, err := ParseMeasuredValue(value)
		require.NoError(t, err)
		assert.Equal(t, want, r.Complies(v), value)
	}

	unbounded := &ComplianceRule{RuleID: "O1-log"}
	v, _ := ParseMeasuredValue("123456")
	assert.True(t, unbounded.Complies(v))
}

func TestCatalogCounts(t *testing.T) {
	now := day(2024, time.June, 1)
	later := day(2025, time.January, 1)
	retired := day(2023, time.January, 1)

	old := NewComplianceRule("T2.3-as", day(2020, time.January, 1))
	old.SupersededAt = &retired

	c := Catalog{
		Rules: []*ComplianceRule{
			NewComplianceRule("T1.8-ecol", day(2020, time.January, 1)),
			NewComplianceRule("T2.4-pb", later),
			old,
		},
		Components: []*MonitoredComponent{
			{ComponentID: "TP00001", IsActive: true},
			{ComponentID: "TP00002", IsActive: false},
		},
	}
	assert.Equal(t, 1, c.ActiveRuleCount(now))
	assert.Equal(t, 1, c.ActiveComponentCount())
}

func TestParseMeasuredValue(t *testing.T) {
	tests := []struct {
		in        string
		qualifier Qualifier
		value     string
	}{
		{"7.2", QualifierNone, "7.2"},
		{"<0.5", QualifierLessThan, "0.5"},
		{"<= 1", QualifierLessOrEqual, "1"},
		{">12", QualifierGreaterThan, "12"},
		{" >=3.25 ", QualifierGreaterOrEqual, "3.25"},
		{"-0.1", QualifierNone, "-0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseMeasuredValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.qualifier, v.Qualifier)
			assert.True(t, decimal.RequireFromString(tt.value).Equal(v.Value))
		})
	}

	for _, bad := range []string{"", "<", "abc", "1.2.3", "=<1"} {
		_, err := ParseMeasuredValue(bad)
		assert.Error(t, err, bad)
	}
}

func TestMeasuredValue_JSON(t *testing.T) {
	var s WaterQualityTestSample
	require.NoError(t, json.Unmarshal([]byte(`{"rule_id":"T2.3-as","value":"<0.001"}`), &s))
	assert.Equal(t, QualifierLessThan, s.Value.Qualifier)

	out, err := json.Marshal(s.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `"<0.001"`, string(out))

	var back MeasuredValue
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, s.Value.Qualifier, back.Qualifier)
	assert.True(t, s.Value.Value.Equal(back.Value))
}

func TestSampleCursor(t *testing.T) {
	assert.True(t, SampleCursor{}.IsZero())

	s := &WaterQualityTestSample{ComponentID: "TP1", RuleID: "T1", SampleDate: day(2024, time.May, 1)}
	c := CursorAfter(s)
	assert.False(t, c.IsZero())
	assert.Equal(t, "TP1", c.ComponentID)
}
