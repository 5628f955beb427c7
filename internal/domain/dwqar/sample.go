package dwqar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Qualifier is the optional prefix on a lab result, e.g. "<" for below the
// detection limit.
type Qualifier string

const (
	QualifierNone           Qualifier = ""
	QualifierLessThan       Qualifier = "<"
	QualifierLessOrEqual    Qualifier = "<="
	QualifierGreaterThan    Qualifier = ">"
	QualifierGreaterOrEqual Qualifier = ">="
)

// longest first so "<=" is not read as "<"
var qualifiers = []Qualifier{QualifierLessOrEqual, QualifierGreaterOrEqual, QualifierLessThan, QualifierGreaterThan}

// MeasuredValue is a numeric lab or field result with its qualifier.
type MeasuredValue struct {
	Qualifier Qualifier
	Value     decimal.Decimal
}

// ParseMeasuredValue parses strings such as "7.2", "<0.5" or ">= 12".
func ParseMeasuredValue(s string) (MeasuredValue, error) {
	raw := strings.TrimSpace(s)
	q := QualifierNone
	for _, candidate := range qualifiers {
		if strings.HasPrefix(raw, string(candidate)) {
			q = candidate
			raw = strings.TrimSpace(strings.TrimPrefix(raw, string(candidate)))
			break
		}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return MeasuredValue{}, fmt.Errorf("invalid measured value %q: %w", s, err)
	}
	return MeasuredValue{Qualifier: q, Value: d}, nil
}

func (v MeasuredValue) String() string {
	return string(v.Qualifier) + v.Value.String()
}

func (v MeasuredValue) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *MeasuredValue) UnmarshalText(text []byte) error {
	parsed, err := ParseMeasuredValue(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// WaterQualityTestSample is one lab or field measurement. Samples are created
// by ingestion and never updated in place.
type WaterQualityTestSample struct {
	ID               uuid.UUID     `json:"id"`
	OrganizationID   uuid.UUID     `json:"organization_id"`
	RuleID           string        `json:"rule_id"`
	ComponentID      string        `json:"component_id"`
	SampleDate       time.Time     `json:"sample_date"`
	Parameter        string        `json:"parameter"`
	Value            MeasuredValue `json:"value"`
	Unit             string        `json:"unit"`
	CompliesWithRule bool          `json:"complies_with_rule"`
	ExternalSampleID string        `json:"external_sample_id,omitempty"`
}

// SampleCursor is the keyset position of the last sample read. The zero value
// starts from the beginning.
type SampleCursor struct {
	ComponentID string
	RuleID      string
	SampleDate  time.Time
	ID          uuid.UUID
}

// IsZero reports whether the cursor is at the start.
func (c SampleCursor) IsZero() bool {
	return c.ID == uuid.Nil && c.ComponentID == "" && c.RuleID == "" && c.SampleDate.IsZero()
}

// CursorAfter returns the cursor positioned after s.
func CursorAfter(s *WaterQualityTestSample) SampleCursor {
	return SampleCursor{
		ComponentID: s.ComponentID,
		RuleID:      s.RuleID,
		SampleDate:  s.SampleDate,
		ID:          s.ID,
	}
}
