package dwqar

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleCategory groups regulatory rules by the family encoded in their ID prefix.
type RuleCategory string

const (
	CategoryBacteriological RuleCategory = "BACTERIOLOGICAL"
	CategoryChemical        RuleCategory = "CHEMICAL"
	CategoryProtozoa        RuleCategory = "PROTOZOA"
	CategoryRadiological    RuleCategory = "RADIOLOGICAL"
	CategoryMonitoring      RuleCategory = "MONITORING"
	CategoryVerification    RuleCategory = "VERIFICATION"
	CategoryOperational     RuleCategory = "OPERATIONAL"
	CategoryWaterQuality    RuleCategory = "WATER_QUALITY"
)

// rulePrefixes is checked in order; two-character prefixes precede single ones.
var rulePrefixes = []struct {
	prefix   string
	category RuleCategory
}{
	{"T1", CategoryBacteriological},
	{"T2", CategoryChemical},
	{"T3", CategoryProtozoa},
	{"T4", CategoryRadiological},
	{"M", CategoryMonitoring},
	{"V", CategoryVerification},
	{"O", CategoryOperational},
}

// CategoryForRuleID derives the rule family from an external rule ID such as
// "T1.8-ecol".
func CategoryForRuleID(ruleID string) RuleCategory {
	for _, p := range rulePrefixes {
		if strings.HasPrefix(ruleID, p.prefix) {
			return p.category
		}
	}
	return CategoryWaterQuality
}

// ParameterForRuleID returns the lower-cased parameter suffix of a rule ID,
// or "" when the ID has no single "-" separator.
func ParameterForRuleID(ruleID string) string {
	parts := strings.Split(ruleID, "-")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// ComplianceRule is a regulatory limit definition. Rows are immutable once
// effective; superseding a rule creates a new row.
type ComplianceRule struct {
	RuleID        string           `json:"rule_id"`
	Category      RuleCategory     `json:"category"`
	Parameter     string           `json:"parameter"`
	Description   string           `json:"description,omitempty"`
	MinValue      *decimal.Decimal `json:"min_value,omitempty"`
	MaxValue      *decimal.Decimal `json:"max_value,omitempty"`
	Unit          string           `json:"unit,omitempty"`
	Frequency     string           `json:"frequency,omitempty"`
	Applicability string           `json:"applicability,omitempty"`
	IsActive      bool             `json:"is_active"`
	EffectiveDate time.Time        `json:"effective_date"`
	SupersededAt  *time.Time       `json:"superseded_at,omitempty"`
}

// NewComplianceRule builds an active rule, deriving category and parameter
// from the rule ID.
func NewComplianceRule(ruleID string, effective time.Time) *ComplianceRule {
	return &ComplianceRule{
		RuleID:        ruleID,
		Category:      CategoryForRuleID(ruleID),
		Parameter:     ParameterForRuleID(ruleID),
		Applicability: "All supply sizes",
		IsActive:      true,
		EffectiveDate: effective,
	}
}

// ActiveAt reports whether the rule applies at t.
func (r *ComplianceRule) ActiveAt(t time.Time) bool {
	if !r.IsActive || r.EffectiveDate.After(t) {
		return false
	}
	if r.SupersededAt != nil && !r.SupersededAt.After(t) {
		return false
	}
	return true
}

// Complies evaluates a measured value against the rule bounds. A rule with
// no bounds accepts every value.
func (r *ComplianceRule) Complies(v MeasuredValue) bool {
	if r.MaxValue != nil && v.Value.GreaterThan(*r.MaxValue) {
		return false
	}
	if r.MinValue != nil && v.Value.LessThan(*r.MinValue) {
		return false
	}
	return true
}

// ComponentType enumerates the parts of a water supply.
type ComponentType string

const (
	ComponentTreatmentPlant   ComponentType = "TREATMENT_PLANT"
	ComponentDistributionZone ComponentType = "DISTRIBUTION_ZONE"
	ComponentBore             ComponentType = "BORE"
	ComponentReservoir        ComponentType = "RESERVOIR"
	ComponentPumpStation      ComponentType = "PUMP_STATION"
)

// MonitoredComponent is a named, geolocated part of a water supply,
// identified by its stable external component code.
type MonitoredComponent struct {
	ComponentID      string        `json:"component_id"`
	OrganizationID   uuid.UUID     `json:"organization_id"`
	Name             string        `json:"name"`
	Type             ComponentType `json:"component_type"`
	PopulationServed int           `json:"population_served,omitempty"`
	Latitude         float64       `json:"latitude,omitempty"`
	Longitude        float64       `json:"longitude,omitempty"`
	IsActive         bool          `json:"is_active"`
}

// Catalog bundles the rule and component catalogs for an organization.
type Catalog struct {
	Rules      []*ComplianceRule
	Components []*MonitoredComponent
}

// ActiveRuleCount counts rules active at t.
func (c Catalog) ActiveRuleCount(t time.Time) int {
	n := 0
	for _, r := range c.Rules {
		if r.ActiveAt(t) {
			n++
		}
	}
	return n
}

// ActiveComponentCount counts active components.
func (c Catalog) ActiveComponentCount() int {
	n := 0
	for _, comp := range c.Components {
		if comp.IsActive {
			n++
		}
	}
	return n
}
