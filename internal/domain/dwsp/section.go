package dwsp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SectionKind tags the variant stored in a plan section.
type SectionKind string

const (
	KindHazards            SectionKind = "hazards"
	KindPreventiveMeasures SectionKind = "preventive_measures"
	KindRiskAssessment     SectionKind = "risk_assessment"
	KindMonitoring         SectionKind = "monitoring"
	KindNarrative          SectionKind = "narrative"
	KindUnstructured       SectionKind = "unstructured"
)

// SectionContent is implemented by every section variant.
type SectionContent interface {
	Kind() SectionKind
	// Complete reports whether the section carries enough content to satisfy
	// its plan element.
	Complete() bool
}

// Section is one versioned, typed plan section.
type Section struct {
	Element Element        `json:"element"`
	Version int            `json:"version"`
	Content SectionContent `json:"-"`
}

type Hazard struct {
	Name       string `json:"name"`
	Source     string `json:"source,omitempty"`
	Likelihood string `json:"likelihood,omitempty"`
	Severity   string `json:"severity,omitempty"`
}

type HazardsSection struct {
	Hazards []Hazard `json:"hazards"`
}

func (HazardsSection) Kind() SectionKind { return KindHazards }
func (s HazardsSection) Complete() bool  { return len(s.Hazards) > 0 }

type PreventiveMeasure struct {
	Hazard      string `json:"hazard"`
	Measure     string `json:"measure"`
	Responsible string `json:"responsible,omitempty"`
}

type PreventiveMeasuresSection struct {
	Measures []PreventiveMeasure `json:"measures"`
}

func (PreventiveMeasuresSection) Kind() SectionKind { return KindPreventiveMeasures }
func (s PreventiveMeasuresSection) Complete() bool  { return len(s.Measures) > 0 }

type RiskEntry struct {
	Hazard       string `json:"hazard"`
	Likelihood   int    `json:"likelihood"`
	Consequence  int    `json:"consequence"`
	ResidualRisk string `json:"residual_risk,omitempty"`
}

// Score is the likelihood × consequence matrix rating.
func (r RiskEntry) Score() int { return r.Likelihood * r.Consequence }

type RiskAssessmentSection struct {
	Method  string      `json:"method,omitempty"`
	Entries []RiskEntry `json:"entries"`
}

func (RiskAssessmentSection) Kind() SectionKind { return KindRiskAssessment }
func (s RiskAssessmentSection) Complete() bool  { return len(s.Entries) > 0 }

type MonitoringPoint struct {
	Parameter   string `json:"parameter"`
	ComponentID string `json:"component_id,omitempty"`
	Frequency   string `json:"frequency"`
	CriticalMin string `json:"critical_min,omitempty"`
	CriticalMax string `json:"critical_max,omitempty"`
}

type MonitoringSection struct {
	Points []MonitoringPoint `json:"points"`
}

func (MonitoringSection) Kind() SectionKind { return KindMonitoring }
func (s MonitoringSection) Complete() bool  { return len(s.Points) > 0 }

// NarrativeSection holds free text for elements without structured content,
// such as the supply description or the review and approval record.
type NarrativeSection struct {
	Text string `json:"text"`
}

func (NarrativeSection) Kind() SectionKind { return KindNarrative }
func (s NarrativeSection) Complete() bool  { return len(bytes.TrimSpace([]byte(s.Text))) > 0 }

// UnstructuredSection keeps legacy content that does not match any typed
// variant. Non-empty legacy content counts as present.
type UnstructuredSection struct {
	Raw json.RawMessage `json:"raw"`
}

func (UnstructuredSection) Kind() SectionKind { return KindUnstructured }

func (s UnstructuredSection) Complete() bool {
	raw := bytes.TrimSpace(s.Raw)
	switch string(raw) {
	case "", "null", "{}", "[]", `""`:
		return false
	}
	return true
}

type sectionEnvelope struct {
	Element Element         `json:"element"`
	Version int             `json:"version"`
	Kind    SectionKind     `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// MarshalJSON writes the section as {"element","version","kind","data"}.
func (s Section) MarshalJSON() ([]byte, error) {
	env := sectionEnvelope{Element: s.Element, Version: s.Version}
	if s.Content != nil {
		env.Kind = s.Content.Kind()
		var (
			data []byte
			err  error
		)
		if u, ok := s.Content.(UnstructuredSection); ok {
			data = u.Raw
		} else {
			data, err = json.Marshal(s.Content)
		}
		if err != nil {
			return nil, fmt.Errorf("marshal %s section: %w", env.Kind, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// UnmarshalJSON accepts both the tagged envelope and legacy free-form JSON.
// Content that cannot be decoded into its tagged variant falls back to
// UnstructuredSection rather than failing.
func (s *Section) UnmarshalJSON(b []byte) error {
	var env sectionEnvelope
	if err := json.Unmarshal(b, &env); err != nil || env.Kind == "" {
		// legacy row: the whole document is the content
		s.Content = UnstructuredSection{Raw: append(json.RawMessage(nil), b...)}
		if err == nil {
			s.Element = env.Element
			s.Version = env.Version
		}
		return nil
	}

	s.Element = env.Element
	s.Version = env.Version
	s.Content = decodeContent(env.Kind, env.Data)
	return nil
}

// DecodeSection decodes a stored section document for element e. The element
// recorded in the document, if any, wins over e.
func DecodeSection(e Element, raw []byte) Section {
	var s Section
	_ = s.UnmarshalJSON(raw)
	if !s.Element.Valid() {
		s.Element = e
	}
	return s
}

func decodeContent(kind SectionKind, data json.RawMessage) SectionContent {
	var (
		content SectionContent
		err     error
	)
	switch kind {
	case KindHazards:
		var v HazardsSection
		err = strictDecode(data, &v)
		content = v
	case KindPreventiveMeasures:
		var v PreventiveMeasuresSection
		err = strictDecode(data, &v)
		content = v
	case KindRiskAssessment:
		var v RiskAssessmentSection
		err = strictDecode(data, &v)
		content = v
	case KindMonitoring:
		var v MonitoringSection
		err = strictDecode(data, &v)
		content = v
	case KindNarrative:
		var v NarrativeSection
		err = strictDecode(data, &v)
		content = v
	default:
		return UnstructuredSection{Raw: append(json.RawMessage(nil), data...)}
	}
	if err != nil {
		return UnstructuredSection{Raw: append(json.RawMessage(nil), data...)}
	}
	return content
}

func strictDecode(data json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
