package model

import "fmt"

// SourceContext records the verbatim document span an extracted fact was
// derived from. Immutable once created; owned by exactly one entity.
type SourceContext struct {
	Text       string `json:"text"`        // Verbatim source text
	StartIndex int    `json:"start_index"` // Offset of the span start in the document
	EndIndex   int    `json:"end_index"`   // Offset of the span end in the document
}

// Validate checks the span invariants. Both indexes may be zero when the
// backend could not locate the span (placeholder context).
func (s SourceContext) Validate() error {
	if s.StartIndex < 0 || s.EndIndex < 0 {
		return fmt.Errorf("source context: negative index (start=%d end=%d)", s.StartIndex, s.EndIndex)
	}
	if s.EndIndex < s.StartIndex {
		return fmt.Errorf("source context: end_index %d before start_index %d", s.EndIndex, s.StartIndex)
	}
	return nil
}

// validateConfidence enforces the [0.0, 1.0] range shared by all entity variants.
func validateConfidence(c float64) error {
	if c < 0.0 || c > 1.0 {
		return fmt.Errorf("confidence %v outside [0.0, 1.0]", c)
	}
	return nil
}

// requireField rejects absent or empty required identifying fields.
func requireField(field, value string) error {
	if value == "" {
		return fmt.Errorf("missing required field: %s", field)
	}
	return nil
}

// Condition represents a diagnosed or suspected medical condition.
type Condition struct {
	Name       string        `json:"name"`
	Status     string        `json:"status,omitempty"`     // active, resolved, suspected
	Severity   string        `json:"severity,omitempty"`   // mild, moderate, severe
	OnsetDate  string        `json:"onset_date,omitempty"` // free-text or ISO date
	Confidence float64       `json:"confidence"`
	Source     SourceContext `json:"source"`
}

// Validate checks the condition invariants atomically.
func (c Condition) Validate() error {
	if err := requireField("name", c.Name); err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	if err := validateConfidence(c.Confidence); err != nil {
		return fmt.Errorf("condition %q: %w", c.Name, err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("condition %q: %w", c.Name, err)
	}
	return nil
}

// NewCondition constructs a validated condition.
func NewCondition(name string, confidence float64, source SourceContext) (Condition, error) {
	c := Condition{Name: name, Confidence: confidence, Source: source}
	if err := c.Validate(); err != nil {
		return Condition{}, err
	}
	return c, nil
}

// Medication represents a prescribed or mentioned medication.
type Medication struct {
	Name       string        `json:"name"`
	Dosage     string        `json:"dosage,omitempty"` // e.g. "500 mg"
	Frequency  string        `json:"frequency,omitempty"`
	Route      string        `json:"route,omitempty"` // oral, IV, topical
	Status     string        `json:"status,omitempty"`
	Confidence float64       `json:"confidence"`
	Source     SourceContext `json:"source"`
}

// Validate checks the medication invariants atomically.
func (m Medication) Validate() error {
	if err := requireField("name", m.Name); err != nil {
		return fmt.Errorf("medication: %w", err)
	}
	if err := validateConfidence(m.Confidence); err != nil {
		return fmt.Errorf("medication %q: %w", m.Name, err)
	}
	if err := m.Source.Validate(); err != nil {
		return fmt.Errorf("medication %q: %w", m.Name, err)
	}
	return nil
}

// NewMedication constructs a validated medication.
func NewMedication(name string, confidence float64, source SourceContext) (Medication, error) {
	m := Medication{Name: name, Confidence: confidence, Source: source}
	if err := m.Validate(); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// VitalSign represents a single vital-sign measurement.
type VitalSign struct {
	MeasurementType string        `json:"measurement_type"` // blood pressure, heart rate, ...
	Value           string        `json:"value"`
	Unit            string        `json:"unit,omitempty"`
	MeasuredAt      string        `json:"measured_at,omitempty"`
	Confidence      float64       `json:"confidence"`
	Source          SourceContext `json:"source"`
}

// Validate checks the vital-sign invariants atomically.
func (v VitalSign) Validate() error {
	if err := requireField("measurement_type", v.MeasurementType); err != nil {
		return fmt.Errorf("vital sign: %w", err)
	}
	if err := requireField("value", v.Value); err != nil {
		return fmt.Errorf("vital sign %q: %w", v.MeasurementType, err)
	}
	if err := validateConfidence(v.Confidence); err != nil {
		return fmt.Errorf("vital sign %q: %w", v.MeasurementType, err)
	}
	if err := v.Source.Validate(); err != nil {
		return fmt.Errorf("vital sign %q: %w", v.MeasurementType, err)
	}
	return nil
}

// LabResult represents a laboratory test result.
type LabResult struct {
	TestName       string        `json:"test_name"`
	Value          string        `json:"value,omitempty"`
	Unit           string        `json:"unit,omitempty"`
	ReferenceRange string        `json:"reference_range,omitempty"`
	Status         string        `json:"status,omitempty"` // normal, abnormal, critical
	Confidence     float64       `json:"confidence"`
	Source         SourceContext `json:"source"`
}

// Validate checks the lab-result invariants atomically.
func (l LabResult) Validate() error {
	if err := requireField("test_name", l.TestName); err != nil {
		return fmt.Errorf("lab result: %w", err)
	}
	if err := validateConfidence(l.Confidence); err != nil {
		return fmt.Errorf("lab result %q: %w", l.TestName, err)
	}
	if err := l.Source.Validate(); err != nil {
		return fmt.Errorf("lab result %q: %w", l.TestName, err)
	}
	return nil
}

// Procedure represents a performed or planned medical procedure.
type Procedure struct {
	Name          string        `json:"name"`
	Status        string        `json:"status,omitempty"` // completed, scheduled, in-progress
	PerformedDate string        `json:"performed_date,omitempty"`
	Outcome       string        `json:"outcome,omitempty"`
	Confidence    float64       `json:"confidence"`
	Source        SourceContext `json:"source"`
}

// Validate checks the procedure invariants atomically.
func (p Procedure) Validate() error {
	if err := requireField("name", p.Name); err != nil {
		return fmt.Errorf("procedure: %w", err)
	}
	if err := validateConfidence(p.Confidence); err != nil {
		return fmt.Errorf("procedure %q: %w", p.Name, err)
	}
	if err := p.Source.Validate(); err != nil {
		return fmt.Errorf("procedure %q: %w", p.Name, err)
	}
	return nil
}

// Provider represents a healthcare provider mentioned in the document.
type Provider struct {
	Name       string        `json:"name"`
	Specialty  string        `json:"specialty,omitempty"`
	Role       string        `json:"role,omitempty"` // attending, referring, consulting
	Confidence float64       `json:"confidence"`
	Source     SourceContext `json:"source"`
}

// Validate checks the provider invariants atomically.
func (p Provider) Validate() error {
	if err := requireField("name", p.Name); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := validateConfidence(p.Confidence); err != nil {
		return fmt.Errorf("provider %q: %w", p.Name, err)
	}
	if err := p.Source.Validate(); err != nil {
		return fmt.Errorf("provider %q: %w", p.Name, err)
	}
	return nil
}

// Encounter represents a clinical encounter (visit, admission, consult).
type Encounter struct {
	Type       string        `json:"type"` // office visit, emergency, inpatient
	Date       string        `json:"date,omitempty"`
	Location   string        `json:"location,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Confidence float64       `json:"confidence"`
	Source     SourceContext `json:"source"`
}

// Validate checks the encounter invariants atomically.
func (e Encounter) Validate() error {
	if err := requireField("type", e.Type); err != nil {
		return fmt.Errorf("encounter: %w", err)
	}
	if err := validateConfidence(e.Confidence); err != nil {
		return fmt.Errorf("encounter %q: %w", e.Type, err)
	}
	if err := e.Source.Validate(); err != nil {
		return fmt.Errorf("encounter %q: %w", e.Type, err)
	}
	return nil
}

// ServiceRequest represents an ordered service (referral, imaging, lab order).
type ServiceRequest struct {
	RequestType   string        `json:"request_type"`
	Reason        string        `json:"reason,omitempty"`
	Priority      string        `json:"priority,omitempty"` // routine, urgent, stat
	RequestedDate string        `json:"requested_date,omitempty"`
	Confidence    float64       `json:"confidence"`
	Source        SourceContext `json:"source"`
}

// Validate checks the service-request invariants atomically.
func (s ServiceRequest) Validate() error {
	if err := requireField("request_type", s.RequestType); err != nil {
		return fmt.Errorf("service request: %w", err)
	}
	if err := validateConfidence(s.Confidence); err != nil {
		return fmt.Errorf("service request %q: %w", s.RequestType, err)
	}
	if err := s.Source.Validate(); err != nil {
		return fmt.Errorf("service request %q: %w", s.RequestType, err)
	}
	return nil
}

// DiagnosticReport represents an interpreted diagnostic study (imaging, pathology).
type DiagnosticReport struct {
	ReportType string        `json:"report_type"`
	Findings   string        `json:"findings"`
	Conclusion string        `json:"conclusion,omitempty"`
	ReportDate string        `json:"report_date,omitempty"`
	Confidence float64       `json:"confidence"`
	Source     SourceContext `json:"source"`
}

// Validate checks the diagnostic-report invariants atomically.
func (d DiagnosticReport) Validate() error {
	if err := requireField("report_type", d.ReportType); err != nil {
		return fmt.Errorf("diagnostic report: %w", err)
	}
	if err := requireField("findings", d.Findings); err != nil {
		return fmt.Errorf("diagnostic report %q: %w", d.ReportType, err)
	}
	if err := validateConfidence(d.Confidence); err != nil {
		return fmt.Errorf("diagnostic report %q: %w", d.ReportType, err)
	}
	if err := d.Source.Validate(); err != nil {
		return fmt.Errorf("diagnostic report %q: %w", d.ReportType, err)
	}
	return nil
}

// Allergy represents a documented allergy or intolerance.
type Allergy struct {
	Allergen   string        `json:"allergen"`
	Reaction   string        `json:"reaction,omitempty"`
	Severity   string        `json:"severity,omitempty"`
	Status     string        `json:"status,omitempty"` // active, inactive
	Confidence float64       `json:"confidence"`
	Source     SourceContext `json:"source"`
}

// Validate checks the allergy invariants atomically.
func (a Allergy) Validate() error {
	if err := requireField("allergen", a.Allergen); err != nil {
		return fmt.Errorf("allergy: %w", err)
	}
	if err := validateConfidence(a.Confidence); err != nil {
		return fmt.Errorf("allergy %q: %w", a.Allergen, err)
	}
	if err := a.Source.Validate(); err != nil {
		return fmt.Errorf("allergy %q: %w", a.Allergen, err)
	}
	return nil
}

// CarePlan represents a documented plan of care.
type CarePlan struct {
	Description string        `json:"description"`
	Goals       []string      `json:"goals,omitempty"`
	Activities  []string      `json:"activities,omitempty"`
	Status      string        `json:"status,omitempty"` // active, completed, draft
	Confidence  float64       `json:"confidence"`
	Source      SourceContext `json:"source"`
}

// Validate checks the care-plan invariants atomically.
func (c CarePlan) Validate() error {
	if err := requireField("description", c.Description); err != nil {
		return fmt.Errorf("care plan: %w", err)
	}
	if err := validateConfidence(c.Confidence); err != nil {
		return fmt.Errorf("care plan %q: %w", c.Description, err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("care plan %q: %w", c.Description, err)
	}
	return nil
}

// Organization represents a healthcare organization (hospital, lab, clinic).
type Organization struct {
	Name       string        `json:"name"`
	OrgType    string        `json:"org_type,omitempty"` // hospital, laboratory, pharmacy
	Address    string        `json:"address,omitempty"`
	Confidence float64       `json:"confidence"`
	Source     SourceContext `json:"source"`
}

// Validate checks the organization invariants atomically.
func (o Organization) Validate() error {
	if err := requireField("name", o.Name); err != nil {
		return fmt.Errorf("organization: %w", err)
	}
	if err := validateConfidence(o.Confidence); err != nil {
		return fmt.Errorf("organization %q: %w", o.Name, err)
	}
	if err := o.Source.Validate(); err != nil {
		return fmt.Errorf("organization %q: %w", o.Name, err)
	}
	return nil
}
