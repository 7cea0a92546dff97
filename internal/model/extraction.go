package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// StructuredMedicalExtraction is the aggregate root holding every extracted
// entity for one document. Entity order reflects extraction order and carries
// no semantic meaning. The aggregate is immutable after Finalize.
type StructuredMedicalExtraction struct {
	Conditions        []Condition        `json:"conditions"`
	Medications       []Medication       `json:"medications"`
	VitalSigns        []VitalSign        `json:"vital_signs"`
	LabResults        []LabResult        `json:"lab_results"`
	Procedures        []Procedure        `json:"procedures"`
	Providers         []Provider         `json:"providers"`
	Encounters        []Encounter        `json:"encounters"`
	ServiceRequests   []ServiceRequest   `json:"service_requests"`
	DiagnosticReports []DiagnosticReport `json:"diagnostic_reports"`
	Allergies         []Allergy          `json:"allergies"`
	CarePlans         []CarePlan         `json:"care_plans"`
	Organizations     []Organization     `json:"organizations"`

	ExtractionTimestamp string `json:"extraction_timestamp"`    // RFC-3339, required
	DocumentType        string `json:"document_type,omitempty"` // optional free text

	// FallbackUsed marks results produced by the degraded extractor rather
	// than an AI backend.
	FallbackUsed bool `json:"fallback_used,omitempty"`

	// ConfidenceAverage is derived; never set independently. Recomputed by
	// Finalize whenever the entity sequences are populated.
	ConfidenceAverage float64 `json:"confidence_average"`
}

// confidences flattens all entity-variant sequences into one list of scores.
func (e *StructuredMedicalExtraction) confidences() []float64 {
	var scores []float64
	for _, c := range e.Conditions {
		scores = append(scores, c.Confidence)
	}
	for _, m := range e.Medications {
		scores = append(scores, m.Confidence)
	}
	for _, v := range e.VitalSigns {
		scores = append(scores, v.Confidence)
	}
	for _, l := range e.LabResults {
		scores = append(scores, l.Confidence)
	}
	for _, p := range e.Procedures {
		scores = append(scores, p.Confidence)
	}
	for _, p := range e.Providers {
		scores = append(scores, p.Confidence)
	}
	for _, enc := range e.Encounters {
		scores = append(scores, enc.Confidence)
	}
	for _, s := range e.ServiceRequests {
		scores = append(scores, s.Confidence)
	}
	for _, d := range e.DiagnosticReports {
		scores = append(scores, d.Confidence)
	}
	for _, a := range e.Allergies {
		scores = append(scores, a.Confidence)
	}
	for _, c := range e.CarePlans {
		scores = append(scores, c.Confidence)
	}
	for _, o := range e.Organizations {
		scores = append(scores, o.Confidence)
	}
	return scores
}

// Finalize recomputes the derived confidence average: round(mean, 3) across
// all entities in all sequences, or exactly 0.0 when no entities exist.
func (e *StructuredMedicalExtraction) Finalize() {
	scores := e.confidences()
	if len(scores) == 0 {
		e.ConfidenceAverage = 0.0
		return
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	e.ConfidenceAverage = math.Round(sum/float64(len(scores))*1000) / 1000
}

// TotalEntities returns the entity count across all twelve variants.
func (e *StructuredMedicalExtraction) TotalEntities() int {
	return len(e.Conditions) + len(e.Medications) + len(e.VitalSigns) +
		len(e.LabResults) + len(e.Procedures) + len(e.Providers) +
		len(e.Encounters) + len(e.ServiceRequests) + len(e.DiagnosticReports) +
		len(e.Allergies) + len(e.CarePlans) + len(e.Organizations)
}

// EntityCounts returns per-variant entity counts keyed by variant name.
func (e *StructuredMedicalExtraction) EntityCounts() map[string]int {
	return map[string]int{
		"conditions":         len(e.Conditions),
		"medications":        len(e.Medications),
		"vital_signs":        len(e.VitalSigns),
		"lab_results":        len(e.LabResults),
		"procedures":         len(e.Procedures),
		"providers":          len(e.Providers),
		"encounters":         len(e.Encounters),
		"service_requests":   len(e.ServiceRequests),
		"diagnostic_reports": len(e.DiagnosticReports),
		"allergies":          len(e.Allergies),
		"care_plans":         len(e.CarePlans),
		"organizations":      len(e.Organizations),
	}
}

// Validate checks every entity and the aggregate metadata. Validation is
// atomic: the first failure aborts and the aggregate must not be used.
func (e *StructuredMedicalExtraction) Validate() error {
	if strings.TrimSpace(e.ExtractionTimestamp) == "" {
		return fmt.Errorf("missing required field: extraction_timestamp")
	}
	for i, c := range e.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
	}
	for i, m := range e.Medications {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("medications[%d]: %w", i, err)
		}
	}
	for i, v := range e.VitalSigns {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("vital_signs[%d]: %w", i, err)
		}
	}
	for i, l := range e.LabResults {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("lab_results[%d]: %w", i, err)
		}
	}
	for i, p := range e.Procedures {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("procedures[%d]: %w", i, err)
		}
	}
	for i, p := range e.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
	}
	for i, enc := range e.Encounters {
		if err := enc.Validate(); err != nil {
			return fmt.Errorf("encounters[%d]: %w", i, err)
		}
	}
	for i, s := range e.ServiceRequests {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("service_requests[%d]: %w", i, err)
		}
	}
	for i, d := range e.DiagnosticReports {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("diagnostic_reports[%d]: %w", i, err)
		}
	}
	for i, a := range e.Allergies {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("allergies[%d]: %w", i, err)
		}
	}
	for i, c := range e.CarePlans {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("care_plans[%d]: %w", i, err)
		}
	}
	for i, o := range e.Organizations {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("organizations[%d]: %w", i, err)
		}
	}
	return nil
}

// ToMap serializes the aggregate to a plain mapping. The mapping round-trips
// through FromMap with all entity lists and metadata preserved.
func (e *StructuredMedicalExtraction) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal extraction map: %w", err)
	}
	return m, nil
}

// FromMap reconstructs a validated aggregate from a plain mapping. The derived
// confidence average is recomputed, never trusted from the input.
func FromMap(m map[string]interface{}) (*StructuredMedicalExtraction, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction map: %w", err)
	}
	var e StructuredMedicalExtraction
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal extraction: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.Finalize()
	return &e, nil
}

// LegacyFields flattens the aggregate into the plain key/value mapping used by
// callers that pre-date the structured schema.
func (e *StructuredMedicalExtraction) LegacyFields() map[string]interface{} {
	diagnoses := make([]string, 0, len(e.Conditions))
	for _, c := range e.Conditions {
		diagnoses = append(diagnoses, c.Name)
	}

	medications := make([]string, 0, len(e.Medications))
	for _, m := range e.Medications {
		parts := []string{m.Name}
		if m.Dosage != "" {
			parts = append(parts, m.Dosage)
		}
		if m.Frequency != "" {
			parts = append(parts, m.Frequency)
		}
		medications = append(medications, strings.Join(parts, " "))
	}

	labResults := make(map[string]string, len(e.LabResults))
	for _, l := range e.LabResults {
		value := l.Value
		if l.Unit != "" {
			value = strings.TrimSpace(value + " " + l.Unit)
		}
		labResults[l.TestName] = value
	}

	vitalSigns := make(map[string]string, len(e.VitalSigns))
	for _, v := range e.VitalSigns {
		value := v.Value
		if v.Unit != "" {
			value = strings.TrimSpace(value + " " + v.Unit)
		}
		vitalSigns[v.MeasurementType] = value
	}

	providers := make(map[string]string, len(e.Providers))
	for _, p := range e.Providers {
		providers[p.Name] = p.Specialty
	}

	fields := map[string]interface{}{
		"diagnoses":             diagnoses,
		"medications":           medications,
		"lab_results":           labResults,
		"vital_signs":           vitalSigns,
		"providers":             providers,
		"extraction_confidence": e.ConfidenceAverage,
		"total_items_extracted": e.TotalEntities(),
	}
	if e.FallbackUsed {
		fields["fallback_used"] = true
	}
	return fields
}
