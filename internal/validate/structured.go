package validate

import (
	"fmt"
	"strings"

	"github.com/clarimed/clarimed/internal/model"
)

// dosageUnits are the tokens a complete dosage is expected to carry.
var dosageUnits = []string{"mg", "ml", "g", "mcg", "units"}

// lowConfidenceFloor marks entities so uncertain they deserve review.
const lowConfidenceFloor = 0.1

// ValidateExtraction checks structured extraction quality: overall entity
// presence and confidence, plus per-variant field rules.
func (e *Engine) ValidateExtraction(extraction *model.StructuredMedicalExtraction) (bool, []string) {
	var hard, soft []string

	if extraction == nil || extraction.TotalEntities() == 0 {
		hard = append(hard, "No medical data extracted from document")
		return e.verdict(hard, soft)
	}

	if extraction.ConfidenceAverage < e.minAverageConfidence {
		hard = append(hard, fmt.Sprintf("Average confidence %.3f below threshold %.2f",
			extraction.ConfidenceAverage, e.minAverageConfidence))
	}

	for i, c := range extraction.Conditions {
		if len(strings.TrimSpace(c.Name)) <= 1 {
			hard = append(hard, fmt.Sprintf("conditions[%d]: invalid condition name %q", i, c.Name))
		}
		if c.Confidence < lowConfidenceFloor {
			soft = append(soft, fmt.Sprintf("conditions[%d] (%s): confidence %.2f is very low", i, c.Name, c.Confidence))
		}
	}

	for i, m := range extraction.Medications {
		if len(strings.TrimSpace(m.Name)) <= 1 {
			hard = append(hard, fmt.Sprintf("medications[%d]: invalid medication name %q", i, m.Name))
		}
		if m.Confidence < lowConfidenceFloor {
			soft = append(soft, fmt.Sprintf("medications[%d] (%s): confidence %.2f is very low", i, m.Name, m.Confidence))
		}
		if m.Dosage != "" && !hasDosageUnit(m.Dosage) {
			soft = append(soft, fmt.Sprintf("medications[%d] (%s): dosage %q lacks a recognized unit", i, m.Name, m.Dosage))
		}
	}

	for i, v := range extraction.VitalSigns {
		if strings.TrimSpace(v.MeasurementType) == "" {
			hard = append(hard, fmt.Sprintf("vital_signs[%d]: missing measurement type", i))
		}
		if strings.TrimSpace(v.Value) == "" {
			hard = append(hard, fmt.Sprintf("vital_signs[%d] (%s): missing value", i, v.MeasurementType))
		}
		if v.Confidence < lowConfidenceFloor {
			soft = append(soft, fmt.Sprintf("vital_signs[%d] (%s): confidence %.2f is very low", i, v.MeasurementType, v.Confidence))
		}
	}

	return e.verdict(hard, soft)
}

// hasDosageUnit reports whether a dosage string carries a recognized unit
// token, matched on word boundaries so "g" does not match "drug".
func hasDosageUnit(dosage string) bool {
	fields := strings.FieldsFunc(strings.ToLower(dosage), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '.'
	})
	for _, field := range fields {
		token := strings.TrimLeft(field, "0123456789.")
		for _, unit := range dosageUnits {
			if token == unit {
				return true
			}
		}
	}
	return false
}
