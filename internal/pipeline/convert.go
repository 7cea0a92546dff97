package pipeline

import (
	"context"

	"github.com/clarimed/clarimed/internal/model"
)

// BasicConverter maps a structured extraction to minimal FHIR R4 resource
// mappings. It covers the resource types the validation engine gates on:
// Condition, MedicationStatement and Observation. A full terminology-aware
// converter sits behind the same interface in larger deployments.
type BasicConverter struct{}

// Convert produces one resource mapping per condition, medication, vital sign
// and lab result. Every mapping carries resourceType and a subject reference.
func (BasicConverter) Convert(ctx context.Context, extraction *model.StructuredMedicalExtraction, patientID string) ([]map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if extraction == nil {
		return []map[string]interface{}{}, nil
	}

	subject := map[string]interface{}{"reference": "Patient/" + patientID}
	var resources []map[string]interface{}

	for _, c := range extraction.Conditions {
		status := c.Status
		if status == "" {
			status = "active"
		}
		resources = append(resources, map[string]interface{}{
			"resourceType": "Condition",
			"subject":      subject,
			"code": map[string]interface{}{
				"text": c.Name,
			},
			"clinicalStatus": map[string]interface{}{
				"coding": []interface{}{map[string]interface{}{
					"system": "http://terminology.hl7.org/CodeSystem/condition-clinical",
					"code":   conditionClinicalStatus(status),
				}},
			},
		})
	}

	for _, m := range extraction.Medications {
		status := m.Status
		if status == "" {
			status = "active"
		}
		resources = append(resources, map[string]interface{}{
			"resourceType": "MedicationStatement",
			"subject":      subject,
			"status":       medicationStatus(status),
			"medicationCodeableConcept": map[string]interface{}{
				"text": medicationText(m),
			},
		})
	}

	for _, v := range extraction.VitalSigns {
		resources = append(resources, map[string]interface{}{
			"resourceType": "Observation",
			"subject":      subject,
			"status":       "final",
			"code": map[string]interface{}{
				"text": v.MeasurementType,
			},
			"valueString": valueWithUnit(v.Value, v.Unit),
		})
	}

	for _, l := range extraction.LabResults {
		resources = append(resources, map[string]interface{}{
			"resourceType": "Observation",
			"subject":      subject,
			"status":       "final",
			"code": map[string]interface{}{
				"text": l.TestName,
			},
			"valueString": valueWithUnit(l.Value, l.Unit),
		})
	}

	if resources == nil {
		resources = []map[string]interface{}{}
	}
	return resources, nil
}

// conditionClinicalStatus maps free-text status to the FHIR value set.
func conditionClinicalStatus(status string) string {
	switch status {
	case "resolved":
		return "resolved"
	case "suspected", "active":
		return "active"
	default:
		return "active"
	}
}

// medicationStatus maps free-text status to the MedicationStatement value set.
func medicationStatus(status string) string {
	switch status {
	case "stopped", "discontinued":
		return "stopped"
	case "completed":
		return "completed"
	default:
		return "active"
	}
}

func medicationText(m model.Medication) string {
	text := m.Name
	if m.Dosage != "" {
		text += " " + m.Dosage
	}
	return text
}

func valueWithUnit(value, unit string) string {
	if unit == "" {
		return value
	}
	return value + " " + unit
}
