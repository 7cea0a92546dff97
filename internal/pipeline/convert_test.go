package pipeline

import (
	"context"
	"testing"

	"github.com/clarimed/clarimed/internal/model"
)

func TestBasicConverter_Convert(t *testing.T) {
	extraction := &model.StructuredMedicalExtraction{
		Conditions: []model.Condition{
			{Name: "Hypertension", Status: "resolved", Confidence: 0.9},
		},
		Medications: []model.Medication{
			{Name: "Metformin", Dosage: "500 mg", Status: "discontinued", Confidence: 0.8},
		},
		VitalSigns: []model.VitalSign{
			{MeasurementType: "blood pressure", Value: "120/80", Unit: "mmHg", Confidence: 0.9},
		},
		LabResults: []model.LabResult{
			{TestName: "HbA1c", Value: "7.2", Unit: "%", Confidence: 0.9},
		},
		ExtractionTimestamp: "2025-06-01T12:00:00Z",
	}

	resources, err := BasicConverter{}.Convert(context.Background(), extraction, "patient-9")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(resources) != 4 {
		t.Fatalf("expected 4 resources, got %d", len(resources))
	}

	byType := map[string][]map[string]interface{}{}
	for _, r := range resources {
		rt := r["resourceType"].(string)
		byType[rt] = append(byType[rt], r)

		subject := r["subject"].(map[string]interface{})
		if subject["reference"] != "Patient/patient-9" {
			t.Errorf("%s: unexpected subject %v", rt, subject)
		}
	}

	condition := byType["Condition"][0]
	if condition["code"].(map[string]interface{})["text"] != "Hypertension" {
		t.Errorf("unexpected condition code: %v", condition["code"])
	}
	coding := condition["clinicalStatus"].(map[string]interface{})["coding"].([]interface{})
	if coding[0].(map[string]interface{})["code"] != "resolved" {
		t.Errorf("unexpected clinical status: %v", coding)
	}

	med := byType["MedicationStatement"][0]
	if med["status"] != "stopped" {
		t.Errorf("unexpected medication status: %v", med["status"])
	}
	if med["medicationCodeableConcept"].(map[string]interface{})["text"] != "Metformin 500 mg" {
		t.Errorf("unexpected medication text: %v", med["medicationCodeableConcept"])
	}

	if len(byType["Observation"]) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(byType["Observation"]))
	}
	values := map[string]bool{}
	for _, obs := range byType["Observation"] {
		if obs["status"] != "final" {
			t.Errorf("unexpected observation status: %v", obs["status"])
		}
		values[obs["valueString"].(string)] = true
	}
	if !values["120/80 mmHg"] || !values["7.2 %"] {
		t.Errorf("unexpected observation values: %v", values)
	}
}

func TestBasicConverter_EmptyExtraction(t *testing.T) {
	resources, err := BasicConverter{}.Convert(context.Background(), &model.StructuredMedicalExtraction{}, "p")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if resources == nil || len(resources) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", resources)
	}
}

func TestBasicConverter_NilExtraction(t *testing.T) {
	resources, err := BasicConverter{}.Convert(context.Background(), nil, "p")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if resources == nil || len(resources) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", resources)
	}
}

func TestStatusMappings(t *testing.T) {
	if got := conditionClinicalStatus("suspected"); got != "active" {
		t.Errorf("suspected -> %q", got)
	}
	if got := conditionClinicalStatus(""); got != "active" {
		t.Errorf("empty -> %q", got)
	}
	if got := medicationStatus("completed"); got != "completed" {
		t.Errorf("completed -> %q", got)
	}
	if got := medicationStatus("current"); got != "active" {
		t.Errorf("unknown -> %q", got)
	}
}
