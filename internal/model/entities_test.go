package model

import (
	"strings"
	"testing"
)

func validSource() SourceContext {
	return SourceContext{Text: "Patient has hypertension", StartIndex: 0, EndIndex: 24}
}

func TestSourceContext_Validate(t *testing.T) {
	tests := []struct {
		name    string
		source  SourceContext
		wantErr bool
	}{
		{"valid span", SourceContext{Text: "x", StartIndex: 0, EndIndex: 1}, false},
		{"placeholder zero span", SourceContext{}, false},
		{"negative start", SourceContext{StartIndex: -1, EndIndex: 5}, true},
		{"end before start", SourceContext{StartIndex: 10, EndIndex: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfidence_Boundaries(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantErr    bool
	}{
		{"lower boundary", 0.0, false},
		{"upper boundary", 1.0, false},
		{"middle", 0.5, false},
		{"below range", -0.1, true},
		{"above range", 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Condition{Name: "hypertension", Confidence: tt.confidence, Source: validSource()}
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() with confidence %v: error = %v, wantErr %v", tt.confidence, err, tt.wantErr)
			}
		})
	}
}

// Every variant must reject a missing identifying field with a message that
// names the field.
func TestRequiredFields(t *testing.T) {
	src := validSource()

	tests := []struct {
		name      string
		entity    interface{ Validate() error }
		wantField string
	}{
		{"condition", Condition{Confidence: 0.9, Source: src}, "name"},
		{"medication", Medication{Confidence: 0.9, Source: src}, "name"},
		{"vital sign type", VitalSign{Value: "120/80", Confidence: 0.9, Source: src}, "measurement_type"},
		{"vital sign value", VitalSign{MeasurementType: "blood pressure", Confidence: 0.9, Source: src}, "value"},
		{"lab result", LabResult{Confidence: 0.9, Source: src}, "test_name"},
		{"procedure", Procedure{Confidence: 0.9, Source: src}, "name"},
		{"provider", Provider{Confidence: 0.9, Source: src}, "name"},
		{"encounter", Encounter{Confidence: 0.9, Source: src}, "type"},
		{"service request", ServiceRequest{Confidence: 0.9, Source: src}, "request_type"},
		{"diagnostic report type", DiagnosticReport{Findings: "normal", Confidence: 0.9, Source: src}, "report_type"},
		{"diagnostic report findings", DiagnosticReport{ReportType: "chest x-ray", Confidence: 0.9, Source: src}, "findings"},
		{"allergy", Allergy{Confidence: 0.9, Source: src}, "allergen"},
		{"care plan", CarePlan{Confidence: 0.9, Source: src}, "description"},
		{"organization", Organization{Confidence: 0.9, Source: src}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), "missing required field: "+tt.wantField) {
				t.Errorf("error %q does not name field %q", err.Error(), tt.wantField)
			}
		})
	}
}

func TestNewCondition(t *testing.T) {
	c, err := NewCondition("diabetes mellitus", 0.95, validSource())
	if err != nil {
		t.Fatalf("NewCondition failed: %v", err)
	}
	if c.Name != "diabetes mellitus" || c.Confidence != 0.95 {
		t.Errorf("unexpected condition: %+v", c)
	}

	if _, err := NewCondition("", 0.95, validSource()); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewCondition("diabetes", 1.5, validSource()); err == nil {
		t.Error("expected error for out-of-range confidence")
	}
}

func TestNewMedication(t *testing.T) {
	m, err := NewMedication("Metformin", 0.9, validSource())
	if err != nil {
		t.Fatalf("NewMedication failed: %v", err)
	}
	if m.Name != "Metformin" {
		t.Errorf("unexpected medication: %+v", m)
	}

	if _, err := NewMedication("", 0.9, validSource()); err == nil {
		t.Error("expected error for empty name")
	}
}
