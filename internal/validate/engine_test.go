package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/clarimed/clarimed/internal/model"
)

func newTestEngine(t *testing.T, strict bool) *Engine {
	t.Helper()
	e, err := NewEngine(model.ValidationConfig{Strict: strict, MinAverageConfidence: floatPtr(0.3), CountTolerance: intPtr(2)})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func clinicalText() string {
	return "Patient presents with hypertension and type 2 diabetes. " +
		"Current medication: Metformin 500 mg twice daily. " +
		"Blood pressure 130/85 mmHg. Lab work ordered by the doctor."
}

func testExtraction() *model.StructuredMedicalExtraction {
	e := &model.StructuredMedicalExtraction{
		Conditions: []model.Condition{
			{Name: "hypertension", Confidence: 0.9},
			{Name: "type 2 diabetes", Confidence: 0.85},
		},
		Medications: []model.Medication{
			{Name: "Metformin", Dosage: "500 mg", Frequency: "twice daily", Confidence: 0.9},
		},
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
	e.Finalize()
	return e
}

func containsSubstring(issues []string, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}

func TestValidateTextQuality_Valid(t *testing.T) {
	e := newTestEngine(t, false)
	ok, issues := e.ValidateTextQuality(clinicalText())
	if !ok {
		t.Errorf("expected valid, got issues: %v", issues)
	}
}

func TestValidateTextQuality_TooShort(t *testing.T) {
	e := newTestEngine(t, false)
	ok, issues := e.ValidateTextQuality("Short text")
	if ok {
		t.Error("expected failure for 10-char text")
	}
	if !containsSubstring(issues, "too short") {
		t.Errorf("expected an issue mentioning \"too short\", got %v", issues)
	}
}

func TestValidateTextQuality_Empty(t *testing.T) {
	e := newTestEngine(t, false)
	ok, issues := e.ValidateTextQuality("   \n\t ")
	if ok {
		t.Error("expected failure for empty text")
	}
	if !containsSubstring(issues, "empty") {
		t.Errorf("expected empty-text issue, got %v", issues)
	}
}

func TestValidateTextQuality_FailureMarker(t *testing.T) {
	e := newTestEngine(t, false)
	text := clinicalText() + " NOTE: unable to read page 3 of the scanned document."
	ok, issues := e.ValidateTextQuality(text)
	if !ok {
		t.Errorf("marker alone must not fail lenient validation: %v", issues)
	}
	if !containsSubstring(issues, "unable to read") {
		t.Errorf("expected failure-marker warning, got %v", issues)
	}

	// Strict mode promotes the warning to a failure
	strictEngine := newTestEngine(t, true)
	if ok, _ := strictEngine.ValidateTextQuality(text); ok {
		t.Error("strict mode must fail on warnings")
	}
}

func TestValidateTextQuality_NonClinicalText(t *testing.T) {
	e := newTestEngine(t, false)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 3)
	ok, issues := e.ValidateTextQuality(text)
	if !ok {
		t.Errorf("keyword warning alone must not fail: %v", issues)
	}
	if !containsSubstring(issues, "medical keywords") {
		t.Errorf("expected keyword warning, got %v", issues)
	}
}

func TestValidateTextQuality_Idempotent(t *testing.T) {
	e := newTestEngine(t, false)
	text := "Short text"
	ok1, issues1 := e.ValidateTextQuality(text)
	ok2, issues2 := e.ValidateTextQuality(text)
	if ok1 != ok2 || len(issues1) != len(issues2) {
		t.Errorf("validation not idempotent: (%v, %v) vs (%v, %v)", ok1, issues1, ok2, issues2)
	}
	for i := range issues1 {
		if issues1[i] != issues2[i] {
			t.Errorf("issue %d differs: %q vs %q", i, issues1[i], issues2[i])
		}
	}
}

func TestValidateExtraction_Valid(t *testing.T) {
	e := newTestEngine(t, false)
	ok, issues := e.ValidateExtraction(testExtraction())
	if !ok {
		t.Errorf("expected valid, got issues: %v", issues)
	}
}

func TestValidateExtraction_NoData(t *testing.T) {
	e := newTestEngine(t, false)

	empty := &model.StructuredMedicalExtraction{
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
	empty.Finalize()

	ok, issues := e.ValidateExtraction(empty)
	if ok {
		t.Error("expected failure for empty extraction")
	}
	if !containsSubstring(issues, "No medical data extracted") {
		t.Errorf("expected no-data issue, got %v", issues)
	}

	// Nil aggregate behaves the same
	if ok, _ := e.ValidateExtraction(nil); ok {
		t.Error("expected failure for nil extraction")
	}
}

func TestValidateExtraction_LowAverageConfidence(t *testing.T) {
	e := newTestEngine(t, false)
	extraction := &model.StructuredMedicalExtraction{
		Conditions:          []model.Condition{{Name: "hypertension", Confidence: 0.15}},
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
	extraction.Finalize()

	ok, issues := e.ValidateExtraction(extraction)
	if ok {
		t.Error("expected failure below confidence threshold")
	}
	if !containsSubstring(issues, "below threshold") {
		t.Errorf("expected threshold issue, got %v", issues)
	}
}

// Unset config falls back to the defaults; an explicit zero does not.
func TestNewEngine_ConfigDefaults(t *testing.T) {
	e, err := NewEngine(model.ValidationConfig{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if e.minAverageConfidence != 0.3 {
		t.Errorf("expected default threshold 0.3, got %v", e.minAverageConfidence)
	}
	if e.countTolerance != 2 {
		t.Errorf("expected default tolerance 2, got %d", e.countTolerance)
	}
}

func TestValidateExtraction_ZeroThresholdConfigured(t *testing.T) {
	e, err := NewEngine(model.ValidationConfig{MinAverageConfidence: floatPtr(0), CountTolerance: intPtr(2)})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	extraction := &model.StructuredMedicalExtraction{
		Conditions:          []model.Condition{{Name: "hypertension", Confidence: 0.15}},
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
	extraction.Finalize()

	ok, issues := e.ValidateExtraction(extraction)
	if !ok {
		t.Errorf("zero threshold must accept any confidence, got issues: %v", issues)
	}
}

func TestValidateConsistency_ZeroToleranceConfigured(t *testing.T) {
	e, err := NewEngine(model.ValidationConfig{MinAverageConfidence: floatPtr(0.3), CountTolerance: intPtr(0)})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	extraction := testExtraction() // 2 conditions, 1 medication
	resources := []map[string]interface{}{
		{"resourceType": "Condition"},
		{"resourceType": "MedicationStatement"},
	}

	_, issues := e.ValidateConsistency(extraction, resources)
	if !containsSubstring(issues, "Count mismatch") {
		t.Errorf("zero tolerance must flag a one-off count, got %v", issues)
	}
}

func TestValidateExtraction_InvalidNames(t *testing.T) {
	e := newTestEngine(t, false)
	extraction := testExtraction()
	extraction.Conditions = append(extraction.Conditions, model.Condition{Name: "x", Confidence: 0.9})
	extraction.Finalize()

	ok, issues := e.ValidateExtraction(extraction)
	if ok {
		t.Error("expected failure for one-char condition name")
	}
	if !containsSubstring(issues, "invalid condition name") {
		t.Errorf("expected invalid-name issue, got %v", issues)
	}
}

func TestValidateExtraction_DosageUnitWarning(t *testing.T) {
	e := newTestEngine(t, false)
	extraction := testExtraction()
	extraction.Medications = append(extraction.Medications, model.Medication{Name: "Aspirin", Dosage: "two tablets", Confidence: 0.8})
	extraction.Finalize()

	ok, issues := e.ValidateExtraction(extraction)
	if !ok {
		t.Errorf("dosage warning alone must not fail lenient validation: %v", issues)
	}
	if !containsSubstring(issues, "lacks a recognized unit") {
		t.Errorf("expected dosage warning, got %v", issues)
	}
}

func TestHasDosageUnit(t *testing.T) {
	tests := []struct {
		dosage string
		want   bool
	}{
		{"500 mg", true},
		{"500mg", true},
		{"1.5 ml", true},
		{"10 units", true},
		{"two tablets", false},
		{"one drug", false}, // "g" must not match inside a word
		{"", false},
	}
	for _, tt := range tests {
		if got := hasDosageUnit(tt.dosage); got != tt.want {
			t.Errorf("hasDosageUnit(%q) = %v, want %v", tt.dosage, got, tt.want)
		}
	}
}

func TestValidateExtraction_VitalSignFields(t *testing.T) {
	e := newTestEngine(t, false)
	extraction := testExtraction()
	extraction.VitalSigns = append(extraction.VitalSigns, model.VitalSign{MeasurementType: "", Value: "", Confidence: 0.8})
	extraction.Finalize()

	ok, issues := e.ValidateExtraction(extraction)
	if ok {
		t.Error("expected failure for vital sign without type and value")
	}
	if !containsSubstring(issues, "missing measurement type") || !containsSubstring(issues, "missing value") {
		t.Errorf("expected both vital-sign issues, got %v", issues)
	}
}

func TestValidateFHIRResources_Valid(t *testing.T) {
	e := newTestEngine(t, false)
	resources := []map[string]interface{}{
		{
			"resourceType":   "Condition",
			"subject":        map[string]interface{}{"reference": "Patient/1"},
			"code":           map[string]interface{}{"text": "hypertension"},
			"clinicalStatus": map[string]interface{}{"coding": []interface{}{}},
		},
		{
			"resourceType":              "MedicationStatement",
			"subject":                   map[string]interface{}{"reference": "Patient/1"},
			"status":                    "active",
			"medicationCodeableConcept": map[string]interface{}{"text": "Metformin 500 mg"},
		},
	}

	ok, issues := e.ValidateFHIRResources(resources)
	if !ok {
		t.Errorf("expected valid, got issues: %v", issues)
	}
}

// A lone Condition missing subject and code must produce issues naming both
// fields plus a missing-required-type issue for MedicationStatement.
func TestValidateFHIRResources_MissingFields(t *testing.T) {
	e := newTestEngine(t, false)
	resources := []map[string]interface{}{
		{"resourceType": "Condition"},
	}

	ok, issues := e.ValidateFHIRResources(resources)
	if ok {
		t.Error("expected failure")
	}
	if !containsSubstring(issues, "subject") {
		t.Errorf("expected an issue naming subject, got %v", issues)
	}
	if !containsSubstring(issues, "code") {
		t.Errorf("expected an issue naming code, got %v", issues)
	}
	if !containsSubstring(issues, "Missing required resource type: MedicationStatement") {
		t.Errorf("expected missing-type issue, got %v", issues)
	}
}

func TestValidateFHIRResources_Empty(t *testing.T) {
	e := newTestEngine(t, false)
	ok, issues := e.ValidateFHIRResources(nil)
	if ok {
		t.Error("expected failure for empty resource list")
	}
	if !containsSubstring(issues, "No FHIR resources") {
		t.Errorf("expected empty-list issue, got %v", issues)
	}
}

func TestValidateConsistency(t *testing.T) {
	e := newTestEngine(t, false)
	extraction := testExtraction() // 2 conditions, 1 medication

	within := []map[string]interface{}{
		{"resourceType": "Condition"},
		{"resourceType": "MedicationStatement"},
	}
	ok, issues := e.ValidateConsistency(extraction, within)
	if !ok || len(issues) != 0 {
		t.Errorf("divergence within tolerance must pass, got (%v, %v)", ok, issues)
	}

	// Five extra conditions exceed the tolerance of 2
	extraction.Conditions = append(extraction.Conditions,
		model.Condition{Name: "asthma", Confidence: 0.9},
		model.Condition{Name: "copd", Confidence: 0.9},
		model.Condition{Name: "gerd", Confidence: 0.9},
	)
	ok, issues = e.ValidateConsistency(extraction, nil)
	if !containsSubstring(issues, "Count mismatch") {
		t.Errorf("expected count-mismatch warning, got %v", issues)
	}
	if !ok {
		t.Error("count mismatch is a warning, not a lenient failure")
	}

	strictEngine := newTestEngine(t, true)
	if ok, _ := strictEngine.ValidateConsistency(extraction, nil); ok {
		t.Error("strict mode must fail on count mismatch")
	}
}

func TestValidateCompleteness(t *testing.T) {
	e := newTestEngine(t, false)

	complete := map[string]interface{}{
		"original_text":   "...",
		"structured_data": map[string]interface{}{},
		"fhir_resources":  []map[string]interface{}{},
		"status":          "completed",
		"errors":          []string{},
	}
	if ok, issues := e.ValidateCompleteness(complete); !ok {
		t.Errorf("expected valid, got %v", issues)
	}

	missing := map[string]interface{}{
		"status": "completed",
	}
	ok, issues := e.ValidateCompleteness(missing)
	if ok {
		t.Error("expected failure for missing keys")
	}
	if !containsSubstring(issues, "original_text") {
		t.Errorf("expected missing-key issue, got %v", issues)
	}

	badStatus := map[string]interface{}{
		"original_text":   "...",
		"structured_data": map[string]interface{}{},
		"fhir_resources":  []map[string]interface{}{},
		"status":          "in-flight",
	}
	if ok, _ := e.ValidateCompleteness(badStatus); ok {
		t.Error("expected failure for non-terminal status")
	}

	partial := map[string]interface{}{
		"original_text":   "...",
		"structured_data": map[string]interface{}{},
		"fhir_resources":  []map[string]interface{}{},
		"status":          "review",
		"errors":          []string{"FHIR conversion failed"},
	}
	ok, issues = e.ValidateCompleteness(partial)
	if !ok {
		t.Error("recorded errors on a terminal result are a warning, not a failure")
	}
	if !containsSubstring(issues, "partial success") {
		t.Errorf("expected partial-success warning, got %v", issues)
	}
}
