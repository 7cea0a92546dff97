package validate

import (
	"fmt"

	"github.com/clarimed/clarimed/internal/model"
)

// terminalStatuses are the recognized end states for a processed document.
var terminalStatuses = map[string]bool{
	"completed": true,
	"review":    true,
	"failed":    true,
}

// ValidateConsistency compares entity counts between the structured
// extraction and the converted resource list. Minor divergence is expected:
// one entity can fan out to several resources, and converters may drop
// malformed entries. Only a discrepancy beyond the configured tolerance is
// flagged.
func (e *Engine) ValidateConsistency(extraction *model.StructuredMedicalExtraction, resources []map[string]interface{}) (bool, []string) {
	var hard, soft []string

	if extraction == nil {
		hard = append(hard, "No structured extraction to compare against")
		return e.verdict(hard, soft)
	}

	resourceCounts := make(map[string]int)
	for _, resource := range resources {
		if resourceType, ok := resource["resourceType"].(string); ok {
			resourceCounts[resourceType]++
		}
	}

	compare := func(label, resourceType string, structuredCount int) {
		converted := resourceCounts[resourceType]
		diff := structuredCount - converted
		if diff < 0 {
			diff = -diff
		}
		if diff > e.countTolerance {
			soft = append(soft, fmt.Sprintf(
				"Count mismatch for %s: %d structured vs %d %s resources (tolerance %d)",
				label, structuredCount, converted, resourceType, e.countTolerance))
		}
	}

	compare("conditions", "Condition", len(extraction.Conditions))
	compare("medications", "MedicationStatement", len(extraction.Medications))

	return e.verdict(hard, soft)
}

// ValidateCompleteness is the final gate over an assembled processing result:
// the core payload keys must be present and the status must be terminal.
// A non-empty error log on an otherwise complete result is a partial-success
// warning, not a failure.
func (e *Engine) ValidateCompleteness(result map[string]interface{}) (bool, []string) {
	var hard, soft []string

	for _, key := range []string{"original_text", "structured_data", "fhir_resources"} {
		if _, ok := result[key]; !ok {
			hard = append(hard, fmt.Sprintf("Processing result missing key: %s", key))
		}
	}

	status, _ := result["status"].(string)
	if !terminalStatuses[status] {
		hard = append(hard, fmt.Sprintf("Unrecognized terminal status: %q", status))
	}

	if errs, ok := result["errors"].([]string); ok && len(errs) > 0 {
		soft = append(soft, fmt.Sprintf("Processing completed with %d recorded errors (partial success)", len(errs)))
	}

	return e.verdict(hard, soft)
}
