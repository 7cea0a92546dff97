package llm

import "fmt"

// confidenceScale is the five-tier scoring rubric every backend prompt uses.
const confidenceScale = `Score each extracted fact with a confidence value:
- 0.9-1.0: explicitly stated in the document
- 0.7-0.9: clearly implied by the document
- 0.5-0.7: mentioned but ambiguous
- 0.3-0.5: suggested but unclear
- 0.1-0.3: barely mentioned`

// outputSchema describes the strict JSON output covering all twelve entity
// variants. Every entity carries a confidence score and a source span with
// the verbatim text it was derived from.
const outputSchema = `{
  "conditions": [{"name": "...", "status": "...", "severity": "...", "onset_date": "...", "confidence": 0.0, "source": {"text": "...", "start_index": 0, "end_index": 0}}],
  "medications": [{"name": "...", "dosage": "...", "frequency": "...", "route": "...", "status": "...", "confidence": 0.0, "source": {...}}],
  "vital_signs": [{"measurement_type": "...", "value": "...", "unit": "...", "measured_at": "...", "confidence": 0.0, "source": {...}}],
  "lab_results": [{"test_name": "...", "value": "...", "unit": "...", "reference_range": "...", "status": "...", "confidence": 0.0, "source": {...}}],
  "procedures": [{"name": "...", "status": "...", "performed_date": "...", "outcome": "...", "confidence": 0.0, "source": {...}}],
  "providers": [{"name": "...", "specialty": "...", "role": "...", "confidence": 0.0, "source": {...}}],
  "encounters": [{"type": "...", "date": "...", "location": "...", "reason": "...", "confidence": 0.0, "source": {...}}],
  "service_requests": [{"request_type": "...", "reason": "...", "priority": "...", "requested_date": "...", "confidence": 0.0, "source": {...}}],
  "diagnostic_reports": [{"report_type": "...", "findings": "...", "conclusion": "...", "report_date": "...", "confidence": 0.0, "source": {...}}],
  "allergies": [{"allergen": "...", "reaction": "...", "severity": "...", "status": "...", "confidence": 0.0, "source": {...}}],
  "care_plans": [{"description": "...", "goals": ["..."], "activities": ["..."], "status": "...", "confidence": 0.0, "source": {...}}],
  "organizations": [{"name": "...", "org_type": "...", "address": "...", "confidence": 0.0, "source": {...}}],
  "extraction_timestamp": "2024-01-01T00:00:00Z",
  "document_type": "..."
}`

// BuildSystemPrompt constructs the fixed extraction instructions shared by
// all backends.
func BuildSystemPrompt() string {
	return fmt.Sprintf(`You are a clinical data extraction engine. Extract EVERY medical fact from the document into structured JSON.

RULES:
1. Extract every condition, medication, vital sign, lab result, procedure, provider, encounter, service request, diagnostic report, allergy, care plan, and organization mentioned.
2. For each fact, attach the verbatim source text it was derived from, with its character offsets in the document.
3. %s
4. Never invent facts that are not in the document. Omit optional fields rather than guessing.
5. Return ONLY JSON matching the schema given by the user. No prose, no markdown fences.`, confidenceScale)
}

// BuildUserPrompt embeds the document text and the strict output schema.
func BuildUserPrompt(req ExtractRequest) string {
	docType := req.DocumentType
	if docType == "" {
		docType = "unknown"
	}
	return fmt.Sprintf(`Document type hint: %s

Output schema (all twelve entity arrays are required, empty arrays allowed):
%s

Document text:
---
%s
---

Return the extraction as a single JSON object.`, docType, outputSchema, req.Text)
}
