package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/clarimed/clarimed/internal/model"
)

// DegradedExtractor is the regex-based last-resort path used when every AI
// backend fails. It only recovers conditions and medications, and stamps the
// result with a fixed low confidence and the fallback marker.
type DegradedExtractor struct {
	confidence float64
}

// NewDegradedExtractor creates a degraded extractor with the given fixed
// confidence (0.3 when zero).
func NewDegradedExtractor(confidence float64) *DegradedExtractor {
	if confidence <= 0 {
		confidence = 0.3
	}
	return &DegradedExtractor{confidence: confidence}
}

var (
	// medicationPattern matches "Metformin 500 mg" style dosage mentions.
	medicationPattern = regexp.MustCompile(`(?i)\b([A-Z][a-zA-Z]{2,})\s+(\d+(?:\.\d+)?)\s*(mg|mcg|g|ml|units)\b`)

	// frequencyPattern matches a dosing frequency following the dose.
	frequencyPattern = regexp.MustCompile(`(?i)\b(once daily|twice daily|three times daily|daily|nightly|weekly|every \d+ hours|bid|tid|qid|prn|q\d+h)\b`)

	// diagnosisLinePattern matches "Diagnosis:"/"Impression:" labeled lines.
	diagnosisLinePattern = regexp.MustCompile(`(?im)^\s*(?:diagnosis|diagnoses|impression|assessment)\s*[:\-]\s*(.+)$`)
)

// Extract pattern-matches conditions and medications out of raw text.
func (d *DegradedExtractor) Extract(text string) *model.StructuredMedicalExtraction {
	extraction := &model.StructuredMedicalExtraction{
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
		DocumentType:        "unknown",
		FallbackUsed:        true,
	}

	extraction.Medications = d.extractMedications(text)
	extraction.Conditions = d.extractConditions(text)
	extraction.Finalize()

	return extraction
}

func (d *DegradedExtractor) extractMedications(text string) []model.Medication {
	var medications []model.Medication
	seen := make(map[string]bool)

	for _, match := range medicationPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := match[0], match[1]
		span := text[start:end]
		name := text[match[2]:match[3]]
		dose := text[match[4]:match[5]] + " " + strings.ToLower(text[match[6]:match[7]])

		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		medication := model.Medication{
			Name:       name,
			Dosage:     dose,
			Confidence: d.confidence,
			Source: model.SourceContext{
				Text:       span,
				StartIndex: start,
				EndIndex:   end,
			},
		}

		// Look for a frequency immediately after the dose
		tail := text[end:min(end+40, len(text))]
		if freq := frequencyPattern.FindString(tail); freq != "" {
			medication.Frequency = strings.ToLower(freq)
		}

		medications = append(medications, medication)
	}

	return medications
}

func (d *DegradedExtractor) extractConditions(text string) []model.Condition {
	var conditions []model.Condition
	seen := make(map[string]bool)

	for _, match := range diagnosisLinePattern.FindAllStringSubmatchIndex(text, -1) {
		lineStart, lineEnd := match[0], match[1]
		payload := text[match[2]:match[3]]

		// Labeled lines often carry several comma-separated conditions
		for _, part := range strings.FieldsFunc(payload, func(r rune) bool {
			return r == ',' || r == ';'
		}) {
			name := strings.TrimSpace(strings.TrimSuffix(part, "."))
			if len(name) < 2 {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true

			conditions = append(conditions, model.Condition{
				Name:       name,
				Confidence: d.confidence,
				Source: model.SourceContext{
					Text:       strings.TrimSpace(text[lineStart:lineEnd]),
					StartIndex: lineStart,
					EndIndex:   lineEnd,
				},
			})
		}
	}

	return conditions
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
