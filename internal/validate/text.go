package validate

import (
	"fmt"
	"strings"
)

const (
	minTextLength = 50
	maxTextLength = 100000
)

// failurePhrases are markers an upstream text extractor leaves behind when it
// could not read the document.
var failurePhrases = []string{
	"unable to read",
	"corrupted file",
	"could not extract",
	"extraction failed",
	"password protected",
	"encrypted document",
}

// medicalKeywords is the fixed vocabulary used to judge whether the text
// looks like a clinical document at all.
var medicalKeywords = []string{
	"patient", "diagnosis", "medication", "treatment", "doctor",
	"hospital", "clinic", "prescription", "symptom", "exam",
	"history", "allergy", "dose", "lab", "blood",
}

// ValidateTextQuality checks extracted document text before any AI call.
// Empty or too-short text is a hard failure; extraction-failure markers and a
// thin medical vocabulary are recorded as warnings.
func (e *Engine) ValidateTextQuality(text string) (bool, []string) {
	var hard, soft []string

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		hard = append(hard, "Document text is empty")
		return e.verdict(hard, soft)
	}

	if len(trimmed) < minTextLength {
		hard = append(hard, fmt.Sprintf("Document text too short (%d chars, minimum %d)", len(trimmed), minTextLength))
	}
	if len(trimmed) > maxTextLength {
		soft = append(soft, fmt.Sprintf("Document text unusually long (%d chars)", len(trimmed)))
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range failurePhrases {
		if strings.Contains(lower, phrase) {
			soft = append(soft, fmt.Sprintf("Text contains extraction-failure marker: %q", phrase))
		}
	}

	keywordHits := 0
	for _, keyword := range medicalKeywords {
		if strings.Contains(lower, keyword) {
			keywordHits++
		}
	}
	if keywordHits < 2 {
		soft = append(soft, fmt.Sprintf("Text contains only %d medical keywords; may not be a clinical document", keywordHits))
	}

	return e.verdict(hard, soft)
}
