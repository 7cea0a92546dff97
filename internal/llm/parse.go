package llm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/clarimed/clarimed/internal/faults"
	"github.com/clarimed/clarimed/internal/model"
)

// ExtractJSONPayload scans a backend response for the outermost JSON object.
// Backends occasionally wrap the payload in prose or markdown fences; the
// scanner is brace-balanced and string-aware so embedded braces survive.
func ExtractJSONPayload(s string) (string, error) {
	s = stripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", faults.New(faults.CodeAIResponseParsing, "no JSON object in response").
			WithDetail("response", s)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", faults.New(faults.CodeAIResponseParsing, "unbalanced JSON object in response").
		WithDetail("response", s)
}

// stripFences removes markdown code fences around a payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseExtraction decodes a backend response into a validated aggregate.
// The raw response is size-bounded before it lands in error details.
func ParseExtraction(raw string) (*model.StructuredMedicalExtraction, error) {
	payload, err := ExtractJSONPayload(raw)
	if err != nil {
		return nil, err
	}

	var extraction model.StructuredMedicalExtraction
	if err := json.Unmarshal([]byte(payload), &extraction); err != nil {
		return nil, faults.Wrap(faults.CodeAIResponseParsing, "decode extraction JSON", err).
			WithDetail("response", raw)
	}

	// Backends sometimes omit the timestamp despite the schema; stamp the
	// parse time rather than failing the whole extraction.
	if strings.TrimSpace(extraction.ExtractionTimestamp) == "" {
		extraction.ExtractionTimestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if err := extraction.Validate(); err != nil {
		return nil, faults.Wrap(faults.CodeSchemaModel, "extraction failed schema validation", err).
			WithDetail("response", raw)
	}
	extraction.Finalize()

	return &extraction, nil
}
