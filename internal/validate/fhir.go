package validate

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// requiredResourceTypes is a business rule for complete clinical documents,
// not a FHIR requirement: an extraction bundle must carry at least one
// Condition and one MedicationStatement.
var requiredResourceTypes = []string{"Condition", "MedicationStatement"}

// Per-resource-type structural schemas. Every resource needs a resourceType
// and a subject reference; typed resources need their core clinical fields.
const baseResourceSchema = `{
	"type": "object",
	"properties": {
		"resourceType": {"type": "string", "minLength": 1},
		"subject": {"type": "object", "properties": {"reference": {"type": "string", "minLength": 1}}, "required": ["reference"]}
	},
	"required": ["resourceType", "subject"]
}`

const conditionSchema = `{
	"type": "object",
	"properties": {
		"resourceType": {"const": "Condition"},
		"subject": {"type": "object", "properties": {"reference": {"type": "string", "minLength": 1}}, "required": ["reference"]},
		"code": {"type": "object"},
		"clinicalStatus": {"type": "object"}
	},
	"required": ["resourceType", "subject", "code", "clinicalStatus"]
}`

const medicationStatementSchema = `{
	"type": "object",
	"properties": {
		"resourceType": {"const": "MedicationStatement"},
		"subject": {"type": "object", "properties": {"reference": {"type": "string", "minLength": 1}}, "required": ["reference"]},
		"status": {"type": "string", "minLength": 1}
	},
	"required": ["resourceType", "subject", "status"],
	"anyOf": [
		{"required": ["medicationCodeableConcept"]},
		{"required": ["medicationReference"]}
	]
}`

const observationSchema = `{
	"type": "object",
	"properties": {
		"resourceType": {"const": "Observation"},
		"subject": {"type": "object", "properties": {"reference": {"type": "string", "minLength": 1}}, "required": ["reference"]},
		"code": {"type": "object"},
		"status": {"type": "string", "minLength": 1}
	},
	"required": ["resourceType", "subject", "code", "status"],
	"anyOf": [
		{"required": ["valueQuantity"]},
		{"required": ["valueString"]},
		{"required": ["valueCodeableConcept"]}
	]
}`

// fhirValidator holds the compiled structural schemas.
type fhirValidator struct {
	base   *jsonschema.Schema
	byType map[string]*jsonschema.Schema
}

func newFHIRValidator() (*fhirValidator, error) {
	compile := func(name, schema string) (*jsonschema.Schema, error) {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, strings.NewReader(schema)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		s, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		return s, nil
	}

	base, err := compile("base.json", baseResourceSchema)
	if err != nil {
		return nil, err
	}
	condition, err := compile("condition.json", conditionSchema)
	if err != nil {
		return nil, err
	}
	medication, err := compile("medication_statement.json", medicationStatementSchema)
	if err != nil {
		return nil, err
	}
	observation, err := compile("observation.json", observationSchema)
	if err != nil {
		return nil, err
	}

	return &fhirValidator{
		base: base,
		byType: map[string]*jsonschema.Schema{
			"Condition":           condition,
			"MedicationStatement": medication,
			"Observation":         observation,
		},
	}, nil
}

// ValidateFHIRResources structurally validates the converted resource list.
func (e *Engine) ValidateFHIRResources(resources []map[string]interface{}) (bool, []string) {
	var hard, soft []string

	if len(resources) == 0 {
		hard = append(hard, "No FHIR resources produced by conversion")
		return e.verdict(hard, soft)
	}

	typesSeen := make(map[string]int)
	for i, resource := range resources {
		resourceType, _ := resource["resourceType"].(string)
		if resourceType != "" {
			typesSeen[resourceType]++
		}

		schema := e.fhir.base
		if typed, ok := e.fhir.byType[resourceType]; ok {
			schema = typed
		}

		if err := schema.Validate(toJSONValue(resource)); err != nil {
			label := resourceType
			if label == "" {
				label = "unknown"
			}
			for _, msg := range schemaErrorMessages(err) {
				hard = append(hard, fmt.Sprintf("resources[%d] (%s): %s", i, label, msg))
			}
		}
	}

	for _, required := range requiredResourceTypes {
		if typesSeen[required] == 0 {
			hard = append(hard, fmt.Sprintf("Missing required resource type: %s", required))
		}
	}

	return e.verdict(hard, soft)
}

// schemaErrorMessages flattens a jsonschema validation error into its leaf
// messages.
func schemaErrorMessages(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	return flattenCauses(ve)
}

func flattenCauses(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		return []string{ve.Message}
	}
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, flattenCauses(cause)...)
	}
	return msgs
}

// toJSONValue normalizes a decoded resource so the schema validator sees the
// same shapes encoding/json produces.
func toJSONValue(resource map[string]interface{}) interface{} {
	normalized := make(map[string]interface{}, len(resource))
	for k, v := range resource {
		normalized[k] = v
	}
	return normalized
}
