package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// schemaV1 is the JSON Schema for labeler.policy.yaml. Schema validation
// catches structural mistakes (wrong types, missing fields) with field-level
// error messages before the business-rule checks run.
const schemaV1 = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["instructions", "fallback", "categories"],
  "properties": {
    "name": {"type": "string"},
    "version": {"type": "string"},
    "instructions": {"type": "string", "minLength": 1},
    "fallback": {"type": "string", "minLength": 1},
    "categories": {
      "type": "array",
      "minItems": 2,
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"}
        },
        "additionalProperties": false
      }
    },
    "knowledge": {
      "type": "object",
      "properties": {
        "global": {"type": "string"},
        "per_category": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        }
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

// ValidateSchema checks policy YAML content against the policy schema.
// The YAML is first converted to JSON because gojsonschema operates on JSON.
func ValidateSchema(content []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting to JSON: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaV1)
	documentLoader := gojsonschema.NewBytesLoader(jsonBytes)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("running schema validation: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("policy does not match schema: %s", strings.Join(msgs, "; "))
	}

	return nil
}
