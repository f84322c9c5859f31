package mapping

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// specSchema is the JSON Schema every mapping document must satisfy before it
// is decoded. Cross-field checks live in Spec.Validate.
const specSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["country", "template", "rules"],
  "additionalProperties": false,
  "properties": {
    "country": {"type": "string", "minLength": 1},
    "template": {"type": "string", "pattern": "^[A-Za-z0-9._-]+\\.pdf$"},
    "rules": {"type": "array", "items": {"$ref": "#/definitions/rule"}},
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "discriminator", "cases"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "discriminator": {
            "enum": ["occupation_status", "travel_covered_by", "visa_type", "has_stay_booking",
                     "fingerprints_taken", "has_credit_card", "has_bookings"]
          },
          "cases": {
            "type": "object",
            "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/rule"}}
          }
        }
      }
    }
  },
  "definitions": {
    "path": {"type": "string", "pattern": "^(applicant|traveler|dependent|questions)\\.[A-Za-z0-9_]+$"},
    "rule": {
      "type": "object",
      "required": ["field", "source"],
      "additionalProperties": false,
      "properties": {
        "field": {"type": "string", "minLength": 1},
        "source": {
          "type": "object",
          "required": ["type"],
          "additionalProperties": false,
          "properties": {
            "type": {"enum": ["field", "literal", "date", "coalesce", "join", "check", "expr"]},
            "path": {"$ref": "#/definitions/path"},
            "paths": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/path"}},
            "value": {"type": "string"},
            "checked": {"type": "boolean"},
            "format": {"type": "string"},
            "separator": {"type": "string"},
            "equals": {"type": "string"},
            "expr": {"type": "string"}
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(specSchema)

// validateDocument checks a decoded mapping document against specSchema.
func validateDocument(doc interface{}) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("mapping document is invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
