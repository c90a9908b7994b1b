package rules

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "additionalProperties": false,
    "properties": {
      "class_regex":             {"type": "string"},
      "exception_class_regex":   {"type": "string"},
      "exception_message_regex": {"type": "string"},
      "args_json_regex":         {"type": "string"},
      "expiry":                  {"type": "string"},
      "chance":                  {"type": "number", "minimum": 0, "maximum": 1},
      "percent_chance":          {"type": "number", "minimum": 0, "maximum": 1},
      "action":                  {"enum": ["retry", "clear", "retry_increment_retry_attempt"]},
      "action_args":             {},
      "retry_limit":             {"type": "integer", "minimum": 0}
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// Lint checks a rule document against the rule schema and reports every
// problem the tolerant parser would otherwise silently normalize.
// The returned error is only set when the document cannot be read at all.
func Lint(doc []byte) ([]string, error) {
	raw, err := decode(doc)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validation system error: %w", err)
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	rules, err := ParseDocument(doc)
	if err != nil {
		return nil, err
	}
	for i, r := range rules {
		for _, issue := range r.Issues() {
			problems = append(problems, fmt.Sprintf("rule %d: %s", i, issue))
		}
	}
	return problems, nil
}
