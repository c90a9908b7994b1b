package rules

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/retryguard/internal/core/domain"
)

// ParseDocument decodes a YAML or JSON rule list. An empty document yields no
// rules. Entries that are not mappings become disabled rules so indexes stay
// stable for operators.
func ParseDocument(doc []byte) ([]*Rule, error) {
	raw, err := decode(doc)
	if err != nil {
		return nil, err
	}

	rules := make([]*Rule, 0, len(raw))
	for i, entry := range raw {
		def, ok := entry.(map[string]any)
		if !ok {
			r := &Rule{}
			r.disable("entry %d: expected a mapping, got %T", i, entry)
			rules = append(rules, r)
			continue
		}
		rules = append(rules, NewRule(def))
	}
	return rules, nil
}

// decode returns the document as a list with string-keyed maps.
func decode(doc []byte) ([]any, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return []any{}, nil
	}

	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("failed to parse rule document: %w", err)
	}
	if v == nil {
		return []any{}, nil
	}

	list, ok := normalize(v).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", domain.ErrRulesFormat, v)
	}
	return list, nil
}

// normalize converts yaml.v2 maps into map[string]any, recursively, so the
// values can be JSON encoded.
func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	default:
		return v
	}
}
