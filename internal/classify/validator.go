package classify

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/textlens/textlens/internal/prompt"
)

// Response key names. The persisted payload uses exactly these keys; a
// failed attempt is instead recorded as {"error": "..."}.
const (
	KeyPredictedClass       = "predicted_class"
	KeyClassToWords         = "class_to_words"
	KeyClassToProbabilities = "class_to_probabilities"
)

// SchemaError reports a model reply that does not satisfy the response
// schema. Raw carries the offending reply so it can be recorded verbatim.
type SchemaError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("response schema violation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("response schema violation: %s", e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// responseSchema describes the classification payload. Every level must be
// present in both maps and probabilities must lie in [0, 1]. Consistency
// between predicted_class and the probability map is deliberately not
// checked; models round probabilities and ties are common.
func responseSchema() *jsonschema.Schema {
	levels := make([]any, len(prompt.Levels))
	for i, l := range prompt.Levels {
		levels[i] = l
	}
	zero, one := 0.0, 1.0

	wordProps := make(map[string]*jsonschema.Schema, len(prompt.Levels))
	probProps := make(map[string]*jsonschema.Schema, len(prompt.Levels))
	for _, l := range prompt.Levels {
		wordProps[l] = &jsonschema.Schema{
			Type:  "array",
			Items: &jsonschema.Schema{Type: "string"},
		}
		probProps[l] = &jsonschema.Schema{
			Type:    "number",
			Minimum: &zero,
			Maximum: &one,
		}
	}

	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{KeyPredictedClass, KeyClassToWords, KeyClassToProbabilities},
		Properties: map[string]*jsonschema.Schema{
			KeyPredictedClass: {Type: "string", Enum: levels},
			KeyClassToWords: {
				Type:       "object",
				Required:   append([]string(nil), prompt.Levels...),
				Properties: wordProps,
			},
			KeyClassToProbabilities: {
				Type:       "object",
				Required:   append([]string(nil), prompt.Levels...),
				Properties: probProps,
			},
		},
	}
}

var resolvedSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return responseSchema().Resolve(nil)
})

// stripFence removes a single surrounding markdown code fence, with or
// without a language tag. Anything beyond one fence is left alone and will
// fail JSON parsing.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Validate checks a raw model reply against the response schema and returns
// the cleaned JSON payload ready for persistence. A reply wrapped in one
// markdown fence is tolerated. Any violation returns a *SchemaError carrying
// the original reply.
func Validate(raw string) (json.RawMessage, error) {
	cleaned := stripFence(raw)
	if cleaned == "" {
		return nil, &SchemaError{Raw: raw, Reason: "empty reply"}
	}

	var payload any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &SchemaError{Raw: raw, Reason: "reply is not valid JSON", Err: err}
	}

	resolved, err := resolvedSchema()
	if err != nil {
		return nil, fmt.Errorf("resolve response schema: %w", err)
	}
	if err := resolved.Validate(payload); err != nil {
		return nil, &SchemaError{Raw: raw, Reason: "reply does not match schema", Err: err}
	}

	return json.RawMessage(cleaned), nil
}
