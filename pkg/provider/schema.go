package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildInsightsJSONSchema returns the JSON-Schema both providers must satisfy
// for the extract-insights step. Constraining the shape here is what
// guarantees a fallback-served result is indistinguishable from a primary
// one.
func BuildInsightsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"insights":       map[string]any{"type": "string", "minLength": 1},
			"classification": map[string]any{"type": "string", "minLength": 1},
			"risk_level": map[string]any{
				"type": "string",
				"enum": []string{"low", "medium", "high"},
			},
		},
		"required": []string{"insights", "classification", "risk_level"},
	}
}

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// InsightsPayload is the provider-neutral decode target for the
// extract-insights response.
type InsightsPayload struct {
	Insights       string `json:"insights"`
	Classification string `json:"classification"`
	RiskLevel      string `json:"risk_level"`
}

// ParseInsights validates a provider's raw insight JSON against the shared
// schema and decodes it. A schema violation is a permanent error: retrying
// the same malformed contract is pointless, but the fallback provider may
// still produce a conforming payload, so callers wrap at the call site.
func ParseInsights(raw []byte) (InsightsPayload, error) {
	var out InsightsPayload
	if err := ValidateJSONAgainstSchema(BuildInsightsJSONSchema(), raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal insights: %w", err)
	}
	return out, nil
}
