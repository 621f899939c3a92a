package core

import "encoding/json"

// Provenance records which provider produced a job's result. Downstream
// consumers cannot otherwise distinguish a fallback-served result from a
// primary one; the payload shape is identical.
type Provenance string

const (
	ProvenancePrimary  Provenance = "primary"
	ProvenanceFallback Provenance = "fallback"
)

// Usage is the token accounting reported by the inference provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Result is the structured analysis payload written when a job completes.
type Result struct {
	Summary        string     `json:"summary"`
	Insights       string     `json:"insights"`
	Classification string     `json:"classification"`
	RiskLevel      string     `json:"risk_level"`
	Provenance     Provenance `json:"provenance"`
	Model          string     `json:"model"`
	Usage          Usage      `json:"usage"`
}

// Encode serializes the result for storage on the job and document records.
func (r Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses a stored result payload.
func DecodeResult(data []byte) (Result, error) {
	var r Result
	err := json.Unmarshal(data, &r)
	return r, err
}
