package executor

import (
	"encoding/json"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
)

// stepState checkpoints the pipeline artifacts between steps. It is
// serialized onto the job row after every completed step, so a retried job
// rehydrates the outputs of the steps it already finished and resumes at the
// failed one.
type stepState struct {
	Artifact *provider.PreparedArtifact `json:"artifact,omitempty"`
	Handle   *provider.IndexHandle      `json:"handle,omitempty"`
	Summary  *provider.Summary          `json:"summary,omitempty"`
	Insights *provider.Insights         `json:"insights,omitempty"`

	// UsedFallback is sticky: once any step was served by the fallback,
	// the job's result provenance is fallback.
	UsedFallback bool `json:"used_fallback,omitempty"`
}

func decodeStepState(data []byte) (stepState, error) {
	var s stepState
	if len(data) == 0 {
		return s, nil
	}
	err := json.Unmarshal(data, &s)
	return s, err
}

func (s stepState) encode() ([]byte, error) {
	return json.Marshal(s)
}

func (s stepState) provenance() core.Provenance {
	if s.UsedFallback {
		return core.ProvenanceFallback
	}
	return core.ProvenancePrimary
}
