// Package checkpoint implements the run checkpoint model: {run-id,
// timestamp, progress, opaque state map}, created on demand with at
// most one current checkpoint per run-id.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/evoagent/core/pkg/errs"
)

// State is a single point-in-time snapshot of a run.
type State struct {
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Progress  float64        `json:"progress"`
	Opaque    map[string]any `json:"opaque,omitempty"`
}

// New creates a checkpoint for runID at the given progress, carrying an
// opaque, caller-defined state map.
func New(runID string, progress float64, opaque map[string]any) *State {
	return &State{
		RunID:     runID,
		Timestamp: time.Now(),
		Progress:  progress,
		Opaque:    opaque,
	}
}

func (s *State) serialize() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "marshal checkpoint state", err)
	}
	return data, nil
}

func deserialize(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errs.Wrap(errs.Internal, "unmarshal checkpoint state", err)
	}
	return &s, nil
}
