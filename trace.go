package experiments

import (
	"encoding/json"
)

// Trace captures the provenance of one resolution: which precedence step
// produced the result and, for computed assignments, which audience and
// bucket.
type Trace struct {
	Experiment string           `json:"experiment"`
	Variant    string           `json:"variant"`
	Source     ResolutionSource `json:"source"`
	Audience   int              `json:"audience"`
	Rule       string           `json:"rule,omitempty"`
	Identity   string           `json:"identity,omitempty"`
	Bucket     uint64           `json:"bucket"`
}

// ToJSON serialises the trace into JSON for logging or debug transports.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload previously generated via ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
