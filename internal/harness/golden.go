package harness

import "encoding/json"

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	Scenario string                    `json:"scenario"`
	Trace    []TraceEntry              `json:"trace"`
	Live     map[string]map[string]any `json:"live,omitempty"`
}

// MarshalSnapshot renders result as indented JSON with a trailing newline.
// Map keys are sorted by encoding/json, so the output is stable.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(TraceSnapshot{
		Scenario: name,
		Trace:    result.Trace,
		Live:     result.Live,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
