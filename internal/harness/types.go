package harness

// Delivery is one packet handed to the sender.
type Delivery struct {
	To     string         `json:"to"`
	Packet map[string]any `json:"packet"`
}

// TraceEntry records the handling of one step.
type TraceEntry struct {
	Step          int    `json:"step"`
	Client        string `json:"client"`
	Event         string `json:"event"`
	CorrelationID string `json:"correlation_id"`

	// Error is the code of the error the step failed with, if any.
	Error string `json:"error,omitempty"`

	// Deliveries are the packets sent while the step was handled, in order.
	Deliveries []Delivery `json:"deliveries,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	Trace []TraceEntry `json:"trace"`

	// Live is the final content of every live room the scenario opened.
	Live map[string]map[string]any `json:"live,omitempty"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// DeliveriesTo returns every packet delivered to username, in order.
func (r *Result) DeliveriesTo(username string) []map[string]any {
	var out []map[string]any
	for _, entry := range r.Trace {
		for _, d := range entry.Deliveries {
			if d.To == username {
				out = append(out, d.Packet)
			}
		}
	}
	return out
}
