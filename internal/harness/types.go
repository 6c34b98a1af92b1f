package harness

// TraceEvent records one executed step.
// Fields that do not apply to the op are omitted from JSON.
type TraceEvent struct {
	Step      int        `json:"step"`
	Op        Op         `json:"op"`
	ID        int64      `json:"id,omitempty"`
	Content   string     `json:"content,omitempty"`
	Connected *bool      `json:"connected,omitempty"`
	Unsynced  *int       `json:"unsynced,omitempty"`
	Contents  []string   `json:"contents,omitempty"`
	Pass      *PassTrace `json:"pass,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// PassTrace is the deterministic part of a SyncResult.
type PassTrace struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Synced int    `json:"synced"`
	Failed int    `json:"failed"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns how many trace events have op.
func (r *Result) Count(op Op) int {
	n := 0
	for _, e := range r.Trace {
		if e.Op == op {
			n++
		}
	}
	return n
}
