package harness

// Result is the outcome of running a scenario.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// RunID identifies the run in the journal. Empty without a journal.
	RunID string `json:"run_id,omitempty"`

	// Mode is "explore" or "replay".
	Mode string `json:"mode"`

	// Pass is true when no failure occurred and every expectation held.
	Pass bool `json:"pass"`

	// Iterations is the number of iterations run.
	Iterations int `json:"iterations"`

	// Leaves is the number of distinct complete sequences observed.
	Leaves int `json:"leaves"`

	// ExpectedLeaves is the interleaving count exploration should reach.
	// Zero in replay mode.
	ExpectedLeaves int `json:"expected_leaves,omitempty"`

	// LastSequence is the repro string of the last iteration. After a
	// failure, replaying it reproduces the failing order.
	LastSequence string `json:"last_sequence"`

	// Paths lists every complete sequence explored, in exploration order.
	Paths []string `json:"paths"`

	// Failure is the reproducer failure, if any.
	Failure string `json:"failure,omitempty"`

	// Errors contains expectation and failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario, mode string) *Result {
	return &Result{
		Scenario: scenario,
		Mode:     mode,
		Pass:     true,
		Paths:    []string{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
