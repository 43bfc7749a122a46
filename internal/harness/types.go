package harness

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Experiment is the experiment the assertions ran against.
	Experiment *ExperimentResult `json:"experiment"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(exp *ExperimentResult) *Result {
	return &Result{
		Pass:       true,
		Errors:     []string{},
		Experiment: exp,
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
