package harness

import (
	"context"
	"fmt"

	"github.com/roach88/contagion/internal/store"
	"github.com/roach88/contagion/internal/testutil"
)

// IDPrefix prefixes the deterministic identifiers the harness assigns to
// experiments and runs: the experiment is "run-1", the baseline "run-2",
// and variants follow in Variants order.
const IDPrefix = "run"

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic identifiers make store rows reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Run the experiment described by the scenario params
// 3. Check that the mirrored store reads back as the in-memory result
// 4. Evaluate assertions against the result and the mirrored store
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	exp, err := NewExperiment(scenario.Params,
		WithLogger(testutil.DiscardLogger()),
		WithRunIDs(testutil.NewSequentialGenerator(IDPrefix)),
		WithParallelism(scenario.Parallelism),
		WithStore(st),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	res, err := exp.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult(res)
	for _, msg := range CheckMirror(ctx, st, res) {
		result.AddError(msg)
	}
	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(res, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}
