package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/contagion/internal/ir"
)

// Snapshot captures the outcome of a scenario for golden comparison.
// Run ids and digests are left out so snapshots survive changes to the
// id scheme.
type Snapshot struct {
	ScenarioName   string         `json:"scenario_name"`
	Runs           []SnapshotRun  `json:"runs"`
	CausalRelation CausalRelation `json:"causal_relation"`
}

// SnapshotRun is one run within a Snapshot.
type SnapshotRun struct {
	Name          string       `json:"name"`
	Seeds         []ir.AgentID `json:"seeds"`
	Intervened    bool         `json:"intervened"`
	FinalInfected []ir.AgentID `json:"final_infected"`
}

// NewSnapshot builds the snapshot of an experiment result.
func NewSnapshot(name string, exp *ExperimentResult) Snapshot {
	s := Snapshot{
		ScenarioName:   name,
		CausalRelation: exp.CausalRelation,
	}
	for _, r := range append([]*RunResult{exp.Baseline}, exp.Variants...) {
		s.Runs = append(s.Runs, SnapshotRun{
			Name:          r.Name,
			Seeds:         nonNil(r.Seeds),
			Intervened:    r.Intervened,
			FinalInfected: r.FinalInfected,
		})
	}
	return s
}

// toCanonicalMap converts a Snapshot to the primitives ir.MarshalCanonical
// accepts.
func (s Snapshot) toCanonicalMap() map[string]any {
	runs := make([]any, len(s.Runs))
	for i, r := range s.Runs {
		runs[i] = map[string]any{
			"name":           r.Name,
			"seeds":          idsToAny(r.Seeds),
			"intervened":     r.Intervened,
			"final_infected": idsToAny(r.FinalInfected),
		}
	}
	rel := make(map[string]any, len(s.CausalRelation))
	for k, v := range s.CausalRelation {
		rel[k] = idsToAny(v)
	}
	return map[string]any{
		"scenario_name":   s.ScenarioName,
		"runs":            runs,
		"causal_relation": rel,
	}
}

// MarshalCanonical renders the snapshot as RFC 8785 canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

func idsToAny(ids []ir.AgentID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden and the baseline trace CSV
// against testdata/golden/{scenario.Name}_baseline.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if output doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result.Experiment); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an experiment result against golden files.
// This is useful when you've already run an experiment and want to compare
// it without re-running.
func AssertGolden(t *testing.T, name string, exp *ExperimentResult) error {
	t.Helper()

	snapshotJSON, err := NewSnapshot(name, exp).MarshalCanonical()
	if err != nil {
		return err
	}

	var csvBuf bytes.Buffer
	if err := exp.Baseline.Trace.WriteCSV(&csvBuf); err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshotJSON)
	g.Assert(t, name+"_baseline", csvBuf.Bytes())

	return nil
}
