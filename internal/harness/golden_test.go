package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contagion/internal/ir"
)

func TestSnapshot_Canonical(t *testing.T) {
	exp := &ExperimentResult{
		Baseline: &RunResult{Name: BaselineName, Seeds: []ir.AgentID{0}, FinalInfected: []ir.AgentID{0, 1}},
		Variants: []*RunResult{
			{Name: "wo0", Seeds: []ir.AgentID{}, FinalInfected: []ir.AgentID{}},
		},
		CausalRelation: CausalRelation{"wo0": {0, 1}},
	}

	data, err := NewSnapshot("tiny", exp).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"causal_relation":{"wo0":[0,1]},"runs":[`+
			`{"final_infected":[0,1],"intervened":false,"name":"baseline","seeds":[0]},`+
			`{"final_infected":[],"intervened":false,"name":"wo0","seeds":[]}],`+
			`"scenario_name":"tiny"}`,
		string(data))
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"reference_experiment", "intervention_matters", "two_agents", "ring"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
