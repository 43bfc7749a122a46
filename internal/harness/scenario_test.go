package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: small
description: Small scenario
params:
  num_agents: 4
  initially_infected: [2]
  seed: 7
assertions:
  - type: final_infected
    run: baseline
    agents: [2]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "small", scenario.Name)
	assert.Equal(t, 4, scenario.Params.NumAgents)
	assert.Equal(t, []int{2}, scenario.Params.InitiallyInfected)
	assert.Equal(t, uint64(7), scenario.Params.Seed)
	// Unset params keep their defaults.
	assert.Equal(t, 0.5, scenario.Params.InfectProbability)
	assert.Equal(t, "complete", scenario.Params.Topology)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, []int{2}, scenario.Assertions[0].Agents)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
description: d
assertions: [{type: final_infected, run: baseline}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
assertions: [{type: final_infected, run: baseline}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing assertions",
			yaml: `
name: n
description: d
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown field",
			yaml: `
name: n
description: d
assertion: []
`,
			wantErr: "field assertion not found",
		},
		{
			name: "unknown param",
			yaml: `
name: n
description: d
params:
  agents: 3
assertions: [{type: final_infected, run: baseline}]
`,
			wantErr: "field agents not found",
		},
		{
			name: "invalid params",
			yaml: `
name: n
description: d
params:
  infect_probability: 1.5
assertions: [{type: final_infected, run: baseline}]
`,
			wantErr: "params:",
		},
		{
			name: "seed out of range",
			yaml: `
name: n
description: d
params:
  num_agents: 3
  initially_infected: [3]
assertions: [{type: final_infected, run: baseline}]
`,
			wantErr: "params:",
		},
		{
			name: "negative parallelism",
			yaml: `
name: n
description: d
parallelism: -1
assertions: [{type: final_infected, run: baseline}]
`,
			wantErr: "parallelism",
		},
		{
			name: "unknown assertion type",
			yaml: `
name: n
description: d
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "missing type",
			yaml: `
name: n
description: d
assertions: [{run: baseline}]
`,
			wantErr: "type is required",
		},
		{
			name: "unknown run",
			yaml: `
name: n
description: d
assertions: [{type: final_infected, run: wo7}]
`,
			wantErr: `unknown run "wo7"`,
		},
		{
			name: "missing run",
			yaml: `
name: n
description: d
assertions: [{type: final_infected}]
`,
			wantErr: "requires run",
		},
		{
			name: "causal relation of baseline",
			yaml: `
name: n
description: d
assertions: [{type: causal_relation, run: baseline}]
`,
			wantErr: "requires a variant run",
		},
		{
			name: "event_at without tick",
			yaml: `
name: n
description: d
assertions: [{type: event_at, run: baseline, agent: 1, event: INFECT}]
`,
			wantErr: "requires tick and agent",
		},
		{
			name: "event_at without expectation",
			yaml: `
name: n
description: d
assertions: [{type: event_at, run: baseline, tick: 0, agent: 1}]
`,
			wantErr: "requires event, state or cause",
		},
		{
			name: "event_at bad event",
			yaml: `
name: n
description: d
assertions: [{type: event_at, run: baseline, tick: 0, agent: 1, event: SNEEZE}]
`,
			wantErr: "SNEEZE",
		},
		{
			name: "event_at bad cause",
			yaml: `
name: n
description: d
assertions: [{type: event_at, run: baseline, tick: 0, agent: 1, cause: "-3"}]
`,
			wantErr: "assertions[0]",
		},
		{
			name: "event_count without count",
			yaml: `
name: n
description: d
assertions: [{type: event_count, run: baseline, event: INFECT}]
`,
			wantErr: "requires count",
		},
		{
			name: "final_state without table",
			yaml: `
name: n
description: d
assertions: [{type: final_state, expect: {ticks: 1}}]
`,
			wantErr: "requires table",
		},
		{
			name: "final_state without expect",
			yaml: `
name: n
description: d
assertions: [{type: final_state, table: runs}]
`,
			wantErr: "requires expect",
		},
		{
			name: "sql without query",
			yaml: `
name: n
description: d
assertions: [{type: sql, count: 1}]
`,
			wantErr: "requires query",
		},
		{
			name: "sql without count",
			yaml: `
name: n
description: d
assertions: [{type: sql, query: SELECT 1}]
`,
			wantErr: "requires count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_CountZeroAllowed(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: n
description: d
assertions: [{type: event_count, run: baseline, event: RECOVER, count: 0}]
`))
	require.NoError(t, err)
	require.NotNil(t, scenario.Assertions[0].Count)
	assert.Equal(t, 0, *scenario.Assertions[0].Count)
}

func TestLoadScenario_VariantRunsFromSeeds(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: n
description: d
params:
  initially_infected: [3, 8]
assertions:
  - {type: causal_relation, run: wo8}
  - {type: subset_of_baseline, run: intervened_wo3}
`))
	require.NoError(t, err)
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "final_infected", AssertFinalInfected)
	assert.Equal(t, "event_at", AssertEventAt)
	assert.Equal(t, "event_count", AssertEventCount)
	assert.Equal(t, "causal_relation", AssertCausalRelation)
	assert.Equal(t, "subset_of_baseline", AssertSubsetOfBaseline)
	assert.Equal(t, "final_state", AssertFinalState)
	assert.Equal(t, "sql", AssertSQL)
}
