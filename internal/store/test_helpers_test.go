package store

import (
	"testing"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

// createTestStore creates a new in-memory store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open()
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTrace builds a three-agent, two-tick trace: agent 0 seeded,
// agent 1 infected by 0 at tick 0, agent 0 recovering at tick 1.
func createTestTrace(t *testing.T) *trace.Trace {
	t.Helper()
	tr := trace.New(3)
	ticks := [][]trace.Entry{
		{
			{State: ir.Infected, Event: ir.Nothing, Cause: ir.NoCause},
			{State: ir.Infected, Event: ir.Infect, Cause: ir.CausedBy(0)},
			{State: ir.Healthy, Event: ir.Nothing, Cause: ir.NoCause},
		},
		{
			{State: ir.Healthy, Event: ir.Recover, Cause: ir.NoCause},
			{State: ir.Infected, Event: ir.Nothing, Cause: ir.NoCause},
			{State: ir.Healthy, Event: ir.Nothing, Cause: ir.NoCause},
		},
	}
	for tick, entries := range ticks {
		if err := tr.Record(tick, entries); err != nil {
			t.Fatalf("Record(%d) failed: %v", tick, err)
		}
	}
	return tr
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id, name string, seq int64) Run {
	return Run{
		ID:           id,
		ExperimentID: "exp-1",
		Name:         name,
		Seeds:        []ir.AgentID{0},
		NumAgents:    3,
		Ticks:        2,
		Digest:       "test-digest",
		Seq:          seq,
	}
}
