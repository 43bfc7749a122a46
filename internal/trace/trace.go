package trace

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/contagion/internal/ir"
)

// ErrMissingEntry is returned by Lookup when the trace has no entry for the
// requested coordinate.
var ErrMissingEntry = errors.New("missing trace entry")

// Entry is the snapshot of one agent at the end of one tick.
type Entry struct {
	State ir.State `json:"state"`
	Event ir.Event `json:"event"`
	Cause ir.Cause `json:"cause"`
}

// Key addresses one entry.
type Key struct {
	Tick  int        `json:"tick"`
	Agent ir.AgentID `json:"agent_id"`
}

// Row is one line of the tabular export.
type Row struct {
	Key
	Entry
}

// TickError reports a write that would break the one-entry-per-agent,
// one-write-per-tick shape of a trace.
type TickError struct {
	Tick    int
	Message string
}

func (e *TickError) Error() string {
	return fmt.Sprintf("trace tick %d: %s", e.Tick, e.Message)
}

// Trace is an append-only per-tick, per-agent record of one run.
//
// Not safe for concurrent writes. Reads are safe once writing has stopped.
type Trace struct {
	numAgents int
	ticks     [][]Entry
}

// New creates an empty trace for a population of numAgents.
func New(numAgents int) *Trace {
	return &Trace{numAgents: numAgents}
}

// Record appends the snapshot of tick. Ticks must be recorded in order
// starting at 0, each exactly once, with one entry per agent indexed by id.
// A rejected write leaves the trace unchanged.
func (t *Trace) Record(tick int, entries []Entry) error {
	switch {
	case tick < len(t.ticks):
		return &TickError{Tick: tick, Message: "already recorded"}
	case tick > len(t.ticks):
		return &TickError{Tick: tick, Message: fmt.Sprintf("out of order (next tick is %d)", len(t.ticks))}
	case len(entries) != t.numAgents:
		return &TickError{Tick: tick, Message: fmt.Sprintf("got %d entries for %d agents", len(entries), t.numAgents)}
	}
	for id, e := range entries {
		if !e.State.Valid() || !e.Event.Valid() {
			return &TickError{Tick: tick, Message: fmt.Sprintf("agent %d: invalid entry %+v", id, e)}
		}
	}
	t.ticks = append(t.ticks, slices.Clone(entries))
	return nil
}

// Lookup returns the entry at (tick, id) or ErrMissingEntry.
func (t *Trace) Lookup(tick int, id ir.AgentID) (Entry, error) {
	if tick < 0 || tick >= len(t.ticks) || id < 0 || int(id) >= t.numAgents {
		return Entry{}, fmt.Errorf("tick %d agent %d: %w", tick, id, ErrMissingEntry)
	}
	return t.ticks[tick][id], nil
}

// Ticks returns the number of recorded ticks.
func (t *Trace) Ticks() int { return len(t.ticks) }

// NumAgents returns the population size the trace was created for.
func (t *Trace) NumAgents() int { return t.numAgents }

// Tick returns a copy of the entries recorded at tick, indexed by agent id.
func (t *Trace) Tick(tick int) ([]Entry, bool) {
	if tick < 0 || tick >= len(t.ticks) {
		return nil, false
	}
	return slices.Clone(t.ticks[tick]), true
}

// InfectedAt returns the ids infected at the end of tick, ascending.
func (t *Trace) InfectedAt(tick int) []ir.AgentID {
	if tick < 0 || tick >= len(t.ticks) {
		return nil
	}
	var out []ir.AgentID
	for id, e := range t.ticks[tick] {
		if e.State == ir.Infected {
			out = append(out, ir.AgentID(id))
		}
	}
	return out
}

// FinalInfected returns the ids infected at the last recorded tick.
// An empty trace has no final tick and returns nil.
func (t *Trace) FinalInfected() []ir.AgentID {
	return t.InfectedAt(len(t.ticks) - 1)
}

// CountEvents returns how many entries carry event ev.
func (t *Trace) CountEvents(ev ir.Event) int {
	n := 0
	for _, entries := range t.ticks {
		for _, e := range entries {
			if e.Event == ev {
				n++
			}
		}
	}
	return n
}

// Rows flattens the trace into a table ordered by (tick, agent_id).
func (t *Trace) Rows() []Row {
	rows := make([]Row, 0, len(t.ticks)*t.numAgents)
	for tick, entries := range t.ticks {
		for id, e := range entries {
			rows = append(rows, Row{Key: Key{Tick: tick, Agent: ir.AgentID(id)}, Entry: e})
		}
	}
	return rows
}

// Equal reports whether both traces hold the same entries.
func (t *Trace) Equal(o *Trace) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.numAgents != o.numAgents || len(t.ticks) != len(o.ticks) {
		return false
	}
	for i := range t.ticks {
		if !slices.Equal(t.ticks[i], o.ticks[i]) {
			return false
		}
	}
	return true
}

// Digest returns a content hash of the trace. Equal traces have equal
// digests.
func (t *Trace) Digest() (string, error) {
	ticks := make([]any, len(t.ticks))
	for i, entries := range t.ticks {
		row := make([]any, len(entries))
		for id, e := range entries {
			row[id] = map[string]any{
				"state": e.State,
				"event": e.Event,
				"cause": e.Cause,
			}
		}
		ticks[i] = row
	}
	return ir.Digest(ir.DomainTrace, map[string]any{
		"num_agents": t.numAgents,
		"ticks":      ticks,
	})
}
