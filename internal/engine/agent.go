package engine

import (
	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

// agent is one member of the population. It is owned by its Model and
// mutated only by its own step, by a neighbor's infection attempt, or by an
// intervention reverting it through the Model.
type agent struct {
	id    ir.AgentID
	state ir.State
	event ir.Event
	cause ir.Cause
	model *Model
}

func newAgent(id ir.AgentID, m *Model) *agent {
	return &agent{
		id:    id,
		state: ir.Healthy,
		event: ir.Nothing,
		cause: ir.NoCause,
		model: m,
	}
}

// step is the transition rule run when the scheduler activates a.
//
// Both rolls and the neighbor are drawn before any state is inspected.
// The recovery check uses the state a had before it acted, so an agent can
// infect a neighbor and recover in the same activation.
func (a *agent) step(tick int) error {
	rng := a.model.rng
	rInfect := rng.Float64()
	rRecover := rng.Float64()

	neighbors := a.model.topology.Neighbors(int(a.id))
	if len(neighbors) == 0 {
		return NewNoNeighborError(tick, a.id, 0)
	}
	nb := neighbors[rng.IntN(len(neighbors))]
	if nb == int(a.id) {
		return NewNoNeighborError(tick, a.id, len(neighbors))
	}
	neighbor := a.model.agents[nb]

	wasInfected := a.state == ir.Infected
	if wasInfected && rInfect < a.model.infectProbability && neighbor.state != ir.Infected {
		neighbor.infect(tick, ir.CausedBy(a.id))
	}
	if wasInfected && rRecover < a.model.recoverProbability {
		a.recover(tick)
	}
	return nil
}

// infect marks a infected by cause. Infecting an already infected agent is
// a no-op: the first cause and event stand.
func (a *agent) infect(tick int, cause ir.Cause) {
	if a.state == ir.Infected {
		return
	}
	a.state = ir.Infected
	a.event = ir.Infect
	a.cause = cause
	if sender, ok := cause.Sender(); ok {
		a.model.logger.Debug("agent infected", "tick", tick, "agent", a.id, "sender", sender)
	} else {
		a.model.logger.Debug("agent seeded", "agent", a.id)
	}
}

func (a *agent) recover(tick int) {
	a.state = ir.Healthy
	a.event = ir.Recover
	a.cause = ir.NoCause
	a.model.logger.Debug("agent recovers", "tick", tick, "agent", a.id)
}

func (a *agent) resetEvent() {
	a.event = ir.Nothing
	a.cause = ir.NoCause
}

func (a *agent) entry() trace.Entry {
	return trace.Entry{State: a.state, Event: a.event, Cause: a.cause}
}

// AgentState is a read-only snapshot of one agent.
type AgentState struct {
	ID ir.AgentID `json:"id"`
	trace.Entry
}

func (a *agent) snapshot() AgentState {
	return AgentState{ID: a.id, Entry: a.entry()}
}
