package engine

import (
	"errors"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

// Intervention is consulted once per tick, after the scheduler has acted
// and before the tick is recorded. It may revert agents through
// Model.Revert. A model without an intervention skips the pass.
type Intervention interface {
	Apply(m *Model, tick int)
}

// InterventionFunc adapts a function to the Intervention interface.
type InterventionFunc func(m *Model, tick int)

// Apply implements Intervention.
func (f InterventionFunc) Apply(m *Model, tick int) { f(m, tick) }

// TraceReplay constrains a counterfactual run to the infections of a
// reference run.
//
// Removing a seed alone does not isolate its effect: the same downstream
// infections can still happen by chance through another path. TraceReplay
// reverts every infection that the reference trace does not also show at
// the same (tick, agent). The reverted agent is recorded as recovering that
// tick. Infections the reference shares stand unmodified, so the run
// diverges from the reference only along the paths the removed seed opened.
//
// A coordinate missing from the reference (a shorter reference run) counts
// as "not infected there" and the infection is reverted.
//
// The reference trace is only read; one TraceReplay may serve many
// concurrent models.
type TraceReplay struct {
	reference *trace.Trace
}

// NewTraceReplay creates an intervention replaying against reference.
func NewTraceReplay(reference *trace.Trace) *TraceReplay {
	return &TraceReplay{reference: reference}
}

// Reference returns the trace the intervention replays against.
func (r *TraceReplay) Reference() *trace.Trace { return r.reference }

// Apply implements Intervention. Agents are visited in ascending id order;
// each revert decision depends only on that agent's reference entry.
func (r *TraceReplay) Apply(m *Model, tick int) {
	for _, a := range m.agents {
		if a.event != ir.Infect {
			continue
		}
		if r.infectedInReference(tick, a.id) {
			continue
		}
		m.logger.Debug("preventing infection", "tick", tick, "agent", a.id)
		a.recover(tick)
	}
}

func (r *TraceReplay) infectedInReference(tick int, id ir.AgentID) bool {
	e, err := r.reference.Lookup(tick, id)
	if errors.Is(err, trace.ErrMissingEntry) {
		return false
	}
	return err == nil && e.Event == ir.Infect
}
