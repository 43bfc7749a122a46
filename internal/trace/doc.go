// Package trace records what every agent looked like after every tick.
//
// A Trace maps (tick, agent) to an Entry holding the agent's state, the
// event it went through that tick and the id of the agent that caused it.
// Ticks are written whole and in order by the engine and never mutated
// afterwards, so a finished Trace can be shared read-only between runs:
// counterfactual runs consult the baseline Trace through an intervention
// while it is being read by other variants concurrently.
package trace
