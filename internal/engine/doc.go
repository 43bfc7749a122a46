// Package engine implements the contagion simulation core.
//
// A Model places one agent on every node of a topology and advances one
// tick at a time. Each tick runs strictly in order:
//
//  1. Event reset: every agent's event and cause are cleared.
//  2. Scheduler: exactly one agent, drawn uniformly at random, activates.
//  3. Intervention (optional): may revert infections produced this tick.
//  4. Trace capture: one entry per agent is written for the tick.
//
// DETERMINISM:
//
// Every stochastic choice draws from one *rand.Rand owned by the Model,
// never from a global source. Draw order within a tick is fixed:
// activated agent, infect roll, recover roll, neighbor. All four draws
// happen on every tick whatever the agent's state, so runs sharing a seed
// consume their streams in lockstep and diverge only where their states
// do. Two runs with the same seed and parameters produce identical traces.
//
// FAILURE:
//
// A tick either commits completely (trace entries written, clock advanced)
// or not at all. The first failure is sticky: the Model refuses further
// ticks and returns the same error.
//
// CONCURRENCY:
//
// A Model is single-threaded. Separate Models share no mutable state and
// can run on separate goroutines; a finished Trace may be read by many.
package engine
