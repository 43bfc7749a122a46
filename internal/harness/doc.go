// Package harness runs counterfactual experiments and scenario tests.
//
// # Experiments
//
// An experiment runs a baseline simulation and, for every initially
// infected agent, two counterfactual variants with that seed removed:
//
//   - wo<id>: the plain counterfactual
//   - intervened_wo<id>: the counterfactual constrained by a TraceReplay
//     of the baseline, so it can only diverge along paths the removed seed
//     opened
//
// Every run uses the same parameters and the same random seed. The causal
// relation of a variant is the set of agents infected at the baseline's
// final tick but not at the variant's. It is always a subset of the
// baseline's final infected set.
//
// Variants are independent and may run concurrently (WithParallelism);
// results do not depend on the degree of parallelism.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	params:
//	  num_agents: 10
//	  initially_infected: [0, 1]
//	  seed: 1
//	assertions:
//	  - type: final_infected
//	    run: baseline
//	    agents: [1, 2, 5, 7, 9]
//	  - type: causal_relation
//	    run: wo1
//	    agents: [1, 2, 5, 7, 9]
//
// Params not given keep the defaults of config.Default.
//
// # Assertion Types
//
//   - final_infected: the run's final infected set equals agents
//   - event_at: the entry at (tick, agent) has the given event/state/cause
//   - event_count: the run records the event exactly count times
//   - causal_relation: the variant's causal relation equals agents
//   - subset_of_baseline: the run's final infected set is within the
//     baseline's
//   - final_state: one row of a mirrored table matches expected values
//   - sql: a COUNT query over the mirror returns count
//
// # Deterministic Testing
//
// Scenarios run with sequential run identifiers, a discard logger and a
// fresh in-memory store, so results and golden files are reproducible.
package harness
