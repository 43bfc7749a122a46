// Package store mirrors experiment runs into an in-memory SQLite database.
//
// The mirror exists so run traces can be queried with SQL, mainly by
// scenario assertions. It is never written to disk: Open always creates a
// private ":memory:" database that disappears on Close.
//
// Tables:
//   - runs: one row per run of an experiment (baseline and variants)
//   - trace_entries: one row per (run, tick, agent)
//   - causal_relations: one row per agent attributed to a variant
//
// All reads order by logical keys (seq, tick, agent_id), never wall time.
package store
