package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

// Runs returns the runs of an experiment in write order.
//
// Returns an empty slice (not nil) if the experiment has no runs.
func (s *Store) Runs(ctx context.Context, experimentID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, experiment_id, name, seeds, intervened, num_agents, ticks, digest, seq
		FROM runs
		WHERE experiment_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunByName returns the named run of an experiment or ErrRunNotFound.
func (s *Store) RunByName(ctx context.Context, experimentID, name string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, experiment_id, name, seeds, intervened, num_agents, ticks, digest, seq
		FROM runs
		WHERE experiment_id = ? AND name = ?
	`, experimentID, name)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s/%s: %w", experimentID, name, ErrRunNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		seeds      string
		intervened int
	)
	err := sc.Scan(&run.ID, &run.ExperimentID, &run.Name, &seeds, &intervened,
		&run.NumAgents, &run.Ticks, &run.Digest, &run.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Intervened = intervened == 1
	run.Seeds, err = unmarshalSeeds(seeds)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadTrace rebuilds the trace of a run from its mirrored entries.
func (s *Store) ReadTrace(ctx context.Context, runID string) (*trace.Trace, error) {
	var numAgents int
	err := s.db.QueryRowContext(ctx, `SELECT num_agents FROM runs WHERE id = ?`, runID).Scan(&numAgents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, agent_id, state, event, cause
		FROM trace_entries
		WHERE run_id = ?
		ORDER BY tick ASC, agent_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace entries: %w", err)
	}
	defer rows.Close()

	tr := trace.New(numAgents)
	var (
		curTick = 0
		entries = make([]trace.Entry, 0, numAgents)
	)
	for rows.Next() {
		var (
			tick, agent  int
			state, event string
			cause        sql.NullInt64
		)
		if err := rows.Scan(&tick, &agent, &state, &event, &cause); err != nil {
			return nil, fmt.Errorf("scan trace entry: %w", err)
		}
		if tick != curTick {
			if err := tr.Record(curTick, entries); err != nil {
				return nil, err
			}
			curTick, entries = tick, entries[:0]
		}
		e, err := parseEntry(state, event, cause)
		if err != nil {
			return nil, fmt.Errorf("tick %d agent %d: %w", tick, agent, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace entries: %w", err)
	}
	if len(entries) > 0 {
		if err := tr.Record(curTick, entries); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

func parseEntry(state, event string, cause sql.NullInt64) (trace.Entry, error) {
	st, err := ir.ParseState(state)
	if err != nil {
		return trace.Entry{}, err
	}
	ev, err := ir.ParseEvent(event)
	if err != nil {
		return trace.Entry{}, err
	}
	c := ir.NoCause
	if cause.Valid {
		c = ir.CausedBy(ir.AgentID(cause.Int64))
	}
	return trace.Entry{State: st, Event: ev, Cause: c}, nil
}

// FinalInfected returns the agents infected at the last tick of a run,
// ascending. Returns an empty slice (not nil) when none are.
func (s *Store) FinalInfected(ctx context.Context, runID string) ([]ir.AgentID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id
		FROM trace_entries
		WHERE run_id = ?
		  AND state = 'INFECTED'
		  AND tick = (SELECT MAX(tick) FROM trace_entries WHERE run_id = ?)
		ORDER BY agent_id ASC
	`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query final infected: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// CausalRelations returns the attributed agents of every variant of an
// experiment, ascending by agent id.
func (s *Store) CausalRelations(ctx context.Context, experimentID string) (map[string][]ir.AgentID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT variant, agent_id
		FROM causal_relations
		WHERE experiment_id = ?
		ORDER BY variant COLLATE BINARY ASC, agent_id ASC
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query causal relations: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]ir.AgentID)
	for rows.Next() {
		var (
			variant string
			id      int
		)
		if err := rows.Scan(&variant, &id); err != nil {
			return nil, fmt.Errorf("scan causal relation: %w", err)
		}
		out[variant] = append(out[variant], ir.AgentID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate causal relations: %w", err)
	}
	return out, nil
}

func scanIDs(rows *sql.Rows) ([]ir.AgentID, error) {
	ids := []ir.AgentID{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		ids = append(ids, ir.AgentID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent ids: %w", err)
	}
	return ids, nil
}
