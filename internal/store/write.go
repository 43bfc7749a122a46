package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

// Run describes one simulation run of an experiment.
type Run struct {
	ID           string
	ExperimentID string
	Name         string
	Seeds        []ir.AgentID
	Intervened   bool
	NumAgents    int
	Ticks        int
	Digest       string
	Seq          int64
}

// WriteRun inserts run and every entry of tr in one transaction. Either
// the whole run is mirrored or none of it is.
func (s *Store) WriteRun(ctx context.Context, run Run, tr *trace.Trace) (err error) {
	seeds, err := marshalSeeds(run.Seeds)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, experiment_id, name, seeds, intervened, num_agents, ticks, digest, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.ExperimentID,
		run.Name,
		seeds,
		boolToInt(run.Intervened),
		run.NumAgents,
		run.Ticks,
		run.Digest,
		run.Seq,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_entries (run_id, tick, agent_id, state, event, cause)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run %s: prepare: %w", run.Name, err)
	}
	defer stmt.Close()

	for _, row := range tr.Rows() {
		_, err = stmt.ExecContext(ctx,
			run.ID,
			row.Tick,
			int(row.Agent),
			row.State.String(),
			row.Event.String(),
			causeValue(row.Cause),
		)
		if err != nil {
			return fmt.Errorf("write run %s: tick %d agent %d: %w", run.Name, row.Tick, row.Agent, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write run %s: commit: %w", run.Name, err)
	}
	return nil
}

// WriteCausalRelation records the agents attributed to variant in one
// transaction. Rewriting an agent already recorded is a no-op.
func (s *Store) WriteCausalRelation(ctx context.Context, experimentID, variant string, ids []ir.AgentID) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write causal relation %s: begin: %w", variant, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO causal_relations (experiment_id, variant, agent_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write causal relation %s: prepare: %w", variant, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err = stmt.ExecContext(ctx, experimentID, variant, int(id)); err != nil {
			return fmt.Errorf("write causal relation %s: agent %d: %w", variant, id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write causal relation %s: commit: %w", variant, err)
	}
	return nil
}

func causeValue(c ir.Cause) sql.NullInt64 {
	sender, ok := c.Sender()
	if !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(sender), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
