package store

import (
	"context"
	"testing"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

func TestWriteRun(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.WriteRun(ctx, createTestRun("run-1", "baseline", 1), createTestTrace(t)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	n, err := s.Count(ctx, "SELECT COUNT(*) FROM trace_entries WHERE run_id = ?", "run-1")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 6 {
		t.Errorf("trace_entries = %d, want 6", n)
	}

	n, err = s.Count(ctx, "SELECT COUNT(*) FROM trace_entries WHERE cause IS NOT NULL")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("entries with cause = %d, want 1", n)
	}
}

func TestWriteRun_DuplicateNameRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.WriteRun(ctx, createTestRun("run-1", "baseline", 1), createTestTrace(t)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	if err := s.WriteRun(ctx, createTestRun("run-2", "baseline", 2), createTestTrace(t)); err == nil {
		t.Fatal("expected UNIQUE(experiment_id, name) violation")
	}

	n, err := s.Count(ctx, "SELECT COUNT(*) FROM trace_entries WHERE run_id = ?", "run-2")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("failed run left %d entries behind", n)
	}
}

func TestWriteRun_EmptyTrace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	run := createTestRun("run-1", "baseline", 1)
	run.Seeds = nil
	if err := s.WriteRun(ctx, run, trace.New(3)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	got, err := s.RunByName(ctx, "exp-1", "baseline")
	if err != nil {
		t.Fatalf("RunByName() failed: %v", err)
	}
	if len(got.Seeds) != 0 {
		t.Errorf("Seeds = %v, want empty", got.Seeds)
	}
}

func TestWriteCausalRelation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.WriteCausalRelation(ctx, "exp-1", "wo1", []ir.AgentID{5, 2}); err != nil {
		t.Fatalf("WriteCausalRelation() failed: %v", err)
	}
	// Idempotent.
	if err := s.WriteCausalRelation(ctx, "exp-1", "wo1", []ir.AgentID{2}); err != nil {
		t.Fatalf("second WriteCausalRelation() failed: %v", err)
	}
	if err := s.WriteCausalRelation(ctx, "exp-1", "wo0", nil); err != nil {
		t.Fatalf("empty WriteCausalRelation() failed: %v", err)
	}

	n, err := s.Count(ctx, "SELECT COUNT(*) FROM causal_relations")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("causal_relations = %d, want 2", n)
	}
}

func TestWriteCausalRelation_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	err := s.WriteCausalRelation(ctx, "exp-1", "wo1", []ir.AgentID{1, 2, -1})
	if err == nil {
		t.Fatal("expected CHECK(agent_id >= 0) violation")
	}

	n, err := s.Count(ctx, "SELECT COUNT(*) FROM causal_relations WHERE variant = ?", "wo1")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("failed write left %d rows behind", n)
	}
}
