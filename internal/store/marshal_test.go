package store

import (
	"slices"
	"testing"

	"github.com/roach88/contagion/internal/ir"
)

func TestMarshalSeeds(t *testing.T) {
	got, err := marshalSeeds([]ir.AgentID{0, 1, 12})
	if err != nil {
		t.Fatalf("marshalSeeds() failed: %v", err)
	}
	if got != "[0,1,12]" {
		t.Errorf("marshalSeeds() = %q, want [0,1,12]", got)
	}

	empty, err := marshalSeeds(nil)
	if err != nil {
		t.Fatalf("marshalSeeds(nil) failed: %v", err)
	}
	if empty != "[]" {
		t.Errorf("marshalSeeds(nil) = %q, want []", empty)
	}

	back, err := unmarshalSeeds(got)
	if err != nil {
		t.Fatalf("unmarshalSeeds() failed: %v", err)
	}
	if !slices.Equal(back, []ir.AgentID{0, 1, 12}) {
		t.Errorf("unmarshalSeeds() = %v", back)
	}

	if _, err := unmarshalSeeds("{"); err == nil {
		t.Error("unmarshalSeeds() accepted invalid JSON")
	}
}
