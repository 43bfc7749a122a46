package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/contagion/internal/ir"
)

// marshalSeeds serializes a seed set to canonical JSON.
func marshalSeeds(seeds []ir.AgentID) (string, error) {
	if seeds == nil {
		seeds = []ir.AgentID{}
	}
	data, err := ir.MarshalCanonical(seeds)
	if err != nil {
		return "", fmt.Errorf("marshal seeds: %w", err)
	}
	return string(data), nil
}

// unmarshalSeeds parses a seed set written by marshalSeeds.
func unmarshalSeeds(s string) ([]ir.AgentID, error) {
	var ids []ir.AgentID
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal seeds: %w", err)
	}
	return ids, nil
}
