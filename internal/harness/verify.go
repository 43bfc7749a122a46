package harness

import (
	"context"
	"fmt"

	"github.com/roach88/contagion/internal/config"
	"github.com/roach88/contagion/internal/engine"
)

// VerifyResult reports whether repeated runs of the same parameters
// produced identical traces.
type VerifyResult struct {
	Runs    int      `json:"runs"`
	Digests []string `json:"digests"`
	Match   bool     `json:"match"`
}

// Verify runs p repeatedly (at least twice) and compares trace digests.
// A mismatch means something outside the model's generator influenced
// the run.
func Verify(ctx context.Context, p config.Params, runs int, opts ...engine.ModelOption) (*VerifyResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	runs = max(runs, 2)
	res := &VerifyResult{Runs: runs, Match: true}
	for i := 0; i < runs; i++ {
		tr, err := runModel(ctx, p, nil, opts...)
		if err != nil {
			return nil, fmt.Errorf("verify run %d: %w", i+1, err)
		}
		digest, err := tr.Digest()
		if err != nil {
			return nil, fmt.Errorf("verify run %d: %w", i+1, err)
		}
		if i > 0 && digest != res.Digests[0] {
			res.Match = false
		}
		res.Digests = append(res.Digests, digest)
	}
	return res, nil
}
