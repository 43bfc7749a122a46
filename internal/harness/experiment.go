package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/contagion/internal/config"
	"github.com/roach88/contagion/internal/engine"
	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/store"
	"github.com/roach88/contagion/internal/trace"
)

// BaselineName names the unmodified run of an experiment.
const BaselineName = "baseline"

// Variant is one counterfactual run: the baseline with one seed removed,
// optionally constrained to the baseline trace.
type Variant struct {
	Name       string       `json:"name"`
	Removed    ir.AgentID   `json:"removed"`
	Seeds      []ir.AgentID `json:"seeds"`
	Intervened bool         `json:"intervened"`
}

// VariantName returns the name of the variant removing id: "wo<id>", or
// "intervened_wo<id>" when trace-constrained.
func VariantName(id ir.AgentID, intervened bool) string {
	if intervened {
		return fmt.Sprintf("intervened_wo%d", id)
	}
	return fmt.Sprintf("wo%d", id)
}

// Variants lists the counterfactuals of seeds: every plain removal in seed
// order, then every trace-constrained removal in seed order.
func Variants(seeds []ir.AgentID) []Variant {
	seeds = uniqueSorted(seeds)
	out := make([]Variant, 0, 2*len(seeds))
	for _, intervened := range []bool{false, true} {
		for _, removed := range seeds {
			rest := slices.DeleteFunc(slices.Clone(seeds), func(id ir.AgentID) bool { return id == removed })
			out = append(out, Variant{
				Name:       VariantName(removed, intervened),
				Removed:    removed,
				Seeds:      rest,
				Intervened: intervened,
			})
		}
	}
	return out
}

// RunResult is the outcome of one run.
type RunResult struct {
	Name          string       `json:"name"`
	RunID         string       `json:"run_id"`
	Seeds         []ir.AgentID `json:"seeds"`
	Intervened    bool         `json:"intervened"`
	Ticks         int          `json:"ticks"`
	FinalInfected []ir.AgentID `json:"final_infected"`
	Digest        string       `json:"digest"`

	Trace *trace.Trace `json:"-"`
}

// CausalRelation maps a variant name to the agents infected at the end of
// the baseline but not at the end of the variant.
type CausalRelation map[string][]ir.AgentID

// ExperimentResult is the outcome of a baseline and all its variants.
type ExperimentResult struct {
	ID             string         `json:"id"`
	Params         config.Params  `json:"params"`
	Baseline       *RunResult     `json:"baseline"`
	Variants       []*RunResult   `json:"variants"`
	CausalRelation CausalRelation `json:"causal_relation"`
	Digest         string         `json:"digest"`
}

// Run returns the named run, baseline included.
func (r *ExperimentResult) Run(name string) (*RunResult, bool) {
	if r.Baseline != nil && r.Baseline.Name == name {
		return r.Baseline, true
	}
	for _, v := range r.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Experiment runs a baseline and its counterfactual variants with shared
// parameters and seed.
type Experiment struct {
	params      config.Params
	logger      *slog.Logger
	ids         RunIDGenerator
	parallelism int
	store       *store.Store
}

// ExperimentOption configures an Experiment.
type ExperimentOption func(*Experiment)

// WithLogger sets the logger handed to every run.
// Default: slog.Default().
func WithLogger(l *slog.Logger) ExperimentOption {
	return func(e *Experiment) {
		e.logger = l
	}
}

// WithRunIDs sets the identifier generator.
// Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) ExperimentOption {
	return func(e *Experiment) {
		e.ids = g
	}
}

// WithParallelism runs up to n variants at once. Results do not depend on
// n: every run owns its model and generator.
// Default: 1 (sequential).
func WithParallelism(n int) ExperimentOption {
	return func(e *Experiment) {
		e.parallelism = max(n, 1)
	}
}

// WithStore mirrors every run and the causal relation into st.
func WithStore(st *store.Store) ExperimentOption {
	return func(e *Experiment) {
		e.store = st
	}
}

// NewExperiment validates p and prepares an experiment.
func NewExperiment(p config.Params, opts ...ExperimentOption) (*Experiment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{
		params:      p,
		logger:      slog.Default(),
		ids:         UUIDv7Generator{},
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Variants returns the counterfactual runs the experiment will execute.
func (e *Experiment) Variants() []Variant {
	return Variants(e.params.Seeds())
}

// Run executes the baseline, then every variant, and computes the causal
// relation. Trace-constrained variants replay against the baseline trace.
func (e *Experiment) Run(ctx context.Context) (*ExperimentResult, error) {
	variants := e.Variants()

	// Identifiers are drawn up front so they do not depend on scheduling.
	expID := e.ids.Generate()
	baselineID := e.ids.Generate()
	variantIDs := make([]string, len(variants))
	for i := range variants {
		variantIDs[i] = e.ids.Generate()
	}

	logger := e.logger.With("experiment", expID)
	logger.Info("experiment starting",
		"agents", e.params.NumAgents,
		"seeds", e.params.Seeds(),
		"ticks", e.params.EffectiveTicks(),
		"seed", e.params.Seed,
		"variants", len(variants),
	)

	baseline, err := e.runOne(ctx, logger, BaselineName, baselineID, e.params.Seeds(), nil)
	if err != nil {
		return nil, err
	}

	results := make([]*RunResult, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, v := range variants {
		g.Go(func() error {
			var intervention engine.Intervention
			if v.Intervened {
				intervention = engine.NewTraceReplay(baseline.Trace)
			}
			res, err := e.runOne(gctx, logger, v.Name, variantIDs[i], v.Seeds, intervention)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rel := make(CausalRelation, len(results))
	for _, r := range results {
		rel[r.Name] = Diff(baseline.FinalInfected, r.FinalInfected)
	}

	result := &ExperimentResult{
		ID:             expID,
		Params:         e.params,
		Baseline:       baseline,
		Variants:       results,
		CausalRelation: rel,
	}
	result.Digest, err = experimentDigest(result)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := mirror(ctx, e.store, result); err != nil {
			return nil, err
		}
	}

	logger.Info("experiment complete", "causal_relation", rel, "digest", result.Digest)
	return result, nil
}

func (e *Experiment) runOne(
	ctx context.Context,
	logger *slog.Logger,
	name, id string,
	seeds []ir.AgentID,
	intervention engine.Intervention,
) (*RunResult, error) {
	p := e.params
	p.InitiallyInfected = make([]int, len(seeds))
	for i, s := range seeds {
		p.InitiallyInfected[i] = int(s)
	}

	runLogger := logger.With("run", name)
	tr, err := runModel(ctx, p, intervention, engine.WithLogger(runLogger))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	digest, err := tr.Digest()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	res := &RunResult{
		Name:          name,
		RunID:         id,
		Seeds:         slices.Clone(seeds),
		Intervened:    intervention != nil,
		Ticks:         tr.Ticks(),
		FinalInfected: nonNil(tr.FinalInfected()),
		Digest:        digest,
		Trace:         tr,
	}
	runLogger.Info("run complete", "final_infected", res.FinalInfected)
	return res, nil
}

// RunExperiment runs one simulation with p and returns its trace. The
// intervention may be nil. Every run of p uses p.Seed, so repeated calls
// return identical traces.
func RunExperiment(
	ctx context.Context,
	p config.Params,
	intervention engine.Intervention,
	opts ...engine.ModelOption,
) (*trace.Trace, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return runModel(ctx, p, intervention, opts...)
}

// runModel runs one simulation of already validated parameters.
func runModel(
	ctx context.Context,
	p config.Params,
	intervention engine.Intervention,
	opts ...engine.ModelOption,
) (*trace.Trace, error) {
	m, err := buildModel(p, intervention, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Run(ctx, p.EffectiveTicks()); err != nil {
		return nil, err
	}
	return m.Trace(), nil
}

// NewModel validates p and builds a model with its topology and seed.
// The intervention may be nil. opts are applied last.
func NewModel(p config.Params, intervention engine.Intervention, opts ...engine.ModelOption) (*engine.Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return buildModel(p, intervention, opts...)
}

func buildModel(p config.Params, intervention engine.Intervention, opts ...engine.ModelOption) (*engine.Model, error) {
	topo, err := p.BuildTopology()
	if err != nil {
		return nil, err
	}
	modelOpts := []engine.ModelOption{
		engine.WithTopology(topo),
		engine.WithSeed(p.Seed),
	}
	if intervention != nil {
		modelOpts = append(modelOpts, engine.WithIntervention(intervention))
	}
	modelOpts = append(modelOpts, opts...)

	return engine.NewModel(p.ModelParams(), modelOpts...)
}

// Diff returns the ids in baseline that are not in variant, ascending.
// The result is never nil.
func Diff(baseline, variant []ir.AgentID) []ir.AgentID {
	out := []ir.AgentID{}
	for _, id := range uniqueSorted(baseline) {
		if !slices.Contains(variant, id) {
			out = append(out, id)
		}
	}
	return out
}

func experimentDigest(r *ExperimentResult) (string, error) {
	runs := map[string]any{BaselineName: r.Baseline.Digest}
	rel := make(map[string]any, len(r.CausalRelation))
	for _, v := range r.Variants {
		runs[v.Name] = v.Digest
		rel[v.Name] = r.CausalRelation[v.Name]
	}
	return ir.Digest(ir.DomainExperiment, map[string]any{
		"runs":            runs,
		"causal_relation": rel,
	})
}

func mirror(ctx context.Context, st *store.Store, r *ExperimentResult) error {
	all := append([]*RunResult{r.Baseline}, r.Variants...)
	for i, run := range all {
		rec := store.Run{
			ID:           run.RunID,
			ExperimentID: r.ID,
			Name:         run.Name,
			Seeds:        run.Seeds,
			Intervened:   run.Intervened,
			NumAgents:    r.Params.NumAgents,
			Ticks:        run.Ticks,
			Digest:       run.Digest,
			Seq:          int64(i + 1),
		}
		if err := st.WriteRun(ctx, rec, run.Trace); err != nil {
			return err
		}
	}
	for _, v := range r.Variants {
		if err := st.WriteCausalRelation(ctx, r.ID, v.Name, r.CausalRelation[v.Name]); err != nil {
			return err
		}
	}
	return nil
}

// CheckMirror reads r back from st and reports every way the mirror
// differs from the in-memory result: missing runs, traces that do not
// round-trip, final infected sets or causal relations that disagree.
func CheckMirror(ctx context.Context, st *store.Store, r *ExperimentResult) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, "mirror: "+fmt.Sprintf(format, args...))
	}

	all := append([]*RunResult{r.Baseline}, r.Variants...)
	stored, err := st.Runs(ctx, r.ID)
	if err != nil {
		report("%v", err)
		return problems
	}
	if len(stored) != len(all) {
		report("%d runs stored, want %d", len(stored), len(all))
	}

	for _, want := range all {
		run, err := st.RunByName(ctx, r.ID, want.Name)
		if err != nil {
			report("%v", err)
			continue
		}
		if run.ID != want.RunID || run.Digest != want.Digest {
			report("run %s stored as %s digest %s, want %s digest %s",
				want.Name, run.ID, run.Digest, want.RunID, want.Digest)
		}
		tr, err := st.ReadTrace(ctx, run.ID)
		if err != nil {
			report("run %s: %v", want.Name, err)
			continue
		}
		if !tr.Equal(want.Trace) {
			report("run %s: trace does not round-trip", want.Name)
		}
		final, err := st.FinalInfected(ctx, run.ID)
		if err != nil {
			report("run %s: %v", want.Name, err)
			continue
		}
		if !slices.Equal(final, want.FinalInfected) {
			report("run %s: final infected %v, want %v", want.Name, final, want.FinalInfected)
		}
	}

	rel, err := st.CausalRelations(ctx, r.ID)
	if err != nil {
		report("%v", err)
		return problems
	}
	for _, v := range r.Variants {
		if got := nonNil(rel[v.Name]); !slices.Equal(got, r.CausalRelation[v.Name]) {
			report("causal relation %s = %v, want %v", v.Name, got, r.CausalRelation[v.Name])
		}
	}
	return problems
}

func uniqueSorted(ids []ir.AgentID) []ir.AgentID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func nonNil(ids []ir.AgentID) []ir.AgentID {
	if ids == nil {
		return []ir.AgentID{}
	}
	return ids
}
