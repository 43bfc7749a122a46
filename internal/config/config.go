// Package config loads and validates simulation parameters.
//
// Parameters start from the defaults of the reference experiment, are
// overlaid by a YAML or CUE file, then by CONTAGION_* environment
// variables, then by command-line flags. Every source is checked against
// the embedded CUE schema before a model is built.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/contagion/internal/engine"
	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/topology"
)

//go:embed schema.cue
var schemaSource string

// Environment variables read by ApplyEnv.
const (
	EnvSeed  = "CONTAGION_SEED"
	EnvTicks = "CONTAGION_TICKS"
)

// Params are the parameters of one experiment.
type Params struct {
	NumAgents          int     `yaml:"num_agents" json:"num_agents"`
	InitiallyInfected  []int   `yaml:"initially_infected" json:"initially_infected"`
	InfectProbability  float64 `yaml:"infect_probability" json:"infect_probability"`
	RecoverProbability float64 `yaml:"recover_probability" json:"recover_probability"`

	// NumTicks is the tick budget per run. With ScaleTicks it is
	// multiplied by NumAgents, since only one agent acts per tick.
	NumTicks   int  `yaml:"num_ticks" json:"num_ticks"`
	ScaleTicks bool `yaml:"scale_ticks" json:"scale_ticks"`

	// Seed is shared by every run of an experiment.
	Seed     uint64 `yaml:"seed" json:"seed"`
	Topology string `yaml:"topology" json:"topology"`
}

// Default returns the parameters of the reference experiment: ten agents
// on a complete graph, agents 0 and 1 seeded, ten ticks per agent.
func Default() Params {
	return Params{
		NumAgents:          10,
		InitiallyInfected:  []int{0, 1},
		InfectProbability:  0.5,
		RecoverProbability: 0.05,
		NumTicks:           10,
		ScaleTicks:         true,
		Seed:               engine.DefaultSeed,
		Topology:           string(topology.KindComplete),
	}
}

// EffectiveTicks returns the number of ticks each run executes.
func (p Params) EffectiveTicks() int {
	if p.ScaleTicks {
		return p.NumTicks * p.NumAgents
	}
	return p.NumTicks
}

// Seeds returns the initially infected ids.
func (p Params) Seeds() []ir.AgentID {
	out := make([]ir.AgentID, len(p.InitiallyInfected))
	for i, id := range p.InitiallyInfected {
		out[i] = ir.AgentID(id)
	}
	return out
}

// ModelParams converts p to engine parameters.
func (p Params) ModelParams() engine.Params {
	return engine.Params{
		NumAgents:          p.NumAgents,
		InitiallyInfected:  p.Seeds(),
		InfectProbability:  p.InfectProbability,
		RecoverProbability: p.RecoverProbability,
	}
}

// BuildTopology constructs the configured topology.
func (p Params) BuildTopology() (topology.Topology, error) {
	kind, err := topology.ParseKind(p.Topology)
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}
	g, err := topology.Build(kind, p.NumAgents)
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}
	return g, nil
}

// Validate checks p against the CUE schema. Failures are engine
// configuration errors.
func (p Params) Validate() error {
	if math.IsNaN(p.InfectProbability) || math.IsNaN(p.RecoverProbability) {
		return engine.NewConfigurationError("probabilities must be numbers")
	}
	s, err := loadSchema()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.ctx.Encode(p.cueFields())
	if err := v.Err(); err != nil {
		return engine.NewConfigurationError("encode params: %v", err)
	}
	if err := s.params.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return engine.NewConfigurationError("%s", cueMessage(err))
	}
	return nil
}

// cueFields mirrors p as a plain map so empty slices encode as lists,
// not null.
func (p Params) cueFields() map[string]any {
	seeds := make([]int, len(p.InitiallyInfected))
	copy(seeds, p.InitiallyInfected)
	return map[string]any{
		"num_agents":          p.NumAgents,
		"initially_infected":  seeds,
		"infect_probability":  p.InfectProbability,
		"recover_probability": p.RecoverProbability,
		"num_ticks":           p.NumTicks,
		"scale_ticks":         p.ScaleTicks,
		"seed":                p.Seed,
		"topology":            p.Topology,
	}
}

// Load reads a parameter file over the defaults. Files ending in .cue
// are evaluated as CUE; anything else is parsed as YAML.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read params file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	return ParseYAML(data)
}

// ParseYAML decodes YAML parameters over the defaults. Unknown fields are
// rejected.
func ParseYAML(data []byte) (Params, error) {
	p := Default()
	if err := decodeStrict(data, &p); err != nil {
		return Params{}, err
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// ParseCUE evaluates CUE parameters, checks them against the schema and
// overlays them on the defaults.
func ParseCUE(data []byte, filename string) (Params, error) {
	s, err := loadSchema()
	if err != nil {
		return Params{}, err
	}
	s.mu.Lock()
	v := s.ctx.CompileBytes(data, cue.Filename(filename))
	js, err := exportCUE(s, v)
	s.mu.Unlock()
	if err != nil {
		return Params{}, err
	}
	// JSON is YAML: reuse the strict decoder.
	return ParseYAML(js)
}

func exportCUE(s *schema, v cue.Value) ([]byte, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %s", cueMessage(err))
	}
	v = s.file.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, engine.NewConfigurationError("%s", cueMessage(err))
	}
	js, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}
	return js, nil
}

func decodeStrict(data []byte, p *Params) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides seed and tick budget from the environment. lookup is
// usually os.LookupEnv.
func ApplyEnv(p *Params, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSeed); ok && v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return engine.NewConfigurationError("%s: %v", EnvSeed, err)
		}
		p.Seed = seed
	}
	if v, ok := lookup(EnvTicks); ok && v != "" {
		ticks, err := strconv.Atoi(v)
		if err != nil {
			return engine.NewConfigurationError("%s: %v", EnvTicks, err)
		}
		p.NumTicks = ticks
	}
	return nil
}

type schema struct {
	mu     sync.Mutex // guards ctx; CUE contexts are not safe for concurrent use
	ctx    *cue.Context
	file   cue.Value
	params cue.Value
}

// loadSchema returns the embedded schema, compiled on first use.
var loadSchema = sync.OnceValues(compileSchema)

func compileSchema() (*schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &schema{
		ctx:    ctx,
		file:   v.LookupPath(cue.ParsePath("#File")),
		params: v.LookupPath(cue.ParsePath("#Params")),
	}, nil
}

// cueMessage flattens a CUE error list into one line.
func cueMessage(err error) string {
	return strings.ReplaceAll(strings.TrimSpace(err.Error()), "\n", "; ")
}
