package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/topology"
	"github.com/roach88/contagion/internal/trace"
)

// DefaultSeed seeds models constructed without WithSeed or WithRand.
const DefaultSeed uint64 = 1

// Params are the simulation parameters of one run.
type Params struct {
	NumAgents          int
	InitiallyInfected  []ir.AgentID
	InfectProbability  float64
	RecoverProbability float64
}

// Model owns the population, its topology, the scheduler and the trace of
// one run.
type Model struct {
	numAgents          int
	initiallyInfected  []ir.AgentID
	infectProbability  float64
	recoverProbability float64

	topology     topology.Topology
	agents       []*agent // indexed by id
	scheduler    *RandomSingleActivation
	intervention Intervention
	trace        *trace.Trace
	clock        *Clock
	rng          *rand.Rand
	logger       *slog.Logger

	err error // sticky: set by the first failed tick
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithTopology replaces the default complete graph. The topology must have
// exactly NumAgents nodes.
func WithTopology(t topology.Topology) ModelOption {
	return func(m *Model) {
		m.topology = t
	}
}

// WithIntervention installs an intervention consulted after every
// activation. Without one, no intervention pass runs.
func WithIntervention(i Intervention) ModelOption {
	return func(m *Model) {
		m.intervention = i
	}
}

// WithSeed seeds the model's private PCG generator.
func WithSeed(seed uint64) ModelOption {
	return func(m *Model) {
		m.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithRand hands the model an existing generator. The model becomes its
// only user.
func WithRand(r *rand.Rand) ModelOption {
	return func(m *Model) {
		m.rng = r
	}
}

// WithLogger sets the logger for per-event debug records.
// Default: slog.Default().
func WithLogger(l *slog.Logger) ModelOption {
	return func(m *Model) {
		m.logger = l
	}
}

// NewModel validates p, builds the population and seeds the initial
// infections. All validation failures are configuration errors and are
// reported before any tick runs.
func NewModel(p Params, opts ...ModelOption) (*Model, error) {
	m := &Model{
		numAgents:          p.NumAgents,
		infectProbability:  p.InfectProbability,
		recoverProbability: p.RecoverProbability,
		scheduler:          &RandomSingleActivation{},
		clock:              NewClock(),
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := validateParams(p); err != nil {
		return nil, err
	}
	if m.topology == nil {
		m.topology = topology.Complete(p.NumAgents)
	}
	if m.topology.Size() != p.NumAgents {
		return nil, NewConfigurationError("topology has %d nodes, want %d", m.topology.Size(), p.NumAgents)
	}
	if err := topology.Validate(m.topology); err != nil {
		return nil, NewConfigurationError("topology: %v", err)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(DefaultSeed, DefaultSeed))
	}

	m.initiallyInfected = slices.Clone(p.InitiallyInfected)
	slices.Sort(m.initiallyInfected)
	m.initiallyInfected = slices.Compact(m.initiallyInfected)

	m.agents = make([]*agent, p.NumAgents)
	for i := range m.agents {
		m.agents[i] = newAgent(ir.AgentID(i), m)
	}
	for _, id := range m.initiallyInfected {
		m.agents[id].infect(-1, ir.NoCause)
	}
	m.trace = trace.New(p.NumAgents)

	return m, nil
}

func validateParams(p Params) error {
	if p.NumAgents <= 0 {
		return NewConfigurationError("num_agents must be positive, got %d", p.NumAgents)
	}
	for _, id := range p.InitiallyInfected {
		if id < 0 || int(id) >= p.NumAgents {
			return NewConfigurationError("initially infected agent %d outside [0, %d)", id, p.NumAgents)
		}
	}
	if !validProbability(p.InfectProbability) {
		return NewConfigurationError("infect_probability %v outside [0, 1]", p.InfectProbability)
	}
	if !validProbability(p.RecoverProbability) {
		return NewConfigurationError("recover_probability %v outside [0, 1]", p.RecoverProbability)
	}
	return nil
}

func validProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// Step runs one tick: event reset, one activation, the intervention pass,
// trace capture. On success the trace holds one entry per agent for the
// tick and Tick has advanced by one.
//
// On failure nothing is recorded for the tick and the model is aborted:
// this and every later call return the same error.
func (m *Model) Step() error {
	if m.err != nil {
		return m.err
	}
	tick := m.clock.Current()

	for _, a := range m.agents {
		a.resetEvent()
	}

	if err := m.scheduler.Step(m, tick); err != nil {
		return m.fail(fmt.Errorf("tick %d: %w", tick, err))
	}

	if m.intervention != nil {
		m.intervention.Apply(m, tick)
	}

	entries := make([]trace.Entry, len(m.agents))
	for i, a := range m.agents {
		entries[i] = a.entry()
	}
	if err := m.trace.Record(tick, entries); err != nil {
		return m.fail(fmt.Errorf("record: %w", err))
	}

	m.clock.Advance()
	return nil
}

func (m *Model) fail(err error) error {
	m.err = err
	m.logger.Error("simulation aborted", "tick", m.clock.Current(), "error", err)
	return err
}

// Run steps the model ticks times, checking ctx between ticks. A tick in
// progress is never interrupted.
func (m *Model) Run(ctx context.Context, ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Revert forces agent id to recover during the current tick: its state
// becomes healthy, its event RECOVER and its cause NoCause. Interventions
// call it from Apply.
func (m *Model) Revert(id ir.AgentID) error {
	if id < 0 || int(id) >= len(m.agents) {
		return fmt.Errorf("revert: unknown agent %d", id)
	}
	m.agents[id].recover(m.clock.Current())
	return nil
}

// Tick returns the number of committed ticks.
func (m *Model) Tick() int { return m.clock.Current() }

// NumAgents returns the population size.
func (m *Model) NumAgents() int { return m.numAgents }

// InitiallyInfected returns the seed set, ascending and without duplicates.
func (m *Model) InitiallyInfected() []ir.AgentID { return slices.Clone(m.initiallyInfected) }

// Agents returns a snapshot of every agent, ascending by id.
func (m *Model) Agents() []AgentState {
	out := make([]AgentState, len(m.agents))
	for i, a := range m.agents {
		out[i] = a.snapshot()
	}
	return out
}

// Agent returns a snapshot of agent id.
func (m *Model) Agent(id ir.AgentID) (AgentState, bool) {
	if id < 0 || int(id) >= len(m.agents) {
		return AgentState{}, false
	}
	return m.agents[id].snapshot(), true
}

// Trace returns the run's trace. It must not be written by the caller.
func (m *Model) Trace() *trace.Trace { return m.trace }

// Topology returns the model's contact graph.
func (m *Model) Topology() topology.Topology { return m.topology }

// Scheduler returns the model's scheduler.
func (m *Model) Scheduler() *RandomSingleActivation { return m.scheduler }

// Logger returns the model's logger.
func (m *Model) Logger() *slog.Logger { return m.logger }

// Err returns the error that aborted the run, or nil.
func (m *Model) Err() error { return m.err }
