package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/contagion/internal/config"
)

// ParamsFlags are the simulation parameter flags shared by run,
// experiment, verify and serve.
//
// Precedence: flags, then environment, then the --params file, then
// defaults.
type ParamsFlags struct {
	File               string
	NumAgents          int
	InitiallyInfected  []int
	InfectProbability  float64
	RecoverProbability float64
	NumTicks           int
	ScaleTicks         bool
	Seed               uint64
	Topology           string

	// LookupEnv reads environment overrides. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func addParamsFlags(cmd *cobra.Command, f *ParamsFlags) {
	d := config.Default()
	fl := cmd.Flags()
	fl.StringVar(&f.File, "params", "", "parameter file (.yaml, .yml or .cue)")
	fl.IntVar(&f.NumAgents, "agents", d.NumAgents, "number of agents")
	fl.IntSliceVar(&f.InitiallyInfected, "seeds", d.InitiallyInfected, "initially infected agent ids")
	fl.Float64Var(&f.InfectProbability, "infect", d.InfectProbability, "infection probability per activation")
	fl.Float64Var(&f.RecoverProbability, "recover", d.RecoverProbability, "recovery probability per activation")
	fl.IntVar(&f.NumTicks, "ticks", d.NumTicks, "tick budget (per agent with --scale-ticks)")
	fl.BoolVar(&f.ScaleTicks, "scale-ticks", d.ScaleTicks, "multiply --ticks by the number of agents")
	fl.Uint64Var(&f.Seed, "seed", d.Seed, "random seed shared by every run")
	fl.StringVar(&f.Topology, "topology", d.Topology, "network topology (complete|ring)")
}

// resolve builds and validates the parameters.
func (f *ParamsFlags) resolve(cmd *cobra.Command) (config.Params, *ExitError) {
	p := config.Default()
	if f.File != "" {
		loaded, err := config.Load(f.File)
		if err != nil {
			return config.Params{}, WrapExitError(ExitCommandError, "failed to load parameters", err)
		}
		p = loaded
	}

	lookup := f.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := config.ApplyEnv(&p, lookup); err != nil {
		return config.Params{}, WrapExitError(ExitCommandError, "invalid environment", err)
	}

	fl := cmd.Flags()
	if fl.Changed("agents") {
		p.NumAgents = f.NumAgents
	}
	if fl.Changed("seeds") {
		p.InitiallyInfected = f.InitiallyInfected
	}
	if fl.Changed("infect") {
		p.InfectProbability = f.InfectProbability
	}
	if fl.Changed("recover") {
		p.RecoverProbability = f.RecoverProbability
	}
	if fl.Changed("ticks") {
		p.NumTicks = f.NumTicks
	}
	if fl.Changed("scale-ticks") {
		p.ScaleTicks = f.ScaleTicks
	}
	if fl.Changed("seed") {
		p.Seed = f.Seed
	}
	if fl.Changed("topology") {
		p.Topology = f.Topology
	}

	if err := p.Validate(); err != nil {
		return config.Params{}, WrapExitError(ExitCommandError, "invalid parameters", err)
	}
	return p, nil
}
