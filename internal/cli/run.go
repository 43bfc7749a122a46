package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/contagion/internal/config"
	"github.com/roach88/contagion/internal/engine"
	"github.com/roach88/contagion/internal/harness"
	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Params ParamsFlags
	CSV    string
}

// RunSummary is the outcome of one simulation.
type RunSummary struct {
	Params        config.Params `json:"params"`
	Ticks         int           `json:"ticks"`
	FinalInfected []ir.AgentID  `json:"final_infected"`
	Infections    int           `json:"infections"`
	Recoveries    int           `json:"recoveries"`
	Digest        string        `json:"digest"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		Long: `Run a single simulation with the given parameters and report the
final infected set.

Example:
  contagion run
  contagion run --agents 20 --seeds 0,5 --seed 7 --csv trace.csv
  contagion run --params params.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	addParamsFlags(cmd, &opts.Params)
	cmd.Flags().StringVar(&opts.CSV, "csv", "", "write the trace as CSV to this file")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	p, xerr := opts.Params.resolve(cmd)
	if xerr != nil {
		return f.Fail(CodeConfiguration, xerr)
	}

	slog.Info("simulation starting", "agents", p.NumAgents, "ticks", p.EffectiveTicks(), "seed", p.Seed)
	tr, err := harness.RunExperiment(cmd.Context(), p, nil, engine.WithLogger(slog.Default()))
	if err != nil {
		return f.Fail(CodeRun, modelExitError("simulation failed", err))
	}

	if opts.CSV != "" {
		if err := writeTraceCSV(opts.CSV, tr); err != nil {
			return f.Fail(CodeIO, WrapExitError(ExitCommandError, "failed to write CSV", err))
		}
		f.VerboseLog("wrote %s", opts.CSV)
	}

	summary, err := summarize(p, tr)
	if err != nil {
		return f.Fail(CodeRun, WrapExitError(ExitFailure, "failed to digest trace", err))
	}

	return f.Render(summary, func(w io.Writer) error {
		fmt.Fprintf(w, "Ticks:          %d\n", summary.Ticks)
		fmt.Fprintf(w, "Final infected: %v\n", summary.FinalInfected)
		fmt.Fprintf(w, "Infections:     %d\n", summary.Infections)
		fmt.Fprintf(w, "Recoveries:     %d\n", summary.Recoveries)
		fmt.Fprintf(w, "Digest:         %s\n", summary.Digest)
		return nil
	})
}

func summarize(p config.Params, tr *trace.Trace) (RunSummary, error) {
	digest, err := tr.Digest()
	if err != nil {
		return RunSummary{}, err
	}
	final := tr.FinalInfected()
	if final == nil {
		final = []ir.AgentID{}
	}
	return RunSummary{
		Params:        p,
		Ticks:         tr.Ticks(),
		FinalInfected: final,
		Infections:    tr.CountEvents(ir.Infect),
		Recoveries:    tr.CountEvents(ir.Recover),
		Digest:        digest,
	}, nil
}

func writeTraceCSV(path string, tr *trace.Trace) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return tr.WriteCSV(file)
}
