package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/contagion/internal/harness"
)

// ExperimentOptions holds flags for the experiment command.
type ExperimentOptions struct {
	*RootOptions
	Params   ParamsFlags
	Parallel int
	CSVDir   string
}

// NewExperimentCommand creates the experiment command.
func NewExperimentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExperimentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Measure which seeds caused which infections",
		Long: `Run a baseline simulation and, for every initially infected agent, two
counterfactuals without it:

  wo<id>             the plain counterfactual
  intervened_wo<id>  the counterfactual held to the baseline's infections

The causal relation of a variant lists the agents infected at the end of
the baseline but not at the end of the variant.

Examples:
  contagion experiment
  contagion experiment --seed 2 --parallel 4
  contagion experiment --csv-dir ./traces --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperimentCommand(opts, cmd)
		},
	}

	addParamsFlags(cmd, &opts.Params)
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of variants run at once")
	cmd.Flags().StringVar(&opts.CSVDir, "csv-dir", "", "write every run's trace as <dir>/<run>.csv")

	return cmd
}

func runExperimentCommand(opts *ExperimentOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	p, xerr := opts.Params.resolve(cmd)
	if xerr != nil {
		return f.Fail(CodeConfiguration, xerr)
	}

	exp, err := harness.NewExperiment(p,
		harness.WithLogger(slog.Default()),
		harness.WithParallelism(opts.Parallel),
	)
	if err != nil {
		return f.Fail(CodeConfiguration, modelExitError("invalid experiment", err))
	}

	res, err := exp.Run(cmd.Context())
	if err != nil {
		return f.Fail(CodeRun, modelExitError("experiment failed", err))
	}

	if opts.CSVDir != "" {
		if err := writeExperimentCSVs(opts.CSVDir, res); err != nil {
			return f.Fail(CodeIO, WrapExitError(ExitCommandError, "failed to write CSV", err))
		}
		f.VerboseLog("wrote %d traces to %s", len(res.Variants)+1, opts.CSVDir)
	}

	return f.Render(res, func(w io.Writer) error {
		return writeExperimentText(w, res)
	})
}

func writeExperimentText(w io.Writer, res *harness.ExperimentResult) error {
	fmt.Fprintf(w, "Experiment %s\n", res.ID)
	fmt.Fprintf(w, "  %-20s final infected %v\n", res.Baseline.Name, res.Baseline.FinalInfected)
	for _, v := range res.Variants {
		fmt.Fprintf(w, "  %-20s final infected %v  causal relation %v\n",
			v.Name, v.FinalInfected, res.CausalRelation[v.Name])
	}
	fmt.Fprintf(w, "Digest: %s\n", res.Digest)
	return nil
}

func writeExperimentCSVs(dir string, res *harness.ExperimentResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, r := range append([]*harness.RunResult{res.Baseline}, res.Variants...) {
		if err := writeTraceCSV(filepath.Join(dir, r.Name+".csv"), r.Trace); err != nil {
			return err
		}
	}
	return nil
}
