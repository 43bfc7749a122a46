package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/contagion/internal/engine"
	"github.com/roach88/contagion/internal/harness"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Params ParamsFlags
	Runs   int
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that repeated runs are identical",
		Long: `Run the same parameters several times and compare trace digests.

Exit codes:
  0 - All runs produced the same trace
  1 - Traces differ
  2 - Command error (invalid parameters, etc.)

Examples:
  contagion verify
  contagion verify --runs 5 --seed 42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	addParamsFlags(cmd, &opts.Params)
	cmd.Flags().IntVar(&opts.Runs, "runs", 2, "number of runs to compare (at least 2)")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	p, xerr := opts.Params.resolve(cmd)
	if xerr != nil {
		return f.Fail(CodeConfiguration, xerr)
	}

	res, err := harness.Verify(cmd.Context(), p, opts.Runs, engine.WithLogger(slog.Default()))
	if err != nil {
		return f.Fail(CodeRun, modelExitError("verification failed", err))
	}

	if !res.Match {
		return f.Fail(CodeNonDeterministic, NewExitError(ExitFailure,
			fmt.Sprintf("%d runs produced different traces: %v", res.Runs, res.Digests)))
	}

	return f.Render(res, func(w io.Writer) error {
		fmt.Fprintf(w, "✓ %d runs produced identical traces\n", res.Runs)
		fmt.Fprintf(w, "Digest: %s\n", res.Digests[0])
		return nil
	})
}
