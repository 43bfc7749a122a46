package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Tick  int // -1 for no tick listing
	Agent int // -1 for all agents
}

// TraceSummary describes a trace CSV.
type TraceSummary struct {
	Ticks         int          `json:"ticks"`
	Agents        int          `json:"agents"`
	FinalInfected []ir.AgentID `json:"final_infected"`
	Infections    int          `json:"infections"`
	Recoveries    int          `json:"recoveries"`
	Digest        string       `json:"digest"`
	Rows          []trace.Row  `json:"rows,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <file.csv>",
		Short: "Inspect a trace CSV",
		Long: `Read a trace written by run --csv or experiment --csv-dir and print a
summary. With --tick, also list the entries recorded at that tick; with
--agent, only that agent's rows.

Examples:
  contagion trace baseline.csv
  contagion trace baseline.csv --tick 4
  contagion trace baseline.csv --agent 3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Tick, "tick", -1, "list the entries of this tick")
	cmd.Flags().IntVar(&opts.Agent, "agent", -1, "list the rows of this agent")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	tr, err := readTraceCSV(path)
	if err != nil {
		return f.Fail(CodeIO, WrapExitError(ExitCommandError, "failed to read trace", err))
	}

	digest, err := tr.Digest()
	if err != nil {
		return f.Fail(CodeRun, WrapExitError(ExitFailure, "failed to digest trace", err))
	}

	final := tr.FinalInfected()
	if final == nil {
		final = []ir.AgentID{}
	}
	summary := TraceSummary{
		Ticks:         tr.Ticks(),
		Agents:        tr.NumAgents(),
		FinalInfected: final,
		Infections:    tr.CountEvents(ir.Infect),
		Recoveries:    tr.CountEvents(ir.Recover),
		Digest:        digest,
	}

	if opts.Tick >= tr.Ticks() {
		return f.Fail(CodeIO, NewExitError(ExitCommandError,
			fmt.Sprintf("tick %d out of range (trace has %d ticks)", opts.Tick, tr.Ticks())))
	}
	if opts.Agent >= tr.NumAgents() {
		return f.Fail(CodeIO, NewExitError(ExitCommandError,
			fmt.Sprintf("agent %d out of range (trace has %d agents)", opts.Agent, tr.NumAgents())))
	}
	if opts.Tick >= 0 || opts.Agent >= 0 {
		for _, r := range tr.Rows() {
			if opts.Tick >= 0 && r.Tick != opts.Tick {
				continue
			}
			if opts.Agent >= 0 && int(r.Agent) != opts.Agent {
				continue
			}
			summary.Rows = append(summary.Rows, r)
		}
	}

	return f.Render(summary, func(w io.Writer) error {
		fmt.Fprintf(w, "Ticks:          %d\n", summary.Ticks)
		fmt.Fprintf(w, "Agents:         %d\n", summary.Agents)
		fmt.Fprintf(w, "Final infected: %v\n", summary.FinalInfected)
		fmt.Fprintf(w, "Infections:     %d\n", summary.Infections)
		fmt.Fprintf(w, "Recoveries:     %d\n", summary.Recoveries)
		fmt.Fprintf(w, "Digest:         %s\n", summary.Digest)
		if len(summary.Rows) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%6s %6s %-9s %-8s %s\n", "TICK", "AGENT", "STATE", "EVENT", "CAUSE")
			for _, r := range summary.Rows {
				fmt.Fprintf(w, "%6d %6d %-9s %-8s %s\n", r.Tick, r.Agent, r.State, r.Event, r.Cause)
			}
		}
		return nil
	})
}

func readTraceCSV(path string) (*trace.Trace, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return trace.ReadCSV(file)
}
