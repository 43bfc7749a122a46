package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/contagion/internal/viz"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Params ParamsFlags
	Addr   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live network view",
		Long: `Serve one model over HTTP for interactive stepping.

Endpoints:
  GET  /api/network  current nodes and edges
  POST /api/step     advance (?n=ticks, default 1)
  POST /api/reset    rebuild from the parameters
  GET  /api/params   the parameters
  GET  /ws           stream of views after every change

Example:
  contagion serve --addr :8521 --agents 30 --topology ring`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	addParamsFlags(cmd, &opts.Params)
	cmd.Flags().StringVar(&opts.Addr, "addr", ":8521", "listen address")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	p, xerr := opts.Params.resolve(cmd)
	if xerr != nil {
		return f.Fail(CodeConfiguration, xerr)
	}

	srv, err := viz.NewServer(p, viz.WithLogger(slog.Default()))
	if err != nil {
		return f.Fail(CodeConfiguration, modelExitError("failed to build model", err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(opts.Addr)
	}()

	f.VerboseLog("serving on %s", opts.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			return f.Fail(CodeIO, WrapExitError(ExitCommandError, "server error", err))
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down viz server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	return nil
}
