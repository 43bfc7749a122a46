// Command contagion runs the contagion model and its causal experiments.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/contagion/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
