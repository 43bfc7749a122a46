package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contagion/internal/config"
)

func resolveWith(t *testing.T, env map[string]string, args ...string) (config.Params, *ExitError) {
	t.Helper()
	f := &ParamsFlags{
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}
	cmd := &cobra.Command{Use: "x"}
	addParamsFlags(cmd, f)
	require.NoError(t, cmd.ParseFlags(args))
	return f.resolve(cmd)
}

func TestResolve_Defaults(t *testing.T) {
	p, err := resolveWith(t, nil)
	require.Nil(t, err)
	assert.Equal(t, config.Default(), p)
}

func TestResolve_FlagsOverride(t *testing.T) {
	p, err := resolveWith(t, nil, "--agents", "20", "--seeds", "3,4", "--topology", "ring", "--scale-ticks=false")
	require.Nil(t, err)
	assert.Equal(t, 20, p.NumAgents)
	assert.Equal(t, []int{3, 4}, p.InitiallyInfected)
	assert.Equal(t, "ring", p.Topology)
	assert.False(t, p.ScaleTicks)
	assert.Equal(t, 0.5, p.InfectProbability)
}

func TestResolve_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 5\nnum_ticks: 3\nnum_agents: 4\n"), 0644))

	env := map[string]string{config.EnvSeed: "6"}

	p, err := resolveWith(t, env, "--params", path)
	require.Nil(t, err)
	assert.Equal(t, uint64(6), p.Seed, "environment overrides file")
	assert.Equal(t, 3, p.NumTicks)
	assert.Equal(t, 4, p.NumAgents)

	p, err = resolveWith(t, env, "--params", path, "--seed", "7")
	require.Nil(t, err)
	assert.Equal(t, uint64(7), p.Seed, "flag overrides environment")
}

func TestResolve_BadEnvironment(t *testing.T) {
	_, err := resolveWith(t, map[string]string{config.EnvTicks: "many"})
	require.NotNil(t, err)
	assert.Equal(t, ExitCommandError, err.Code)
}
