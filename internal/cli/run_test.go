package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_Defaults(t *testing.T) {
	out, _, err := execute(t, NewRunCommand, "text")
	require.NoError(t, err)

	assert.Contains(t, out, "Ticks:          100")
	assert.Contains(t, out, "Final infected: [1 2 5 7 9]")
	assert.Contains(t, out, "Infections:     6")
	assert.Contains(t, out, "Recoveries:     3")
}

func TestRunCommand_JSON(t *testing.T) {
	out, _, err := execute(t, NewRunCommand, "json", "--seed", "2")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint64(2), resp.Data.Params.Seed)
	assert.Len(t, resp.Data.FinalInfected, 8)
	assert.Len(t, resp.Data.Digest, 64)
}

func TestRunCommand_WritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	_, _, err := execute(t, NewRunCommand, "text",
		"--agents", "2", "--seeds", "0", "--infect", "1", "--recover", "0",
		"--ticks", "3", "--scale-ticks=false", "--csv", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "tick,agent_id,state,event,cause", lines[0])
	assert.Equal(t, "0,1,INFECTED,INFECT,0", lines[2])
}

func TestRunCommand_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"probability above one", []string{"--infect", "1.5"}},
		{"seed out of range", []string{"--agents", "3", "--seeds", "5"}},
		{"unknown topology", []string{"--topology", "star"}},
		{"zero agents", []string{"--agents", "0"}},
		{"missing params file", []string{"--params", "/nonexistent/params.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewRunCommand, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E_CONFIG]")
		})
	}
}

func TestRunCommand_NoNeighbor(t *testing.T) {
	out, _, err := execute(t, NewRunCommand, "json", "--agents", "1", "--seeds", "0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"code":"E_RUN"`)
	assert.Contains(t, out, "NO_NEIGHBOR")
}

func TestRunCommand_RejectsArgs(t *testing.T) {
	_, _, err := execute(t, NewRunCommand, "text", "extra")
	require.Error(t, err)
}
