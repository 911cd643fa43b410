package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, opts *RootOptions, path string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidScenario(t *testing.T) {
	for _, path := range []string{twoThreadsScenario, "../harness/testdata/scenarios/two_threads.cue"} {
		t.Run(path, func(t *testing.T) {
			out, err := runValidateCmd(t, &RootOptions{Format: "text"}, path)
			require.NoError(t, err)
			assert.Contains(t, out, "✓ two-threads is valid: 2 threads, 6 events, 20 expected interleavings")
		})
	}
}

func TestValidateValidScenarioJSON(t *testing.T) {
	out, err := runValidateCmd(t, &RootOptions{Format: "json"}, replayScenario)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "replay", resp.Data.Name)
	assert.Equal(t, 2, resp.Data.Threads)
	assert.Equal(t, "B1|A1|A2|B2|A3|B3", resp.Data.Repro)
}

func TestValidateBracketedCountsPairs(t *testing.T) {
	out, err := runValidateCmd(t, &RootOptions{Format: "text"}, bracketedScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "2 expected interleavings")
}

func TestValidateInvalidScenario(t *testing.T) {
	out, err := runValidateCmd(t, &RootOptions{Format: "text"}, unknownFieldYAML)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E101]")
}

func TestValidateInvalidScenarioJSON(t *testing.T) {
	path := writeScenario(t, `
name: duplicate
threads:
  - name: A
    events: [X]
  - name: B
    events: [X]
`)

	out, err := runValidateCmd(t, &RootOptions{Format: "json"}, path)
	require.Error(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidScenario, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "already reported by thread A")
}

func TestValidateVerboseOutput(t *testing.T) {
	errBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{twoThreadsScenario})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Loading "+twoThreadsScenario)
}
