package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/racerepro/internal/store"
)

func runHistoryCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedJournal records one failed exploration with two iterations.
func seedJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.CreateRun(ctx, store.Run{
		ID:       "run-0001",
		Scenario: "two-threads",
		Mode:     store.ModeExplore,
	}))
	require.NoError(t, st.WriteIteration(ctx, store.Iteration{
		RunID:      "run-0001",
		Seq:        1,
		Sequence:   "A1|A2|A3|B1|B2|B3",
		Registered: 6,
		Leaves:     1,
		More:       true,
	}))
	require.NoError(t, st.WriteIteration(ctx, store.Iteration{
		RunID:            "run-0001",
		Seq:              2,
		SequenceToFollow: "A1|A2",
		Sequence:         "A1|A2|B1",
		Registered:       3,
		Leaves:           1,
		More:             true,
		Error:            "LIVENESS_VIOLATION: event never registered (event=A3, iteration=2)",
	}))
	require.NoError(t, st.FinishRun(ctx, store.Run{
		ID:         "run-0001",
		Status:     store.StatusFailed,
		Iterations: 2,
		Leaves:     1,
		Error:      "liveness",
	}, []string{"A1|A2|A3|B1|B2|B3"}))

	return dbPath
}

func TestHistoryMissingDatabaseFlag(t *testing.T) {
	_, err := runHistoryCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestHistoryNonexistentDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	out, err := runHistoryCmd(t, "text", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "journal not found")
	assert.NoFileExists(t, dbPath)
}

func TestHistoryEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runHistoryCmd(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestHistoryListRuns(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := runHistoryCmd(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-0001")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "two-threads")
}

func TestHistoryRunDetail(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := runHistoryCmd(t, "text", "--db", dbPath, "--run", "run-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-0001")
	assert.Contains(t, out, "Status: failed")
	assert.Contains(t, out, "[1] ok  A1|A2|A3|B1|B2|B3")
	assert.Contains(t, out, "[2] FAILED  A1|A2|B1")
	assert.Contains(t, out, `--repro "A1|A2|B1"`)
}

func TestHistoryRunDetailJSON(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := runHistoryCmd(t, "json", "--db", dbPath, "--run", "run-0001")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-0001", resp.Data.Run.ID)
	assert.Len(t, resp.Data.Iterations, 2)
	assert.Equal(t, []string{"A1|A2|A3|B1|B2|B3"}, resp.Data.Paths)
	assert.Equal(t, "A1|A2|B1", resp.Data.FailedRepro)
	assert.Equal(t, 2, resp.Data.FailedAtIndex)
}

func TestHistoryUnknownRun(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := runHistoryCmd(t, "text", "--db", dbPath, "--run", "run-9999")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run not found: run-9999")
}
