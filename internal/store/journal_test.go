package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_RoundTripsRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-0001")
	require.NoError(t, s.CreateRun(ctx, run))

	iterations := []Iteration{
		{RunID: run.ID, Seq: 1, Sequence: "A1|B1", Registered: 2, Leaves: 1, More: true},
		{RunID: run.ID, Seq: 2, Sequence: "B1|A1", Registered: 2, Leaves: 2, More: true},
		{RunID: run.ID, Seq: 3, Sequence: "B1|A1", Registered: 2, Leaves: 2, More: false},
	}
	for _, it := range iterations {
		require.NoError(t, s.WriteIteration(ctx, it))
	}

	run.Status = StatusConverged
	run.Iterations = 3
	run.Leaves = 2
	require.NoError(t, s.FinishRun(ctx, run, []string{"A1|B1", "B1|A1"}))

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	gotIterations, err := s.ReadIterations(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, iterations, gotIterations)

	paths, err := s.ReadPaths(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1|B1", "B1|A1"}, paths)
}

func TestJournal_CreateRunDefaultsToRunning(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, createTestRun("run-0001")))

	got, err := s.ReadRun(ctx, "run-0001")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestJournal_IdempotentWrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun("run-0001")

	require.NoError(t, s.CreateRun(ctx, run))
	require.NoError(t, s.CreateRun(ctx, run))

	it := Iteration{RunID: run.ID, Seq: 1, Sequence: "A1"}
	require.NoError(t, s.WriteIteration(ctx, it))
	require.NoError(t, s.WriteIteration(ctx, it))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	iterations, err := s.ReadIterations(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, iterations, 1)
}

func TestJournal_IterationRequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteIteration(context.Background(), Iteration{RunID: "missing", Seq: 1})
	assert.Error(t, err)
}

func TestJournal_ReadRunNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestJournal_FinishUnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), createTestRun("missing"), nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestJournal_ListRunsOrderedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"run-0002", "run-0001", "run-0003"} {
		require.NoError(t, s.CreateRun(ctx, createTestRun(id)))
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-0001", runs[0].ID)
	assert.Equal(t, "run-0002", runs[1].ID)
	assert.Equal(t, "run-0003", runs[2].ID)
}

func TestJournal_LatestFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun("run-0001")
	require.NoError(t, s.CreateRun(ctx, run))

	_, ok, err := s.LatestFailure(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteIteration(ctx, Iteration{RunID: run.ID, Seq: 1, Sequence: "A1|B1"}))
	require.NoError(t, s.WriteIteration(ctx, Iteration{RunID: run.ID, Seq: 2, Sequence: "B1", Error: "LIVENESS_VIOLATION: event never registered"}))
	require.NoError(t, s.WriteIteration(ctx, Iteration{RunID: run.ID, Seq: 3, Sequence: "A1", Error: "REPRO_MISMATCH: failed to reproduce the sequence"}))

	it, ok, err := s.LatestFailure(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, it.Seq)
	assert.Equal(t, "A1", it.Sequence)
}

func TestJournal_ReplayRunKeepsRepro(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := Run{ID: "run-0001", Scenario: "two-threads", Mode: ModeReplay, Repro: "B1|A1|A2|B2|A3|B3"}
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, ModeReplay, got.Mode)
	assert.Equal(t, "B1|A1|A2|B2|A3|B3", got.Repro)
}

func TestJournal_RejectsUnknownMode(t *testing.T) {
	s := createTestStore(t)

	run := createTestRun("run-0001")
	run.Mode = "fuzz"
	assert.Error(t, s.CreateRun(context.Background(), run))
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}

	a := gen.Generate()
	b := gen.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "7", string(a[14]), "version nibble")
}
