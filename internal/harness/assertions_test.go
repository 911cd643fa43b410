package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/racerepro/internal/store"
)

func exploredResult(paths ...string) *Result {
	r := NewResult("test", store.ModeExplore)
	r.Paths = paths
	r.Leaves = len(paths)
	return r
}

func TestEvaluateExpectations_Pass(t *testing.T) {
	scenario := &Scenario{
		Threads: []Thread{{Name: "A", Events: []string{"A1"}}, {Name: "B", Events: []string{"B1"}}},
		Expect:  &Expectation{Contains: []string{"B1|A1"}},
	}

	errs := EvaluateExpectations(exploredResult("A1|B1", "B1|A1"), scenario)
	assert.Empty(t, errs)
}

func TestEvaluateExpectations_LeafCountMismatch(t *testing.T) {
	scenario := &Scenario{
		Threads: []Thread{{Name: "A", Events: []string{"A1"}}, {Name: "B", Events: []string{"B1"}}},
	}

	errs := EvaluateExpectations(exploredResult("A1|B1"), scenario)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expectation failed: leaves")
	assert.Contains(t, errs[0], "Expected: 2 distinct interleavings")
	assert.Contains(t, errs[0], "[1] A1|B1")
}

func TestEvaluateExpectations_MissingPath(t *testing.T) {
	scenario := &Scenario{
		Threads: []Thread{{Name: "A", Events: []string{"A1"}}},
		Expect:  &Expectation{Contains: []string{"B1"}},
	}

	errs := EvaluateExpectations(exploredResult("A1"), scenario)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], `path "B1" explored`)
}

func TestEvaluateExpectations_SkippedForReplayAndFailures(t *testing.T) {
	scenario := &Scenario{
		Threads: []Thread{{Name: "A", Events: []string{"A1"}}, {Name: "B", Events: []string{"B1"}}},
	}

	replay := NewResult("test", store.ModeReplay)
	assert.Empty(t, EvaluateExpectations(replay, scenario))

	failed := exploredResult("A1|B1")
	failed.Failure = "LIVENESS_VIOLATION"
	assert.Empty(t, EvaluateExpectations(failed, scenario))
}

func TestResult_AddError(t *testing.T) {
	r := NewResult("test", store.ModeExplore)
	assert.True(t, r.Pass)

	r.AddError("boom")

	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
