package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/racerepro/internal/store"
)

// Expectation kinds, used in ExpectationError.
const (
	ExpectLeaves   = "leaves"
	ExpectContains = "contains"
)

// ExpectationError is returned when an expectation fails.
// It includes the explored paths to help debug the failure.
type ExpectationError struct {
	Type     string   // Expectation kind
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Paths    []string // Explored paths for context
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Paths) > 0 {
		fmt.Fprintf(&buf, "\nExplored paths:\n")
		for i, p := range e.Paths {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, p)
		}
	}

	return buf.String()
}

// expectLeaves checks the number of explored interleavings.
func expectLeaves(result *Result, want int) error {
	if result.Leaves == want {
		return nil
	}
	return &ExpectationError{
		Type:     ExpectLeaves,
		Expected: fmt.Sprintf("%d distinct interleavings", want),
		Actual:   fmt.Sprintf("%d distinct interleavings", result.Leaves),
		Paths:    result.Paths,
	}
}

// expectContains checks that a repro string was explored.
func expectContains(result *Result, seq string) error {
	if slices.Contains(result.Paths, seq) {
		return nil
	}
	return &ExpectationError{
		Type:     ExpectContains,
		Expected: fmt.Sprintf("path %q explored", seq),
		Actual:   "path not found",
		Paths:    result.Paths,
	}
}

// EvaluateExpectations checks a scenario's expectations against the result.
// Returns a slice of error messages for failed expectations.
//
// Only converged explorations are checked; replay is verified by the
// scheduler itself, and an exploration that stopped early has no complete
// leaf count to compare.
func EvaluateExpectations(result *Result, scenario *Scenario) []string {
	if result.Mode != store.ModeExplore || result.Failure != "" {
		return nil
	}

	var errors []string

	if err := expectLeaves(result, scenario.ExpectedLeaves()); err != nil {
		errors = append(errors, err.Error())
	}

	if scenario.Expect != nil {
		for _, seq := range scenario.Expect.Contains {
			if err := expectContains(result, seq); err != nil {
				errors = append(errors, err.Error())
			}
		}
	}

	return errors
}
