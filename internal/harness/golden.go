package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result for golden comparison.
//
// Exploration order depends on goroutine scheduling, so paths are sorted;
// the set of interleavings is what must stay stable. Run ids and iteration
// counts are left out for the same reason.
func Snapshot(result *Result) []byte {
	var buf strings.Builder

	fmt.Fprintf(&buf, "scenario: %s\n", result.Scenario)
	fmt.Fprintf(&buf, "mode: %s\n", result.Mode)
	fmt.Fprintf(&buf, "pass: %t\n", result.Pass)
	fmt.Fprintf(&buf, "leaves: %d\n", result.Leaves)

	paths := slices.Clone(result.Paths)
	slices.Sort(paths)
	fmt.Fprintf(&buf, "paths:\n")
	for _, p := range paths {
		fmt.Fprintf(&buf, "  %s\n", p)
	}

	return []byte(buf.String())
}

// AssertGolden compares the result's snapshot against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
