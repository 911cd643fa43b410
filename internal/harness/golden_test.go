package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_Scenarios(t *testing.T) {
	tests := []struct {
		file   string
		golden string
	}{
		{"two_threads.yaml", "two-threads"},
		{"bracketed.yaml", "bracketed"},
		{"replay.yaml", "replay"},
	}

	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			scenario := loadTestScenario(t, tt.file)

			result, err := newTestRunner().Run(context.Background(), scenario)
			require.NoError(t, err)

			AssertGolden(t, tt.golden, result)
		})
	}
}

func TestSnapshot_SortsPaths(t *testing.T) {
	result := NewResult("s", "explore")
	result.Leaves = 2
	result.Paths = []string{"B1|A1", "A1|B1"}

	got := string(Snapshot(result))

	assert.Equal(t, "scenario: s\nmode: explore\npass: true\nleaves: 2\npaths:\n  A1|B1\n  B1|A1\n", got)
	assert.Equal(t, []string{"B1|A1", "A1|B1"}, result.Paths, "input left untouched")
}
