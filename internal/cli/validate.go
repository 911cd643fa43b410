package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/racerepro/internal/harness"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid          bool   `json:"valid"`
	Name           string `json:"name,omitempty"`
	Threads        int    `json:"threads,omitempty"`
	Events         int    `json:"events,omitempty"`
	ExpectedLeaves int    `json:"expected_leaves,omitempty"`
	Repro          string `json:"repro,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Validate a scenario file without running it",
		Long: `Load a YAML or CUE scenario file and check it: schema, unique event names,
well-formed enter/exit pairs, and a parseable repro string.

Prints the number of interleavings exploration is expected to find.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts)

	out.Debugf("Loading %s", path)
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeInvalidScenario, "invalid scenario", err, nil)
	}

	result := ValidationResult{
		Valid:          true,
		Name:           scenario.Name,
		Threads:        len(scenario.Threads),
		ExpectedLeaves: scenario.ExpectedLeaves(),
		Repro:          scenario.Repro,
	}
	for _, th := range scenario.Threads {
		result.Events += len(th.Events)
	}

	return out.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid: %d threads, %d events, %d expected interleavings\n",
			result.Name, result.Threads, result.Events, result.ExpectedLeaves)
	})
}
