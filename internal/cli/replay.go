package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/racerepro/internal/engine"
	"github.com/roach88/racerepro/internal/harness"
	"github.com/roach88/racerepro/internal/repro"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	ScenarioOptions
	Repro string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return newReplayCommand(rootOpts)
}

func newReplayCommand(rootOpts *RootOptions, schedulerOpts ...engine.Option) *cobra.Command {
	opts := &ReplayOptions{ScenarioOptions: ScenarioOptions{RootOptions: rootOpts, schedulerOpts: schedulerOpts}}

	cmd := &cobra.Command{
		Use:   "replay <scenario>",
		Short: "Replay one interleaving of a scenario",
		Long: `Run a scenario once, forcing its goroutines to report events in exactly
the order given by a repro string.

The repro string is the text after "Repro sequence: " in the log of a
failed exploration. Without --repro, the scenario's own repro field is used.

Exits 1 if the sequence could not be reproduced.

Example:
  racerepro replay ./scenarios/two_threads.yaml --repro "B1|A1|A2|B2|A3|B3"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	addScenarioFlags(cmd, &opts.ScenarioOptions)
	cmd.Flags().StringVar(&opts.Repro, "repro", "", "repro string to replay, events joined by \"|\"")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	if opts.Repro != "" {
		if _, err := repro.Parse(opts.Repro); err != nil {
			return out.Fail(ExitCommandError, ErrCodeInvalidRepro, "invalid repro string", err, nil)
		}
		return runScenario(&opts.ScenarioOptions, path, opts.Repro, cmd)
	}

	// Fall back to the scenario's repro field; refuse to silently explore.
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidScenario, "failed to load scenario", err, nil)
	}
	if scenario.Repro == "" {
		return out.Fail(ExitCommandError, ErrCodeInvalidRepro,
			"no repro string: pass --repro or set repro in the scenario", nil, nil)
	}
	return runScenario(&opts.ScenarioOptions, path, scenario.Repro, cmd)
}
