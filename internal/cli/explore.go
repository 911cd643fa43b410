package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/racerepro/internal/engine"
	"github.com/roach88/racerepro/internal/harness"
	"github.com/roach88/racerepro/internal/store"
)

// ScenarioOptions holds flags shared by explore and replay.
type ScenarioOptions struct {
	*RootOptions
	Database      string
	MaxIterations int

	// RunIDGenerator allows overriding journal run ids (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	RunIDGenerator store.RunIDGenerator

	// schedulerOpts reach every scheduler the run creates (for testing).
	schedulerOpts []engine.Option
}

// NewExploreCommand creates the explore command.
func NewExploreCommand(rootOpts *RootOptions) *cobra.Command {
	return newExploreCommand(rootOpts)
}

func newExploreCommand(rootOpts *RootOptions, schedulerOpts ...engine.Option) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts, schedulerOpts: schedulerOpts}

	cmd := &cobra.Command{
		Use:   "explore <scenario>",
		Short: "Explore every interleaving of a scenario",
		Long: `Run a scenario's goroutines repeatedly under the reproducer until every
interleaving of their events has been observed.

The scenario is a YAML (.yaml, .yml) or CUE (.cue) file. With --db, every
iteration and its repro string is recorded in a SQLite journal.

When an iteration fails, the last repro string is printed; pass it to
"racerepro replay" to run exactly that interleaving again.

Example:
  racerepro explore ./scenarios/two_threads.yaml
  racerepro explore --db ./journal.db --max-iterations 500 ./scenarios/cache.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], "", cmd)
		},
	}

	addScenarioFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "stop exploring after this many iterations (0 = scenario setting)")

	return cmd
}

func addScenarioFlags(cmd *cobra.Command, opts *ScenarioOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
}

// runScenario loads a scenario and runs it. A non-empty reproOverride
// switches to replay mode.
func runScenario(opts *ScenarioOptions, path, reproOverride string, cmd *cobra.Command) error {
	logger, closeLog := setupLogging(opts.RootOptions, cmd.ErrOrStderr())
	defer closeLog()

	out := newFormatter(cmd, opts.RootOptions)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidScenario, "failed to load scenario", err, nil)
	}
	if reproOverride != "" {
		scenario.Repro = reproOverride
	}
	if opts.MaxIterations > 0 {
		scenario.MaxIterations = opts.MaxIterations
	}

	runnerOpts := []harness.RunnerOption{
		harness.WithLogger(logger),
		harness.WithSchedulerOptions(opts.schedulerOpts...),
	}
	if opts.RunIDGenerator != nil {
		runnerOpts = append(runnerOpts, harness.WithRunIDGenerator(opts.RunIDGenerator))
	}

	if opts.Database != "" {
		out.Debugf("Opening journal %s", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err, nil)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, harness.WithJournal(st))
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out.Debugf("Running %s (%d threads)", scenario.Name, len(scenario.Threads))
	result, err := harness.NewRunner(runnerOpts...).Run(ctx, scenario)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeDatabase, "run interrupted", err, nil)
	}

	if result.Pass {
		return out.Emit(result, func(w io.Writer) { writeResultText(w, path, result) })
	}

	msg := fmt.Sprintf("scenario %s failed", scenario.Name)
	if out.json {
		return out.Fail(ExitFailure, ErrCodeScenarioFailed, msg, errors.New(result.Errors[0]), result)
	}
	writeResultText(out.out, path, result)
	return NewExitError(ExitFailure, msg)
}

// signalContext cancels on Ctrl-C or SIGTERM.
// Uses the command's context if available (for testing).
func signalContext(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeResultText(w io.Writer, path string, r *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s (%s)\n", r.Scenario, r.Mode)
	if r.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", r.RunID)
	}
	fmt.Fprintf(w, "Iterations: %d\n", r.Iterations)
	if r.Mode == store.ModeExplore {
		fmt.Fprintf(w, "Interleavings: %d (expected %d)\n", r.Leaves, r.ExpectedLeaves)
	} else {
		fmt.Fprintf(w, "Sequence: %s\n", r.LastSequence)
	}

	if r.Pass {
		fmt.Fprintln(w, "Result: PASS")
		return
	}

	fmt.Fprintln(w, "Result: FAIL")
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
	if r.Failure != "" {
		fmt.Fprintf(w, "Repro: %s\n", r.LastSequence)
		fmt.Fprintf(w, "Replay with: racerepro replay %s --repro %q\n", path, r.LastSequence)
	}
}
