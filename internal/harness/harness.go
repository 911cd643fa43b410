package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/racerepro/internal/engine"
	"github.com/roach88/racerepro/internal/repro"
	"github.com/roach88/racerepro/internal/store"
	"github.com/roach88/racerepro/internal/testutil"
)

// Runner executes scenarios under a scheduler, one goroutine per thread,
// and optionally journals every iteration.
type Runner struct {
	logger    *slog.Logger
	journal   *store.Store
	ids       store.RunIDGenerator
	schedOpts []engine.Option
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger handed to the scheduler. Default: slog.Default().
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithJournal records runs, iterations and explored paths in st.
func WithJournal(st *store.Store) RunnerOption {
	return func(r *Runner) {
		r.journal = st
	}
}

// WithRunIDGenerator overrides the UUIDv7 run ids.
func WithRunIDGenerator(gen store.RunIDGenerator) RunnerOption {
	return func(r *Runner) {
		r.ids = gen
	}
}

// WithSchedulerOptions passes extra options to every scheduler the runner
// creates. They apply after the runner's own, and observers run after the
// journal's.
func WithSchedulerOptions(opts ...engine.Option) RunnerOption {
	return func(r *Runner) {
		r.schedOpts = append(r.schedOpts, opts...)
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: slog.Default(),
		ids:    store.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run explores the scenario, or replays scenario.Repro when set.
//
// Reproducer failures and unmet expectations are reported in the Result.
// The returned error is reserved for problems outside the scenario: a
// journal write failing, or ctx ending.
//
// Execution flow:
// 1. Create the scheduler (exploration or replay)
// 2. Journal the run, if configured
// 3. Explore, one goroutine per thread each iteration
// 4. Evaluate expectations
// 5. Journal the outcome and explored paths
func (r *Runner) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	mode := store.ModeExplore
	if scenario.Repro != "" {
		mode = store.ModeReplay
	}
	result := NewResult(scenario.Name, mode)

	var journalErr error
	opts := []engine.Option{engine.WithLogger(r.logger)}

	if r.journal != nil {
		result.RunID = r.ids.Generate()
		err := r.journal.CreateRun(ctx, store.Run{
			ID:       result.RunID,
			Scenario: scenario.Name,
			Mode:     mode,
			Repro:    scenario.Repro,
		})
		if err != nil {
			return nil, fmt.Errorf("journal run: %w", err)
		}

		opts = append(opts, engine.WithIterationObserver(func(rec engine.IterationRecord) {
			if journalErr != nil {
				return
			}
			journalErr = r.journal.WriteIteration(ctx, toJournalIteration(result.RunID, rec))
		}))
	}

	opts = append(opts, r.schedOpts...)

	var sched *engine.Scheduler
	if mode == store.ModeReplay {
		var err error
		sched, err = engine.NewRepro(nil, scenario.Repro, opts...)
		if err != nil {
			return nil, fmt.Errorf("create replay scheduler: %w", err)
		}
	} else {
		sched = engine.New(nil, opts...)
		result.ExpectedLeaves = scenario.ExpectedLeaves()
	}

	threads := scenario.EventLists()
	action := func(ctx context.Context) error {
		testutil.RunThreads(sched.Point(), threads...)
		return nil
	}

	r.logger.Info("running scenario",
		"scenario", scenario.Name,
		"mode", mode,
		"threads", len(threads),
	)

	summary, runErr := sched.Explore(ctx, action, scenario.MaxIterations)
	if runErr != nil && ctx.Err() != nil {
		if r.journal != nil {
			// ctx is done; the journal still has to close the run.
			err := r.journal.FinishRun(context.WithoutCancel(ctx), store.Run{
				ID:         result.RunID,
				Status:     store.StatusCancelled,
				Iterations: summary.Iterations,
				Leaves:     summary.Leaves,
				Error:      runErr.Error(),
			}, nil)
			if err != nil {
				return nil, errors.Join(runErr, fmt.Errorf("journal outcome: %w", err))
			}
		}
		return nil, runErr
	}

	result.Iterations = summary.Iterations
	result.Leaves = summary.Leaves
	result.LastSequence = summary.LastSequence
	for _, p := range sched.Paths() {
		result.Paths = append(result.Paths, repro.Encode(p))
	}

	if runErr != nil {
		result.Failure = runErr.Error()
		result.AddError(runErr.Error())
	}
	for _, msg := range EvaluateExpectations(result, scenario) {
		result.AddError(msg)
	}

	r.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"iterations", result.Iterations,
		"leaves", result.Leaves,
	)

	if r.journal != nil {
		if journalErr != nil {
			return result, fmt.Errorf("journal iteration: %w", journalErr)
		}
		run := store.Run{
			ID:         result.RunID,
			Status:     runStatus(mode, runErr),
			Iterations: result.Iterations,
			Leaves:     result.Leaves,
		}
		if !result.Pass {
			run.Error = result.Errors[0]
		}
		// An unmet expectation fails a run the scheduler finished cleanly.
		if runErr == nil && !result.Pass {
			run.Status = store.StatusFailed
		}
		if err := r.journal.FinishRun(ctx, run, result.Paths); err != nil {
			return result, fmt.Errorf("journal outcome: %w", err)
		}
	}

	return result, nil
}

func runStatus(mode string, err error) string {
	switch {
	case errors.Is(err, engine.ErrIterationLimit):
		return store.StatusLimit
	case err != nil:
		return store.StatusFailed
	case mode == store.ModeReplay:
		return store.StatusReplayed
	default:
		return store.StatusConverged
	}
}

func toJournalIteration(runID string, rec engine.IterationRecord) store.Iteration {
	it := store.Iteration{
		RunID:            runID,
		Seq:              rec.Iteration,
		SequenceToFollow: rec.SequenceToFollow,
		Sequence:         rec.Sequence,
		Registered:       rec.Registered,
		Leaves:           rec.Leaves,
		More:             rec.More,
	}
	if rec.Err != nil {
		it.Error = rec.Err.Error()
	}
	return it
}
