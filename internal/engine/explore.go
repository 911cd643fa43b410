package engine

import (
	"context"
	"fmt"
)

// Action runs one iteration of the scenario under test. It must return only
// after every goroutine that reports events has finished.
type Action func(ctx context.Context) error

// Summary describes a finished exploration or replay.
type Summary struct {
	Iterations   int
	Leaves       int
	LastSequence string
}

// Explore runs action under the scheduler until it reports no more
// iterations are needed. In replay mode that is exactly one iteration.
//
// maxIterations <= 0 means unlimited. Hitting the limit returns
// ErrIterationLimit along with the summary so far.
//
// A failure in an iteration stops exploration; the returned error carries
// the sequence that was registered so it can be replayed.
func (s *Scheduler) Explore(ctx context.Context, action Action, maxIterations int) (Summary, error) {
	var summary Summary

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if maxIterations > 0 && summary.Iterations >= maxIterations {
			return summary, fmt.Errorf("%w: %d iterations", ErrIterationLimit, maxIterations)
		}

		if err := s.StartIteration(); err != nil {
			return summary, err
		}

		actionErr := action(ctx)
		more, err := s.FinishIteration()

		summary.Iterations++
		summary.Leaves = s.LeafCount()
		summary.LastSequence = s.CurrentSequenceString()

		if actionErr != nil {
			return summary, fmt.Errorf("iteration %d (repro %q): %w", s.Iteration(), summary.LastSequence, actionErr)
		}
		if err != nil {
			return summary, fmt.Errorf("iteration %d (repro %q): %w", s.Iteration(), summary.LastSequence, err)
		}
		if !more {
			return summary, nil
		}
	}
}
