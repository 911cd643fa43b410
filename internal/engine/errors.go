package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// RuntimeError represents a failure detected while the scheduler controls an
// iteration.
//
// Runtime errors include:
//   - Liveness: a postponed event was never registered within LongBound
//   - Model: duplicate postponement, postponed events left at finish,
//     unbalanced enter/exit brackets
//   - Fidelity: replay did not reproduce the requested sequence
//
// None of them are retried. They surface from FinishIteration and, if a
// failure handler is configured, as soon as they are detected.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Event is the event name involved, if any.
	Event string

	// Iteration is the 1-based iteration the error was detected in.
	Iteration int

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeLiveness indicates a postponed event was never registered.
	ErrCodeLiveness RuntimeErrorCode = "LIVENESS_VIOLATION"

	// ErrCodeDuplicatePostponement indicates a second goroutine was postponed
	// on an event name that already had a pending postponement.
	ErrCodeDuplicatePostponement RuntimeErrorCode = "DUPLICATE_POSTPONEMENT"

	// ErrCodePostponedAtFinish indicates postponed events remained when the
	// iteration finished.
	ErrCodePostponedAtFinish RuntimeErrorCode = "POSTPONED_AT_FINISH"

	// ErrCodeUnbalancedBracket indicates an :exit without its :enter, or an
	// iteration that ended inside an :enter/:exit pair.
	ErrCodeUnbalancedBracket RuntimeErrorCode = "UNBALANCED_BRACKET"

	// ErrCodeReproMismatch indicates replay did not reproduce the sequence.
	ErrCodeReproMismatch RuntimeErrorCode = "REPRO_MISMATCH"

	// ErrCodeIterationState indicates StartIteration/FinishIteration were
	// called out of order.
	ErrCodeIterationState RuntimeErrorCode = "ITERATION_STATE"
)

// ErrIterationLimit is returned by Explore when the iteration limit is hit
// before exploration converges.
var ErrIterationLimit = errors.New("iteration limit reached before exploration converged")

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Event != "" && e.Iteration > 0 {
		return fmt.Sprintf("%s: %s (event=%s, iteration=%d)", e.Code, e.Message, e.Event, e.Iteration)
	}
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	}
	if e.Iteration > 0 {
		return fmt.Sprintf("%s: %s (iteration=%d)", e.Code, e.Message, e.Iteration)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// hasCode reports whether err is, or wraps, a RuntimeError with one of codes.
// errors.As stops at the first match, and FinishIteration joins several
// errors, so the tree is walked explicitly.
func hasCode(err error, codes ...RuntimeErrorCode) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *RuntimeError:
		return slices.Contains(codes, e.Code)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if hasCode(inner, codes...) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return hasCode(e.Unwrap(), codes...)
	}
	return false
}

// IsLivenessError returns true if err is or wraps a liveness violation.
func IsLivenessError(err error) bool {
	return hasCode(err, ErrCodeLiveness)
}

// IsModelError returns true if err is or wraps a model invariant violation.
func IsModelError(err error) bool {
	return hasCode(err, ErrCodeDuplicatePostponement, ErrCodePostponedAtFinish, ErrCodeUnbalancedBracket)
}

// IsFidelityError returns true if err is or wraps a replay mismatch.
func IsFidelityError(err error) bool {
	return hasCode(err, ErrCodeReproMismatch)
}

// NewLivenessError creates a RuntimeError for an event that was never registered.
func NewLivenessError(event string, iteration int, bound time.Duration) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeLiveness,
		Message:   "event never registered",
		Event:     event,
		Iteration: iteration,
		Details: map[string]string{
			"bound": bound.String(),
		},
	}
}

// NewDuplicatePostponementError creates a RuntimeError for a second pending
// occurrence of the same event name.
func NewDuplicatePostponementError(event string, iteration int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeDuplicatePostponement,
		Message:   "event already postponed",
		Event:     event,
		Iteration: iteration,
	}
}

// NewPostponedAtFinishError creates a RuntimeError for events still postponed
// when the iteration finished.
func NewPostponedAtFinishError(events []string, iteration int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodePostponedAtFinish,
		Message:   "non-empty postponed events at finish",
		Iteration: iteration,
		Details: map[string]string{
			"events": strings.Join(events, ","),
		},
	}
}

// NewUnbalancedBracketError creates a RuntimeError for a misplaced :enter or :exit.
func NewUnbalancedBracketError(event, reason string, iteration int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeUnbalancedBracket,
		Message:   reason,
		Event:     event,
		Iteration: iteration,
	}
}

// NewReproMismatchError creates a RuntimeError for a replay that diverged.
func NewReproMismatchError(want, got string, iteration int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeReproMismatch,
		Message:   "failed to reproduce the sequence",
		Iteration: iteration,
		Details: map[string]string{
			"want": want,
			"got":  got,
		},
	}
}

// NewIterationStateError creates a RuntimeError for a driver calling
// StartIteration/FinishIteration out of order.
func NewIterationStateError(message string, iteration int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeIterationState,
		Message:   message,
		Iteration: iteration,
	}
}
