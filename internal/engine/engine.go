package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/racerepro/internal/dispatch"
	"github.com/roach88/racerepro/internal/repro"
	"github.com/roach88/racerepro/internal/tree"
)

// Fixed timing bounds of the wait/release protocol.
const (
	// ShortBound is how long the growing phase waits for a previously unseen
	// event before releasing everything already postponed.
	ShortBound = 2 * time.Second

	// LongBound is the liveness ceiling for a single postponed event.
	LongBound = 60 * time.Second
)

// Phase is the scheduler's position within an iteration.
type Phase int

const (
	// PhaseFollowing replays the sequence to follow, postponing everything else.
	PhaseFollowing Phase = iota + 1
	// PhaseGrowing waits for an event never seen after the growth point.
	PhaseGrowing
	// PhaseFree registers every event as it comes.
	PhaseFree
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseFollowing:
		return "following"
	case PhaseGrowing:
		return "growing"
	case PhaseFree:
		return "free"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// IterationRecord summarizes a finished iteration.
type IterationRecord struct {
	Iteration        int
	SequenceToFollow string
	Sequence         string
	Registered       int
	Leaves           int
	More             bool
	Err              error
}

// Scheduler is the reproduction scheduler.
//
// It is attached to a dispatch.Point for the duration of each iteration and
// decides, for every event reported there, whether to register it now or to
// block the reporting goroutine until a later decision point.
//
// Thread-safety model:
//   - OnEvent: called concurrently by any number of reporting goroutines
//   - StartIteration/FinishIteration: called by the single test driver
//   - accessors: safe from any goroutine
//
// INVARIANTS:
//   - all tree and phase state is guarded by mu
//   - at most one postponed goroutine per event name
//   - the short-bound timer belongs to exactly one iteration (generation)
type Scheduler struct {
	mu sync.Mutex

	point     *dispatch.Point
	logger    *slog.Logger
	onFailure func(error)
	observers []func(IterationRecord)

	shortBound time.Duration
	longBound  time.Duration

	// Exploration state, persists across iterations.
	tree *tree.Tree

	// Replay mode when reproMode is set.
	reproMode   bool
	reproString string
	reproEvents []string

	// Per-iteration state.
	running          bool
	iteration        int
	cursor           tree.NodeID
	registered       int
	sequenceToFollow []string
	current          repro.Builder
	postponed        map[string]chan struct{}
	postponedOrder   []string
	growthExpired    bool
	draining         bool
	failures         []error

	// Short-bound release. generation changes whenever a pending timer is
	// cancelled or a new iteration starts, so a timer that already fired but
	// is waiting for mu becomes a no-op.
	resumeTimer *time.Timer
	generation  uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithFailureHandler registers fn to be called as soon as a failure is
// detected, on the goroutine that detected it. t.Error is a typical choice.
// fn must not call back into the Scheduler.
func WithFailureHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.onFailure = fn
	}
}

// WithIterationObserver registers fn to receive a record of every finished
// iteration. Observers run in registration order on the driver goroutine,
// after FinishIteration has released the scheduler's lock.
func WithIterationObserver(fn func(IterationRecord)) Option {
	return func(s *Scheduler) {
		s.observers = append(s.observers, fn)
	}
}

// WithTimingForTesting overrides ShortBound and LongBound.
// Not intended for production use.
func WithTimingForTesting(short, long time.Duration) Option {
	return func(s *Scheduler) {
		s.shortBound = short
		s.longBound = long
	}
}

// New creates a Scheduler in exploration mode.
// If point is nil a fresh dispatch.Point is created; see Point.
func New(point *dispatch.Point, opts ...Option) *Scheduler {
	if point == nil {
		point = dispatch.NewPoint()
	}

	s := &Scheduler{
		point:      point,
		logger:     slog.Default(),
		shortBound: ShortBound,
		longBound:  LongBound,
		tree:       tree.New(),
		postponed:  make(map[string]chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewRepro creates a Scheduler that replays reproString once.
//
// Find the last "Repro sequence:" line logged before a failure and pass it
// here; the single iteration replays exactly that order of events.
func NewRepro(point *dispatch.Point, reproString string, opts ...Option) (*Scheduler, error) {
	events, err := repro.Parse(reproString)
	if err != nil {
		return nil, fmt.Errorf("parse repro string: %w", err)
	}

	s := New(point, opts...)
	s.reproMode = true
	s.reproString = reproString
	s.reproEvents = events
	return s, nil
}

// NewReproSequence creates a replay-mode Scheduler from individual events.
func NewReproSequence(point *dispatch.Point, events []string, opts ...Option) *Scheduler {
	s := New(point, opts...)
	s.reproMode = true
	s.reproEvents = append([]string{}, events...)
	s.reproString = repro.Encode(s.reproEvents)
	return s
}

// Point returns the dispatch point the scheduler attaches to.
func (s *Scheduler) Point() *dispatch.Point {
	return s.point
}

// StartIteration resets per-iteration state, computes the sequence to follow
// and attaches to the dispatch point. Events reported before this call are
// ignored.
func (s *Scheduler) StartIteration() error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		return NewIterationStateError("iteration already running", s.iteration)
	}

	s.running = true
	s.iteration++
	s.generation++
	s.cursor = tree.Root
	s.registered = 0
	s.current.Reset()
	s.postponed = make(map[string]chan struct{})
	s.postponedOrder = nil
	s.growthExpired = false
	s.failures = nil

	if s.reproMode {
		s.sequenceToFollow = append([]string{}, s.reproEvents...)
	} else {
		s.sequenceToFollow, _ = s.tree.FindGrowthPoint()
	}

	s.logger.Info(repro.SequencePrefix, "iteration", s.iteration)
	s.logger.Debug("start of iteration",
		"iteration", s.iteration,
		"state", s.dumpStateLocked(),
	)

	s.checkCompletedSequenceToFollowLocked()
	s.mu.Unlock()

	s.point.Attach(s)
	return nil
}

// FinishIteration detaches from the dispatch point and finalizes the
// iteration. Events reported after this call are ignored.
//
// Returns whether more iterations are needed, and every failure recorded
// during the iteration joined into one error.
func (s *Scheduler) FinishIteration() (bool, error) {
	s.point.Attach(nil)

	s.mu.Lock()

	if !s.running {
		iteration := s.iteration
		s.mu.Unlock()
		return false, NewIterationStateError("no iteration running", iteration)
	}
	s.running = false

	if s.resumeTimer != nil {
		s.cancelResumeLocked()
		s.releaseAllLocked()
	}

	if len(s.postponed) > 0 {
		s.failLocked(NewPostponedAtFinishError(append([]string{}, s.postponedOrder...), s.iteration))
		// Let the stuck goroutines go rather than leave them for LongBound.
		for _, name := range s.postponedOrder {
			close(s.postponed[name])
		}
		s.postponed = make(map[string]chan struct{})
		s.postponedOrder = nil
	}

	if last, ok := s.current.Last(); ok {
		if _, open := dispatch.AsEnter(last); open {
			s.failLocked(NewUnbalancedBracketError(last, "iteration ended inside enter/exit", s.iteration))
		}
	}

	// Nothing followed the cursor in this run; coming back to it cannot
	// produce a new continuation.
	s.tree.MarkExhausted(s.cursor)

	s.logger.Debug("end of iteration",
		"iteration", s.iteration,
		"state", s.dumpStateLocked(),
	)

	if s.reproMode && !repro.HasPrefix(s.current.Events(), s.reproEvents) {
		s.failLocked(NewReproMismatchError(s.reproString, s.current.String(), s.iteration))
	}

	more := !s.reproMode && !s.tree.IsFullyExhausted()
	err := errors.Join(s.failures...)
	s.failures = nil

	record := IterationRecord{
		Iteration:        s.iteration,
		SequenceToFollow: repro.Encode(s.sequenceToFollow),
		Sequence:         s.current.String(),
		Registered:       s.registered,
		Leaves:           s.tree.CountLeaves(),
		More:             more,
		Err:              err,
	}
	observers := s.observers
	s.mu.Unlock()

	for _, observe := range observers {
		observe(record)
	}

	return more, err
}

// OnEvent implements dispatch.Listener. It is called on the reporting
// goroutine and blocks it while the event is postponed.
func (s *Scheduler) OnEvent(name string) {
	if wait := s.tryRegisterEvent(name); wait != nil {
		s.waitUntilRegistered(name, wait)
	}
}

// tryRegisterEvent registers name, or postpones it and returns the handle to
// wait on.
func (s *Scheduler) tryRegisterEvent(name string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.logger.Debug(repro.IssuedPrefix+name, "event", name, "iteration", s.iteration)

	ok, err := s.canRegisterNowLocked(name)
	if err != nil {
		s.failLocked(err)
		return nil
	}
	if !ok {
		return s.postponeLocked(name)
	}

	switch s.phaseLocked() {
	case PhaseFollowing:
		if name != s.sequenceToFollow[s.registered] {
			return s.postponeLocked(name)
		}
		s.registerEventLocked(name)

		// Postponed events that continue the sequence can go now.
		for s.registered < len(s.sequenceToFollow) {
			next := s.sequenceToFollow[s.registered]
			if _, ok := s.postponed[next]; !ok {
				break
			}
			if ok, _ := s.canRegisterNowLocked(next); !ok {
				break
			}
			s.registerPostponedEventLocked(next)
		}

		s.checkCompletedSequenceToFollowLocked()

	case PhaseGrowing:
		// A new continuation, or replay mode which does not explore, or the
		// short bound already gave up on finding one.
		if s.reproMode || s.growthExpired || !s.tree.HasChild(s.cursor, name) {
			s.registerEventLocked(name)
		} else {
			return s.postponeLocked(name)
		}

	case PhaseFree:
		s.registerEventLocked(name)
		// Events held back by an :enter can go once it is closed.
		if _, enter := dispatch.AsEnter(name); !enter {
			s.releaseAllLocked()
		}
	}

	return nil
}

// phaseLocked derives the phase from the registration count.
func (s *Scheduler) phaseLocked() Phase {
	switch {
	case s.registered < len(s.sequenceToFollow):
		return PhaseFollowing
	case s.registered == len(s.sequenceToFollow):
		return PhaseGrowing
	default:
		return PhaseFree
	}
}

// checkCompletedSequenceToFollowLocked handles entry into the growing phase.
func (s *Scheduler) checkCompletedSequenceToFollowLocked() {
	if s.registered != len(s.sequenceToFollow) {
		return
	}

	s.scheduleResumeLocked()

	// An event postponed while following may already be a new continuation
	// of the growth point. Register it without waiting.
	for _, name := range s.postponedOrder {
		if !s.reproMode && s.tree.HasChild(s.cursor, name) {
			continue
		}
		if ok, _ := s.canRegisterNowLocked(name); !ok {
			continue
		}
		s.registerPostponedEventLocked(name)
		return
	}
}

// canRegisterNowLocked enforces bracketing: after X:enter only X:exit may be
// registered. The error reports an :exit that can never be valid here.
func (s *Scheduler) canRegisterNowLocked(name string) (bool, error) {
	exitOf, isExit := dispatch.AsExit(name)

	if last, ok := s.current.Last(); ok {
		if open, isOpen := dispatch.AsEnter(last); isOpen {
			if isExit && exitOf == open {
				return true, nil
			}
			if isExit {
				return false, NewUnbalancedBracketError(name, "exit does not match open "+last, s.iteration)
			}
			return false, nil
		}
	}

	if isExit {
		return false, NewUnbalancedBracketError(name, "exit without a matching enter", s.iteration)
	}
	return true, nil
}

// registerEventLocked appends name to the current sequence and the tree.
func (s *Scheduler) registerEventLocked(name string) {
	s.logger.Debug(repro.RegisteringPrefix+name, "event", name, "iteration", s.iteration)

	_, isExit := dispatch.AsExit(name)
	next, _ := s.tree.AddChild(s.cursor, name, isExit)

	s.cursor = next
	s.registered++
	s.current.Append(name)

	s.logger.Info(repro.SequencePrefix+s.current.String(), "iteration", s.iteration)

	// First event past the growth point: the iteration is now free.
	if s.registered == len(s.sequenceToFollow)+1 {
		s.cancelResumeLocked()
		if !s.draining {
			s.releaseAllLocked()
		}
	}
}

// registerPostponedEventLocked releases the goroutine waiting on name and
// registers its event.
func (s *Scheduler) registerPostponedEventLocked(name string) {
	wait := s.postponed[name]
	s.removePostponedLocked(name)
	// Closing never blocks; the waiter does not need mu to wake up.
	close(wait)
	s.registerEventLocked(name)
}

func (s *Scheduler) postponeLocked(name string) chan struct{} {
	if _, dup := s.postponed[name]; dup {
		s.failLocked(NewDuplicatePostponementError(name, s.iteration))
		return nil
	}

	wait := make(chan struct{})
	s.postponed[name] = wait
	s.postponedOrder = append(s.postponedOrder, name)
	s.logger.Debug("postponing event", "event", name, "iteration", s.iteration, "phase", s.phaseLocked())
	return wait
}

func (s *Scheduler) removePostponedLocked(name string) {
	delete(s.postponed, name)
	for i, n := range s.postponedOrder {
		if n == name {
			s.postponedOrder = append(s.postponedOrder[:i], s.postponedOrder[i+1:]...)
			return
		}
	}
}

// releaseAllLocked registers postponed events in postponement order. It stops
// after an :enter, whose exit must come next, and skips events that cannot be
// registered yet.
func (s *Scheduler) releaseAllLocked() {
	s.draining = true
	defer func() { s.draining = false }()

	for {
		name, ok := s.nextReleasableLocked()
		if !ok {
			return
		}
		s.registerPostponedEventLocked(name)
		if _, enter := dispatch.AsEnter(name); enter {
			return
		}
	}
}

func (s *Scheduler) nextReleasableLocked() (string, bool) {
	for _, name := range s.postponedOrder {
		if ok, _ := s.canRegisterNowLocked(name); ok {
			return name, true
		}
	}
	return "", false
}

// waitUntilRegistered blocks until wait is closed or the long bound elapses.
func (s *Scheduler) waitUntilRegistered(name string, wait chan struct{}) {
	timer := time.NewTimer(s.longBound)
	defer timer.Stop()

	select {
	case <-wait:
		return
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Released while we were taking the lock.
	select {
	case <-wait:
		return
	default:
	}

	if s.postponed[name] == wait {
		s.removePostponedLocked(name)
	}
	s.failLocked(NewLivenessError(name, s.iteration, s.longBound))
}

// scheduleResumeLocked arms the short-bound release for this iteration.
func (s *Scheduler) scheduleResumeLocked() {
	s.cancelResumeLocked()
	gen := s.generation
	s.resumeTimer = time.AfterFunc(s.shortBound, func() {
		s.resumeAllEvents(gen)
	})
}

// cancelResumeLocked stops a pending short-bound release.
func (s *Scheduler) cancelResumeLocked() {
	if s.resumeTimer == nil {
		return
	}
	s.resumeTimer.Stop()
	s.resumeTimer = nil
	s.generation++
}

// resumeAllEvents is the short-bound timer callback.
func (s *Scheduler) resumeAllEvents(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resumeTimer == nil || gen != s.generation {
		return
	}
	s.resumeTimer = nil
	s.growthExpired = true

	s.logger.Debug("short bound elapsed, releasing postponed events",
		"iteration", s.iteration,
		"postponed", len(s.postponed),
	)
	s.releaseAllLocked()
}

// failLocked records err for FinishIteration and reports it.
func (s *Scheduler) failLocked(err error) {
	s.failures = append(s.failures, err)
	s.logger.Error("reproducer failure",
		"error", err,
		"iteration", s.iteration,
		"sequence", s.current.String(),
	)
	if s.onFailure != nil {
		s.onFailure(err)
	}
}

// Iteration returns the number of iterations started so far.
func (s *Scheduler) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// CurrentSequenceString returns the events registered in the current (or
// last) iteration as a repro string.
func (s *Scheduler) CurrentSequenceString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.String()
}

// LeafCount returns the number of distinct complete sequences observed.
func (s *Scheduler) LeafCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.CountLeaves()
}

// Paths returns every complete sequence observed so far.
func (s *Scheduler) Paths() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Paths()
}

// DumpState renders the scheduler state for debugging.
func (s *Scheduler) DumpState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dumpStateLocked()
}

func (s *Scheduler) dumpStateLocked() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "sequence to follow: %s\n", repro.Encode(s.sequenceToFollow))
	fmt.Fprintf(&sb, "registered events: %d\n", s.registered)
	fmt.Fprintf(&sb, "postponed events: %s\n", strings.Join(s.postponedOrder, ", "))
	sb.WriteString("nodes:\n")
	sb.WriteString(s.tree.Dump(s.cursor))
	return sb.String()
}
