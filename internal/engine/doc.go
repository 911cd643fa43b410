// Package engine implements the race-condition reproducer scheduler.
//
// The scheduler drives a test through many iterations of the same
// concurrent scenario. Each iteration the code under test reports named
// events through a dispatch.Point; the scheduler decides, per event, whether
// to let the reporting goroutine continue or to hold it back until a
// different ordering has been forced. Over iterations it enumerates every
// reachable interleaving of the reported events.
//
// ARCHITECTURE:
//
// Each iteration moves through three phases:
//  1. Following: replay a sequence known from the tree, holding back any
//     event that does not match the next expected one
//  2. Growing: at the growth point, wait for an event never seen there
//     before; events already seen there are held back
//  3. Free: register everything as it comes
//
// The transition out of Growing happens on the first new event, or after
// ShortBound elapses without one, in which case everything held back is
// released in the order it was held.
//
// Replay mode follows one fixed sequence and never explores.
//
// Bracketed events:
// "X:enter" must be followed directly by "X:exit". Other events are held
// back in between, so the pair stays adjacent in every sequence.
//
// CRITICAL PATTERNS:
//
// Single Lock:
// All scheduler state is guarded by one mutex. A held-back goroutine waits
// on a channel outside the lock; the lock holder closes the channel to
// release it.
//
// Liveness:
// No goroutine is held back longer than LongBound. Exceeding it is a
// failure, reported through the failure handler and FinishIteration.
//
// Repro Strings:
// Every registration logs "Repro sequence: " followed by the events so far.
// The last such line before a failure is what NewRepro replays.
package engine
