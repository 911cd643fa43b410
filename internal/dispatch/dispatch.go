// Package dispatch provides the point through which instrumented code reports
// named events to a race-condition reproducer.
//
// A Point has at most one active Listener. Reporting with no listener attached
// is a no-op, so production code can keep its Report calls in place at near
// zero cost. With a listener attached, Report forwards the event synchronously
// on the calling goroutine, and the listener may block that goroutine.
//
// There is no package-level Point. The test that owns a reproducer creates a
// Point, hands it to the code under test, and lets the reproducer attach and
// detach around every iteration:
//
//	point := dispatch.NewPoint()
//	svc := myservice.New(point)
//	sched := engine.New(point)
//
// Bracketed events are reported with Enter and Exit. While an "X:enter" event
// is registered and its "X:exit" is not, the reproducer holds every other
// event back.
package dispatch

import (
	"strings"
	"sync/atomic"
)

// Suffixes for bracketed events.
const (
	EnterSuffix = ":enter"
	ExitSuffix  = ":exit"
)

// Listener receives events reported through a Point.
// OnEvent is called on the reporting goroutine and may block it.
type Listener interface {
	OnEvent(name string)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(name string)

// OnEvent calls f(name).
func (f ListenerFunc) OnEvent(name string) {
	f(name)
}

// listenerBox lets atomic.Pointer hold an interface value.
type listenerBox struct {
	l Listener
}

// Point is a single-listener event conduit.
//
// Thread-safety: Report, Enter, Exit, Attach and Attached are safe for
// concurrent use. The listener is called without holding any Point state,
// so a blocked listener never prevents Attach from running.
type Point struct {
	listener atomic.Pointer[listenerBox]
}

// NewPoint creates a Point with no listener attached.
func NewPoint() *Point {
	return &Point{}
}

// Attach sets the active listener, replacing any previous one.
// Attach(nil) clears it.
func (p *Point) Attach(l Listener) {
	if l == nil {
		p.listener.Store(nil)
		return
	}
	p.listener.Store(&listenerBox{l: l})
}

// Attached reports whether a listener is currently attached.
func (p *Point) Attached() bool {
	return p.listener.Load() != nil
}

// Report notifies the attached listener, if any, that name occurred.
func (p *Point) Report(name string) {
	if p == nil {
		return
	}
	box := p.listener.Load()
	if box == nil {
		return
	}
	box.l.OnEvent(name)
}

// Enter reports name + EnterSuffix.
func (p *Point) Enter(name string) {
	p.Report(name + EnterSuffix)
}

// Exit reports name + ExitSuffix.
func (p *Point) Exit(name string) {
	p.Report(name + ExitSuffix)
}

// AsEnter returns X when event is "X:enter".
func AsEnter(event string) (string, bool) {
	return trimPhase(event, EnterSuffix)
}

// AsExit returns X when event is "X:exit".
func AsExit(event string) (string, bool) {
	return trimPhase(event, ExitSuffix)
}

// trimPhase splits at the first ':' so names like "a:b:exit" are not bracketed.
func trimPhase(event, suffix string) (string, bool) {
	i := strings.IndexByte(event, ':')
	if i == -1 || event[i:] != suffix {
		return "", false
	}
	return event[:i], true
}
