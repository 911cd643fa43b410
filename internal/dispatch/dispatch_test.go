package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingListener) OnEvent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingListener) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestPoint_ReportWithoutListenerIsNoop(t *testing.T) {
	p := NewPoint()
	assert.False(t, p.Attached())
	assert.NotPanics(t, func() { p.Report("A1") })
}

func TestPoint_NilPointReportIsNoop(t *testing.T) {
	var p *Point
	assert.NotPanics(t, func() { p.Report("A1") })
}

func TestPoint_ForwardsToAttachedListener(t *testing.T) {
	p := NewPoint()
	l := &recordingListener{}
	p.Attach(l)
	require.True(t, p.Attached())

	p.Report("A1")
	p.Enter("load")
	p.Exit("load")

	assert.Equal(t, []string{"A1", "load:enter", "load:exit"}, l.Events())
}

func TestPoint_AttachReplacesAndClears(t *testing.T) {
	p := NewPoint()
	first := &recordingListener{}
	second := &recordingListener{}

	p.Attach(first)
	p.Report("one")
	p.Attach(second)
	p.Report("two")
	p.Attach(nil)
	p.Report("three")

	assert.Equal(t, []string{"one"}, first.Events())
	assert.Equal(t, []string{"two"}, second.Events())
	assert.False(t, p.Attached())
}

func TestPoint_ListenerFunc(t *testing.T) {
	p := NewPoint()
	var got string
	p.Attach(ListenerFunc(func(name string) { got = name }))
	p.Report("x")
	assert.Equal(t, "x", got)
}

func TestPoint_BlockingListenerDoesNotBlockAttach(t *testing.T) {
	p := NewPoint()
	release := make(chan struct{})
	entered := make(chan struct{})
	p.Attach(ListenerFunc(func(string) {
		close(entered)
		<-release
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Report("blocked")
	}()

	<-entered
	attached := make(chan struct{})
	go func() {
		p.Attach(nil)
		close(attached)
	}()

	select {
	case <-attached:
	case <-time.After(time.Second):
		t.Fatal("Attach blocked behind a blocked listener")
	}

	close(release)
	<-done
}

func TestAsEnterAsExit(t *testing.T) {
	tests := []struct {
		event   string
		enter   string
		isEnter bool
		exit    string
		isExit  bool
	}{
		{event: "load:enter", enter: "load", isEnter: true},
		{event: "load:exit", exit: "load", isExit: true},
		{event: "load"},
		{event: "a:b:exit"},
		{event: ":enter", enter: "", isEnter: true},
		{event: "load:entered"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			enter, ok := AsEnter(tt.event)
			assert.Equal(t, tt.isEnter, ok)
			assert.Equal(t, tt.enter, enter)

			exit, ok := AsExit(tt.event)
			assert.Equal(t, tt.isExit, ok)
			assert.Equal(t, tt.exit, exit)
		})
	}
}
