// File: fake/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the core contracts.

package fake

import (
	"time"

	"github.com/momentics/hioload-channel/api"
)

// Loop is a manually pumped api.EventLoop. Execute only records the
// closure; nothing runs until RunPending, which lets tests assert
// that deferred work really happens on a later turn.
type Loop struct {
	RegisterErr   error
	DeregisterErr error

	Registered   []api.Channel
	Deregistered []api.Channel

	tasks []func()
}

// NewLoop returns an empty fake loop.
func NewLoop() *Loop { return &Loop{} }

// Register implements api.EventLoop.
func (l *Loop) Register(ch api.Channel) error {
	if l.RegisterErr != nil {
		return l.RegisterErr
	}
	l.Registered = append(l.Registered, ch)
	return nil
}

// Deregister implements api.EventLoop.
func (l *Loop) Deregister(ch api.Channel) error {
	if l.DeregisterErr != nil {
		return l.DeregisterErr
	}
	l.Deregistered = append(l.Deregistered, ch)
	return nil
}

// Execute implements api.EventLoop. The closure is queued, never run
// synchronously.
func (l *Loop) Execute(fn func()) {
	l.tasks = append(l.tasks, fn)
}

// ExecuteAfter queues fn ignoring the delay.
func (l *Loop) ExecuteAfter(_ time.Duration, fn func()) {
	l.tasks = append(l.tasks, fn)
}

// InLoop always reports true: tests drive everything from one
// goroutine that plays the loop.
func (l *Loop) InLoop() bool { return true }

// PendingTasks reports how many scheduled closures are waiting.
func (l *Loop) PendingTasks() int { return len(l.tasks) }

// RunPending runs every queued closure in order, including closures
// queued while running, and returns the count executed.
func (l *Loop) RunPending() int {
	n := 0
	for len(l.tasks) > 0 {
		fn := l.tasks[0]
		l.tasks = l.tasks[1:]
		fn()
		n++
	}
	return n
}

var _ api.EventLoop = (*Loop)(nil)
