// File: core/concurrency/loop.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop is a serial execution context implementing api.EventLoop. One
// goroutine drains a ready queue of scheduled closures in submission
// order; channels registered here get the single-threaded execution
// guarantee the lifecycle core is built on. Cross-loop hand-off is
// always Execute, never locking around channel state.

package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/momentics/hioload-channel/api"
)

// Loop runs scheduled closures on a single goroutine.
type Loop struct {
	mu    sync.Mutex
	ready *queue.Queue // of func()

	wakeCh chan struct{}
	quitCh chan struct{}
	doneCh chan struct{}

	running atomic.Bool
	closed  atomic.Bool
	gid     atomic.Int64

	clk clock.Clock

	chmu     sync.Mutex
	channels map[uuid.UUID]api.Channel
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithClock substitutes the wall clock, letting tests drive
// ExecuteAfter deterministically.
func WithClock(clk clock.Clock) LoopOption {
	return func(l *Loop) { l.clk = clk }
}

// NewLoop creates a stopped loop; call Run (usually in its own
// goroutine) to start draining tasks.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		ready:    queue.New(),
		wakeCh:   make(chan struct{}, 1),
		quitCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		clk:      clock.New(),
		channels: make(map[uuid.UUID]api.Channel),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.gid.Store(-1)
	return l
}

// Register implements api.EventLoop.
func (l *Loop) Register(ch api.Channel) error {
	if l.closed.Load() {
		return api.ErrLoopClosed
	}
	l.chmu.Lock()
	defer l.chmu.Unlock()
	l.channels[ch.ID()] = ch
	return nil
}

// Deregister implements api.EventLoop.
func (l *Loop) Deregister(ch api.Channel) error {
	l.chmu.Lock()
	defer l.chmu.Unlock()
	delete(l.channels, ch.ID())
	return nil
}

// NumChannels reports how many channels are currently registered.
func (l *Loop) NumChannels() int {
	l.chmu.Lock()
	defer l.chmu.Unlock()
	return len(l.channels)
}

// Execute implements api.EventLoop: fn is queued for a later turn of
// the loop, even when called from the loop goroutine itself.
func (l *Loop) Execute(fn func()) {
	if l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.ready.Add(fn)
	l.mu.Unlock()
	l.wake()
}

// ExecuteAfter schedules fn onto the loop no earlier than d from now.
func (l *Loop) ExecuteAfter(d time.Duration, fn func()) {
	l.clk.AfterFunc(d, func() { l.Execute(fn) })
}

// InLoop reports whether the caller runs on the loop goroutine.
func (l *Loop) InLoop() bool {
	return l.gid.Load() == goroutineID()
}

// Pending returns the number of queued closures.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready.Length()
}

// Run drains the ready queue until Stop. It is the loop goroutine; a
// second concurrent Run returns immediately.
func (l *Loop) Run() {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	l.gid.Store(goroutineID())
	defer func() {
		l.gid.Store(-1)
		l.running.Store(false)
		close(l.doneCh)
	}()

	for {
		if l.drain() {
			continue
		}
		select {
		case <-l.quitCh:
			// Final drain so Stop never strands queued work.
			l.drain()
			return
		case <-l.wakeCh:
		}
	}
}

// drain runs every closure currently queued, in order. Reports
// whether any ran.
func (l *Loop) drain() bool {
	ran := false
	for {
		l.mu.Lock()
		if l.ready.Length() == 0 {
			l.mu.Unlock()
			return ran
		}
		fn := l.ready.Remove().(func())
		l.mu.Unlock()
		l.safeRun(fn)
		ran = true
	}
}

func (l *Loop) safeRun(fn func()) {
	defer func() { recover() }()
	fn()
}

// Stop signals Run to exit and waits for the final drain.
func (l *Loop) Stop() {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}
	close(l.quitCh)
	if l.running.Load() {
		<-l.doneCh
	}
}

func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

var _ api.EventLoop = (*Loop)(nil)
