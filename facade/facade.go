// File: facade/facade.go
// Unified facade layer for hioload-channel.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime aggregates the pieces an application needs to host
// channels: a set of event loops, a shared buffer pool manager and a
// logger. It hands out loops round-robin so channel kinds can be
// constructed without wiring each collaborator by hand.

package facade

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/core/concurrency"
	"github.com/momentics/hioload-channel/pool"
)

// Config holds parameters immutable per run.
type Config struct {
	NumLoops int         // event loops to start; <=0 means one
	Logger   *zap.Logger // nil means no-op
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{NumLoops: 1}
}

// Runtime is the main facade type.
type Runtime struct {
	loops []*concurrency.Loop
	next  atomic.Uint32
	pools *pool.Manager
	log   *zap.Logger
}

// New builds a stopped Runtime from cfg; call Start before use.
func New(cfg *Config) *Runtime {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	n := cfg.NumLoops
	if n <= 0 {
		n = 1
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rt := &Runtime{pools: pool.NewManager(), log: log}
	for i := 0; i < n; i++ {
		rt.loops = append(rt.loops, concurrency.NewLoop())
	}
	return rt
}

// Start launches every event loop goroutine.
func (r *Runtime) Start() {
	for _, l := range r.loops {
		go l.Run()
	}
	r.log.Info("runtime started", zap.Int("loops", len(r.loops)))
}

// Stop shuts every loop down, draining queued work.
func (r *Runtime) Stop() {
	for _, l := range r.loops {
		l.Stop()
	}
	r.log.Info("runtime stopped")
}

// NextLoop returns a loop, round-robin across the set.
func (r *Runtime) NextLoop() api.EventLoop {
	i := r.next.Add(1)
	return r.loops[int(i-1)%len(r.loops)]
}

// BufferPool returns the shared pool manager.
func (r *Runtime) BufferPool() api.BufferPool { return r.pools }

// Logger returns the runtime logger.
func (r *Runtime) Logger() *zap.Logger { return r.log }
