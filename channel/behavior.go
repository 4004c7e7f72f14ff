// File: channel/behavior.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lifecycle is the reusable control logic every state-managed channel
// kind shares: register, connect/bind, become-active, close and
// half-close. A concrete channel supplies the StateManaged capability
// set; Lifecycle drives the state machine, performs the transport
// side effect through the hooks, notifies the pipeline and resolves
// the caller's completion handle.
//
// Every operation assumes it is already running on the channel's
// event loop. Nothing here blocks; transport asynchrony is expressed
// entirely through completion handles and pipeline events.

package channel

import (
	"net"

	"go.uber.org/zap"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/core/completion"
)

// StateManaged bundles the shared fields and the five transport hooks
// a concrete channel kind implements. Hooks are one-way calls: the
// lifecycle never inspects a hook's result except through the
// completion handles it passes in.
type StateManaged[S any] interface {
	api.Channel

	// State is the lifecycle machine this channel owns. Mutated only
	// through Lifecycle operations.
	State() *ChannelState[S]

	// EventLoop is the serial execution context owning this channel.
	EventLoop() api.EventLoop

	// Pipeline receives this channel's lifecycle events.
	Pipeline() api.Pipeline

	// ClosePromise resolves when teardown has fully finished,
	// including the deferred handler removal.
	ClosePromise() *completion.Handle

	// ActivationType declares the single activation mode supported.
	ActivationType() api.ActivationType

	// BeginActivating starts connecting or binding to the resolved
	// native endpoint. Expected to eventually call
	// Lifecycle.BecomeActive with the same handle.
	BeginActivating(ep api.Endpoint, done *completion.Handle)

	// AlreadyConfigured activates a channel wrapping a transport
	// handed in already connected or bound.
	AlreadyConfigured(done *completion.Handle)

	// DoClose tears down the transport. cause is the triggering
	// error, passed through opaquely; pending operations must be
	// resolved, not left dangling.
	DoClose(cause error)

	// DoHalfClose shuts down the outbound direction only.
	DoHalfClose(cause error, done *completion.Handle)

	// ReadIfNeeded starts reading if the channel wants inbound data,
	// so any backlog flows immediately on activation.
	ReadIfNeeded()
}

// Lifecycle dispatches the shared channel behavior over a concrete
// StateManaged implementation.
type Lifecycle[S any] struct {
	ch  StateManaged[S]
	log *zap.Logger
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption[S any] func(*Lifecycle[S])

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger[S any](log *zap.Logger) LifecycleOption[S] {
	return func(l *Lifecycle[S]) { l.log = log }
}

// NewLifecycle binds the shared behavior to one concrete channel.
func NewLifecycle[S any](ch StateManaged[S], opts ...LifecycleOption[S]) *Lifecycle[S] {
	l := &Lifecycle[S]{ch: ch, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register attaches the channel to its event loop and fires the
// registered event. A channel that fails to register must not linger
// half-initialized: the failure path resolves done with the error and
// immediately runs the full close path.
func (l *Lifecycle[S]) Register(done *completion.Handle) {
	if !l.register(done) {
		return
	}
	done.Resolve(nil)
}

// RegisterAlreadyConfigured registers and immediately activates a
// channel whose transport was handed in already established. The
// already-configured hook carries done forward to BecomeActive.
func (l *Lifecycle[S]) RegisterAlreadyConfigured(done *completion.Handle) {
	if !l.register(done) {
		return
	}
	if err := l.ch.State().BeginActivating(); err != nil {
		done.Resolve(err)
		l.Close(err, api.CloseAll, nil)
		return
	}
	l.ch.AlreadyConfigured(done)
}

// register performs the shared transition + loop attach + event fire.
// It reports false after resolving done and cleaning up on failure.
func (l *Lifecycle[S]) register(done *completion.Handle) bool {
	if err := l.ch.State().Register(); err != nil {
		done.Resolve(err)
		l.Close(err, api.CloseAll, nil)
		return false
	}
	if err := l.ch.EventLoop().Register(l.ch); err != nil {
		done.Resolve(err)
		l.Close(err, api.CloseAll, nil)
		return false
	}
	l.ch.Pipeline().FireChannelRegistered()
	return true
}

// Connect resolves addr and activates the channel in connect mode.
func (l *Lifecycle[S]) Connect(addr net.Addr, done *completion.Handle) {
	l.activate(api.ActivationConnect, api.ResolveEndpoint(addr), done)
}

// Bind resolves addr and activates the channel in bind mode.
func (l *Lifecycle[S]) Bind(addr net.Addr, done *completion.Handle) {
	l.activate(api.ActivationBind, api.ResolveEndpoint(addr), done)
}

// activate is the shared activation routine. A type mismatch fails
// done synchronously and must not touch the state machine.
func (l *Lifecycle[S]) activate(typ api.ActivationType, ep api.Endpoint, done *completion.Handle) {
	if typ != l.ch.ActivationType() {
		done.Resolve(api.ErrUnsupportedOperation)
		return
	}
	if err := l.ch.State().BeginActivating(); err != nil {
		done.Resolve(err)
		return
	}
	l.ch.BeginActivating(ep, done)
}

// BecomeActive completes activation. An out-of-order call is fatal to
// the channel: done observes the transition error and the channel is
// torn down with mode all. Skipping the teardown would leave a
// half-activated channel behind, which is an invariant violation,
// not a recoverable condition.
func (l *Lifecycle[S]) BecomeActive(done *completion.Handle) {
	if err := l.ch.State().BecomeActive(); err != nil {
		done.Resolve(err)
		l.Close(err, api.CloseAll, nil)
		return
	}
	done.Resolve(nil)
	l.ch.Pipeline().FireChannelActive()
	l.ch.ReadIfNeeded()
}

// Close tears the channel down according to mode. cause is the
// triggering error, propagated opaquely to the transport hooks.
//
// Mode all fires inactive only when the channel was genuinely active,
// then deregisters, fires unregistered, resolves done, and schedules
// handler removal plus the close promise for a later loop turn:
// in-flight work may still need the live pipeline during the rest of
// the current turn.
func (l *Lifecycle[S]) Close(cause error, mode api.CloseMode, done *completion.Handle) {
	switch mode {
	case api.CloseInput:
		// Read-side half-close is permanently unsupported.
		done.Resolve(api.ErrUnsupportedOperation)
	case api.CloseOutput:
		l.ch.DoHalfClose(cause, done)
	case api.CloseAll:
		prior, err := l.ch.State().BecomeInactive()
		if err != nil {
			l.log.Debug("close on already-closed channel",
				zap.Stringer("channel", l.ch.ID()))
			done.Resolve(err)
			return
		}
		l.ch.DoClose(cause)
		if prior == PhaseActive {
			l.ch.Pipeline().FireChannelInactive()
		}
		if err := l.ch.EventLoop().Deregister(l.ch); err != nil {
			l.log.Warn("deregister failed during close",
				zap.Stringer("channel", l.ch.ID()), zap.Error(err))
		}
		l.ch.Pipeline().FireChannelUnregistered()
		done.Resolve(nil)
		l.ch.EventLoop().Execute(func() {
			l.ch.Pipeline().RemoveHandlers()
			l.ch.ClosePromise().Resolve(nil)
		})
	default:
		done.Resolve(api.ErrUnsupportedOperation)
	}
}
