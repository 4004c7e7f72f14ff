// File: transport/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ListenerChannel: a bind-activated channel over net.Listener.
// Accepted connections become already-configured StreamChannels on a
// child loop; closing the listener closes every live child.

package transport

import (
	"errors"
	"net"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/channel"
	"github.com/momentics/hioload-channel/core/completion"
)

// ListenerSubstate carries no extra tracking; the listener has no
// data directions to half-close.
type ListenerSubstate struct{}

// ChildFactory builds the channel for one accepted connection. It
// runs on the listener's loop; the returned channel is registered and
// activated by the listener.
type ChildFactory func(conn net.Conn) *StreamChannel

// ListenerChannel is the bind-type channel kind.
type ListenerChannel struct {
	id     uuid.UUID
	loop   api.EventLoop
	pipe   api.Pipeline
	closeP *completion.Handle
	log    *zap.Logger

	st *channel.ChannelState[ListenerSubstate]
	lc *channel.Lifecycle[ListenerSubstate]

	ln        net.Listener
	newChild  ChildFactory
	accepting bool
	children  map[uuid.UUID]*StreamChannel
}

// ListenerOption configures a ListenerChannel.
type ListenerOption func(*ListenerChannel)

// WithListenerLogger sets the structured logger.
func WithListenerLogger(log *zap.Logger) ListenerOption {
	return func(l *ListenerChannel) { l.log = log }
}

// NewListenerChannel creates an idle listener channel; newChild is
// invoked per accepted connection.
func NewListenerChannel(loop api.EventLoop, pipe api.Pipeline, newChild ChildFactory, opts ...ListenerOption) *ListenerChannel {
	l := &ListenerChannel{
		id:       uuid.New(),
		loop:     loop,
		pipe:     pipe,
		closeP:   completion.New(),
		log:      zap.NewNop(),
		st:       channel.NewState[ListenerSubstate](),
		newChild: newChild,
		children: make(map[uuid.UUID]*StreamChannel),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lc = channel.NewLifecycle[ListenerSubstate](l, channel.WithLogger[ListenerSubstate](l.log))
	return l
}

func (l *ListenerChannel) ID() uuid.UUID                                  { return l.id }
func (l *ListenerChannel) State() *channel.ChannelState[ListenerSubstate] { return l.st }
func (l *ListenerChannel) EventLoop() api.EventLoop                       { return l.loop }
func (l *ListenerChannel) Pipeline() api.Pipeline                         { return l.pipe }
func (l *ListenerChannel) ClosePromise() *completion.Handle               { return l.closeP }
func (l *ListenerChannel) ActivationType() api.ActivationType             { return api.ActivationBind }

// Addr returns the bound address, or nil before activation.
func (l *ListenerChannel) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// NumChildren reports the live accepted-channel count.
func (l *ListenerChannel) NumChildren() int { return len(l.children) }

// Register attaches the listener to its loop. Must run on the loop.
func (l *ListenerChannel) Register(done *completion.Handle) { l.lc.Register(done) }

// Bind activates the listener on addr.
func (l *ListenerChannel) Bind(addr net.Addr, done *completion.Handle) {
	l.lc.Bind(addr, done)
}

// Close tears the listener down according to mode.
func (l *ListenerChannel) Close(cause error, mode api.CloseMode, done *completion.Handle) {
	l.lc.Close(cause, mode, done)
}

// BeginActivating binds the socket off-loop and completes activation
// back on the loop.
func (l *ListenerChannel) BeginActivating(ep api.Endpoint, done *completion.Handle) {
	go func() {
		ln, err := net.Listen(ep.Network, ep.Address)
		l.loop.Execute(func() {
			if err != nil {
				done.Resolve(err)
				l.lc.Close(err, api.CloseAll, nil)
				return
			}
			l.ln = ln
			l.lc.BecomeActive(done)
		})
	}()
}

// AlreadyConfigured completes activation of a listener wrapping a
// pre-bound socket (set via WrapListener).
func (l *ListenerChannel) AlreadyConfigured(done *completion.Handle) {
	l.lc.BecomeActive(done)
}

// WrapListener attaches a pre-bound socket for use with
// RegisterAlreadyConfigured.
func (l *ListenerChannel) WrapListener(ln net.Listener) { l.ln = ln }

// RegisterAlreadyConfigured registers and activates a wrapped,
// pre-bound listener.
func (l *ListenerChannel) RegisterAlreadyConfigured(done *completion.Handle) {
	l.lc.RegisterAlreadyConfigured(done)
}

// DoClose stops accepting and closes every live child. Child close
// failures are combined and logged, never surfaced raw.
func (l *ListenerChannel) DoClose(cause error) {
	if l.ln != nil {
		if err := l.ln.Close(); err != nil {
			l.log.Debug("listener close failed",
				zap.Stringer("channel", l.id), zap.Error(err))
		}
	}
	var errs error
	for id, child := range l.children {
		child := child
		if child.EventLoop().InLoop() {
			h := completion.New()
			child.Close(cause, api.CloseAll, h)
			if err := h.Err(); err != nil && !errors.Is(err, api.ErrAlreadyClosed) {
				errs = multierr.Append(errs, err)
			}
		} else {
			child.EventLoop().Execute(func() {
				child.Close(cause, api.CloseAll, nil)
			})
		}
		delete(l.children, id)
	}
	if errs != nil {
		l.log.Warn("child teardown reported errors",
			zap.Stringer("channel", l.id), zap.Error(errs))
	}
}

// DoHalfClose: a listener has no outbound direction.
func (l *ListenerChannel) DoHalfClose(_ error, done *completion.Handle) {
	done.Resolve(api.ErrUnsupportedOperation)
}

// ReadIfNeeded starts the accept pump once.
func (l *ListenerChannel) ReadIfNeeded() {
	if l.accepting {
		return
	}
	l.accepting = true
	go l.acceptLoop()
}

// acceptLoop accepts off-loop and builds each child on the loop.
func (l *ListenerChannel) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.loop.Execute(func() {
				l.accepting = false
				l.lc.Close(err, api.CloseAll, nil)
			})
			return
		}
		l.loop.Execute(func() {
			child := l.newChild(conn)
			if child == nil {
				_ = conn.Close()
				return
			}
			l.children[child.ID()] = child
			childID := child.ID()
			// The child may live on another loop. Its close promise
			// and activation handle are owned by that loop, so both
			// subscriptions happen there; only the map deletions come
			// back to this loop.
			attach := func() {
				child.ClosePromise().OnComplete(func(error) {
					l.loop.Execute(func() { delete(l.children, childID) })
				})
				done := completion.New()
				done.OnComplete(func(err error) {
					if err != nil {
						l.log.Warn("child activation failed",
							zap.Stringer("channel", l.id), zap.Error(err))
						l.loop.Execute(func() { delete(l.children, childID) })
					}
				})
				child.RegisterAlreadyConfigured(done)
			}
			if child.EventLoop().InLoop() {
				attach()
			} else {
				child.EventLoop().Execute(attach)
			}
		})
	}
}

var _ channel.StateManaged[ListenerSubstate] = (*ListenerChannel)(nil)
