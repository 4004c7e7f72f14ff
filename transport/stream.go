// File: transport/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StreamChannel: a connect-activated, full-duplex channel over
// net.Conn. Writes queue in submission order and flush through the
// buffer-ownership bridge as one vectored write; the outbound buffer
// token is released from the write completion, never before.

package transport

import (
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/channel"
	"github.com/momentics/hioload-channel/core/completion"
)

// StreamSubstate tracks per-direction shutdown while the channel is
// active. Input half-close is intentionally absent.
type StreamSubstate struct {
	OutputShutdown bool
}

const readChunk = 16 * 1024

// StreamChannel is the connect-type channel kind.
type StreamChannel struct {
	id     uuid.UUID
	loop   api.EventLoop
	pipe   api.Pipeline
	pool   api.BufferPool
	closeP *completion.Handle
	log    *zap.Logger

	st *channel.ChannelState[StreamSubstate]
	lc *channel.Lifecycle[StreamSubstate]

	conn     net.Conn
	pending  channel.PendingWrites
	handler  api.Handler
	autoRead bool
	reading  bool
	flushing bool
}

// StreamOption configures a StreamChannel.
type StreamOption func(*StreamChannel)

// WithStreamLogger sets the structured logger.
func WithStreamLogger(log *zap.Logger) StreamOption {
	return func(s *StreamChannel) { s.log = log }
}

// WithReadHandler sets the handler inbound buffers are delivered to
// and enables reading on activation.
func WithReadHandler(h api.Handler) StreamOption {
	return func(s *StreamChannel) { s.handler = h; s.autoRead = true }
}

// NewStreamChannel creates an idle stream channel that will dial its
// endpoint during activation.
func NewStreamChannel(loop api.EventLoop, pipe api.Pipeline, bufPool api.BufferPool, opts ...StreamOption) *StreamChannel {
	s := &StreamChannel{
		id:     uuid.New(),
		loop:   loop,
		pipe:   pipe,
		pool:   bufPool,
		closeP: completion.New(),
		log:    zap.NewNop(),
		st:     channel.NewState[StreamSubstate](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lc = channel.NewLifecycle[StreamSubstate](s, channel.WithLogger[StreamSubstate](s.log))
	return s
}

// WrapStreamConn creates a stream channel around a connection that is
// already established, e.g. one produced by a listener's accept.
// Activate it with RegisterAlreadyConfigured.
func WrapStreamConn(conn net.Conn, loop api.EventLoop, pipe api.Pipeline, bufPool api.BufferPool, opts ...StreamOption) *StreamChannel {
	s := NewStreamChannel(loop, pipe, bufPool, opts...)
	s.conn = conn
	return s
}

func (s *StreamChannel) ID() uuid.UUID                                { return s.id }
func (s *StreamChannel) State() *channel.ChannelState[StreamSubstate] { return s.state() }
func (s *StreamChannel) EventLoop() api.EventLoop                     { return s.loop }
func (s *StreamChannel) Pipeline() api.Pipeline                       { return s.pipe }
func (s *StreamChannel) ClosePromise() *completion.Handle             { return s.closeP }
func (s *StreamChannel) ActivationType() api.ActivationType           { return api.ActivationConnect }

// RemoteAddr returns the peer address, or nil before activation.
func (s *StreamChannel) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// Register attaches the channel to its loop. Must run on the loop.
func (s *StreamChannel) Register(done *completion.Handle) { s.lc.Register(done) }

// RegisterAlreadyConfigured registers and activates a wrapped,
// pre-established connection.
func (s *StreamChannel) RegisterAlreadyConfigured(done *completion.Handle) {
	s.lc.RegisterAlreadyConfigured(done)
}

// Connect activates the channel toward addr.
func (s *StreamChannel) Connect(addr net.Addr, done *completion.Handle) {
	s.lc.Connect(addr, done)
}

// Close tears the channel down according to mode.
func (s *StreamChannel) Close(cause error, mode api.CloseMode, done *completion.Handle) {
	s.lc.Close(cause, mode, done)
}

// Write queues one buffer for the next flush. The channel takes over
// the caller's reference; done resolves when the flushed batch has
// been handed to the transport.
func (s *StreamChannel) Write(buf api.Buffer, done *completion.Handle) {
	sub, ok := s.state().Substate()
	if !ok {
		done.Resolve(api.ErrChannelClosed)
		buf.Release()
		return
	}
	if sub.OutputShutdown {
		done.Resolve(api.ErrChannelClosed)
		buf.Release()
		return
	}
	s.pending.Append(buf, done)
}

// Flush drains every pending write into one vectored transport write.
// Flushes are serialized: a flush that arrives while one is in
// flight runs when the first completes, preserving submission order.
func (s *StreamChannel) Flush() {
	if s.flushing || s.pending.IsEmpty() {
		return
	}
	out, merged := s.pending.Drain()
	s.flushing = true
	conn := s.conn
	go func() {
		bufs := net.Buffers(out.Vectors())
		_, err := bufs.WriteTo(conn)
		s.loop.Execute(func() {
			// Transport is done reading the views: drop the
			// lifetime extension, then deliver the one merged
			// outcome.
			out.Release()
			merged.Resolve(err)
			s.flushing = false
			if err != nil {
				s.lc.Close(err, api.CloseAll, nil)
				return
			}
			s.Flush()
		})
	}()
}

// PendingWrites reports the queued, unflushed write count.
func (s *StreamChannel) PendingWrites() int { return s.pending.Len() }

// BeginActivating dials the resolved endpoint off-loop and completes
// activation back on the loop.
func (s *StreamChannel) BeginActivating(ep api.Endpoint, done *completion.Handle) {
	go func() {
		conn, err := net.Dial(ep.Network, ep.Address)
		s.loop.Execute(func() {
			if err != nil {
				done.Resolve(err)
				s.lc.Close(err, api.CloseAll, nil)
				return
			}
			s.conn = conn
			s.lc.BecomeActive(done)
		})
	}()
}

// AlreadyConfigured completes activation of a wrapped connection.
func (s *StreamChannel) AlreadyConfigured(done *completion.Handle) {
	s.lc.BecomeActive(done)
}

// DoClose resolves whatever is still queued and closes the socket.
// Pending completions observe the triggering error so a close acting
// as cancellation never leaves handles dangling.
func (s *StreamChannel) DoClose(cause error) {
	if cause == nil {
		cause = api.ErrChannelClosed
	}
	s.pending.FailAll(cause)
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.log.Debug("socket close failed",
				zap.Stringer("channel", s.id), zap.Error(err))
		}
	}
}

// DoHalfClose shuts down the outbound direction, leaving inbound
// open. Repeating it fails with ErrAlreadyClosed.
func (s *StreamChannel) DoHalfClose(cause error, done *completion.Handle) {
	sub, ok := s.state().Substate()
	if !ok {
		done.Resolve(api.ErrChannelClosed)
		return
	}
	if sub.OutputShutdown {
		done.Resolve(api.ErrAlreadyClosed)
		return
	}
	if cause == nil {
		cause = api.ErrChannelClosed
	}
	s.pending.FailAll(cause)
	if err := shutdownWrite(s.conn); err != nil {
		done.Resolve(err)
		return
	}
	sub.OutputShutdown = true
	done.Resolve(nil)
}

// ReadIfNeeded starts the read pump once, if a handler wants data.
func (s *StreamChannel) ReadIfNeeded() {
	if !s.autoRead || s.reading {
		return
	}
	s.reading = true
	go s.readLoop()
}

// readLoop reads off-loop into pooled buffers and hands each one to
// the handler on the loop. The handler owns the buffer's reference.
func (s *StreamChannel) readLoop() {
	for {
		buf := s.pool.Get(readChunk, -1)
		n, err := s.conn.Read(buf.Bytes())
		if n > 0 {
			view := buf.Slice(0, n)
			s.loop.Execute(func() {
				if herr := s.handler.Handle(view); herr != nil {
					s.log.Warn("read handler failed",
						zap.Stringer("channel", s.id), zap.Error(herr))
				}
				buf.Release()
			})
		} else {
			buf.Release()
		}
		if err != nil {
			s.loop.Execute(func() {
				s.reading = false
				s.lc.Close(err, api.CloseAll, nil)
			})
			return
		}
	}
}

func (s *StreamChannel) state() *channel.ChannelState[StreamSubstate] {
	return s.st
}

var _ channel.StateManaged[StreamSubstate] = (*StreamChannel)(nil)
