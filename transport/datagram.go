// File: transport/datagram.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DatagramChannel: a bind-activated, connectionless channel over
// net.PacketConn. Outbound datagrams carry their destination, so the
// pending-write queue pairs each buffer with an address alongside the
// shared bridge machinery.

package transport

import (
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/channel"
	"github.com/momentics/hioload-channel/core/completion"
)

// DatagramSubstate tracks outbound shutdown for symmetry with the
// stream kind; datagram sockets have no FIN, so "shutdown" just
// rejects further sends.
type DatagramSubstate struct {
	OutputShutdown bool
}

// Datagram is one received packet: a pooled buffer plus its source.
type Datagram struct {
	Buf  api.Buffer
	From net.Addr
}

const maxDatagram = 64 * 1024

// DatagramChannel is the bind-type, connectionless channel kind.
type DatagramChannel struct {
	id     uuid.UUID
	loop   api.EventLoop
	pipe   api.Pipeline
	pool   api.BufferPool
	closeP *completion.Handle
	log    *zap.Logger

	st *channel.ChannelState[DatagramSubstate]
	lc *channel.Lifecycle[DatagramSubstate]

	pc       net.PacketConn
	pending  channel.PendingWrites
	dests    []net.Addr
	handler  api.Handler
	autoRead bool
	reading  bool
	flushing bool
}

// DatagramOption configures a DatagramChannel.
type DatagramOption func(*DatagramChannel)

// WithDatagramLogger sets the structured logger.
func WithDatagramLogger(log *zap.Logger) DatagramOption {
	return func(d *DatagramChannel) { d.log = log }
}

// WithDatagramHandler sets the handler receiving *Datagram payloads
// and enables reading on activation.
func WithDatagramHandler(h api.Handler) DatagramOption {
	return func(d *DatagramChannel) { d.handler = h; d.autoRead = true }
}

// NewDatagramChannel creates an idle datagram channel.
func NewDatagramChannel(loop api.EventLoop, pipe api.Pipeline, bufPool api.BufferPool, opts ...DatagramOption) *DatagramChannel {
	d := &DatagramChannel{
		id:     uuid.New(),
		loop:   loop,
		pipe:   pipe,
		pool:   bufPool,
		closeP: completion.New(),
		log:    zap.NewNop(),
		st:     channel.NewState[DatagramSubstate](),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.lc = channel.NewLifecycle[DatagramSubstate](d, channel.WithLogger[DatagramSubstate](d.log))
	return d
}

func (d *DatagramChannel) ID() uuid.UUID                                  { return d.id }
func (d *DatagramChannel) State() *channel.ChannelState[DatagramSubstate] { return d.st }
func (d *DatagramChannel) EventLoop() api.EventLoop                       { return d.loop }
func (d *DatagramChannel) Pipeline() api.Pipeline                         { return d.pipe }
func (d *DatagramChannel) ClosePromise() *completion.Handle               { return d.closeP }
func (d *DatagramChannel) ActivationType() api.ActivationType             { return api.ActivationBind }

// LocalAddr returns the bound address, or nil before activation.
func (d *DatagramChannel) LocalAddr() net.Addr {
	if d.pc == nil {
		return nil
	}
	return d.pc.LocalAddr()
}

// Register attaches the channel to its loop. Must run on the loop.
func (d *DatagramChannel) Register(done *completion.Handle) { d.lc.Register(done) }

// Bind activates the channel on addr.
func (d *DatagramChannel) Bind(addr net.Addr, done *completion.Handle) {
	d.lc.Bind(addr, done)
}

// Close tears the channel down according to mode.
func (d *DatagramChannel) Close(cause error, mode api.CloseMode, done *completion.Handle) {
	d.lc.Close(cause, mode, done)
}

// WriteTo queues one datagram for to; done resolves when the flushed
// batch has been handed to the socket.
func (d *DatagramChannel) WriteTo(buf api.Buffer, to net.Addr, done *completion.Handle) {
	sub, ok := d.st.Substate()
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
	d.pending.Append(buf, done)
	d.dests = append(d.dests, to)
}

// Flush sends every pending datagram in submission order. Like the
// stream kind, flushes serialize so order survives.
func (d *DatagramChannel) Flush() {
	if d.flushing || d.pending.IsEmpty() {
		return
	}
	out, merged := d.pending.Drain()
	dests := d.dests
	d.dests = nil
	d.flushing = true
	pc := d.pc
	go func() {
		var werr error
		for i, vec := range out.Vectors() {
			if _, err := pc.WriteTo(vec, dests[i]); err != nil {
				werr = err
				break
			}
		}
		d.loop.Execute(func() {
			out.Release()
			merged.Resolve(werr)
			d.flushing = false
			if werr != nil {
				d.lc.Close(werr, api.CloseAll, nil)
				return
			}
			d.Flush()
		})
	}()
}

// BeginActivating binds the socket off-loop and completes activation
// back on the loop.
func (d *DatagramChannel) BeginActivating(ep api.Endpoint, done *completion.Handle) {
	go func() {
		pc, err := net.ListenPacket(ep.Network, ep.Address)
		d.loop.Execute(func() {
			if err != nil {
				done.Resolve(err)
				d.lc.Close(err, api.CloseAll, nil)
				return
			}
			d.pc = pc
			d.lc.BecomeActive(done)
		})
	}()
}

// AlreadyConfigured completes activation of a wrapped socket.
func (d *DatagramChannel) AlreadyConfigured(done *completion.Handle) {
	d.lc.BecomeActive(done)
}

// DoClose resolves queued sends and closes the socket.
func (d *DatagramChannel) DoClose(cause error) {
	if cause == nil {
		cause = api.ErrChannelClosed
	}
	d.pending.FailAll(cause)
	d.dests = nil
	if d.pc != nil {
		if err := d.pc.Close(); err != nil {
			d.log.Debug("socket close failed",
				zap.Stringer("channel", d.id), zap.Error(err))
		}
	}
}

// DoHalfClose marks the send side shut; there is no FIN to emit.
func (d *DatagramChannel) DoHalfClose(cause error, done *completion.Handle) {
	sub, ok := d.st.Substate()
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
	d.pending.FailAll(cause)
	d.dests = nil
	sub.OutputShutdown = true
	done.Resolve(nil)
}

// ReadIfNeeded starts the receive pump once, if a handler wants data.
func (d *DatagramChannel) ReadIfNeeded() {
	if !d.autoRead || d.reading {
		return
	}
	d.reading = true
	go d.readLoop()
}

func (d *DatagramChannel) readLoop() {
	for {
		buf := d.pool.Get(maxDatagram, -1)
		n, from, err := d.pc.ReadFrom(buf.Bytes())
		if n > 0 {
			view := buf.Slice(0, n)
			d.loop.Execute(func() {
				if herr := d.handler.Handle(&Datagram{Buf: view, From: from}); herr != nil {
					d.log.Warn("datagram handler failed",
						zap.Stringer("channel", d.id), zap.Error(herr))
				}
				buf.Release()
			})
		} else {
			buf.Release()
		}
		if err != nil {
			d.loop.Execute(func() {
				d.reading = false
				d.lc.Close(err, api.CloseAll, nil)
			})
			return
		}
	}
}

var _ channel.StateManaged[DatagramSubstate] = (*DatagramChannel)(nil)
