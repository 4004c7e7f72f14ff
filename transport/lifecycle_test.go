// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package transport_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/core/completion"
	"github.com/momentics/hioload-channel/core/concurrency"
	"github.com/momentics/hioload-channel/fake"
	"github.com/momentics/hioload-channel/pool"
	"github.com/momentics/hioload-channel/transport"
)

const testTimeout = 5 * time.Second

func startLoop(t *testing.T) *concurrency.Loop {
	t.Helper()
	l := concurrency.NewLoop()
	go l.Run()
	t.Cleanup(l.Stop)
	return l
}

func await(t *testing.T, h *completion.Handle, what string) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// onLoop runs fn on the loop and waits for it, so tests can touch
// loop-owned state safely.
func onLoop(t *testing.T, l *concurrency.Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	l.Execute(func() { fn(); close(done) })
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("loop task never ran")
	}
}

func TestStreamConnectWriteFlushClose(t *testing.T) {
	loop := startLoop(t)
	mgr := pool.NewManager()

	// Plain peer socket on the far side.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, aerr := ln.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	ch := transport.NewStreamChannel(loop, fake.NewPipeline(), mgr)

	reg := completion.New()
	onLoop(t, loop, func() { ch.Register(reg) })
	await(t, reg, "register")
	require.NoError(t, reg.Err())

	conn := completion.New()
	onLoop(t, loop, func() { ch.Connect(ln.Addr(), conn) })
	await(t, conn, "connect")
	require.NoError(t, conn.Err())

	w1, w2 := completion.New(), completion.New()
	onLoop(t, loop, func() {
		b1 := mgr.Get(2, -1)
		copy(b1.Bytes(), "ab")
		b2 := mgr.Get(3, -1)
		copy(b2.Bytes(), "cde")
		ch.Write(b1, w1)
		ch.Write(b2, w2)
		require.Equal(t, 2, ch.PendingWrites())
		ch.Flush()
	})
	await(t, w1, "first write")
	await(t, w2, "second write")
	require.NoError(t, w1.Err())
	require.NoError(t, w2.Err())

	closed := completion.New()
	onLoop(t, loop, func() { ch.Close(nil, api.CloseAll, closed) })
	await(t, closed, "close")
	require.NoError(t, closed.Err())
	await(t, ch.ClosePromise(), "close promise")

	select {
	case data := <-received:
		require.Equal(t, []byte("abcde"), data)
	case <-time.After(testTimeout):
		t.Fatal("peer never saw the flushed bytes")
	}
}

func TestStreamHalfClose(t *testing.T) {
	loop := startLoop(t)
	mgr := pool.NewManager()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	peerEOF := make(chan error, 1)
	go func() {
		conn, aerr := ln.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		_, rerr := io.ReadAll(conn)
		peerEOF <- rerr
	}()

	ch := transport.NewStreamChannel(loop, fake.NewPipeline(), mgr)
	reg, conn := completion.New(), completion.New()
	onLoop(t, loop, func() { ch.Register(reg) })
	await(t, reg, "register")
	onLoop(t, loop, func() { ch.Connect(ln.Addr(), conn) })
	await(t, conn, "connect")
	require.NoError(t, conn.Err())

	hc := completion.New()
	onLoop(t, loop, func() { ch.Close(nil, api.CloseOutput, hc) })
	await(t, hc, "half-close")
	require.NoError(t, hc.Err())

	// Peer observes clean EOF on its read side.
	select {
	case rerr := <-peerEOF:
		require.NoError(t, rerr)
	case <-time.After(testTimeout):
		t.Fatal("peer never saw EOF after half-close")
	}

	// Output is gone; writes must be rejected, repeats flagged.
	onLoop(t, loop, func() {
		w := completion.New()
		ch.Write(mgr.Get(1, -1), w)
		require.ErrorIs(t, w.Err(), api.ErrChannelClosed)

		again := completion.New()
		ch.Close(nil, api.CloseOutput, again)
		require.ErrorIs(t, again.Err(), api.ErrAlreadyClosed)
	})

	closed := completion.New()
	onLoop(t, loop, func() { ch.Close(nil, api.CloseAll, closed) })
	await(t, closed, "full close")
	require.NoError(t, closed.Err())
}

type echoHandler struct{ ch *transport.StreamChannel }

func (e *echoHandler) Handle(data any) error {
	buf, ok := data.(api.Buffer)
	if !ok {
		return nil
	}
	buf.Retain()
	e.ch.Write(buf, nil)
	e.ch.Flush()
	return nil
}

func TestListenerAcceptsEchoChildren(t *testing.T) {
	loop := startLoop(t)
	mgr := pool.NewManager()

	lch := transport.NewListenerChannel(loop, fake.NewPipeline(),
		func(conn net.Conn) *transport.StreamChannel {
			e := &echoHandler{}
			child := transport.WrapStreamConn(conn, loop, fake.NewPipeline(), mgr,
				transport.WithReadHandler(e))
			e.ch = child
			return child
		})

	reg, bound := completion.New(), completion.New()
	onLoop(t, loop, func() { lch.Register(reg) })
	await(t, reg, "register")
	onLoop(t, loop, func() {
		lch.Bind(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, bound)
	})
	await(t, bound, "bind")
	require.NoError(t, bound.Err())

	var addr net.Addr
	onLoop(t, loop, func() { addr = lch.Addr() })
	require.NotNil(t, addr)

	client, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	reply := make([]byte, 4)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))
	_, err = io.ReadFull(client, reply)
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), reply)

	closed := completion.New()
	onLoop(t, loop, func() { lch.Close(nil, api.CloseAll, closed) })
	await(t, closed, "close")
	require.NoError(t, closed.Err())
	await(t, lch.ClosePromise(), "close promise")

	// Children die with the listener: the client sees EOF.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))
	_, err = client.Read(reply)
	require.ErrorIs(t, err, io.EOF)
}

// Children living on a different loop than their listener: every
// touch of a child-owned handle must happen on the child's loop, and
// every touch of the listener's child map on the listener's loop. Run
// with -race.
func TestListenerChildrenOnSeparateLoop(t *testing.T) {
	listenerLoop := startLoop(t)
	childLoop := startLoop(t)
	mgr := pool.NewManager()

	lch := transport.NewListenerChannel(listenerLoop, fake.NewPipeline(),
		func(conn net.Conn) *transport.StreamChannel {
			e := &echoHandler{}
			child := transport.WrapStreamConn(conn, childLoop, fake.NewPipeline(), mgr,
				transport.WithReadHandler(e))
			e.ch = child
			return child
		})

	reg, bound := completion.New(), completion.New()
	onLoop(t, listenerLoop, func() { lch.Register(reg) })
	await(t, reg, "register")
	onLoop(t, listenerLoop, func() {
		lch.Bind(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, bound)
	})
	await(t, bound, "bind")
	require.NoError(t, bound.Err())

	var addr net.Addr
	onLoop(t, listenerLoop, func() { addr = lch.Addr() })
	require.NotNil(t, addr)

	const clients = 20
	conns := make([]net.Conn, 0, clients)
	for i := 0; i < clients; i++ {
		client, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		conns = append(conns, client)

		_, err = client.Write([]byte("ping"))
		require.NoError(t, err)

		reply := make([]byte, 4)
		require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))
		_, err = io.ReadFull(client, reply)
		require.NoError(t, err)
		require.Equal(t, []byte("ping"), reply)
	}

	// A child dying on its own loop is removed from the listener's
	// map on the listener's loop.
	conns[0].Close()
	require.Eventually(t, func() bool {
		var n int
		onLoop(t, listenerLoop, func() { n = lch.NumChildren() })
		return n == clients-1
	}, testTimeout, 10*time.Millisecond)

	closed := completion.New()
	onLoop(t, listenerLoop, func() { lch.Close(nil, api.CloseAll, closed) })
	await(t, closed, "close")
	require.NoError(t, closed.Err())
	await(t, lch.ClosePromise(), "close promise")

	for _, client := range conns[1:] {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))
		_, err := client.Read(make([]byte, 1))
		require.ErrorIs(t, err, io.EOF)
		client.Close()
	}

	onLoop(t, listenerLoop, func() {
		require.Zero(t, lch.NumChildren())
	})
}

func TestListenerHalfCloseUnsupported(t *testing.T) {
	loop := startLoop(t)
	lch := transport.NewListenerChannel(loop, fake.NewPipeline(),
		func(net.Conn) *transport.StreamChannel { return nil })

	reg := completion.New()
	onLoop(t, loop, func() { lch.Register(reg) })
	await(t, reg, "register")

	onLoop(t, loop, func() {
		done := completion.New()
		lch.Close(nil, api.CloseOutput, done)
		require.ErrorIs(t, done.Err(), api.ErrUnsupportedOperation)
	})
}

type recordingDatagramHandler struct {
	got chan *transport.Datagram
}

func (r *recordingDatagramHandler) Handle(data any) error {
	if dg, ok := data.(*transport.Datagram); ok {
		dg.Buf.Retain()
		r.got <- dg
	}
	return nil
}

func TestDatagramBindSendReceive(t *testing.T) {
	loop := startLoop(t)
	mgr := pool.NewManager()

	h := &recordingDatagramHandler{got: make(chan *transport.Datagram, 1)}
	ch := transport.NewDatagramChannel(loop, fake.NewPipeline(), mgr,
		transport.WithDatagramHandler(h))

	reg, bound := completion.New(), completion.New()
	onLoop(t, loop, func() { ch.Register(reg) })
	await(t, reg, "register")
	onLoop(t, loop, func() {
		ch.Bind(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, bound)
	})
	await(t, bound, "bind")
	require.NoError(t, bound.Err())

	var addr net.Addr
	onLoop(t, loop, func() { addr = ch.LocalAddr() })

	client, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	var dg *transport.Datagram
	select {
	case dg = <-h.got:
	case <-time.After(testTimeout):
		t.Fatal("datagram never arrived")
	}
	require.Equal(t, []byte("hello"), dg.Buf.Bytes())

	// Reply through the pending-write bridge.
	sent := completion.New()
	onLoop(t, loop, func() {
		reply := mgr.Get(2, -1)
		copy(reply.Bytes(), "ok")
		ch.WriteTo(reply, dg.From, sent)
		ch.Flush()
	})
	await(t, sent, "send")
	require.NoError(t, sent.Err())
	dg.Buf.Release()

	buf := make([]byte, 16)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), buf[:n])

	closed := completion.New()
	onLoop(t, loop, func() { ch.Close(nil, api.CloseAll, closed) })
	await(t, closed, "close")
	require.NoError(t, closed.Err())
}
