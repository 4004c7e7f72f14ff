// File: channel/pending.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The pending-write queue and the buffer-ownership bridge. Writes
// accumulate in submission order until a flush drains the whole queue
// into one transport-native vectored buffer plus one merged
// completion handle.

package channel

import (
	"sync/atomic"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/core/completion"
)

// PendingWrite pairs one caller-submitted buffer with its completion
// handle.
type PendingWrite struct {
	Buf  api.Buffer
	Done *completion.Handle
}

// PendingWrites is the insertion-ordered write queue owned by a
// concrete channel. Single-loop use; not internally synchronized.
type PendingWrites struct {
	entries []PendingWrite
}

// Append enqueues one write. The queue takes over the caller's
// buffer reference; it is dropped when the entry is drained or
// failed.
func (p *PendingWrites) Append(buf api.Buffer, done *completion.Handle) {
	p.entries = append(p.entries, PendingWrite{Buf: buf, Done: done})
}

// Len reports the number of queued writes.
func (p *PendingWrites) Len() int { return len(p.entries) }

// IsEmpty reports whether nothing is queued.
func (p *PendingWrites) IsEmpty() bool { return len(p.entries) == 0 }

// Drain consumes the whole queue in submission order, producing one
// OutboundBuffer holding a retained zero-copy view per entry and one
// completion handle into which every entry's handle has been
// cascaded. The queue is left empty with its capacity retained.
func (p *PendingWrites) Drain() (*OutboundBuffer, *completion.Handle) {
	out := NewOutboundBuffer(len(p.entries))
	var merged *completion.Handle
	for i := range p.entries {
		out.AppendRetained(p.entries[i].Buf)
		merged = completion.Cascade(merged, p.entries[i].Done)
		// The entry is consumed: the queue's reference moves to the
		// outbound token, which now solely keeps the storage alive.
		p.entries[i].Buf.Release()
		p.entries[i] = PendingWrite{}
	}
	p.entries = p.entries[:0]
	return out, merged
}

// FailAll resolves every queued handle with err and empties the
// queue. Used when a close cancels writes that never reached the
// transport; handles must not be left dangling.
func (p *PendingWrites) FailAll(err error) {
	for i := range p.entries {
		p.entries[i].Done.Resolve(err)
		p.entries[i].Buf.Release()
		p.entries[i] = PendingWrite{}
	}
	p.entries = p.entries[:0]
}

// OutboundBuffer is the transport-native buffer representation: an
// ordered sequence of zero-copy views whose backing storage has been
// retained for exactly as long as the transport may read it. The
// OutboundBuffer itself is the ownership token: the transport calls
// Release once, from its completion callback, when it is done with
// every segment. An unbalanced retain leaks storage; an early release
// reads freed memory.
type OutboundBuffer struct {
	vectors  [][]byte
	owners   []api.Buffer
	total    int
	released atomic.Bool
}

// NewOutboundBuffer returns an empty accumulator with room for n
// segments.
func NewOutboundBuffer(n int) *OutboundBuffer {
	return &OutboundBuffer{
		vectors: make([][]byte, 0, n),
		owners:  make([]api.Buffer, 0, n),
	}
}

// AppendRetained extends the accumulator by a zero-copy view over
// buf's readable bytes, retaining buf for the transport's benefit.
// Existing segments are never copied or moved.
func (o *OutboundBuffer) AppendRetained(buf api.Buffer) {
	buf.Retain()
	b := buf.Bytes()
	o.vectors = append(o.vectors, b)
	o.owners = append(o.owners, buf)
	o.total += len(b)
}

// Vectors returns the ordered segments for a vectored transport
// write. Valid until Release.
func (o *OutboundBuffer) Vectors() [][]byte { return o.vectors }

// Len returns the total byte length across all segments.
func (o *OutboundBuffer) Len() int { return o.total }

// Release drops the lifetime extension taken by AppendRetained,
// exactly once per segment. The transport invokes it from the
// completion of its read of the buffer; later calls are no-ops so a
// double signal cannot over-release shared storage.
func (o *OutboundBuffer) Release() {
	if !o.released.CompareAndSwap(false, true) {
		return
	}
	for i, owner := range o.owners {
		owner.Release()
		o.owners[i] = nil
	}
	o.owners = o.owners[:0]
	o.vectors = o.vectors[:0]
}
