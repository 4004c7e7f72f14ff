// File: pool/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-channel/api"
)

// storage is one pooled memory region shared by every view over it.
type storage struct {
	data []byte
	refs atomic.Int32
	home *classPool
	numa int
}

// Buffer is a bounded view over shared storage. Views produced by
// Slice share the storage and its reference count; only Retain and
// Release move the count.
type Buffer struct {
	s        *storage
	from, to int
}

// Bytes returns the view's readable bytes. Zero-copy.
func (b *Buffer) Bytes() []byte { return b.s.data[b.from:b.to] }

// Slice produces a sub-view in O(1). The sub-view borrows the
// parent's reference; Retain it if it must outlive the parent.
func (b *Buffer) Slice(from, to int) api.Buffer {
	if from < 0 || to > b.to-b.from || from > to {
		panic("pool: slice bounds out of range")
	}
	return &Buffer{s: b.s, from: b.from + from, to: b.from + to}
}

// Retain extends the storage lifetime by one reference.
func (b *Buffer) Retain() {
	b.s.refs.Add(1)
}

// Release drops one reference. The storage returns to its free list
// when the count hits zero; going below zero is an unbalanced
// release and panics to surface the bug at its source.
func (b *Buffer) Release() {
	n := b.s.refs.Add(-1)
	switch {
	case n == 0:
		b.s.home.recycle(b.s)
	case n < 0:
		panic("pool: buffer over-released")
	}
}

// Copy returns a standalone deep copy of the view's contents.
func (b *Buffer) Copy() []byte {
	out := make([]byte, b.to-b.from)
	copy(out, b.s.data[b.from:b.to])
	return out
}

// NUMANode returns the node the storage was allocated for.
func (b *Buffer) NUMANode() int { return b.s.numa }

var _ api.Buffer = (*Buffer)(nil)
