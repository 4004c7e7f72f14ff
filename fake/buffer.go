// File: fake/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Refcount-observable buffer for bridge tests.

package fake

import "github.com/momentics/hioload-channel/api"

// Buffer is an api.Buffer whose reference count is visible to tests.
// It starts at one, like a pool-fresh buffer. Views produced by Slice
// share the parent's count, so an imbalance through any view shows up
// on the root's Refs and Freed fields.
type Buffer struct {
	Data []byte
	Refs int

	// Freed counts transitions to zero; more than one is a bug the
	// test should catch.
	Freed int

	root *Buffer
}

// NewBuffer wraps data in a buffer with a reference count of one.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{Data: data, Refs: 1}
}

func (b *Buffer) counter() *Buffer {
	if b.root != nil {
		return b.root
	}
	return b
}

func (b *Buffer) Bytes() []byte { return b.Data }

func (b *Buffer) Slice(from, to int) api.Buffer {
	return &Buffer{Data: b.Data[from:to], root: b.counter()}
}

func (b *Buffer) Retain() { b.counter().Refs++ }

func (b *Buffer) Release() {
	c := b.counter()
	c.Refs--
	if c.Refs == 0 {
		c.Freed++
	}
}

func (b *Buffer) Copy() []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

func (b *Buffer) NUMANode() int { return -1 }

var _ api.Buffer = (*Buffer)(nil)
