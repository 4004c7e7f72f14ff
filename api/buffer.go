// File: api/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Zero-copy, reference-counted memory buffers for high-performance IO.
//
// Buffer storage may be shared between the owning channel and an
// in-flight transport operation. Ownership across that boundary is
// expressed through explicit Retain/Release pairing, never through
// copying.

package api

// Buffer describes a resliceable, reference-counted memory region.
type Buffer interface {
	// Bytes returns an immutable view of the current buffer data.
	Bytes() []byte

	// Slice produces a sub-buffer in O(1) sharing storage and
	// reference count with the parent.
	Slice(from, to int) Buffer

	// Retain increments the reference count, extending the lifetime
	// of the backing storage. Every Retain must be balanced by
	// exactly one Release.
	Retain()

	// Release decrements the reference count. When it reaches zero
	// the storage returns to its pool. After the final Release the
	// buffer must not be used.
	Release()

	// Copy returns a deep copy of buffer contents as a standalone []byte.
	Copy() []byte

	// NUMANode returns the NUMA node this buffer was allocated from.
	NUMANode() int
}

// BufferPool abstracts memory region management for buffers.
type BufferPool interface {
	// Get returns a buffer sized exactly 'size' bytes with a
	// reference count of one.
	Get(size int, numaPreferred int) Buffer

	// Put returns buffer storage to the pool; called by the final
	// Release, not by users.
	Put(b Buffer)

	// Stats exposes resource/accounting metrics for observability.
	Stats() BufferPoolStats
}

// BufferPoolStats aggregates buffer allocation/reuse stats.
type BufferPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
	NUMAStats  map[int]int64
}
