// File: pool/bufferpool.go
// Package pool implements size-classed buffer pooling with
// per-class free lists.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-channel/api"
)

// Predefined (power-of-two) buffer size classes (bytes).
// This table can be tuned for deployment needs.
var sizeClasses = [...]int{
	256,
	1 * 1024,
	4 * 1024,
	16 * 1024,
	64 * 1024,
	256 * 1024,
	1 * 1024 * 1024,
}

// sizeClassUpperBound returns the smallest class >= requested size,
// or ok=false when the request is larger than every class.
func sizeClassUpperBound(size int) (class int, ok bool) {
	for _, c := range sizeClasses {
		if size <= c {
			return c, true
		}
	}
	return 0, false
}

const freeListCapacity = 1024

// classPool holds the free list for one size class.
type classPool struct {
	size int
	free chan *storage
	mgr  *Manager
}

func (cp *classPool) get(numa int) *storage {
	select {
	case s := <-cp.free:
		s.numa = numa
		return s
	default:
	}
	cp.mgr.totalAlloc.Add(1)
	return &storage{data: make([]byte, cp.size), home: cp, numa: numa}
}

// recycle is the final-release path: the storage has no references
// left and may be handed to another Get.
func (cp *classPool) recycle(s *storage) {
	cp.mgr.totalFree.Add(1)
	select {
	case cp.free <- s:
	default:
		// Free list full; drop on the floor.
	}
}

// Manager hands out reference-counted buffers from size-classed
// free lists. Safe for concurrent use by multiple loops.
type Manager struct {
	mu      sync.Mutex
	classes map[int]*classPool

	// oversized is the drop-only home for requests above the largest
	// class: its free list is nil, so recycle counts the release and
	// lets the storage go to the garbage collector. Requests of
	// arbitrary sizes therefore never grow the class map.
	oversized classPool

	totalAlloc atomic.Int64
	totalFree  atomic.Int64
}

// NewManager creates an empty pool manager; class free lists are
// allocated lazily on first use.
func NewManager() *Manager {
	m := &Manager{classes: make(map[int]*classPool)}
	m.oversized.mgr = m
	return m
}

// Get returns a buffer of exactly size bytes with one reference.
func (m *Manager) Get(size, numaPreferred int) api.Buffer {
	var s *storage
	if class, ok := sizeClassUpperBound(size); ok {
		s = m.classFor(class).get(numaPreferred)
	} else {
		m.totalAlloc.Add(1)
		s = &storage{data: make([]byte, size), home: &m.oversized, numa: numaPreferred}
	}
	s.refs.Store(1)
	return &Buffer{s: s, from: 0, to: size}
}

// NumClasses reports how many size-class free lists exist.
func (m *Manager) NumClasses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.classes)
}

// Put releases the caller's reference. Kept for api.BufferPool
// compatibility; identical to b.Release().
func (m *Manager) Put(b api.Buffer) {
	b.Release()
}

// Stats implements api.BufferPool.
func (m *Manager) Stats() api.BufferPoolStats {
	alloc := m.totalAlloc.Load()
	free := m.totalFree.Load()
	return api.BufferPoolStats{
		TotalAlloc: alloc,
		TotalFree:  free,
		InUse:      alloc - free,
		NUMAStats:  map[int]int64{},
	}
}

func (m *Manager) classFor(class int) *classPool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.classes[class]
	if !ok {
		cp = &classPool{size: class, free: make(chan *storage, freeListCapacity), mgr: m}
		m.classes[class] = cp
	}
	return cp
}

var _ api.BufferPool = (*Manager)(nil)
