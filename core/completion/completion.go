// File: core/completion/completion.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package completion implements one-shot void-or-error promises and
// the cascading combinator used to merge pending operations.
//
// A Handle is resolved exactly once. A nil *Handle is the absent
// completion: every method is nil-safe, so callers that do not care
// about an outcome simply pass nil.

package completion

// Handle is a one-shot completion slot. It is owned by a single
// event-loop context and is not internally synchronized.
type Handle struct {
	resolved  bool
	err       error
	callbacks []func(error)
	done      chan struct{}
}

// New creates an unresolved Handle.
func New() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Resolve delivers the outcome. err == nil means success. The first
// call wins; later calls are ignored so a close racing a failure
// cannot double-fire callbacks. Nil receiver is a no-op.
func (h *Handle) Resolve(err error) {
	if h == nil || h.resolved {
		return
	}
	h.resolved = true
	h.err = err
	cbs := h.callbacks
	h.callbacks = nil
	close(h.done)
	for _, cb := range cbs {
		cb(err)
	}
}

// OnComplete registers fn to run when the handle resolves. If the
// handle is already resolved, fn runs immediately with the recorded
// outcome. Nil receiver is a no-op.
func (h *Handle) OnComplete(fn func(error)) {
	if h == nil {
		return
	}
	if h.resolved {
		fn(h.err)
		return
	}
	h.callbacks = append(h.callbacks, fn)
}

// Resolved reports whether the handle has an outcome.
func (h *Handle) Resolved() bool {
	return h != nil && h.resolved
}

// Err returns the recorded outcome. Only meaningful once Resolved.
func (h *Handle) Err() error {
	if h == nil {
		return nil
	}
	return h.err
}

// Done returns a channel closed on resolution, for callers that wait
// from outside the loop. Nil receiver returns nil (never ready).
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.done
}

// Cascade merges incoming into an accumulator and returns the new
// accumulator. If existing is nil, incoming becomes the accumulator.
// Otherwise incoming's eventual outcome is driven by existing's:
// chained, never replaced. Cascading is associative, so draining N
// pending writes through repeated Cascade calls delivers the single
// underlying outcome to all N handles exactly once each. There is no
// un-cascading.
func Cascade(existing, incoming *Handle) *Handle {
	if incoming == nil {
		return existing
	}
	if existing == nil {
		return incoming
	}
	existing.OnComplete(incoming.Resolve)
	return existing
}
