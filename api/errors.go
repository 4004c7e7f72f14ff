// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types for the hioload-channel lifecycle core.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	// ErrInvalidStateTransition signals a lifecycle operation
	// attempted from a state that does not permit it. Always a
	// caller sequencing bug, never a transport condition.
	ErrInvalidStateTransition = errors.New("invalid channel state transition")

	// ErrAlreadyClosed signals becoming inactive on a channel that
	// is already inactive. Benign at the close call site.
	ErrAlreadyClosed = errors.New("channel already closed")

	// ErrUnsupportedOperation signals an activation-type mismatch or
	// an input-side half-close request. Returned synchronously with
	// no state change.
	ErrUnsupportedOperation = errors.New("operation not supported")

	// ErrChannelClosed resolves completions that were still pending
	// when the channel was torn down.
	ErrChannelClosed = errors.New("channel closed")

	// ErrLoopClosed indicates the event loop has been shut down.
	ErrLoopClosed = errors.New("event loop is closed")
)

// TransitionError reports the exact transition that was rejected. It
// unwraps to ErrInvalidStateTransition so call sites can match with
// errors.Is without parsing the message.
type TransitionError struct {
	Op   string // attempted operation, e.g. "beginActivating"
	From string // state the channel was in
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid channel state transition: %s from %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }
