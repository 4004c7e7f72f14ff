// File: api/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel identity, per-channel event loop and lifecycle pipeline
// contracts. The concrete transport substrate lives outside this
// module; these interfaces are the whole surface the lifecycle core
// consumes.

package api

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the minimal identity contract a registrable channel
// satisfies. Concrete channel kinds (stream, datagram, listener) add
// their own IO surface on top.
type Channel interface {
	// ID returns the stable identity used for event-loop
	// registration and log correlation.
	ID() uuid.UUID
}

// EventLoop is the serial execution context owning one or more
// channels. All lifecycle operations on a channel are invoked only
// while already running on its loop; cross-loop work is handed off
// via Execute, never via locking.
type EventLoop interface {
	// Register attaches a channel to this loop.
	Register(ch Channel) error

	// Deregister detaches a previously registered channel.
	Deregister(ch Channel) error

	// Execute schedules fn onto the loop for a later turn. It never
	// runs fn synchronously, even when called from the loop itself.
	Execute(fn func())

	// ExecuteAfter schedules fn to run on the loop no earlier than d
	// from now.
	ExecuteAfter(d time.Duration, fn func())

	// InLoop reports whether the caller is running on this loop.
	InLoop() bool
}

// Pipeline receives ordered lifecycle notifications from a channel.
// It has no return contract back into the lifecycle core.
type Pipeline interface {
	FireChannelRegistered()
	FireChannelActive()
	FireChannelInactive()
	FireChannelUnregistered()

	// RemoveHandlers tears down the handler chain. Invoked exactly
	// once, on a scheduled turn after the channel fully closed.
	RemoveHandlers()
}
