// File: api/handler.go
// Package api defines the Handler interface and lifecycle events.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Handler processes pipeline events and inbound data payloads.
type Handler interface {
	Handle(data any) error
}

// RegisteredEvent is delivered when a channel attaches to its loop.
type RegisteredEvent struct{ Channel Channel }

// ActiveEvent is delivered when a channel finishes activating.
type ActiveEvent struct{ Channel Channel }

// InactiveEvent is delivered when an active channel is torn down.
type InactiveEvent struct{ Channel Channel }

// UnregisteredEvent is delivered after the channel left its loop.
type UnregisteredEvent struct{ Channel Channel }
