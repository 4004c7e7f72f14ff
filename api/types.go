// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// ActivationType declares which single activation mode a concrete
// channel supports. It is compared against the caller's requested
// operation before any state transition is attempted.
type ActivationType int

const (
	// ActivationConnect activates by connecting to a remote endpoint.
	ActivationConnect ActivationType = iota
	// ActivationBind activates by binding a local endpoint.
	ActivationBind
)

func (t ActivationType) String() string {
	switch t {
	case ActivationConnect:
		return "connect"
	case ActivationBind:
		return "bind"
	default:
		return "unknown"
	}
}

// CloseMode selects which direction of a channel a close request
// tears down.
type CloseMode int

const (
	// CloseAll tears down the whole channel.
	CloseAll CloseMode = iota
	// CloseInput would shut down the read side only. Not supported;
	// requests always fail with ErrUnsupportedOperation.
	CloseInput
	// CloseOutput shuts down the write side only (half-close).
	CloseOutput
)

func (m CloseMode) String() string {
	switch m {
	case CloseAll:
		return "all"
	case CloseInput:
		return "input"
	case CloseOutput:
		return "output"
	default:
		return "unknown"
	}
}
