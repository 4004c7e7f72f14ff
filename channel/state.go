// File: channel/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ChannelState is the per-channel lifecycle machine:
//
//   idle -> registered -> activating -> active(S) -> inactive
//
// with becomeInactive legal from every non-inactive state. S is a
// per-kind substate that only exists while active; a fresh zero
// value of S is installed on every entry into Active and dropped on
// exit.

package channel

import (
	"github.com/momentics/hioload-channel/api"
)

// Phase enumerates the lifecycle positions of a channel.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRegistered
	PhaseActivating
	PhaseActive
	PhaseInactive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRegistered:
		return "registered"
	case PhaseActivating:
		return "activating"
	case PhaseActive:
		return "active"
	case PhaseInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// ChannelState tracks exactly one current phase plus, while active,
// an attached substate of type S. It is owned by a single channel and
// mutated only through the transition operations below; it is not
// internally synchronized.
type ChannelState[S any] struct {
	phase Phase
	sub   S
}

// NewState returns a state machine in PhaseIdle.
func NewState[S any]() *ChannelState[S] {
	return &ChannelState[S]{phase: PhaseIdle}
}

// Phase returns the current phase.
func (s *ChannelState[S]) Phase() Phase { return s.phase }

// Substate returns a mutable view of the active substate. The second
// return is false outside PhaseActive, in which case the pointer is
// nil and must not be used.
func (s *ChannelState[S]) Substate() (*S, bool) {
	if s.phase != PhaseActive {
		return nil, false
	}
	return &s.sub, true
}

// Register transitions idle -> registered.
func (s *ChannelState[S]) Register() error {
	if s.phase != PhaseIdle {
		return &api.TransitionError{Op: "register", From: s.phase.String()}
	}
	s.phase = PhaseRegistered
	return nil
}

// BeginActivating transitions registered -> activating. Re-entrant
// activation attempts fail like every other out-of-order call.
func (s *ChannelState[S]) BeginActivating() error {
	if s.phase != PhaseRegistered {
		return &api.TransitionError{Op: "beginActivating", From: s.phase.String()}
	}
	s.phase = PhaseActivating
	return nil
}

// BecomeActive transitions activating -> active, installing a fresh
// zero-valued substate.
func (s *ChannelState[S]) BecomeActive() error {
	if s.phase != PhaseActivating {
		return &api.TransitionError{Op: "becomeActive", From: s.phase.String()}
	}
	var fresh S
	s.sub = fresh
	s.phase = PhaseActive
	return nil
}

// BecomeInactive transitions any non-inactive phase -> inactive and
// returns the prior phase so the caller can decide whether a real
// deactivation event must fire (only PhaseActive counts). From
// inactive it fails with ErrAlreadyClosed.
func (s *ChannelState[S]) BecomeInactive() (Phase, error) {
	if s.phase == PhaseInactive {
		return PhaseInactive, api.ErrAlreadyClosed
	}
	prior := s.phase
	var zero S
	s.sub = zero
	s.phase = PhaseInactive
	return prior, nil
}
