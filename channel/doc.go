// Package channel implements the lifecycle state machine and the
// buffer-ownership bridge shared by every concrete channel kind
// (stream, datagram, listener).
//
// The state machine is strict and total: every operation is defined
// for every state, either producing a transition or a named failure,
// so illegal call sequences surface at the point of the bug instead
// of as transport corruption later.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package channel
