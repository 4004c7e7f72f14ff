// Package transport provides the concrete channel kinds built on the
// shared lifecycle: StreamChannel (connect-activated, over net.Conn),
// ListenerChannel (bind-activated, over net.Listener) and
// DatagramChannel (bind-activated, over net.PacketConn).
//
// Each kind implements channel.StateManaged and delegates every
// public lifecycle operation to channel.Lifecycle; only the transport
// side effects live here.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package transport
