// File: transport/halfclose_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
//go:build !linux

package transport

import "net"

func shutdownWrite(conn net.Conn) error {
	return shutdownWritePortable(conn)
}
