// File: transport/halfclose_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
//go:build linux

// Outbound half-close via shutdown(2) so the kernel sends FIN while
// the read side stays open.

package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// shutdownWrite shuts down the write direction of conn.
func shutdownWrite(conn net.Conn) error {
	if sc, ok := conn.(syscall.Conn); ok {
		raw, err := sc.SyscallConn()
		if err == nil {
			var serr error
			if cerr := raw.Control(func(fd uintptr) {
				serr = unix.Shutdown(int(fd), unix.SHUT_WR)
			}); cerr == nil {
				return serr
			}
		}
	}
	return shutdownWritePortable(conn)
}
