// File: transport/halfclose.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net"

	"github.com/momentics/hioload-channel/api"
)

// closeWriter is satisfied by *net.TCPConn, *net.UnixConn and any
// test conn that supports write-side shutdown.
type closeWriter interface {
	CloseWrite() error
}

func shutdownWritePortable(conn net.Conn) error {
	if cw, ok := conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return api.ErrUnsupportedOperation
}
