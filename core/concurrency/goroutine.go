// File: core/concurrency/goroutine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID parses the current goroutine's id out of the stack
// header ("goroutine N [running]:"). Used only to answer InLoop; the
// loop never dispatches on it.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -2
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -2
	}
	return id
}
