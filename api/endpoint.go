// File: api/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "net"

// Endpoint is the transport-native representation of a remote or
// local address, distinct from the generic net.Addr the caller hands
// in. Transport hooks receive Endpoints, never raw net.Addr values.
type Endpoint struct {
	Network string
	Address string
}

func (e Endpoint) String() string {
	return e.Network + "://" + e.Address
}

// ResolveEndpoint converts a generic socket address into the native
// endpoint representation. Pure and total: a nil addr resolves to the
// zero Endpoint.
func ResolveEndpoint(addr net.Addr) Endpoint {
	if addr == nil {
		return Endpoint{}
	}
	return Endpoint{Network: addr.Network(), Address: addr.String()}
}
