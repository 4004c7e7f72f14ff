// Package pool implements reference-counted, size-classed buffer
// pooling behind api.Buffer. Storage returns to its free list only
// when the last reference is released, which is what lets the
// ownership bridge hand zero-copy views to a transport whose read
// completes on a different call stack.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package pool
