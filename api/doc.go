// Package api defines the contracts shared by all hioload-channel
// components: reference-counted zero-copy buffers, the per-channel
// event loop, the lifecycle event pipeline, and the error taxonomy.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api
