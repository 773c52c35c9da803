// Package pool implements the two pooling primitives the hioload-tcp
// completion engine depends on to avoid per-message allocation at
// millions-of-frames-per-second throughput:
//
//   - BufferPool: a bucketed allocator of fixed-capacity byte buffers.
//   - StateObjectPool[T]: a generic pool of I/O completion-state objects,
//     parameterised by factory/reset/validate/destroy hooks.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package pool
