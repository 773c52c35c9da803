// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for the hioload-tcp completion engine: a
// drain-on-close completion worker pool for escalated continuations, and
// optional CPU pinning of worker threads on platforms that support it.
package concurrency
