// File: internal/concurrency/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "errors"

// ErrExecutorClosed is returned by Submit after Close has been called, or
// when the run queue is full and the task cannot be enqueued.
var ErrExecutorClosed = errors.New("executor closed or saturated")
