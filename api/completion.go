// File: api/completion.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "sync"

// CompletionSink is a one-shot handle resolved by the engine when an
// asynchronous operation finishes. Exactly one of Resolve or Fail is
// honoured; later calls are no-ops, which is what makes best-effort
// cancellation safe to race against the normal completion path.
type CompletionSink struct {
	once sync.Once
	done chan struct{}
	n    int
	err  error
}

// NewCompletionSink returns an unresolved sink.
func NewCompletionSink() *CompletionSink {
	return &CompletionSink{done: make(chan struct{})}
}

// Resolve completes the sink successfully with the number of bytes the
// operation transferred.
func (s *CompletionSink) Resolve(n int) {
	s.once.Do(func() {
		s.n = n
		close(s.done)
	})
}

// Fail completes the sink with err.
func (s *CompletionSink) Fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Done is closed once the sink has been resolved or failed, for use in
// select statements.
func (s *CompletionSink) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the sink completes and returns its outcome.
func (s *CompletionSink) Wait() (int, error) {
	<-s.done
	return s.n, s.err
}

// Result returns the outcome without blocking; ok is false while the
// operation is still in flight.
func (s *CompletionSink) Result() (n int, err error, ok bool) {
	select {
	case <-s.done:
		return s.n, s.err, true
	default:
		return 0, nil, false
	}
}
