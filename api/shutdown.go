package api

import "sync"

// ShutdownHow selects which half of a stream socket Shutdown closes.
type ShutdownHow int

const (
	ShutdownRecv ShutdownHow = iota
	ShutdownSend
	ShutdownBoth
)

// Shutdown is the one-shot, per-endpoint cancellation signal shared by
// every continuation of a reader or writer. It starts unset; once Trigger is called it stays
// set for the lifetime of the endpoint. Every continuation in the reader
// and writer consults Triggered (or waits on Done) before issuing its next
// OS call.
type Shutdown struct {
	once sync.Once
	done chan struct{}
	init sync.Once
}

// lazyInit allows Shutdown to be used as a zero-value struct field without
// a constructor, matching how NetworkReader/NetworkWriter embed it.
func (s *Shutdown) lazyInit() {
	s.init.Do(func() {
		s.done = make(chan struct{})
	})
}

// Trigger sets the shutdown flag. Safe to call more than once and safe for
// concurrent use; only the first call has any effect.
func (s *Shutdown) Trigger() {
	s.lazyInit()
	s.once.Do(func() { close(s.done) })
}

// Triggered reports whether Trigger has been called.
func (s *Shutdown) Triggered() bool {
	s.lazyInit()
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once Trigger has been called, for
// use in select statements alongside blocking OS calls.
func (s *Shutdown) Done() <-chan struct{} {
	s.lazyInit()
	return s.done
}
