package pool

import (
	"sync"

	"github.com/eapache/queue"
)

// StateObjectPool is a generic pool of I/O completion-state objects,
// parameterised by four lifecycle hooks: create, reset, validate, destroy.
// Rent yields a reused or freshly created instance; Return validates with
// CanReuse before deciding whether to Reset-and-store or Destroy-and-drop.
//
// sync.Pool cannot run a CanReuse check before an item is handed back out
// to a new Get call, so the idle set is an explicit FIFO
// (eapache/queue.Queue) guarded by a mutex instead.
type StateObjectPool[T any] struct {
	mu       sync.Mutex
	idle     *queue.Queue
	create   func() T
	reset    func(T)
	canReuse func(T) bool
	destroy  func(T)
}

// NewStateObjectPool builds a pool with the given hooks and immediately
// warms it with preallocate freshly-created instances.
func NewStateObjectPool[T any](preallocate int, create func() T, reset func(T), canReuse func(T) bool, destroy func(T)) *StateObjectPool[T] {
	p := &StateObjectPool[T]{
		idle:     queue.New(),
		create:   create,
		reset:    reset,
		canReuse: canReuse,
		destroy:  destroy,
	}
	for i := 0; i < preallocate; i++ {
		p.idle.Add(create())
	}
	return p
}

// Rent returns a reused instance if the idle set is non-empty, otherwise a
// freshly created one. Safe for concurrent use.
func (p *StateObjectPool[T]) Rent() T {
	p.mu.Lock()
	if p.idle.Length() > 0 {
		v := p.idle.Remove().(T)
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()
	return p.create()
}

// Return completes the lifecycle for obj: if CanReuse rejects it, Destroy
// runs and the instance is dropped; otherwise Reset runs and the instance
// is stored for a future Rent.
func (p *StateObjectPool[T]) Return(obj T) {
	if !p.canReuse(obj) {
		p.destroy(obj)
		return
	}
	p.reset(obj)
	p.mu.Lock()
	p.idle.Add(obj)
	p.mu.Unlock()
}

// Dispose tears the pool down, calling Destroy on every currently-idle
// instance. It does not affect instances presently rented out; callers
// must Return (or otherwise discard) those before or after Dispose.
func (p *StateObjectPool[T]) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.idle.Length() > 0 {
		p.destroy(p.idle.Remove().(T))
	}
}

// Len reports the number of currently idle instances, for tests and
// diagnostics.
func (p *StateObjectPool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.Length()
}
