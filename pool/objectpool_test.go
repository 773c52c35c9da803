package pool

import (
	"sync"
	"testing"
)

type fakeState struct {
	id        int
	resets    int
	destroyed bool
	reusable  bool
}

func TestStateObjectPoolPreallocates(t *testing.T) {
	next := 0
	p := NewStateObjectPool(4,
		func() *fakeState { next++; return &fakeState{id: next, reusable: true} },
		func(s *fakeState) { s.resets++ },
		func(s *fakeState) bool { return s.reusable },
		func(s *fakeState) { s.destroyed = true },
	)
	if p.Len() != 4 {
		t.Fatalf("got %d idle, want 4", p.Len())
	}
}

func TestStateObjectPoolRentReturnRoundTrip(t *testing.T) {
	p := NewStateObjectPool(0,
		func() *fakeState { return &fakeState{reusable: true} },
		func(s *fakeState) { s.resets++ },
		func(s *fakeState) bool { return s.reusable },
		func(s *fakeState) { s.destroyed = true },
	)

	a := p.Rent()
	if p.Len() != 0 {
		t.Fatalf("expected empty idle set after rent")
	}
	p.Return(a)
	if p.Len() != 1 {
		t.Fatalf("expected 1 idle after return, got %d", p.Len())
	}
	if a.resets != 1 {
		t.Fatalf("expected reset to run once, got %d", a.resets)
	}

	b := p.Rent()
	if b != a {
		t.Fatalf("expected rent to yield the same reused instance")
	}
}

func TestStateObjectPoolDestroysUnreusable(t *testing.T) {
	p := NewStateObjectPool(0,
		func() *fakeState { return &fakeState{reusable: false} },
		func(s *fakeState) { s.resets++ },
		func(s *fakeState) bool { return s.reusable },
		func(s *fakeState) { s.destroyed = true },
	)

	s := p.Rent()
	p.Return(s)
	if !s.destroyed {
		t.Fatalf("expected destroy to run for an unreusable instance")
	}
	if p.Len() != 0 {
		t.Fatalf("expected nothing retained in idle set")
	}
}

func TestStateObjectPoolDispose(t *testing.T) {
	var destroyedCount int
	var mu sync.Mutex
	p := NewStateObjectPool(5,
		func() *fakeState { return &fakeState{reusable: true} },
		func(s *fakeState) {},
		func(s *fakeState) bool { return true },
		func(s *fakeState) {
			mu.Lock()
			destroyedCount++
			mu.Unlock()
		},
	)
	p.Dispose()
	if destroyedCount != 5 {
		t.Fatalf("got %d destroyed, want 5", destroyedCount)
	}
	if p.Len() != 0 {
		t.Fatalf("expected empty pool after dispose")
	}
}

func TestStateObjectPoolConcurrentRentReturn(t *testing.T) {
	p := NewStateObjectPool(16,
		func() *fakeState { return &fakeState{reusable: true} },
		func(s *fakeState) { s.resets++ },
		func(s *fakeState) bool { return true },
		func(s *fakeState) {},
	)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := p.Rent()
				p.Return(s)
			}
		}()
	}
	wg.Wait()
}
