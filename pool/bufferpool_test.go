package pool

import (
	"errors"
	"sync"
	"testing"

	"github.com/momentics/hioload-tcp/api"
)

func TestBufferPoolRentReturnRoundTrip(t *testing.T) {
	p := NewBufferPool(64*1024, 4)

	buf, err := p.Rent(8192)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) < 8192 {
		t.Fatalf("got length %d, want >= 8192", len(buf))
	}
	p.Return(buf, false)

	buf2, err := p.Rent(8192)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf2) != len(buf) {
		t.Fatalf("reused buffer length mismatch: %d vs %d", len(buf2), len(buf))
	}
}

func TestBufferPoolTooLarge(t *testing.T) {
	p := NewBufferPool(4096, 0)
	_, err := p.Rent(8192)
	if !errors.Is(err, api.ErrBufferTooLarge) {
		t.Fatalf("expected BufferTooLarge, got %v", err)
	}
}

func TestBufferPoolReturnClearsOnRequest(t *testing.T) {
	p := NewBufferPool(1024, 0)
	buf, err := p.Rent(128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range buf {
		buf[i] = 0xAB
	}
	p.Return(buf, true)

	buf2, err := p.Rent(128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, b := range buf2 {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %x", i, b)
		}
	}
}

func TestBufferPoolConcurrentRentReturn(t *testing.T) {
	p := NewBufferPool(64*1024, 4)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf, err := p.Rent(4096)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				p.Return(buf, false)
			}
		}()
	}
	wg.Wait()
}
