package pool

import (
	"sync"

	"github.com/momentics/hioload-tcp/api"
)

// minBucketSize is the smallest size class the pool hands out.
const minBucketSize = 64

// BufferPool is a bucketed allocator of fixed-capacity byte buffers.
// Buffers are grouped into power-of-two size classes from minBucketSize up
// to maxPooledBufferSize, each class backed by its own sync.Pool so that
// rent/return is amortised O(1) and safe for concurrent use from multiple
// goroutines.
type BufferPool struct {
	maxPooledBufferSize int
	buckets             []*sync.Pool
	sizes               []int
}

// NewBufferPool constructs a BufferPool whose largest size class is
// maxPooledBufferSize. retainPerBucket buffers are allocated up front for
// every size class; since each class is a sync.Pool, idle buffers may be
// released at garbage collection and later rents then allocate afresh.
func NewBufferPool(maxPooledBufferSize, retainPerBucket int) *BufferPool {
	if maxPooledBufferSize < minBucketSize {
		maxPooledBufferSize = minBucketSize
	}
	p := &BufferPool{maxPooledBufferSize: maxPooledBufferSize}
	for size := minBucketSize; size <= maxPooledBufferSize; size <<= 1 {
		sz := size
		p.buckets = append(p.buckets, &sync.Pool{
			New: func() any { return make([]byte, sz) },
		})
		p.sizes = append(p.sizes, sz)
	}
	// Ensure the top bucket exactly matches maxPooledBufferSize even when
	// it isn't itself a power of two.
	if p.sizes[len(p.sizes)-1] != maxPooledBufferSize {
		sz := maxPooledBufferSize
		p.buckets = append(p.buckets, &sync.Pool{
			New: func() any { return make([]byte, sz) },
		})
		p.sizes = append(p.sizes, sz)
	}
	for i, b := range p.buckets {
		for j := 0; j < retainPerBucket; j++ {
			b.Put(make([]byte, p.sizes[i]))
		}
	}
	return p
}

// bucketFor returns the index of the smallest bucket whose size is >=
// minCapacity, or -1 if no such bucket exists.
func (p *BufferPool) bucketFor(minCapacity int) int {
	for i, sz := range p.sizes {
		if sz >= minCapacity {
			return i
		}
	}
	return -1
}

// Rent returns a buffer whose length is at least minCapacity. Fails with
// *api.Error{Code: ErrCodeBufferTooLarge} if minCapacity exceeds the pool's
// maxPooledBufferSize.
func (p *BufferPool) Rent(minCapacity int) ([]byte, error) {
	idx := p.bucketFor(minCapacity)
	if idx < 0 {
		return nil, api.NewError(api.ErrCodeBufferTooLarge, "requested capacity exceeds max pooled buffer size")
	}
	buf := p.buckets[idx].Get().([]byte)
	if cap(buf) < p.sizes[idx] {
		buf = make([]byte, p.sizes[idx])
	}
	return buf[:p.sizes[idx]], nil
}

// Return gives buf back to its size-class bucket. If clear is true the
// buffer's backing bytes are zeroed first, satisfying the secure-erase
// invariant for buffers that may have carried sensitive payloads.
func (p *BufferPool) Return(buf []byte, clear bool) {
	idx := p.bucketFor(cap(buf))
	if idx < 0 || p.sizes[idx] != cap(buf) {
		// Buffer wasn't rented from this pool (wrong size class); let the
		// GC reclaim it rather than risk handing out a mis-sized buffer.
		return
	}
	if clear {
		b := buf[:cap(buf)]
		for i := range b {
			b[i] = 0
		}
	}
	p.buckets[idx].Put(buf[:cap(buf)])
}
