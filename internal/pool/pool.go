// Package pool provides reusable byte regions for texture uploads.
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a thread-safe pool of byte slices grouped by exact length.
//
// Upload regions are produced on the publishing goroutine and returned from
// the resource thread once the device copied them, so Get and Put are
// called from different goroutines. Video frames repeat the same size, which
// makes exact-length buckets hit almost every time.
type Pool struct {
	mu      sync.Mutex
	buckets map[int][][]byte
	maxSize int // max slices per bucket

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a pool keeping at most maxPerBucket slices of each length.
// A maxPerBucket of 0 means unlimited.
func New(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[int][][]byte),
		maxSize: maxPerBucket,
	}
}

// Get returns a slice of length n. Contents of a reused slice are
// undefined; callers overwrite every byte.
func (p *Pool) Get(n int) []byte {
	if n <= 0 {
		return nil
	}
	p.mu.Lock()
	bucket := p.buckets[n]
	if len(bucket) > 0 {
		b := bucket[len(bucket)-1]
		bucket[len(bucket)-1] = nil
		p.buckets[n] = bucket[:len(bucket)-1]
		p.mu.Unlock()
		p.hits.Add(1)
		return b
	}
	p.mu.Unlock()
	p.misses.Add(1)
	return make([]byte, n)
}

// Put returns b to the pool. Nil slices and slices beyond the bucket
// capacity are dropped.
func (p *Pool) Put(b []byte) {
	if len(b) == 0 {
		return
	}
	n := len(b)

	p.mu.Lock()
	defer p.mu.Unlock()
	bucket := p.buckets[n]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[n] = append(bucket, b[:n:n])
}

// Stats returns how many Get calls were served from the pool and how many
// allocated.
func (p *Pool) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}

// Default is the package-level pool shared by coordinators that were not
// given their own.
var Default = New(8)
