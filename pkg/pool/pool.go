// Package pool provides typed object pools for the buffers that extraction
// and artifact rendering churn through.
//
// Example usage:
//
//	batch := pool.GetRecordBatch()
//	defer pool.PutRecordBatch(batch)
//
//	batch.AddRecord(rec)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a type-safe wrapper over sync.Pool that resets objects on Put and
// keeps allocation statistics. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. reset, when non-nil, is called on every object
// returned with Put.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object, allocating one when the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns how many objects were allocated, how many are checked out
// and how many reuses were served from the pool.
func (p *Pool[T]) Stats() (allocated, inUse, hits int64) {
	allocated = atomic.LoadInt64(&p.stats.allocated)
	hits = atomic.LoadInt64(&p.stats.gets) - allocated
	if hits < 0 {
		hits = 0
	}
	return allocated, atomic.LoadInt64(&p.stats.inUse), hits
}
