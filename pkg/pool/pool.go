// Package pool provides unified object pooling for quiver.
// It offers type-safe recycling of the row maps, scratch slices, and I/O
// buffers that table materialization and dataset readers churn through,
// reducing garbage collection pressure on wide tables.
//
// The package provides:
//   - Generic type-safe object pooling with Pool[T]
//   - Pre-configured global pools for common types (row maps, slices)
//   - Buffer pooling with size-based buckets
//   - Statistics for monitoring
//
// Example usage:
//
//	row := pool.GetMap()
//	defer pool.PutMap(row)
//
//	row["price"] = 12.5
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and automatic reset.
// The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty. The reset function is
// called before returning an object to the pool.
//
// Example:
//
//	pool := New(
//	    func() *Buffer { return &Buffer{data: make([]byte, 0, 1024)} },
//	    func(b *Buffer) { b.data = b.data[:0] },
//	)
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, creating one when empty.
// Safe for concurrent use.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool for reuse, resetting it first when a
// reset function was provided. Safe for concurrent use.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics: allocation count, objects
// currently checked out, cache hits, and cache misses.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// Global pools shared across the engine.
var (
	// MapPool provides pooling for row maps (map[string]interface{}).
	// Maps are pre-allocated with capacity 16 and cleared on return.
	MapPool = New(
		func() map[string]interface{} {
			return make(map[string]interface{}, 16)
		},
		func(m map[string]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)

	// StringSlicePool provides pooling for []string slices used for CSV
	// fields and group-key parts. Capacity 32, cleared on return.
	StringSlicePool = New(
		func() []string {
			return make([]string, 0, 32)
		},
		func(s []string) {
			for i := range s {
				s[i] = ""
			}
		},
	)

	// ByteSlicePool provides pooling for general-purpose byte slices.
	// Capacity 1KB, reset to zero length on return.
	ByteSlicePool = New(
		func() []byte {
			return make([]byte, 0, 1024)
		},
		func(b []byte) {
			// Reset slice length (assignment not needed)
		},
	)

	// ValueSlicePool provides pooling for []interface{} scratch slices
	// used when projecting a column or a row out of vector storage.
	ValueSlicePool = New(
		func() []interface{} {
			return make([]interface{}, 0, 64)
		},
		func(s []interface{}) {
			for i := range s {
				s[i] = nil
			}
		},
	)

	// Float64SlicePool provides pooling for float64 scratch slices used
	// by aggregators and dense vector construction.
	Float64SlicePool = New(
		func() []float64 {
			return make([]float64, 0, 64)
		},
		func(s []float64) {
			// Reset slice length (assignment not needed)
		},
	)
)

// GetMap retrieves a row map from the global pool.
func GetMap() map[string]interface{} {
	return MapPool.Get()
}

// PutMap returns a row map to the global pool. Safe with nil.
func PutMap(m map[string]interface{}) {
	if m != nil {
		MapPool.Put(m)
	}
}

// GetStringSlice retrieves a string slice from the global pool.
func GetStringSlice() []string {
	return StringSlicePool.Get()[:0]
}

// PutStringSlice returns a string slice to the global pool. Safe with nil.
func PutStringSlice(s []string) {
	if s != nil {
		StringSlicePool.Put(s)
	}
}

// GetByteSlice retrieves a byte slice from the global pool.
func GetByteSlice() []byte {
	return ByteSlicePool.Get()[:0]
}

// PutByteSlice returns a byte slice to the global pool. Safe with nil.
func PutByteSlice(b []byte) {
	if b != nil {
		ByteSlicePool.Put(b)
	}
}

// GetValueSlice retrieves an interface{} slice from the global pool.
func GetValueSlice() []interface{} {
	return ValueSlicePool.Get()[:0]
}

// PutValueSlice returns an interface{} slice to the global pool. Safe with nil.
func PutValueSlice(s []interface{}) {
	if s != nil {
		ValueSlicePool.Put(s)
	}
}

// GetFloat64Slice retrieves a float64 slice from the global pool.
func GetFloat64Slice() []float64 {
	return Float64SlicePool.Get()[:0]
}

// PutFloat64Slice returns a float64 slice to the global pool. Safe with nil.
func PutFloat64Slice(s []float64) {
	if s != nil {
		Float64SlicePool.Put(s)
	}
}

// BufferPool manages byte buffer pooling with size-based buckets.
// It maintains multiple pools for different buffer sizes, automatically
// selecting the appropriate pool based on requested size. This reduces
// fragmentation for dataset I/O.
type BufferPool struct {
	pools []*Pool[[]byte]
	sizes []int
}

// NewBufferPool creates a new buffer pool with predefined size buckets.
// Power-of-2 sizes from 512 bytes to 16MB; larger requests are allocated
// directly without pooling.
func NewBufferPool() *BufferPool {
	sizes := []int{
		512,      // 512B
		1024,     // 1KB
		4096,     // 4KB
		16384,    // 16KB
		65536,    // 64KB
		262144,   // 256KB
		1048576,  // 1MB
		4194304,  // 4MB
		16777216, // 16MB
	}

	pools := make([]*Pool[[]byte], len(sizes))
	for i, size := range sizes {
		size := size // capture loop variable
		pools[i] = New(
			func() []byte {
				return make([]byte, size)
			},
			func(b []byte) {
				// Reset slice length (assignment not needed)
			},
		)
	}

	return &BufferPool{
		pools: pools,
		sizes: sizes,
	}
}

// Get returns a buffer of at least the requested size from the pool.
// The returned buffer's length is set to the requested size; its capacity
// may be larger. Requests above the largest bucket allocate directly.
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			buf := p.pools[i].Get()
			return buf[:size]
		}
	}

	// Fallback to allocation for very large buffers
	return make([]byte, size)
}

// Put returns a buffer to the pool for reuse. Buffers that don't match any
// bucket size are released to garbage collection.
func (p *BufferPool) Put(buf []byte) {
	size := cap(buf)

	for i, s := range p.sizes {
		if s == size {
			p.pools[i].Put(buf)
			return
		}
	}
}

// GlobalBufferPool provides size-based byte buffer pooling for I/O.
var GlobalBufferPool = NewBufferPool()

// Stats represents pool statistics for monitoring.
type Stats struct {
	// Allocated is the total number of objects created by the pool
	Allocated int64
	// InUse is the current number of objects checked out from the pool
	InUse int64
	// Hits is the number of successful pool retrievals
	Hits int64
	// Misses is the number of times a new object had to be created
	Misses int64
}

// GetGlobalStats returns statistics for all global pools, keyed by pool
// name: "map", "string_slice", "byte_slice", "value_slice", "float64_slice".
func GetGlobalStats() map[string]Stats {
	mapAlloc, mapInUse, mapHits, mapMisses := MapPool.Stats()
	stringAlloc, stringInUse, stringHits, stringMisses := StringSlicePool.Stats()
	byteAlloc, byteInUse, byteHits, byteMisses := ByteSlicePool.Stats()
	valueAlloc, valueInUse, valueHits, valueMisses := ValueSlicePool.Stats()
	floatAlloc, floatInUse, floatHits, floatMisses := Float64SlicePool.Stats()

	return map[string]Stats{
		"map": {
			Allocated: mapAlloc,
			InUse:     mapInUse,
			Hits:      mapHits,
			Misses:    mapMisses,
		},
		"string_slice": {
			Allocated: stringAlloc,
			InUse:     stringInUse,
			Hits:      stringHits,
			Misses:    stringMisses,
		},
		"byte_slice": {
			Allocated: byteAlloc,
			InUse:     byteInUse,
			Hits:      byteHits,
			Misses:    byteMisses,
		},
		"value_slice": {
			Allocated: valueAlloc,
			InUse:     valueInUse,
			Hits:      valueHits,
			Misses:    valueMisses,
		},
		"float64_slice": {
			Allocated: floatAlloc,
			InUse:     floatInUse,
			Hits:      floatHits,
			Misses:    floatMisses,
		},
	}
}
