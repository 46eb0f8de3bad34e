// Package pool implements type-safe object pooling for quiver's row and
// buffer churn. Group-by materialization, pivot cell collection, and the
// dataset readers all allocate the same shapes over and over (row maps,
// field slices, byte buffers); pooling them keeps garbage collection
// pressure flat as tables grow.
//
// # Architecture
//
// The pool package uses Go generics to provide type-safe pooling for any
// object type. It builds on sync.Pool and adds hit/miss statistics.
//
// Core Types:
//
//   - Pool[T]: generic pool implementation for any type T
//   - BufferPool: size-bucketed byte buffers for dataset I/O
//   - Global pools: pre-configured pools for common shapes
//
// # Global Pools
//
// Pre-configured pools are available for common types:
//
//	var (
//		MapPool          // row maps (map[string]interface{})
//		StringSlicePool  // CSV fields, group-key parts
//		ByteSlicePool    // key encoding, scratch buffers
//		ValueSlicePool   // column/row projections
//		Float64SlicePool // aggregation scratch
//	)
//
// # Usage Patterns
//
// Basic pool usage:
//
//	row := pool.GetMap()
//	defer pool.PutMap(row)
//	row["region"] = "North"
//
// Custom pools:
//
//	bufPool := pool.New(
//		func() *bytes.Buffer { return &bytes.Buffer{} },
//		func(b *bytes.Buffer) { b.Reset() },
//	)
package pool
