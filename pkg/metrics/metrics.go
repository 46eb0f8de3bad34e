// Package metrics provides performance tracking and observability for quiver
// using Prometheus metrics. It offers collectors for various performance
// indicators including throughput, latency, memory usage, and system health.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for common operations
//   - Throughput and latency tracking utilities
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Record processed rows
//	metrics.RowsProcessed.WithLabelValues("group_by", "success").Add(1000)
//
//	// Track operation latency
//	timer := metrics.NewTimer("pivot")
//	result, err := table.Pivot(spec)
//	duration := timer.Stop()
//	metrics.OperationDuration.WithLabelValues("pivot").Observe(float64(duration.Nanoseconds()))
//
//	// Track throughput
//	tracker := metrics.NewThroughputTracker("csv_read")
//	for reader.Next() {
//	    process(reader.Row())
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total rows processed)
// Gauge: Values that can go up or down (e.g., resident table memory)
// Histogram: Distribution of values (e.g., latency percentiles)
//
// # Performance Considerations
//
// Metrics are designed to have minimal overhead:
//   - Lock-free atomic operations where possible
//   - Efficient histogram buckets
//   - Lazy evaluation of expensive calculations
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides a centralized metrics collection interface for components.
// It wraps Prometheus metrics and provides convenience methods for recording
// table operations. Each component should create its own collector.
type Collector struct {
	name      string    // Component name for labeling
	startTime time.Time // Collector creation time
	mu        sync.RWMutex
}

// NewCollector creates a new metrics collector for a component.
// The name parameter identifies the component in metrics labels.
//
// Example:
//
//	collector := metrics.NewCollector("csv_reader")
//	defer collector.ObserveOperation("read", rows, time.Since(start), err)
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// GetAll returns all current metric values
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"component":  c.name,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// ObserveOperation records the outcome of a table operation: its counter,
// latency and row count in a single call.
func (c *Collector) ObserveOperation(operation string, rows int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(float64(d.Nanoseconds()))
	if rows > 0 {
		RowsProcessed.WithLabelValues(operation, status).Add(float64(rows))
	}
}

// ObserveDataset records bytes and rows moved through a dataset reader or
// writer. Direction is "read" or "write".
func (c *Collector) ObserveDataset(format, direction string, rows int, bytes int64) {
	DatasetRows.WithLabelValues(format, direction).Add(float64(rows))
	if bytes > 0 {
		DatasetBytes.WithLabelValues(format, direction).Add(float64(bytes))
	}
}

// RecordGauge records a gauge metric for this component
func (c *Collector) RecordGauge(name string, value float64) {
	MemoryAllocated.WithLabelValues(c.name).Set(value)
	_ = name
}

var (
	// OperationsTotal tracks the total number of table operations executed.
	// Labels: operation (group_by/pivot/join/filter/sort/...), status (success/failure)
	//
	// Example:
	//	metrics.OperationsTotal.WithLabelValues("join", "success").Inc()
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiver_operations_total",
			Help: "Total number of table operations executed",
		},
		[]string{"operation", "status"},
	)

	// RowsProcessed tracks the total number of rows processed by operations.
	// Labels: operation, status (success/failure)
	//
	// Example:
	//	metrics.RowsProcessed.WithLabelValues("group_by", "success").Add(1000)
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiver_rows_processed_total",
			Help: "Total number of rows processed",
		},
		[]string{"operation", "status"},
	)

	// OperationDuration tracks the distribution of operation latencies in
	// nanoseconds. The histogram buckets are optimized for sub-millisecond
	// latency tracking.
	// Labels: operation
	//
	// Example:
	//	start := time.Now()
	//	result, err := table.GroupBy("region").Sum("sales")
	//	metrics.OperationDuration.WithLabelValues("group_by").
	//	    Observe(float64(time.Since(start).Nanoseconds()))
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "quiver_operation_duration_nanoseconds",
			Help: "Table operation latency in nanoseconds",
			Buckets: []float64{
				100,    // 100ns - Ultra-low latency operations
				1000,   // 1μs - Memory operations
				10000,  // 10μs - Small column scans
				100000, // 100μs - Full column scans
				1e6,    // 1ms - Standard operations
				1e7,    // 10ms - Grouping and joins
				1e8,    // 100ms - Large pivots
				1e9,    // 1s - Very large tables
			},
		},
		[]string{"operation"},
	)

	// DatasetRows tracks rows moved through dataset readers and writers.
	// Labels: format (csv/json/avro/parquet/arrow), direction (read/write)
	DatasetRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiver_dataset_rows_total",
			Help: "Rows read from or written to datasets",
		},
		[]string{"format", "direction"},
	)

	// DatasetBytes tracks bytes moved through dataset readers and writers.
	// Labels: format, direction (read/write)
	DatasetBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiver_dataset_bytes_total",
			Help: "Bytes read from or written to datasets",
		},
		[]string{"format", "direction"},
	)

	// VectorBackend counts which storage backend was selected for columns.
	// Labels: backend (arrow/dense/generic)
	VectorBackend = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiver_vector_backend_total",
			Help: "Column storage backend selection counts",
		},
		[]string{"backend"},
	)

	// MemoryAllocated tracks memory allocations
	MemoryAllocated = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quiver_memory_allocated_bytes",
			Help: "Memory allocated in bytes",
		},
		[]string{"component"},
	)

	// ActiveTables tracks the number of live tables
	ActiveTables = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiver_active_tables",
			Help: "Number of tables currently held in memory",
		},
	)

	// GCPauseDuration tracks GC pause durations
	GCPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "quiver_gc_pause_duration_nanoseconds",
			Help: "GC pause duration in nanoseconds",
			Buckets: []float64{
				1e3, // 1μs
				1e4, // 10μs
				1e5, // 100μs
				1e6, // 1ms
				1e7, // 10ms
				1e8, // 100ms
			},
		},
	)

	// Throughput tracks rows per second per operation
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quiver_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"operation"},
	)

	// AllocationRate tracks memory allocation rate
	AllocationRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiver_memory_allocation_rate_bytes_per_second",
			Help: "Memory allocation rate in bytes per second",
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("group_by")
//	grouped := table.GroupBy("region")
//	duration := timer.Stop()
//	logger.Info("grouped", zap.Duration("duration", duration))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	return duration
}

// ThroughputTracker tracks throughput (rows per second) over time windows.
// It automatically calculates and reports throughput metrics when queried.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows processed since last reset
	lastReset time.Time // Time of last reset
	operation string    // Operation name used as metric label
}

// NewThroughputTracker creates a new throughput tracker for an operation.
//
// Example:
//
//	tracker := metrics.NewThroughputTracker("csv_read")
//	for reader.Next() {
//	    process(reader.Row())
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
//	logger.Info("throughput", zap.Float64("rows_per_sec", throughput))
func NewThroughputTracker(operation string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		operation: operation,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second),
// updates the Prometheus metric, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	// Update Prometheus metric
	Throughput.WithLabelValues(t.operation).Set(throughput)

	return throughput
}

// LatencyTracker provides percentile tracking
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a new latency tracker
func NewLatencyTracker(maxSize int) *LatencyTracker {
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		// Remove oldest
		l.values = l.values[1:]
	}
	l.values = append(l.values, d)
}

// GetPercentile returns the percentile value (0-100)
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) == 0 {
		return 0
	}

	// Simple implementation - in production use a better algorithm
	index := int(float64(len(l.values)) * p / 100)
	if index >= len(l.values) {
		index = len(l.values) - 1
	}

	return l.values[index]
}
