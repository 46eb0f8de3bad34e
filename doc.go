// Package quiver is an in-memory columnar engine for tabular data: load
// a dataset, transform it with typed column operations, and write it
// back out, all without leaving the process.
//
// Tables are immutable. Every transform returns a new *table.Table that
// shares unchanged column storage with its parent, so chaining
// operations stays cheap even on wide tables.
//
// # Quick Start
//
// Load a CSV, filter it, and summarize per group:
//
//	import (
//	    "github.com/quiverdata/quiver/pkg/dataset"
//	    "github.com/quiverdata/quiver/pkg/query"
//	)
//
//	trades, err := dataset.Read("trades.csv", nil)
//	if err != nil {
//	    return err
//	}
//
//	big, err := query.Filter(trades, "price > 100 AND qty < 400")
//	if err != nil {
//	    return err
//	}
//
//	g, err := big.GroupBy("sym")
//	if err != nil {
//	    return err
//	}
//	summary, err := g.Agg(map[string]interface{}{"price": "mean", "qty": "sum"})
//	if err != nil {
//	    return err
//	}
//
//	return dataset.Write("summary.parquet", summary, nil)
//
// # Key Packages
//
//	pkg/table       - Table and Column types with the transform surface
//	pkg/vector      - Column storage: dense, Arrow-backed, and generic
//	pkg/query       - Expression filtering with a SQL-style WHERE syntax
//	pkg/dataset     - CSV, JSON, NDJSON, Avro, Parquet, and Arrow IPC I/O
//	pkg/compression - Streaming codecs keyed by file extension
//	pkg/render      - Text, Markdown, HTML, and CSV table rendering
//	internal/job    - YAML-declared pipelines over the operation registry
//	pkg/errors      - Structured error handling
//	pkg/logger      - High-performance structured logging
//	pkg/metrics     - Prometheus metrics collection
//
// # Storage
//
// Column storage is selected per column when a table is built:
//
//   - Dense: numeric columns without missing values pack into typed
//     slices.
//   - Arrow: large or string-heavy columns use Apache Arrow arrays,
//     giving zero-copy interchange with the Arrow ecosystem.
//   - Generic: everything else, including columns with missing values,
//     stays as boxed values.
//
// Callers never pick a representation; vector.Options only tunes the
// selection.
//
// # Pipelines
//
// The quiver CLI runs YAML-declared jobs against the same operation
// registry the library exposes:
//
//	name: daily-volume
//	input:
//	  path: trades.csv
//	steps:
//	  - op: filter
//	    with: {where: "active = true"}
//	  - op: resample
//	    with: {column: ts, freq: 1d, agg: {qty: sum}}
//	output:
//	  path: volume.parquet
//
// Run it with:
//
//	quiver run daily-volume.yaml
//
// # Configuration
//
// Configuration loads from YAML with ${VAR_NAME} and ${VAR_NAME:default}
// environment substitution, then flags and QUIVER_-prefixed variables
// override:
//
//	type Config struct {
//	    Logging LoggingConfig // Level, encoding, output paths
//	    Metrics MetricsConfig // Prometheus listen address
//	    Tracing TracingConfig // OpenTelemetry span export
//	    Dataset DatasetConfig // Chunk sizing, inference
//	    Memory  MemoryConfig  // Advisor bounds for chunked reads
//	}
package quiver
