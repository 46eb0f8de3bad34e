// Command quiver inspects, queries, converts, and pipelines tabular
// datasets in CSV, JSON, NDJSON, Avro, Parquet, and Arrow form.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quiverdata/quiver/internal/job"
	"github.com/quiverdata/quiver/pkg/compression"
	"github.com/quiverdata/quiver/pkg/config"
	"github.com/quiverdata/quiver/pkg/dataset"
	"github.com/quiverdata/quiver/pkg/json"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/observability"
	"github.com/quiverdata/quiver/pkg/performance"
	"github.com/quiverdata/quiver/pkg/query"
	"github.com/quiverdata/quiver/pkg/render"
	"github.com/quiverdata/quiver/pkg/table"
)

var version = "0.1.0"

var cfg *config.Config

func main() {
	// Load .env if present; flags and QUIVER_* variables layer on top.
	_ = godotenv.Load()

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quiver",
		Short: "Quiver - columnar tabular data engine",
		Long: `Quiver loads delimited, JSON, Avro, Parquet, and Arrow datasets into
an in-memory columnar table model and filters, aggregates, converts,
and renders them from the command line.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a quiver YAML configuration file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.Bool("enable-metrics", false, "Serve Prometheus metrics while the command runs")
	pf.String("metrics-listen", "", "Metrics listen address (default :9090)")
	pf.Bool("trace", false, "Emit OpenTelemetry spans to stdout")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newHeadCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newConvertCmd())
	root.AddCommand(newRunCmd())
	return root
}

// setup resolves configuration from file, QUIVER_* environment, and
// flags (in rising precedence), then starts logging, metrics, and
// tracing.
func setup(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	v.SetEnvPrefix("QUIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}

	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if lvl := v.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if v.GetBool("enable-metrics") {
		cfg.Metrics.Enabled = true
	}
	if listen := v.GetString("metrics-listen"); listen != "" {
		cfg.Metrics.Listen = listen
	}
	if v.GetBool("trace") {
		cfg.Tracing.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Listen)
	}
	if cfg.Tracing.Enabled {
		if err := observability.Init(observability.Config{
			ServiceName:    "quiver",
			ServiceVersion: version,
		}); err != nil {
			return err
		}
	}
	return nil
}

func teardown(*cobra.Command, []string) {
	if err := observability.Shutdown(context.Background()); err != nil {
		logger.Warn("trace shutdown failed", zap.Error(err))
	}
	_ = logger.Sync()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint up", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint failed", zap.Error(err))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quiver v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newInfoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show host and process resource usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := performance.Snapshot()
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("Go version:   %s\n", snap.GoVersion)
			fmt.Printf("OS/Arch:      %s\n", snap.OS)
			fmt.Printf("CPUs:         %d (GOMAXPROCS %d)\n", snap.NumCPU, snap.GOMAXPROCS)
			fmt.Printf("Goroutines:   %d\n", snap.Goroutines)
			fmt.Printf("CPU usage:    %.1f%%\n", snap.CPUPercent)
			fmt.Printf("Memory:       %s of %s used (%.1f%%)\n",
				humanBytes(snap.MemoryTotal-snap.MemoryAvailable),
				humanBytes(snap.MemoryTotal), snap.MemoryUsedPercent)
			fmt.Printf("Heap:         %s allocated, %s from OS\n",
				humanBytes(snap.HeapAlloc), humanBytes(snap.HeapSys))
			fmt.Printf("GC:           %d cycles, %s paused\n",
				snap.GCCount, time.Duration(snap.GCPauseTotalNs))
			fmt.Printf("Process:      %s resident, %d threads\n",
				humanBytes(snap.ProcessRSS), snap.ProcessThreads)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func newHeadCmd() *cobra.Command {
	var (
		n       int
		style   string
		format  string
		columns string
	)
	cmd := &cobra.Command{
		Use:   "head <dataset>",
		Short: "Render the first rows of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readDataset(args[0], format, 0)
			if err != nil {
				return err
			}
			if t, err = selectColumns(t, columns); err != nil {
				return err
			}
			return renderTable(cmd, t.Head(n), style)
		},
	}
	cmd.Flags().IntVarP(&n, "rows", "n", 10, "Number of rows to show")
	cmd.Flags().StringVar(&style, "style", "text", "Output style (text, markdown, html, csv)")
	cmd.Flags().StringVar(&format, "format", "", "Dataset format override (csv, json, ndjson, avro, parquet, arrow)")
	cmd.Flags().StringVar(&columns, "columns", "", "Comma-separated columns to show")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		where   string
		columns string
		limit   int
		style   string
		format  string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "query <dataset>",
		Short: "Filter and project a dataset",
		Long: `Filter a dataset with a SQL WHERE fragment, project columns, and
either render the result or write it to another dataset.

Example:
  quiver query trades.csv --where "price > 100 AND sym IN ('AAPL','MSFT')" --select sym,price -o filtered.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readDataset(args[0], format, 0)
			if err != nil {
				return err
			}
			rowsIn := t.RowCount()
			if where != "" {
				if t, err = query.Filter(t, where); err != nil {
					return err
				}
			}
			if t, err = selectColumns(t, columns); err != nil {
				return err
			}
			if limit > 0 {
				t = t.Head(limit)
			}
			if output != "" {
				if err := dataset.Write(output, t, nil); err != nil {
					return err
				}
				fmt.Printf("wrote %d of %d rows to %s\n", t.RowCount(), rowsIn, output)
				return nil
			}
			return renderTable(cmd, t, style)
		},
	}
	cmd.Flags().StringVarP(&where, "where", "w", "", "SQL WHERE fragment, e.g. \"price > 100\"")
	cmd.Flags().StringVar(&columns, "select", "", "Comma-separated columns to keep")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many rows (0 keeps all)")
	cmd.Flags().StringVar(&style, "style", "text", "Output style (text, markdown, html, csv)")
	cmd.Flags().StringVar(&format, "format", "", "Dataset format override")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this dataset instead of rendering")
	return cmd
}

func newConvertCmd() *cobra.Command {
	var (
		inFormat  string
		outFormat string
		level     int
		chunkRows int
	)
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a dataset between formats",
		Long: `Convert between any supported formats, sniffed from the file
extensions. Compression suffixes (.gz, .zst, .lz4, .snappy, ...) are
applied transparently on both sides.

Example:
  quiver convert trades.csv.gz trades.parquet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readDataset(args[0], inFormat, chunkRows)
			if err != nil {
				return err
			}
			opts := &dataset.Options{Level: compression.Level(level)}
			if outFormat != "" {
				if opts.Format, err = dataset.ParseFormat(outFormat); err != nil {
					return err
				}
			}
			if err := dataset.Write(args[1], t, opts); err != nil {
				return err
			}
			fmt.Printf("converted %d rows, %d columns: %s -> %s\n",
				t.RowCount(), t.ColumnCount(), args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&inFormat, "in-format", "", "Input format override")
	cmd.Flags().StringVar(&outFormat, "out-format", "", "Output format override")
	cmd.Flags().IntVar(&level, "level", 0, "Compression level (codec default when 0)")
	cmd.Flags().IntVar(&chunkRows, "chunk-rows", 0, "CSV read chunk size (memory advisor when 0)")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job.yaml>",
		Short: "Run a YAML job pipeline",
		Long: `Run a declared pipeline: read an input dataset, apply the listed
operations (filter, select, group_by, pivot, join, sort, resample,
...), and write the result.

Example job:
  name: daily-volume
  input:
    path: trades.csv
  steps:
    - op: filter
      with: {where: "active = true"}
    - op: resample
      with: {column: ts, freq: 1d, agg: {qty: sum}}
  output:
    path: volume.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := job.Load(args[0])
			if err != nil {
				return err
			}
			res, err := job.NewRunner(cfg).Run(cmd.Context(), j)
			if err != nil {
				return err
			}
			fmt.Printf("job %s: %d rows in, %d rows out, %d steps in %s\n",
				j.Name, res.RowsIn, res.RowsOut, res.Steps, res.Duration.Round(time.Millisecond))
			if j.Output == nil {
				return renderTable(cmd, res.Table.Head(10), "text")
			}
			return nil
		},
	}
}

func readDataset(path, format string, chunkRows int) (*table.Table, error) {
	opts := &dataset.Options{ChunkRows: chunkRows}
	if opts.ChunkRows == 0 {
		opts.ChunkRows = cfg.Dataset.ChunkRows
	}
	opts.DisableInference = cfg.Dataset.DisableInference
	if format != "" {
		f, err := dataset.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		opts.Format = f
	}
	return dataset.Read(path, opts)
}

func selectColumns(t *table.Table, columns string) (*table.Table, error) {
	if columns == "" {
		return t, nil
	}
	names := strings.Split(columns, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return t.Select(names...)
}

func renderTable(cmd *cobra.Command, t *table.Table, styleName string) error {
	style, err := render.ParseStyle(styleName)
	if err != nil {
		return err
	}
	out, err := render.Render(t, style, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
