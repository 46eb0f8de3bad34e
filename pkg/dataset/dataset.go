// Package dataset reads and writes tables in the common interchange
// formats: CSV, JSON arrays, line-delimited JSON, Avro OCF, Parquet, and
// Arrow IPC files. Format and outer compression are sniffed from the
// file extension, so "trades.csv.zst" decompresses transparently.
//
// Every reader funnels into the same column-construction path as
// FromColumns, keeping storage selection uniform no matter where the
// data came from. Time values serialize as RFC3339 text in the formats
// without a native engine mapping (CSV re-infers them on read; Avro,
// Parquet, and Arrow carry them as string columns).
package dataset

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/compression"
	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	"github.com/quiverdata/quiver/pkg/mmap"
	"github.com/quiverdata/quiver/pkg/performance"
	stringpool "github.com/quiverdata/quiver/pkg/strings"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Format identifies a dataset serialization.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatJSON
	FormatNDJSON
	FormatAvro
	FormatParquet
	FormatArrow
)

// String returns the canonical format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatNDJSON:
		return "ndjson"
	case FormatAvro:
		return "avro"
	case FormatParquet:
		return "parquet"
	case FormatArrow:
		return "arrow"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name to its Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "ndjson", "jsonl", "lines":
		return FormatNDJSON, nil
	case "avro":
		return FormatAvro, nil
	case "parquet":
		return FormatParquet, nil
	case "arrow", "ipc", "feather":
		return FormatArrow, nil
	default:
		return FormatUnknown, errors.Newf(errors.ErrorTypeArgument, "unknown dataset format %q", name)
	}
}

// DetectFormat resolves a file path to its format and outer compression.
// Compression suffixes strip first, so "trades.json.gz" is gzip-wrapped
// JSON.
func DetectFormat(path string) (Format, compression.Algorithm, error) {
	algo, base := compression.ByExtension(path)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	if ext == "" {
		return FormatUnknown, algo, errors.Newf(errors.ErrorTypeArgument, "cannot detect dataset format of %q", path)
	}
	format, err := ParseFormat(ext)
	if err != nil {
		return FormatUnknown, algo, errors.Newf(errors.ErrorTypeArgument, "cannot detect dataset format of %q", path)
	}
	return format, algo, nil
}

// Options tunes dataset reads and writes. The zero value is ready to
// use.
type Options struct {
	// Format overrides extension sniffing for path-based calls and names
	// the format for readers that cannot sniff.
	Format Format

	// Compression and Level apply to WriteTo and ReadFrom, where no file
	// name carries a compression suffix. Write and Read derive both from
	// the path instead.
	Compression compression.Algorithm
	Level       compression.Level

	// ChunkRows fixes the CSV read chunk size; 0 asks the memory
	// advisor.
	ChunkRows int
	// Advisor sizes chunked reads; nil uses a shared package advisor.
	Advisor *performance.MemoryAdvisor

	// DisableInference keeps CSV fields as raw strings instead of
	// parsing numbers, booleans, and timestamps.
	DisableInference bool

	// Vector forwards storage selection options to table construction.
	Vector *vector.Options
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return &Options{}
	}
	return o
}

func (o *Options) advisor() *performance.MemoryAdvisor {
	if o.Advisor != nil {
		return o.Advisor
	}
	return defaultAdvisor
}

var (
	defaultAdvisor   = performance.NewMemoryAdvisor(performance.DefaultAdvisorConfig())
	datasetCollector = metrics.NewCollector("dataset")
)

// mmapThreshold is the uncompressed file size above which the text
// formats read from a memory mapping instead of a buffered stream.
// Variable so tests can lower it.
var mmapThreshold int64 = 4 << 20

// mappable reports whether format parses mapped bytes safely. The text
// parsers copy everything they keep; the Arrow reader retains buffers,
// so it must not outlive a mapping.
func mappable(format Format) bool {
	switch format {
	case FormatCSV, FormatJSON, FormatNDJSON:
		return true
	default:
		return false
	}
}

// Read loads the dataset at path, sniffing format and compression from
// the extension. opts.Format overrides the sniffed format only.
func Read(path string, opts *Options) (*table.Table, error) {
	opts = opts.orDefault()
	format, algo, derr := DetectFormat(path)
	if opts.Format != FormatUnknown {
		format = opts.Format
	} else if derr != nil {
		return nil, derr
	}

	if algo == compression.None && mappable(format) {
		if fi, err := os.Stat(path); err == nil && fi.Size() >= mmapThreshold {
			if t, err := readMapped(path, format, opts); err != nil {
				return nil, err
			} else if t != nil {
				return t, nil
			}
			// Mapping failed; fall through to the stream path.
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "opening dataset %s", path)
	}
	defer f.Close()

	cr := &countingReader{r: f}
	src, err := compression.NewStreamReader(cr, algo)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "decompressing dataset %s", path)
	}
	defer src.Close()

	t, err := readFormat(src, format, opts)
	if err != nil {
		return nil, err
	}

	datasetCollector.ObserveDataset(format.String(), "read", t.RowCount(), cr.n)
	logger.Debug("dataset read",
		zap.String("path", path),
		zap.String("format", format.String()),
		zap.String("compression", algo.String()),
		zap.Int("rows", t.RowCount()),
		zap.Int("columns", t.ColumnCount()),
	)
	return t, nil
}

// readMapped parses a dataset from a memory mapping. A nil table with
// a nil error means the file could not be mapped and the caller should
// use the stream path.
func readMapped(path string, format Format, opts *Options) (*table.Table, error) {
	m, err := mmap.Open(path)
	if err != nil {
		logger.Debug("dataset mmap unavailable", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	defer m.Close()

	t, err := readFormat(bytes.NewReader(m.Bytes()), format, opts)
	if err != nil {
		return nil, err
	}

	datasetCollector.ObserveDataset(format.String(), "read", t.RowCount(), m.Len())
	logger.Debug("dataset read",
		zap.String("path", path),
		zap.String("format", format.String()),
		zap.Bool("mmap", true),
		zap.Int("rows", t.RowCount()),
		zap.Int("columns", t.ColumnCount()),
	)
	return t, nil
}

// ReadFrom decodes a dataset from r in the given format, decompressing
// per opts.Compression.
func ReadFrom(r io.Reader, format Format, opts *Options) (*table.Table, error) {
	opts = opts.orDefault()
	src, err := compression.NewStreamReader(r, opts.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "decompressing dataset stream")
	}
	defer src.Close()
	return readFormat(src, format, opts)
}

// Write stores t at path, deriving format and compression from the
// extension. opts.Format overrides the sniffed format only.
func Write(path string, t *table.Table, opts *Options) error {
	opts = opts.orDefault()
	format, algo, derr := DetectFormat(path)
	if opts.Format != FormatUnknown {
		format = opts.Format
	} else if derr != nil {
		return derr
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "creating dataset %s", path)
	}
	cw := &countingWriter{w: f}
	dst, err := compression.NewStreamWriter(cw, algo, opts.Level)
	if err != nil {
		f.Close()
		return errors.Wrapf(err, errors.ErrorTypeIO, "compressing dataset %s", path)
	}

	werr := writeFormat(dst, t, format, opts)
	cerr := dst.Close()
	ferr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return errors.Wrap(cerr, errors.ErrorTypeIO, "flushing compressed stream")
	}
	if ferr != nil {
		return errors.Wrapf(ferr, errors.ErrorTypeIO, "closing dataset %s", path)
	}

	datasetCollector.ObserveDataset(format.String(), "write", t.RowCount(), cw.n)
	logger.Debug("dataset written",
		zap.String("path", path),
		zap.String("format", format.String()),
		zap.String("compression", algo.String()),
		zap.Int("rows", t.RowCount()),
		zap.Int64("bytes", cw.n),
	)
	return nil
}

// WriteTo encodes t to w in the given format, compressing per
// opts.Compression.
func WriteTo(w io.Writer, t *table.Table, format Format, opts *Options) error {
	opts = opts.orDefault()
	dst, err := compression.NewStreamWriter(w, opts.Compression, opts.Level)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "compressing dataset stream")
	}
	if err := writeFormat(dst, t, format, opts); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "flushing compressed stream")
	}
	return nil
}

func readFormat(r io.Reader, format Format, opts *Options) (*table.Table, error) {
	switch format {
	case FormatCSV:
		return readCSV(r, opts)
	case FormatJSON:
		return readJSON(r, opts)
	case FormatNDJSON:
		return readNDJSON(r, opts)
	case FormatAvro:
		return readAvro(r, opts)
	case FormatParquet:
		return readParquet(r, opts)
	case FormatArrow:
		return readArrow(r, opts)
	default:
		return nil, errors.Newf(errors.ErrorTypeArgument, "unsupported dataset format %q", format)
	}
}

func writeFormat(w io.Writer, t *table.Table, format Format, opts *Options) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatJSON:
		return writeJSON(w, t)
	case FormatNDJSON:
		return writeNDJSON(w, t)
	case FormatAvro:
		return writeAvro(w, t)
	case FormatParquet:
		return writeParquet(w, t)
	case FormatArrow:
		return writeArrow(w, t)
	default:
		return errors.Newf(errors.ErrorTypeArgument, "unsupported dataset format %q", format)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// colClass is the serialization class of a column, decided by its first
// valid element. Typed writers map each class to a codec type; elements
// that do not fit their column's class encode as nulls.
type colClass int

const (
	classString colClass = iota
	classBool
	classInt
	classFloat
	classTime
)

func classifyColumn(c *table.Column) colClass {
	n := c.Len()
	for i := 0; i < n; i++ {
		v := c.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		switch v.(type) {
		case bool:
			return classBool
		case string:
			return classString
		case time.Time:
			return classTime
		case float32, float64:
			return classFloat
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return classInt
		default:
			return classString
		}
	}
	return classString
}

// fieldText renders a value for the text-typed formats.
func fieldText(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return stringpool.ValueToString(v)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float32:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}
