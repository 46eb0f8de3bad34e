package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"time"

	"github.com/quiverdata/quiver/pkg/errors"
	stringpool "github.com/quiverdata/quiver/pkg/strings"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// readCSV loads a header-first CSV stream in chunks sized by the memory
// advisor. Column types infer from a bounded sample unless disabled,
// and repeated string fields intern to one allocation.
func readCSV(r io.Reader, opts *Options) (*table.Table, error) {
	cr := csv.NewReader(bufio.NewReaderSize(r, 64*1024))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return table.FromColumns(nil, opts.Vector)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "reading CSV header")
	}

	names := make([]string, len(header))
	copy(names, header)
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return nil, errors.Newf(errors.ErrorTypeSchema, "duplicate column name %q", name)
		}
		seen[name] = struct{}{}
	}

	raw := make([][]string, len(names))
	advisor := opts.advisor()
	bytesPerRow := 16 * len(names)

	eof := false
	for !eof {
		target := opts.ChunkRows
		if target <= 0 {
			target = advisor.ChunkRows(bytesPerRow)
		}

		start := time.Now()
		read := 0
		chunkBytes := 0
		for read < target {
			record, err := cr.Read()
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "reading CSV row")
			}
			for j, field := range record {
				raw[j] = append(raw[j], field)
				chunkBytes += len(field) + 1
			}
			read++
		}
		if read == 0 {
			break
		}
		if opts.ChunkRows <= 0 {
			advisor.Observe(read, time.Since(start))
			if per := chunkBytes / read; per > 0 {
				bytesPerRow = per
			}
		}
	}

	intern := stringpool.NewIntern()
	data := make([]table.ColumnData, len(names))
	for j, name := range names {
		fields := raw[j]
		ft := fieldString
		if !opts.DisableInference {
			sample := fields
			if len(sample) > inferenceSampleSize {
				sample = sample[:inferenceSampleSize]
			}
			ft = inferFieldType(sample)
		}
		values := make([]interface{}, len(fields))
		for i, s := range fields {
			values[i] = parseField(s, ft, intern)
		}
		data[j] = table.ColumnData{Name: name, Values: values}
	}
	return table.FromColumns(data, opts.Vector)
}

// writeCSV renders the table with a header row. Missing values write as
// empty fields.
func writeCSV(w io.Writer, t *table.Table) error {
	cb := stringpool.NewCSVBuilder(t.RowCount(), t.ColumnCount())
	defer cb.Close()

	cb.WriteHeader(t.Names())

	cols := t.Columns()
	fields := make([]string, len(cols))
	n := t.RowCount()
	for i := 0; i < n; i++ {
		for j := range cols {
			v := cols[j].Value(i)
			if vector.IsMissing(v) {
				fields[j] = ""
			} else {
				fields[j] = fieldText(v)
			}
		}
		cb.WriteRow(fields)
	}

	if _, err := io.WriteString(w, cb.String()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "writing CSV data")
	}
	return nil
}
