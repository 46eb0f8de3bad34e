package dataset

import (
	"bytes"
	"io"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/table"
)

// writeArrow encodes the table as an Arrow IPC file with a single
// record batch.
func writeArrow(w io.Writer, t *table.Table) error {
	rec := t.ToArrowRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "opening Arrow IPC writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return errors.Wrap(err, errors.ErrorTypeFormat, "writing Arrow record")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "closing Arrow IPC writer")
	}
	return nil
}

// readArrow decodes an Arrow IPC file, columns in schema order.
// Single-batch files import their arrays zero-copy; multi-batch files
// concatenate through materialized values.
func readArrow(r io.Reader, opts *Options) (*table.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading Arrow IPC stream")
	}
	fr, err := ipc.NewFileReader(bytes.NewReader(raw), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "opening Arrow IPC file")
	}
	defer fr.Close()

	if fr.NumRecords() == 1 {
		rec, err := fr.Record(0)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFormat, "reading Arrow record")
		}
		return table.FromArrowRecord(rec, opts.Vector)
	}

	schema := fr.Schema()
	names := make([]string, len(schema.Fields()))
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}

	values := make([][]interface{}, len(names))
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeFormat, "reading Arrow record %d", i)
		}
		part, err := table.FromArrowRecord(rec, opts.Vector)
		if err != nil {
			return nil, err
		}
		for j, name := range names {
			if c, ok := part.Col(name); ok {
				values[j] = append(values[j], c.Values()...)
			}
		}
	}

	data := make([]table.ColumnData, len(names))
	for j, name := range names {
		data[j] = table.ColumnData{Name: name, Values: values[j]}
	}
	return table.FromColumns(data, opts.Vector)
}
