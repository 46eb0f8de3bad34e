package dataset

import (
	"bytes"
	stderrors "errors"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// writeParquet encodes the table with a schema derived from the column
// classes. Every field is optional; missing values encode as nulls by
// omitting the key. Group schemas order fields alphabetically, so the
// file's column order is by name, not table order.
func writeParquet(w io.Writer, t *table.Table) error {
	cols := t.Columns()
	if len(cols) == 0 {
		return errors.New(errors.ErrorTypeArgument, "cannot write a Parquet dataset without columns")
	}

	classes := make([]colClass, len(cols))
	group := make(parquet.Group, len(cols))
	for j := range cols {
		classes[j] = classifyColumn(&cols[j])
		group[cols[j].Name()] = parquet.Optional(parquetNode(classes[j]))
	}
	schema := parquet.NewSchema("quiver", group)

	pw := parquet.NewGenericWriter[map[string]interface{}](w, &parquet.WriterConfig{Schema: schema})

	n := t.RowCount()
	records := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]interface{}, len(cols))
		for j := range cols {
			v := cols[j].Value(i)
			if vector.IsMissing(v) {
				continue
			}
			if pv, ok := parquetValue(v, classes[j]); ok {
				rec[cols[j].Name()] = pv
			}
		}
		records = append(records, rec)
	}
	if len(records) > 0 {
		if _, err := pw.Write(records); err != nil {
			pw.Close()
			return errors.Wrap(err, errors.ErrorTypeFormat, "writing Parquet rows")
		}
	}
	if err := pw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "closing Parquet writer")
	}
	return nil
}

// readParquet decodes a Parquet file, columns in file schema order. The
// footer lives at the end, so the stream buffers fully before opening.
func readParquet(r io.Reader, opts *Options) (*table.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading Parquet stream")
	}
	file, err := parquet.OpenFile(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "opening Parquet file")
	}

	fields := file.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}

	pr := parquet.NewReader(file)
	defer pr.Close()

	var rows []map[string]interface{}
	for {
		row := make(map[string]interface{}, len(names))
		if err := pr.Read(&row); err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrap(err, errors.ErrorTypeFormat, "reading Parquet row")
		}
		rows = append(rows, row)
	}

	data := make([]table.ColumnData, len(names))
	for j, name := range names {
		values := make([]interface{}, len(rows))
		for i, row := range rows {
			values[i] = parquetGoValue(row[name])
		}
		data[j] = table.ColumnData{Name: name, Values: values}
	}
	return table.FromColumns(data, opts.Vector)
}

func parquetNode(cl colClass) parquet.Node {
	switch cl {
	case classBool:
		return parquet.Leaf(parquet.BooleanType)
	case classInt:
		return parquet.Leaf(parquet.Int64Type)
	case classFloat:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

func parquetValue(v interface{}, cl colClass) (interface{}, bool) {
	switch cl {
	case classBool:
		b, ok := v.(bool)
		return b, ok
	case classInt:
		return toInt64(v)
	case classFloat:
		f, ok := vector.ToFloat64(v)
		return f, ok
	default:
		return fieldText(v), true
	}
}

// parquetGoValue widens decoded values to the engine's canonical types.
func parquetGoValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
