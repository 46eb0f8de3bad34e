package table

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/pkg/errors"
	stringpool "github.com/quiverdata/quiver/pkg/strings"
	"github.com/quiverdata/quiver/pkg/vector"
)

// ToArrowRecord exports the table as a single Arrow record batch with
// one nullable field per column. Arrow-backed columns keep their array
// type; Dense columns map their element width to int64 or float64; other
// storage infers boolean, int64, float64, or string from the first valid
// element. Elements that do not fit the field type export as nulls, and
// missing values always do. The caller releases the record.
func (t *Table) ToArrowRecord() arrow.Record {
	pool := memory.NewGoAllocator()

	fields := make([]arrow.Field, len(t.columns))
	for i := range t.columns {
		fields[i] = arrow.Field{
			Name:     t.columns[i].name,
			Type:     arrowFieldType(&t.columns[i]),
			Nullable: true,
		}
	}
	schema := arrow.NewSchema(fields, nil)

	rb := array.NewRecordBuilder(pool, schema)
	defer rb.Release()

	n := t.RowCount()
	for j := range t.columns {
		b := rb.Field(j)
		vec := t.columns[j].vec
		b.Reserve(n)
		for i := 0; i < n; i++ {
			appendArrowValue(b, vec.Value(i))
		}
	}
	return rb.NewRecord()
}

// FromArrowRecord imports an Arrow record batch as a Table, columns in
// schema order. Boolean, int64, float64, and string arrays keep their
// buffers zero-copy through the Arrow storage variant; narrower numeric
// widths and timestamps materialize and re-run storage selection; any
// other array type is a FormatError.
func FromArrowRecord(rec arrow.Record, opts *vector.Options) (*Table, error) {
	schema := rec.Schema()
	cols := make([]Column, 0, int(rec.NumCols()))
	for i := 0; i < int(rec.NumCols()); i++ {
		name := schema.Field(i).Name
		arr := rec.Column(i)

		vec, err := vector.FromArrowArray(arr)
		if err != nil {
			values, merr := materializeArrowColumn(arr)
			if merr != nil {
				return nil, errors.Wrapf(merr, errors.ErrorTypeFormat, "importing arrow column %q", name)
			}
			vec = vector.Select(name, values, opts)
		}
		cols = append(cols, Column{name: name, vec: vec})
	}
	return newTableWithOpts(cols, opts)
}

func arrowFieldType(c *Column) arrow.DataType {
	switch v := c.vec.(type) {
	case *vector.Arrow:
		return v.DataType()
	case *vector.Dense:
		switch v.NumericKind() {
		case vector.Int64, vector.Int32:
			return arrow.PrimitiveTypes.Int64
		default:
			return arrow.PrimitiveTypes.Float64
		}
	}

	n := c.vec.Len()
	for i := 0; i < n; i++ {
		v := c.vec.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		switch v.(type) {
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case string:
			return arrow.BinaryTypes.String
		case float32, float64:
			return arrow.PrimitiveTypes.Float64
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return arrow.PrimitiveTypes.Int64
		default:
			return arrow.BinaryTypes.String
		}
	}
	return arrow.BinaryTypes.String
}

func appendArrowValue(b array.Builder, v interface{}) {
	if vector.IsMissing(v) {
		b.AppendNull()
		return
	}
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		if x, ok := v.(bool); ok {
			bb.Append(x)
		} else {
			bb.AppendNull()
		}
	case *array.Int64Builder:
		if f, ok := vector.ToFloat64(v); ok {
			bb.Append(int64(f))
		} else {
			bb.AppendNull()
		}
	case *array.Float64Builder:
		if f, ok := vector.ToFloat64(v); ok {
			bb.Append(f)
		} else {
			bb.AppendNull()
		}
	case *array.StringBuilder:
		bb.Append(arrowText(v))
	default:
		b.AppendNull()
	}
}

func arrowText(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return stringpool.ValueToString(v)
	}
}

// materializeArrowColumn widens array types the Arrow storage variant
// does not carry into plain values for re-selection.
func materializeArrowColumn(arr arrow.Array) ([]interface{}, error) {
	n := arr.Len()
	values := make([]interface{}, n)
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			continue
		}
		switch a := arr.(type) {
		case *array.Int8:
			values[i] = int64(a.Value(i))
		case *array.Int16:
			values[i] = int64(a.Value(i))
		case *array.Int32:
			values[i] = int64(a.Value(i))
		case *array.Uint8:
			values[i] = int64(a.Value(i))
		case *array.Uint16:
			values[i] = int64(a.Value(i))
		case *array.Uint32:
			values[i] = int64(a.Value(i))
		case *array.Uint64:
			values[i] = int64(a.Value(i))
		case *array.Float32:
			values[i] = float64(a.Value(i))
		case *array.Timestamp:
			unit := a.DataType().(*arrow.TimestampType).Unit
			values[i] = a.Value(i).ToTime(unit)
		case *array.Date32:
			values[i] = a.Value(i).ToTime()
		case *array.LargeString:
			values[i] = a.Value(i)
		default:
			return nil, errors.Newf(errors.ErrorTypeFormat, "unsupported arrow array type %s", arr.DataType().Name())
		}
	}
	return values, nil
}
