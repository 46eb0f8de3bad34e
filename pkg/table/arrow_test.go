package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/pkg/vector"
)

func TestToArrowRecord_SchemaAndValues(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "price", Values: []float64{9.5, 12.0, 3.25}},
		{Name: "sym", Values: []string{"AAPL", "MSFT", "TSLA"}},
		{Name: "live", Values: []bool{true, false, true}},
	}, nil)
	require.NoError(t, err)

	rec := tbl.ToArrowRecord()
	defer rec.Release()

	require.Equal(t, int64(3), rec.NumCols())
	require.Equal(t, int64(3), rec.NumRows())

	schema := rec.Schema()
	assert.Equal(t, "price", schema.Field(0).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, schema.Field(0).Type)
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(1).Type)
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, schema.Field(2).Type)
	assert.True(t, schema.Field(0).Nullable)

	prices := rec.Column(0).(*array.Float64)
	assert.Equal(t, 12.0, prices.Value(1))
	syms := rec.Column(1).(*array.String)
	assert.Equal(t, "TSLA", syms.Value(2))
}

func TestToArrowRecord_MissingBecomesNull(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "v", Values: []interface{}{1.5, nil, 2.5}},
	}, nil)
	require.NoError(t, err)

	rec := tbl.ToArrowRecord()
	defer rec.Release()

	col := rec.Column(0)
	assert.Equal(t, 1, col.NullN())
	assert.True(t, col.IsNull(1))
	assert.Equal(t, 2.5, col.(*array.Float64).Value(2))
}

func TestToArrowRecord_MixedColumnExportsText(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "mixed", Values: []interface{}{"a", 7, true}},
	}, nil)
	require.NoError(t, err)

	rec := tbl.ToArrowRecord()
	defer rec.Release()

	require.Equal(t, arrow.BinaryTypes.String, rec.Schema().Field(0).Type)
	col := rec.Column(0).(*array.String)
	assert.Equal(t, "a", col.Value(0))
	assert.Equal(t, "7", col.Value(1))
	assert.Equal(t, "true", col.Value(2))
}

func TestFromArrowRecord_RoundTrip(t *testing.T) {
	src, err := FromColumns([]ColumnData{
		{Name: "price", Values: []interface{}{10.5, nil, 7.25}},
		{Name: "sym", Values: []string{"A", "B", "C"}},
	}, nil)
	require.NoError(t, err)

	rec := src.ToArrowRecord()
	defer rec.Release()

	back, err := FromArrowRecord(rec, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"price", "sym"}, back.Names())
	assert.Equal(t, 3, back.RowCount())

	// Supported array types import zero-copy as Arrow storage.
	c, ok := back.Col("price")
	require.True(t, ok)
	assert.Equal(t, vector.KindArrow, c.Vector().Kind())
	assert.Nil(t, c.Value(1))
	assert.Equal(t, 7.25, c.Value(2))

	s, ok := back.Col("sym")
	require.True(t, ok)
	assert.Equal(t, "B", s.Value(1))
}

func TestFromArrowRecord_WidensNarrowNumerics(t *testing.T) {
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "small", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)

	rb := array.NewRecordBuilder(pool, schema)
	defer rb.Release()
	ib := rb.Field(0).(*array.Int32Builder)
	ib.Append(5)
	ib.AppendNull()
	ib.Append(-3)

	rec := rb.NewRecord()
	defer rec.Release()

	tbl, err := FromArrowRecord(rec, nil)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.RowCount())

	c, ok := tbl.Col("small")
	require.True(t, ok)
	assert.Nil(t, c.Value(1))
	f, ok := vector.ToFloat64(c.Value(0))
	require.True(t, ok)
	assert.Equal(t, 5.0, f)
}
