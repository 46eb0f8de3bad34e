package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/pkg/errors"
)

// TestSelect verifies projection, reordering, and validation.
func TestSelect(t *testing.T) {
	tbl := salesFixture(t)

	out, err := tbl.Select("val", "cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"val", "cat"}, out.Names())
	assert.Equal(t, 3, out.RowCount())

	_, err = tbl.Select()
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))

	_, err = tbl.Select("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

// TestDrop verifies removal and the no-columns-left guard.
func TestDrop(t *testing.T) {
	tbl := salesFixture(t)

	out, err := tbl.Drop("id")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "val"}, out.Names())

	_, err = tbl.Drop("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = tbl.Drop("id", "cat", "val")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
	assert.Contains(t, err.Error(), "every column")
}

// TestRename verifies the rename rules.
func TestRename(t *testing.T) {
	tbl := salesFixture(t)

	out, err := tbl.Rename("val", "amount")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "cat", "amount"}, out.Names())

	_, err = tbl.Rename("ghost", "x")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = tbl.Rename("val", "cat")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	same, err := tbl.Rename("val", "val")
	require.NoError(t, err)
	assert.Equal(t, tbl.Names(), same.Names())
}

// TestWithColumn verifies append, replace, and the length guard.
func TestWithColumn(t *testing.T) {
	tbl := salesFixture(t)

	out, err := tbl.WithColumn("flag", []bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "cat", "val", "flag"}, out.Names())

	replaced, err := tbl.WithColumn("val", []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "cat", "val"}, replaced.Names())
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(3)}, columnValues(t, replaced, "val"))

	_, err = tbl.WithColumn("short", []float64{1})
	require.Error(t, err)
	assert.True(t, errors.IsData(err))

	_, err = tbl.WithColumn("scalar", 42)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

// TestMapColumn verifies per-element mapping with storage re-selection.
func TestMapColumn(t *testing.T) {
	tbl := salesFixture(t)

	out, err := tbl.MapColumn("val", func(v interface{}) interface{} {
		return v.(float64) * 2
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(20), float64(40), float64(60)}, columnValues(t, out, "val"))

	// Untouched columns and the source table stay as they were.
	assert.Equal(t, []interface{}{float64(10), float64(20), float64(30)}, columnValues(t, tbl, "val"))

	_, err = tbl.MapColumn("val", nil)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))

	_, err = tbl.MapColumn("ghost", func(v interface{}) interface{} { return v })
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

// TestFilter verifies predicate selection and order preservation.
func TestFilter(t *testing.T) {
	tbl := salesFixture(t)

	out, err := tbl.Filter(func(r Row) bool {
		return r["val"].(float64) >= 20
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
	assert.Equal(t, []interface{}{"B", "A"}, columnValues(t, out, "cat"))

	none, err := tbl.Filter(func(r Row) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 0, none.RowCount())
	assert.Equal(t, tbl.Names(), none.Names())

	_, err = tbl.Filter(nil)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

// TestSort verifies ordering, stability, and the missing-last rule.
func TestSort(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "x", Values: []interface{}{3.0, nil, 1.0, 2.0}},
		{Name: "tag", Values: []string{"c", "missing", "a", "b"}},
	}, nil)
	require.NoError(t, err)

	t.Run("ascending missing last", func(t *testing.T) {
		out, err := tbl.Sort("x", true)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{float64(1), float64(2), float64(3), nil}, columnValues(t, out, "x"))
		assert.Equal(t, []interface{}{"a", "b", "c", "missing"}, columnValues(t, out, "tag"))
	})

	t.Run("descending missing still last", func(t *testing.T) {
		out, err := tbl.Sort("x", false)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{float64(3), float64(2), float64(1), nil}, columnValues(t, out, "x"))
	})

	t.Run("stable on ties", func(t *testing.T) {
		ties, err := FromColumns([]ColumnData{
			{Name: "k", Values: []float64{1, 1, 0}},
			{Name: "ord", Values: []string{"first", "second", "third"}},
		}, nil)
		require.NoError(t, err)
		out, err := ties.Sort("k", true)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"third", "first", "second"}, columnValues(t, out, "ord"))
	})

	t.Run("mixed types rank numbers first", func(t *testing.T) {
		mixed, err := FromColumns([]ColumnData{
			{Name: "v", Values: []interface{}{"b", 2.0, true, "a", 1.0}},
		}, nil)
		require.NoError(t, err)
		out, err := mixed.Sort("v", true)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{float64(1), float64(2), true, "a", "b"}, columnValues(t, out, "v"))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := tbl.Sort("ghost", true)
		require.Error(t, err)
		assert.True(t, errors.IsSchema(err))
	})
}

// TestHeadTailSlice verifies row windows with clamping.
func TestHeadTailSlice(t *testing.T) {
	tbl := salesFixture(t)

	assert.Equal(t, 2, tbl.Head(2).RowCount())
	assert.Equal(t, 3, tbl.Head(10).RowCount())
	assert.Equal(t, 0, tbl.Head(0).RowCount())

	tail := tbl.Tail(2)
	assert.Equal(t, []interface{}{"B", "A"}, columnValues(t, tail, "cat"))
	assert.Equal(t, 3, tbl.Tail(10).RowCount())

	mid := tbl.SliceRows(1, 2)
	assert.Equal(t, 1, mid.RowCount())
	assert.Equal(t, []interface{}{"B"}, columnValues(t, mid, "cat"))

	assert.Equal(t, 0, tbl.SliceRows(2, 1).RowCount())
	assert.Equal(t, 3, tbl.SliceRows(-5, 99).RowCount())
}

// TestFillMissing verifies replacement of missing elements only.
func TestFillMissing(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "x", Values: []interface{}{1.0, nil, 3.0}},
	}, nil)
	require.NoError(t, err)

	out, err := tbl.FillMissing("x", 0.0)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(1), float64(0), float64(3)}, columnValues(t, out, "x"))
}

// TestDropMissing verifies row removal over all or selected columns.
func TestDropMissing(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "a", Values: []interface{}{1.0, nil, 3.0}},
		{Name: "b", Values: []interface{}{"x", "y", nil}},
	}, nil)
	require.NoError(t, err)

	all, err := tbl.DropMissing()
	require.NoError(t, err)
	assert.Equal(t, 1, all.RowCount())
	assert.Equal(t, []interface{}{float64(1)}, columnValues(t, all, "a"))

	onlyA, err := tbl.DropMissing("a")
	require.NoError(t, err)
	assert.Equal(t, 2, onlyA.RowCount())

	_, err = tbl.DropMissing("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

// TestConcat verifies row appending under an exact schema match.
func TestConcat(t *testing.T) {
	a := salesFixture(t)
	b := salesFixture(t)

	out, err := a.Concat(b)
	require.NoError(t, err)
	assert.Equal(t, 6, out.RowCount())
	assert.Equal(t, a.Names(), out.Names())
	assert.Equal(t, []interface{}{"A", "B", "A", "A", "B", "A"}, columnValues(t, out, "cat"))

	other, err := FromColumns([]ColumnData{
		{Name: "different", Values: []float64{1}},
	}, nil)
	require.NoError(t, err)
	_, err = a.Concat(other)
	require.Error(t, err)
	assert.True(t, errors.IsData(err))
}

// TestDescribe verifies the numeric summary.
func TestDescribe(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "x", Values: []interface{}{1.0, 2.0, nil, 3.0}},
		{Name: "label", Values: []string{"a", "b", "c", "d"}},
	}, nil)
	require.NoError(t, err)

	out, err := tbl.Describe()
	require.NoError(t, err)

	assert.Equal(t, []string{"stat", "x"}, out.Names())
	assert.Equal(t,
		[]interface{}{"count", "mean", "min", "max", "sum"},
		columnValues(t, out, "stat"))
	assert.Equal(t,
		[]interface{}{3, float64(2), float64(1), float64(3), float64(6)},
		columnValues(t, out, "x"))
}

// TestRegisteredOps verifies dispatching transformations by name with
// loosely typed arguments, the way job steps invoke them.
func TestRegisteredOps(t *testing.T) {
	tbl := salesFixture(t)

	t.Run("select", func(t *testing.T) {
		op, ok := LookupOp("select")
		require.True(t, ok)
		out, err := op(tbl, map[string]interface{}{"columns": []interface{}{"cat"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"cat"}, out.Names())
	})

	t.Run("head with yaml-typed count", func(t *testing.T) {
		op, _ := LookupOp("head")
		out, err := op(tbl, map[string]interface{}{"n": 2})
		require.NoError(t, err)
		assert.Equal(t, 2, out.RowCount())
	})

	t.Run("sort descending", func(t *testing.T) {
		op, _ := LookupOp("sort")
		out, err := op(tbl, map[string]interface{}{"by": "val", "ascending": false})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{float64(30), float64(20), float64(10)}, columnValues(t, out, "val"))
	})

	t.Run("group_by", func(t *testing.T) {
		op, _ := LookupOp("group_by")
		out, err := op(tbl, map[string]interface{}{
			"by":  "cat",
			"agg": map[string]interface{}{"val": "sum"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "val_sum"}, out.Names())
	})

	t.Run("missing argument", func(t *testing.T) {
		op, _ := LookupOp("select")
		_, err := op(tbl, map[string]interface{}{})
		require.Error(t, err)
		assert.True(t, errors.IsArgument(err))
		assert.Contains(t, err.Error(), `missing argument "columns"`)
	})

	t.Run("unknown op", func(t *testing.T) {
		_, ok := LookupOp("transmogrify")
		assert.False(t, ok)
	})
}

// TestRegistry_Conflicts verifies the write-once contract.
func TestRegistry_Conflicts(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterAggregator("total", AggSum))

	err := r.RegisterAggregator("total", AggSum)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	fn, ok := r.Aggregator("total")
	assert.True(t, ok)
	assert.NotNil(t, fn)

	require.NoError(t, r.RegisterOp("noop", func(t *Table, _ map[string]interface{}) (*Table, error) {
		return t, nil
	}))
	err = r.RegisterOp("noop", nil)
	require.Error(t, err)

	assert.Contains(t, r.Aggregators(), "total")
	assert.Contains(t, r.Ops(), "noop")
}

// TestGlobalRegistry_BuiltinsPresent verifies the package-level
// registrations from init.
func TestGlobalRegistry_BuiltinsPresent(t *testing.T) {
	for _, name := range []string{"sum", "mean", "min", "max", "count"} {
		_, ok := LookupAggregator(name)
		assert.True(t, ok, "aggregator %q", name)
	}
	for _, name := range []string{"select", "drop", "head", "sort", "group_by", "pivot", "resample", "cut"} {
		_, ok := LookupOp(name)
		assert.True(t, ok, "op %q", name)
	}
}
