package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/pkg/errors"
)

func columnValues(t *testing.T, tbl *Table, name string) []interface{} {
	t.Helper()
	c, ok := tbl.Col(name)
	require.True(t, ok, "column %q", name)
	return c.Values()
}

// TestGroupBy_SumInFirstSeenOrder verifies partition order and the sum
// aggregator on the canonical fixture.
func TestGroupBy_SumInFirstSeenOrder(t *testing.T) {
	tbl := salesFixture(t)

	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, keysAsStrings(g))

	out, err := g.Sum("val")
	require.NoError(t, err)

	assert.Equal(t, []string{"cat", "val_sum"}, out.Names())
	assert.Equal(t, []interface{}{"A", "B"}, columnValues(t, out, "cat"))
	assert.Equal(t, []interface{}{float64(40), float64(20)}, columnValues(t, out, "val_sum"))
}

func keysAsStrings(g *GroupBy) []string {
	keys := g.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k[0].(string)
	}
	return out
}

// TestGroupBy_Errors verifies argument and schema validation.
func TestGroupBy_Errors(t *testing.T) {
	tbl := salesFixture(t)

	_, err := tbl.GroupBy()
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))

	_, err = tbl.GroupBy("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

// TestGroupBy_CompositeKeysStayDistinct verifies that multi-column keys
// do not merge when their parts happen to share text. A concatenating
// key scheme would fold these two groups together.
func TestGroupBy_CompositeKeysStayDistinct(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "a", Values: []string{"x|y", "x"}},
		{Name: "b", Values: []string{"z", "y|z"}},
		{Name: "n", Values: []float64{1, 2}},
	}, nil)
	require.NoError(t, err)

	g, err := tbl.GroupBy("a", "b")
	require.NoError(t, err)
	assert.Len(t, g.Keys(), 2)
}

// TestGroupBy_MissingAndNumbersAsKeys verifies that nil keys group
// together and numeric keys keep their identity.
func TestGroupBy_MissingAndNumbersAsKeys(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "k", Values: []interface{}{nil, 1, nil, 1.0, "1"}},
		{Name: "v", Values: []float64{1, 1, 1, 1, 1}},
	}, nil)
	require.NoError(t, err)

	g, err := tbl.GroupBy("k")
	require.NoError(t, err)

	// nil merges, 1 and 1.0 merge, "1" stays separate.
	assert.Equal(t, 3, g.Groups())
	assert.Len(t, g.Keys(), 3)
}

// TestAgg_SpecExpansion verifies map specs with shorthand strings and
// lists, and the _1 suffix on output name collisions.
func TestAgg_SpecExpansion(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "cat", Values: []string{"A", "B", "A"}},
		{Name: "price", Values: []float64{10, 20, 30}},
		{Name: "qty", Values: []float64{1, 2, 3}},
	}, nil)
	require.NoError(t, err)

	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	t.Run("single shorthand", func(t *testing.T) {
		out, err := g.Agg(map[string]interface{}{"price": "sum"})
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "price_sum"}, out.Names())
	})

	t.Run("list per column", func(t *testing.T) {
		out, err := g.Agg(map[string]interface{}{
			"price": []interface{}{"sum", "mean"},
			"qty":   "max",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "price_sum", "price_mean", "qty_max"}, out.Names())
		assert.Equal(t, []interface{}{float64(40), float64(20)}, columnValues(t, out, "price_sum"))
		assert.Equal(t, []interface{}{float64(20), float64(20)}, columnValues(t, out, "price_mean"))
		assert.Equal(t, []interface{}{float64(3), float64(2)}, columnValues(t, out, "qty_max"))
	})

	t.Run("duplicate aggregators get suffixed", func(t *testing.T) {
		out, err := g.Agg(map[string]interface{}{
			"price": []interface{}{"sum", "sum"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "price_sum", "price_sum_1"}, out.Names())
	})

	t.Run("unknown aggregator", func(t *testing.T) {
		_, err := g.Agg(map[string]interface{}{"price": "median"})
		require.Error(t, err)
		assert.True(t, errors.IsArgument(err))
		assert.Contains(t, err.Error(), `unknown aggregator "median"`)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := g.Agg(map[string]interface{}{"ghost": "sum"})
		require.Error(t, err)
		assert.True(t, errors.IsSchema(err))
	})

	t.Run("empty spec", func(t *testing.T) {
		_, err := g.Agg(map[string]interface{}{})
		require.Error(t, err)
		assert.True(t, errors.IsArgument(err))
	})
}

// TestAgg_CustomFunction verifies function-valued specs.
func TestAgg_CustomFunction(t *testing.T) {
	tbl := salesFixture(t)
	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	spread := func(c *Column) (interface{}, error) {
		mx, okMax := c.Max()
		mn, okMin := c.Min()
		if !okMax || !okMin {
			return nil, nil
		}
		return mx - mn, nil
	}
	out, err := g.Agg(map[string]interface{}{"val": spread})
	require.NoError(t, err)

	assert.Equal(t, []string{"cat", "val_agg"}, out.Names())
	assert.Equal(t, []interface{}{float64(20), float64(0)}, columnValues(t, out, "val_agg"))
}

// TestAgg_SkipsMissingAndNonNumeric verifies the aggregator input
// filter and the empty-partition results.
func TestAgg_SkipsMissingAndNonNumeric(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "cat", Values: []string{"A", "A", "A", "B"}},
		{Name: "val", Values: []interface{}{10.0, nil, "bad", nil}},
	}, nil)
	require.NoError(t, err)

	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	out, err := g.Agg(map[string]interface{}{
		"val": []interface{}{"sum", "mean", "min", "count"},
	})
	require.NoError(t, err)

	// Partition A has one usable number; partition B has none. The
	// count aggregator still sees the non-numeric entry.
	assert.Equal(t, []interface{}{float64(10), float64(0)}, columnValues(t, out, "val_sum"))
	assert.Equal(t, []interface{}{float64(10), nil}, columnValues(t, out, "val_mean"))
	assert.Equal(t, []interface{}{float64(10), nil}, columnValues(t, out, "val_min"))
	assert.Equal(t, []interface{}{float64(2), float64(0)}, columnValues(t, out, "val_count"))
}

// TestCount_CountsAllRows verifies that the Count sugar counts every
// partition row, unlike the "count" aggregator which counts valid
// entries.
func TestCount_CountsAllRows(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "cat", Values: []string{"A", "A", "B"}},
		{Name: "val", Values: []interface{}{1.0, nil, 2.0}},
	}, nil)
	require.NoError(t, err)

	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	out, err := g.Count()
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "count"}, out.Names())
	assert.Equal(t, []interface{}{float64(2), float64(1)}, columnValues(t, out, "count"))

	agged, err := g.Agg(map[string]interface{}{"val": "count"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(1), float64(1)}, columnValues(t, agged, "val_count"))
}

// TestCount_RenamesOnCollision verifies the count column dodges a
// grouping column of the same name.
func TestCount_RenamesOnCollision(t *testing.T) {
	tbl, err := FromColumns([]ColumnData{
		{Name: "count", Values: []string{"A", "B"}},
	}, nil)
	require.NoError(t, err)

	g, err := tbl.GroupBy("count")
	require.NoError(t, err)
	out, err := g.Count()
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "count_1"}, out.Names())
}

// TestApply_ScalarResult verifies the default "value" column shape.
func TestApply_ScalarResult(t *testing.T) {
	tbl := salesFixture(t)
	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	out, err := g.Apply(func(sub *Table) (interface{}, error) {
		return sub.RowCount(), nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cat", "value"}, out.Names())
	assert.Equal(t, []interface{}{float64(2), float64(1)}, columnValues(t, out, "value"))
}

// TestApply_MapResultBackfill verifies lazy column creation with
// missing values back-filled for partitions already emitted.
func TestApply_MapResultBackfill(t *testing.T) {
	tbl := salesFixture(t)
	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	first := true
	out, err := g.Apply(func(sub *Table) (interface{}, error) {
		if first {
			first = false
			return Row{"rows": sub.RowCount()}, nil
		}
		return Row{"rows": sub.RowCount(), "extra": "late"}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cat", "rows", "extra"}, out.Names())
	assert.Equal(t, []interface{}{float64(2), float64(1)}, columnValues(t, out, "rows"))
	assert.Equal(t, []interface{}{nil, "late"}, columnValues(t, out, "extra"))
}

// TestApply_TableResult verifies single-row table merging and the
// multi-row rejection.
func TestApply_TableResult(t *testing.T) {
	tbl := salesFixture(t)
	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	t.Run("single row merges", func(t *testing.T) {
		out, err := g.Apply(func(sub *Table) (interface{}, error) {
			c, _ := sub.Col("val")
			total, _ := c.Sum()
			return FromColumns([]ColumnData{
				{Name: "total", Values: []float64{total}},
			}, nil)
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "total"}, out.Names())
		assert.Equal(t, []interface{}{float64(40), float64(20)}, columnValues(t, out, "total"))
	})

	t.Run("multiple rows rejected", func(t *testing.T) {
		_, err := g.Apply(func(sub *Table) (interface{}, error) {
			return sub, nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsData(err))
		assert.Contains(t, err.Error(), "expected one")
	})

	t.Run("nil callback rejected", func(t *testing.T) {
		_, err := g.Apply(nil)
		require.Error(t, err)
		assert.True(t, errors.IsArgument(err))
	})
}

// TestApply_GroupColumnCollision verifies that callback outputs cannot
// shadow the grouping columns.
func TestApply_GroupColumnCollision(t *testing.T) {
	tbl := salesFixture(t)
	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	out, err := g.Apply(func(sub *Table) (interface{}, error) {
		return Row{"cat": "overwritten", "n": sub.RowCount()}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cat", "n"}, out.Names())
	assert.Equal(t, []interface{}{"A", "B"}, columnValues(t, out, "cat"))
}

// TestApply_SubTableShape verifies each partition arrives as a table
// with the source schema and only that partition's rows.
func TestApply_SubTableShape(t *testing.T) {
	tbl := salesFixture(t)
	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Groups())

	var seen [][]interface{}
	_, err = g.Apply(func(sub *Table) (interface{}, error) {
		assert.Equal(t, tbl.Names(), sub.Names())
		c, _ := sub.Col("val")
		seen = append(seen, c.Values())
		return nil, nil
	})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, []interface{}{float64(10), float64(30)}, seen[0])
	assert.Equal(t, []interface{}{float64(20)}, seen[1])
}

// TestKeys_ReturnsCopies verifies callers cannot corrupt the partition
// index through the key tuples.
func TestKeys_ReturnsCopies(t *testing.T) {
	tbl := salesFixture(t)
	g, err := tbl.GroupBy("cat")
	require.NoError(t, err)

	keys := g.Keys()
	keys[0][0] = "mutated"
	assert.Equal(t, "A", g.Keys()[0][0])
}
