package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/table"
)

func stockFixture(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: []string{"AAPL", "MSFT", "GOOG", "AAPL", "TSLA"}},
		{Name: "price", Values: []interface{}{100.0, 250.0, nil, 95.5, 700.0}},
		{Name: "qty", Values: []int{10, 5, 8, 2, 1}},
		{Name: "note", Values: []interface{}{"buy low", nil, "watch", "Buy Now", "hold"}},
		{Name: "delta", Values: []float64{-5, 3, -2, 0, 8}},
	}, nil)
	require.NoError(t, err)
	return tbl
}

func symbols(t *testing.T, tbl *table.Table) []interface{} {
	t.Helper()
	c, ok := tbl.Col("sym")
	require.True(t, ok)
	return c.Values()
}

// TestFilter_Comparisons covers the binary operators with the column on
// either side and a missing value in play.
func TestFilter_Comparisons(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "price > 100")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MSFT", "TSLA"}, symbols(t, out))

	// The missing price never satisfies <= either.
	out, err = Filter(tbl, "price <= 100")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "AAPL"}, symbols(t, out))

	// Literal on the left works the same.
	out, err = Filter(tbl, "100 < price")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MSFT", "TSLA"}, symbols(t, out))

	out, err = Filter(tbl, "sym = 'AAPL'")
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())

	out, err = Filter(tbl, "sym <> 'AAPL'")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MSFT", "GOOG", "TSLA"}, symbols(t, out))

	out, err = Filter(tbl, "sym != 'AAPL'")
	require.NoError(t, err)
	assert.Equal(t, 3, out.RowCount())
}

// TestFilter_BooleanOperators covers AND, OR, NOT, and nesting.
func TestFilter_BooleanOperators(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "price > 100 AND qty >= 5")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MSFT"}, symbols(t, out))

	out, err = Filter(tbl, "sym = 'AAPL' OR price > 600")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "AAPL", "TSLA"}, symbols(t, out))

	// NOT complements the row set, so the row with a missing price is
	// included here.
	out, err = Filter(tbl, "NOT (price > 100)")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "GOOG", "AAPL"}, symbols(t, out))

	out, err = Filter(tbl, "(sym = 'AAPL' OR sym = 'TSLA') AND delta >= 0")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "TSLA"}, symbols(t, out))
}

// TestFilter_NullTests covers IS NULL and IS NOT NULL.
func TestFilter_NullTests(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "price IS NULL")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"GOOG"}, symbols(t, out))

	out, err = Filter(tbl, "price IS NOT NULL")
	require.NoError(t, err)
	assert.Equal(t, 4, out.RowCount())
}

// TestFilter_InAndBetween covers list membership and range operators.
func TestFilter_InAndBetween(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "sym IN ('AAPL', 'TSLA')")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "AAPL", "TSLA"}, symbols(t, out))

	out, err = Filter(tbl, "sym NOT IN ('AAPL', 'TSLA')")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MSFT", "GOOG"}, symbols(t, out))

	out, err = Filter(tbl, "price BETWEEN 95 AND 260")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "MSFT", "AAPL"}, symbols(t, out))

	// Rows with a missing price satisfy neither side of NOT BETWEEN.
	out, err = Filter(tbl, "price NOT BETWEEN 95 AND 260")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"TSLA"}, symbols(t, out))
}

// TestFilter_Like covers LIKE and ILIKE pattern matching.
func TestFilter_Like(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "note LIKE 'buy%'")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL"}, symbols(t, out))

	out, err = Filter(tbl, "note ILIKE 'buy%'")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "AAPL"}, symbols(t, out))

	// '_' matches exactly one character.
	out, err = Filter(tbl, "note LIKE '%o_'")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "AAPL"}, symbols(t, out))

	out, err = Filter(tbl, "note NOT LIKE '%o%'")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"GOOG"}, symbols(t, out))
}

// TestFilter_NegativeLiterals exercises unary minus on constants.
func TestFilter_NegativeLiterals(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "delta < 0")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL", "GOOG"}, symbols(t, out))

	out, err = Filter(tbl, "delta = -5")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"AAPL"}, symbols(t, out))

	out, err = Filter(tbl, "delta >= -2")
	require.NoError(t, err)
	assert.Equal(t, 4, out.RowCount())
}

// TestFilter_ColumnToColumn compares two columns row by row.
func TestFilter_ColumnToColumn(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "price > qty")
	require.NoError(t, err)
	assert.Equal(t, 4, out.RowCount())

	out, err = Filter(tbl, "delta > qty")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"TSLA"}, symbols(t, out))
}

// TestFilter_CrossTypeEquality verifies equality across classes is
// false rather than an error.
func TestFilter_CrossTypeEquality(t *testing.T) {
	tbl := stockFixture(t)

	out, err := Filter(tbl, "sym = 5")
	require.NoError(t, err)
	assert.Equal(t, 0, out.RowCount())

	out, err = Filter(tbl, "sym <> 5")
	require.NoError(t, err)
	assert.Equal(t, 5, out.RowCount())
}

// TestCompile_Errors covers malformed and unsupported expressions.
func TestCompile_Errors(t *testing.T) {
	for _, expr := range []string{"", "   ", "price >", "SELECT * FROM t", "???"} {
		_, err := Compile(expr)
		require.Error(t, err, "expression %q", expr)
		assert.True(t, errors.IsArgument(err), "expression %q", expr)
	}

	p, err := Compile("price > 100")
	require.NoError(t, err)
	assert.Equal(t, "price > 100", p.String())
}

// TestFilter_EvalErrors covers errors surfaced against a concrete
// table: unknown columns and type mismatches.
func TestFilter_EvalErrors(t *testing.T) {
	tbl := stockFixture(t)

	_, err := Filter(tbl, "ghost > 1")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = Filter(tbl, "sym > 5")
	require.Error(t, err)
	assert.True(t, errors.IsData(err))

	_, err = Filter(tbl, "qty LIKE 'x%'")
	require.Error(t, err)
	assert.True(t, errors.IsData(err))

	_, err = Filter(tbl, "note LIKE 5")
	require.Error(t, err)
	assert.True(t, errors.IsData(err))
}

// TestPredicate_Eval checks the raw bitmap surface.
func TestPredicate_Eval(t *testing.T) {
	tbl := stockFixture(t)

	p, err := Compile("qty >= 5")
	require.NoError(t, err)
	bm, err := p.Eval(tbl)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), bm.GetCardinality())
	assert.True(t, bm.Contains(0))
	assert.True(t, bm.Contains(1))
	assert.True(t, bm.Contains(2))
	assert.False(t, bm.Contains(3))
}

// TestPredicate_Reuse applies one compiled predicate to two tables.
func TestPredicate_Reuse(t *testing.T) {
	p, err := Compile("v > 10")
	require.NoError(t, err)

	first, err := table.FromColumns([]table.ColumnData{
		{Name: "v", Values: []float64{5, 15, 25}},
	}, nil)
	require.NoError(t, err)
	out, err := p.Apply(first)
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())

	second, err := table.FromColumns([]table.ColumnData{
		{Name: "other", Values: []float64{1, 2}},
	}, nil)
	require.NoError(t, err)
	_, err = p.Apply(second)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

// TestPredicate_Matches covers the row-wise surface.
func TestPredicate_Matches(t *testing.T) {
	p, err := Compile("price > 100 AND (sym = 'MSFT' OR sym = 'TSLA')")
	require.NoError(t, err)

	ok, err := p.Matches(table.Row{"sym": "MSFT", "price": 250.0})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Matches(table.Row{"sym": "AAPL", "price": 250.0})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Matches(table.Row{"sym": "MSFT", "price": nil})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Matches(table.Row{"sym": "MSFT"})
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	like, err := Compile("name ILIKE '%data%' AND v BETWEEN 1 AND 3 AND tag IN ('a', 'b')")
	require.NoError(t, err)
	ok, err = like.Matches(table.Row{"name": "QuiverData", "v": 2, "tag": "b"})
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestWhere verifies the Table.Where dispatch into the registered
// filter operator.
func TestWhere(t *testing.T) {
	tbl := stockFixture(t)

	out, err := tbl.Where("price >= 250 OR price IS NULL")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MSFT", "GOOG", "TSLA"}, symbols(t, out))

	_, err = tbl.Where("nope >")
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

// TestFilterOp exercises the registered pipeline step.
func TestFilterOp(t *testing.T) {
	tbl := stockFixture(t)

	op, ok := table.LookupOp("filter")
	require.True(t, ok)

	out, err := op(tbl, map[string]interface{}{"where": "qty <= 5"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.RowCount())

	_, err = op(tbl, map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}
