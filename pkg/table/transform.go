package table

import (
	"sort"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/pool"
	stringpool "github.com/quiverdata/quiver/pkg/strings"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Select returns a table with only the named columns, in the given
// order.
func (t *Table) Select(names ...string) (*Table, error) {
	if len(names) == 0 {
		return nil, errors.New(errors.ErrorTypeArgument, "select requires at least one column")
	}
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Col(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", name)
		}
		cols = append(cols, c.clone())
	}
	return t.withColumns(cols)
}

// Drop returns a table without the named columns. Dropping a column
// that does not exist, or dropping every column, is a SchemaError.
func (t *Table) Drop(names ...string) (*Table, error) {
	for _, name := range names {
		if err := ValidateColumn(t, name); err != nil {
			return nil, err
		}
	}
	dropped := make(map[string]struct{}, len(names))
	for _, name := range names {
		dropped[name] = struct{}{}
	}
	cols := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		if _, gone := dropped[c.name]; gone {
			continue
		}
		cols = append(cols, c.clone())
	}
	if len(cols) == 0 && len(t.columns) > 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "cannot drop every column")
	}
	return t.withColumns(cols)
}

// Rename returns a table with one column renamed. The target name must
// not already exist.
func (t *Table) Rename(oldName, newName string) (*Table, error) {
	if err := ValidateColumn(t, oldName); err != nil {
		return nil, err
	}
	if oldName != newName && t.HasColumn(newName) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q already exists", newName)
	}
	cols := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		cc := c.clone()
		if cc.name == oldName {
			cc.name = newName
		}
		cols = append(cols, cc)
	}
	return t.withColumns(cols)
}

// WithColumn returns a table with the named column added (appended) or
// replaced in place. Values must be a sequence of the table's row
// count.
func (t *Table) WithColumn(name string, values interface{}) (*Table, error) {
	elems, ok := toValueSlice(values)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeArgument, "column values must be a sequence, got %T", values)
	}
	if len(t.columns) > 0 && len(elems) != t.RowCount() {
		return nil, errors.Newf(errors.ErrorTypeData,
			"column %q has %d rows, expected %d", name, len(elems), t.RowCount())
	}

	added := Column{name: name, vec: vector.Select(name, elems, t.opts)}
	cols := make([]Column, 0, len(t.columns)+1)
	replaced := false
	for _, c := range t.columns {
		if c.name == name {
			cols = append(cols, added)
			replaced = true
			continue
		}
		cols = append(cols, c.clone())
	}
	if !replaced {
		cols = append(cols, added)
	}
	return t.withColumns(cols)
}

// MapColumn applies fn to every element of one column; the column's
// storage is re-selected from the outputs.
func (t *Table) MapColumn(name string, fn func(interface{}) interface{}) (*Table, error) {
	if fn == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "map requires a callback")
	}
	if err := ValidateColumn(t, name); err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		if c.name == name {
			cols = append(cols, c.Map(fn))
			continue
		}
		cols = append(cols, c.clone())
	}
	return t.withColumns(cols)
}

// Filter keeps the rows for which pred returns true, preserving row
// order.
func (t *Table) Filter(pred func(Row) bool) (*Table, error) {
	if pred == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "filter requires a predicate")
	}
	n := t.RowCount()
	keep := make([]int, 0, n)
	row := pool.GetMap()
	defer pool.PutMap(row)
	for i := 0; i < n; i++ {
		for k := range row {
			delete(row, k)
		}
		for _, c := range t.columns {
			row[c.name] = c.vec.Value(i)
		}
		if pred(row) {
			keep = append(keep, i)
		}
	}
	return t.TakeRows(keep)
}

// Where filters rows with a SQL WHERE fragment, for example
// "price > 100 AND region = 'EU'". The expression engine lives in the
// query package and registers itself as the "filter" operator; Where
// dispatches through the registry so the core model never depends on
// the parser.
func (t *Table) Where(expr string) (*Table, error) {
	op, ok := LookupOp("filter")
	if !ok {
		return nil, errors.New(errors.ErrorTypeArgument, `no "filter" operator registered; import the query package`)
	}
	return op(t, map[string]interface{}{"where": expr})
}

// TakeRows projects the table onto the given row indices, in the given
// order, through the standard construction path. Indices may repeat; an
// index outside the table is an ArgumentError.
func (t *Table) TakeRows(indices []int) (*Table, error) {
	n := t.RowCount()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.Newf(errors.ErrorTypeArgument, "row index %d out of range [0, %d)", idx, n)
		}
	}
	cols := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		values := make([]interface{}, len(indices))
		for i, idx := range indices {
			values[i] = c.vec.Value(idx)
		}
		cols = append(cols, Column{name: c.name, vec: vector.Select(c.name, values, t.opts)})
	}
	return t.withColumns(cols)
}

// Sort returns a table with rows ordered by one column. The sort is
// stable; missing values always sort after valid ones, in either
// direction.
func (t *Table) Sort(by string, ascending bool) (*Table, error) {
	if err := ValidateColumn(t, by); err != nil {
		return nil, err
	}
	c, _ := t.Col(by)
	n := t.RowCount()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		va, vb := c.Value(indices[a]), c.Value(indices[b])
		ma, mb := vector.IsMissing(va), vector.IsMissing(vb)
		if ma || mb {
			return !ma && mb
		}
		if ascending {
			return lessValue(va, vb)
		}
		return lessValue(vb, va)
	})
	return t.TakeRows(indices)
}

// lessValue orders two non-missing values: numbers before booleans
// before text before anything else, each class ordered internally.
func lessValue(a, b interface{}) bool {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra < rb
	}
	switch ra {
	case 0:
		fa, _ := vector.ToFloat64(a)
		fb, _ := vector.ToFloat64(b)
		return fa < fb
	case 1:
		return !a.(bool) && b.(bool)
	case 2:
		return a.(string) < b.(string)
	default:
		return stringpool.ValueToString(a) < stringpool.ValueToString(b)
	}
}

func typeRank(v interface{}) int {
	if _, ok := vector.ToFloat64(v); ok {
		return 0
	}
	switch v.(type) {
	case bool:
		return 1
	case string:
		return 2
	default:
		return 3
	}
}

// Head returns the first n rows (fewer when the table is shorter).
func (t *Table) Head(n int) *Table {
	return t.SliceRows(0, n)
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	if n > t.RowCount() {
		n = t.RowCount()
	}
	return t.SliceRows(t.RowCount()-n, t.RowCount())
}

// SliceRows returns the rows in [start, end), clamped to the table.
func (t *Table) SliceRows(start, end int) *Table {
	cols := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		cols = append(cols, c.Slice(start, end))
	}
	out, _ := t.withColumns(cols)
	return out
}

// FillMissing replaces every missing element of one column with value.
func (t *Table) FillMissing(name string, value interface{}) (*Table, error) {
	return t.MapColumn(name, func(v interface{}) interface{} {
		if vector.IsMissing(v) {
			return value
		}
		return v
	})
}

// DropMissing removes rows with a missing value in any of the named
// columns, or in any column at all when none are named.
func (t *Table) DropMissing(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	if len(names) == 0 {
		for i := range t.columns {
			cols = append(cols, &t.columns[i])
		}
	} else {
		for _, name := range names {
			c, ok := t.Col(name)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", name)
			}
			cols = append(cols, c)
		}
	}

	n := t.RowCount()
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		complete := true
		for _, c := range cols {
			if vector.IsMissing(c.Value(i)) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return t.TakeRows(keep)
}

// Concat appends the rows of other tables sharing this table's exact
// schema (same names, same order). A schema mismatch is a DataError.
func (t *Table) Concat(others ...*Table) (*Table, error) {
	names := t.Names()
	for _, o := range others {
		if o == nil {
			return nil, errors.New(errors.ErrorTypeArgument, "cannot concat a nil table")
		}
		oNames := o.Names()
		if len(oNames) != len(names) {
			return nil, errors.Newf(errors.ErrorTypeData,
				"schema mismatch: %d columns vs %d", len(oNames), len(names))
		}
		for i := range names {
			if names[i] != oNames[i] {
				return nil, errors.Newf(errors.ErrorTypeData,
					"schema mismatch at column %d: %q vs %q", i, oNames[i], names[i])
			}
		}
	}

	cols := make([]Column, 0, len(names))
	for i, name := range names {
		values := t.columns[i].Values()
		for _, o := range others {
			values = append(values, o.columns[i].Values()...)
		}
		cols = append(cols, Column{name: name, vec: vector.Select(name, values, t.opts)})
	}
	return t.withColumns(cols)
}

// Describe summarizes every numeric column with count, mean, min, max,
// and sum rows.
func (t *Table) Describe() (*Table, error) {
	stats := []string{"count", "mean", "min", "max", "sum"}
	cols := make([]Column, 0, len(t.columns)+1)
	statValues := make([]interface{}, len(stats))
	for i, s := range stats {
		statValues[i] = s
	}
	cols = append(cols, Column{name: "stat", vec: vector.NewGeneric(statValues)})

	for _, c := range t.columns {
		if !c.IsNumeric() {
			continue
		}
		values := make([]interface{}, len(stats))
		values[0] = c.Count()
		if m, ok := c.Mean(); ok {
			values[1] = m
		}
		if m, ok := c.Min(); ok {
			values[2] = m
		}
		if m, ok := c.Max(); ok {
			values[3] = m
		}
		if s, ok := c.Sum(); ok {
			values[4] = s
		} else {
			sum, _ := AggSum(&c)
			values[4] = sum
		}
		cols = append(cols, Column{name: c.name, vec: vector.NewGeneric(values)})
	}
	return newTable(cols)
}
