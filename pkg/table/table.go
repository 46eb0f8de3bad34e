// Package table implements the columnar, in-memory tabular-data engine:
// an ordered collection of named columns sharing one row count, with
// grouping, aggregation, and reshape (pivot/join) operators on top.
//
// Tables are immutable. Every operator returns a new Table built through
// the same column-storage selection path as construction, so storage
// promotion and demotion rules apply identically everywhere. No Vector
// is shared between two live Tables.
package table

import (
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/json"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Row is one materialized record: column name to value.
type Row = map[string]interface{}

// ColumnData pairs a column name with its raw values for construction.
// Values must be a slice or array of any element type; entries whose
// Values is not a sequence are ignored rather than rejected, validation
// at this layer is the caller's job.
type ColumnData struct {
	Name   string
	Values interface{}
}

// Table is an ordered list of named columns with equal length.
type Table struct {
	columns []Column
	index   map[string]int
	opts    *vector.Options
}

// FromColumns builds a Table from ordered column data. Column order is
// the input order. Duplicate names are a SchemaError, unequal column
// lengths a DataError. Non-sequence Values entries are skipped.
func FromColumns(data []ColumnData, opts *vector.Options) (*Table, error) {
	cols := make([]Column, 0, len(data))
	for _, cd := range data {
		values, ok := toValueSlice(cd.Values)
		if !ok {
			logger.Debug("skipping non-sequence column data", zap.String("column", cd.Name))
			continue
		}
		cols = append(cols, Column{
			name: cd.Name,
			vec:  vector.Select(cd.Name, values, opts),
		})
	}
	t, err := newTable(cols)
	if err != nil {
		return nil, err
	}
	t.opts = opts
	return t, nil
}

// FromRecords builds a Table from row records. The column set is taken
// from the first record only: keys appearing only in later records are
// ignored, and a column's value for a record lacking its key is missing.
// Column order is the sorted key order of the first record, since Go
// map keys carry no insertion order.
func FromRecords(records []Row, opts *vector.Options) (*Table, error) {
	if len(records) == 0 {
		return newTableWithOpts(nil, opts)
	}
	names := sortedKeys(records[0])
	return fromRows(names, records, opts)
}

// fromRows rebuilds a Table from materialized rows with an explicit
// column order. Group-by, pivot, and join all reconstruct their outputs
// through this path so storage re-selection applies uniformly.
func fromRows(names []string, rows []Row, opts *vector.Options) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		values := make([]interface{}, len(rows))
		for i, row := range rows {
			if v, ok := row[name]; ok {
				values[i] = v
			}
		}
		cols = append(cols, Column{
			name: name,
			vec:  vector.Select(name, values, opts),
		})
	}
	return newTableWithOpts(cols, opts)
}

func newTable(cols []Column) (*Table, error) {
	index := make(map[string]int, len(cols))
	rowCount := -1
	for i, c := range cols {
		if _, dup := index[c.name]; dup {
			return nil, errors.Newf(errors.ErrorTypeSchema, "duplicate column name %q", c.name)
		}
		index[c.name] = i
		if rowCount == -1 {
			rowCount = c.vec.Len()
		} else if c.vec.Len() != rowCount {
			return nil, errors.Newf(errors.ErrorTypeData,
				"column %q has %d rows, expected %d", c.name, c.vec.Len(), rowCount)
		}
	}
	return &Table{columns: cols, index: index}, nil
}

func newTableWithOpts(cols []Column, opts *vector.Options) (*Table, error) {
	t, err := newTable(cols)
	if err != nil {
		return nil, err
	}
	t.opts = opts
	return t, nil
}

// RowCount returns the number of rows: the length of the first column,
// or 0 for a column-less Table.
func (t *Table) RowCount() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].vec.Len()
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// Names returns the column names in column order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Columns returns the columns in order. The slice is fresh but the
// Column values reference the Table's storage; Columns themselves are
// immutable.
func (t *Table) Columns() []Column {
	cols := make([]Column, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Col returns the named Column. The second return is false when the
// column does not exist; Col never fails. Existence validation belongs
// to ValidateColumn, which operators call before touching the core.
func (t *Table) Col(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	c := t.columns[i]
	return &c, true
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ValidateColumn fails with a SchemaError naming the column when it is
// absent from the table. Every filtering and aggregation entry point
// validates through here before running.
func ValidateColumn(t *Table, name string) error {
	if !t.HasColumn(name) {
		return errors.Newf(errors.ErrorTypeSchema, "column %q not found", name)
	}
	return nil
}

// Row materializes row i as a fresh Row map.
func (t *Table) Row(i int) Row {
	row := make(Row, len(t.columns))
	for _, c := range t.columns {
		row[c.name] = c.vec.Value(i)
	}
	return row
}

// Rows materializes every row by zipping the columns at each index. For
// homogeneous data without missing values the result round-trips
// exactly through FromRecords.
func (t *Table) Rows() []Row {
	n := t.RowCount()
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i] = t.Row(i)
	}
	return rows
}

// ToJSON serializes the rows as a JSON array of records. NaN and nil
// both serialize as null.
func (t *Table) ToJSON() (string, error) {
	rows := t.Rows()
	for _, row := range rows {
		for k, v := range row {
			if vector.IsMissing(v) {
				row[k] = nil
			}
		}
	}
	data, err := json.MarshalRows(rows, "array")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFormat, "serializing table to JSON")
	}
	return string(data), nil
}

// MemoryUsage reports the approximate heap bytes held by all column
// storage.
func (t *Table) MemoryUsage() int64 {
	var total int64
	for _, c := range t.columns {
		total += int64(len(c.name)) + c.vec.MemoryUsage()
	}
	return total
}

// String returns a short summary used in logs.
func (t *Table) String() string {
	return fmt.Sprintf("Table(%d rows x %d columns)", t.RowCount(), t.ColumnCount())
}

// withColumns builds a sibling Table carrying the same construction
// options. Callers guarantee the columns already satisfy the length and
// uniqueness invariants.
func (t *Table) withColumns(cols []Column) (*Table, error) {
	return newTableWithOpts(cols, t.opts)
}

// toValueSlice converts any slice or array into []interface{}. The
// boolean is false for non-sequence values.
func toValueSlice(v interface{}) ([]interface{}, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		out := make([]interface{}, len(x))
		copy(out, x)
		return out, true
	case []float64:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	case []string:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	case []bool:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func sortedKeys(row Row) []string {
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
