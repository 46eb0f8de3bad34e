package table

import (
	"sort"

	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	"github.com/quiverdata/quiver/pkg/vector"
)

// applyDefaultColumn is the output column used when an Apply callback
// returns a bare scalar.
const applyDefaultColumn = "value"

var opsCollector = metrics.NewCollector("table")

// GroupBy partitions a table's rows by the values of one or more
// columns. The row cache and the partition index are built eagerly at
// construction and never change; every query method is pure, so one
// GroupBy serves any number of agg and apply calls.
//
// Partition order is first-seen key order: the partition whose key
// first appears on the earliest source row comes first.
type GroupBy struct {
	source     *Table
	by         []string
	rows       []Row
	order      []string
	partitions map[string][]int
	keyTuples  map[string][]interface{}
}

// GroupBy builds the partition index for the given group columns.
// Unknown columns are a SchemaError; an empty column list is an
// ArgumentError.
func (t *Table) GroupBy(by ...string) (*GroupBy, error) {
	if len(by) == 0 {
		return nil, errors.New(errors.ErrorTypeArgument, "group-by requires at least one column")
	}
	for _, name := range by {
		if err := ValidateColumn(t, name); err != nil {
			return nil, err
		}
	}

	timer := metrics.NewTimer("group_by")
	g := &GroupBy{
		source:     t,
		by:         by,
		rows:       t.Rows(),
		partitions: make(map[string][]int),
		keyTuples:  make(map[string][]interface{}),
	}

	byCols := make([]*Column, len(by))
	for i, name := range by {
		c, _ := t.Col(name)
		byCols[i] = c
	}

	tuple := make([]interface{}, len(by))
	for i := range g.rows {
		for j, c := range byCols {
			tuple[j] = c.Value(i)
		}
		key := encodeKey(tuple)
		if _, seen := g.partitions[key]; !seen {
			g.order = append(g.order, key)
			g.keyTuples[key] = append([]interface{}(nil), tuple...)
		}
		g.partitions[key] = append(g.partitions[key], i)
	}

	opsCollector.ObserveOperation("group_by", len(g.rows), timer.Stop(), nil)
	logger.Debug("group partitions built",
		zap.Strings("by", by),
		zap.Int("rows", len(g.rows)),
		zap.Int("groups", len(g.order)))
	return g, nil
}

// Groups returns the number of partitions.
func (g *GroupBy) Groups() int { return len(g.order) }

// Keys returns the group-key tuples in first-seen order.
func (g *GroupBy) Keys() [][]interface{} {
	keys := make([][]interface{}, len(g.order))
	for i, k := range g.order {
		keys[i] = append([]interface{}(nil), g.keyTuples[k]...)
	}
	return keys
}

// subTable rebuilds one partition as an ephemeral table with the source
// schema, through the standard row construction path.
func (g *GroupBy) subTable(indices []int) (*Table, error) {
	rows := make([]Row, len(indices))
	for i, idx := range indices {
		rows[i] = g.rows[idx]
	}
	return fromRows(g.source.Names(), rows, g.source.opts)
}

// Agg runs an aggregation spec: a map from source column name to an
// aggregator name, an AggFunc, or an ordered list of either. Output
// rows appear in first-seen key order; output columns are the group
// columns followed by the aggregate columns, ordered by the source
// table's column order. An aggregator error aborts the whole call.
func (g *GroupBy) Agg(spec map[string]interface{}) (*Table, error) {
	if len(spec) == 0 {
		return nil, errors.New(errors.ErrorTypeArgument, "empty aggregation spec")
	}
	srcOrder := make([]string, 0, len(spec))
	for _, name := range g.source.Names() {
		if _, ok := spec[name]; ok {
			srcOrder = append(srcOrder, name)
		}
	}
	if len(srcOrder) != len(spec) {
		for name := range spec {
			if err := ValidateColumn(g.source, name); err != nil {
				return nil, err
			}
		}
	}

	used := make(map[string]struct{}, len(g.by))
	for _, name := range g.by {
		used[name] = struct{}{}
	}
	var entries []aggEntry
	for _, src := range srcOrder {
		expanded, err := expandSpec(src, spec[src], used)
		if err != nil {
			return nil, err
		}
		entries = append(entries, expanded...)
	}
	return g.runAgg(entries)
}

func (g *GroupBy) runAgg(entries []aggEntry) (*Table, error) {
	timer := metrics.NewTimer("agg")

	keyValues := make([][]interface{}, len(g.by))
	for i := range keyValues {
		keyValues[i] = make([]interface{}, 0, len(g.order))
	}
	outValues := make([][]interface{}, len(entries))
	for i := range outValues {
		outValues[i] = make([]interface{}, 0, len(g.order))
	}

	for _, key := range g.order {
		sub, err := g.subTable(g.partitions[key])
		if err != nil {
			return nil, err
		}
		for i, kv := range g.keyTuples[key] {
			keyValues[i] = append(keyValues[i], kv)
		}
		for i, e := range entries {
			col, ok := sub.Col(e.src)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", e.src)
			}
			v, err := e.fn(col)
			if err != nil {
				opsCollector.ObserveOperation("agg", 0, timer.Stop(), err)
				return nil, err
			}
			outValues[i] = append(outValues[i], v)
		}
	}

	cols := make([]Column, 0, len(g.by)+len(entries))
	for i, name := range g.by {
		cols = append(cols, Column{name: name, vec: vector.Select(name, keyValues[i], g.source.opts)})
	}
	for i, e := range entries {
		cols = append(cols, Column{name: e.out, vec: vector.Select(e.out, outValues[i], g.source.opts)})
	}

	out, err := g.source.withColumns(cols)
	opsCollector.ObserveOperation("agg", len(g.rows), timer.Stop(), err)
	return out, err
}

// aggNamed expands sugar calls like Sum("price", "qty") into entries in
// the caller's column order.
func (g *GroupBy) aggNamed(agg string, cols []string) (*Table, error) {
	if len(cols) == 0 {
		return nil, errors.Newf(errors.ErrorTypeArgument, "%s requires at least one column", agg)
	}
	used := make(map[string]struct{}, len(g.by))
	for _, name := range g.by {
		used[name] = struct{}{}
	}
	var entries []aggEntry
	for _, src := range cols {
		if err := ValidateColumn(g.source, src); err != nil {
			return nil, err
		}
		expanded, err := expandSpec(src, agg, used)
		if err != nil {
			return nil, err
		}
		entries = append(entries, expanded...)
	}
	return g.runAgg(entries)
}

// Sum aggregates the named columns with the sum aggregator.
func (g *GroupBy) Sum(cols ...string) (*Table, error) { return g.aggNamed("sum", cols) }

// Mean aggregates the named columns with the mean aggregator.
func (g *GroupBy) Mean(cols ...string) (*Table, error) { return g.aggNamed("mean", cols) }

// Min aggregates the named columns with the min aggregator.
func (g *GroupBy) Min(cols ...string) (*Table, error) { return g.aggNamed("min", cols) }

// Max aggregates the named columns with the max aggregator.
func (g *GroupBy) Max(cols ...string) (*Table, error) { return g.aggNamed("max", cols) }

// Count returns one row per partition with a "count" column holding the
// partition's total row count. Unlike the "count" spec aggregator,
// which counts valid entries of one column, this counts every row.
func (g *GroupBy) Count() (*Table, error) {
	keyValues := make([][]interface{}, len(g.by))
	for i := range keyValues {
		keyValues[i] = make([]interface{}, 0, len(g.order))
	}
	counts := make([]interface{}, 0, len(g.order))
	for _, key := range g.order {
		for i, kv := range g.keyTuples[key] {
			keyValues[i] = append(keyValues[i], kv)
		}
		counts = append(counts, len(g.partitions[key]))
	}

	cols := make([]Column, 0, len(g.by)+1)
	for i, name := range g.by {
		cols = append(cols, Column{name: name, vec: vector.Select(name, keyValues[i], g.source.opts)})
	}
	countName := uniqueNameAmong("count", g.by)
	cols = append(cols, Column{name: countName, vec: vector.New(counts, g.source.opts)})
	return g.source.withColumns(cols)
}

func uniqueNameAmong(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		used[t] = struct{}{}
	}
	return uniqueName(base, used)
}

// Apply invokes fn once per partition, in first-seen key order, and
// assembles the results into one output table. fn may return:
//
//   - a single-row *Table: its columns merge into the output; more than
//     one row is a DataError, and an empty table contributes missing
//     values for its columns.
//   - a Row map: each key becomes or extends an output column. Keys
//     first seen on a later partition are added lazily with missing
//     values back-filled for the partitions already emitted.
//   - any other value: recorded under the "value" column.
//
// Return shapes may differ between partitions. An error from fn aborts
// the whole call with no partial result.
func (g *GroupBy) Apply(fn func(sub *Table) (interface{}, error)) (*Table, error) {
	if fn == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "apply requires a callback")
	}
	timer := metrics.NewTimer("apply")

	var colOrder []string
	colValues := make(map[string][]interface{})
	ensure := func(name string, emitted int) {
		if _, ok := colValues[name]; ok {
			return
		}
		colOrder = append(colOrder, name)
		colValues[name] = make([]interface{}, emitted)
	}

	for emitted, key := range g.order {
		sub, err := g.subTable(g.partitions[key])
		if err != nil {
			return nil, err
		}
		res, err := fn(sub)
		if err != nil {
			opsCollector.ObserveOperation("apply", 0, timer.Stop(), err)
			return nil, err
		}

		switch r := res.(type) {
		case *Table:
			if r == nil {
				break
			}
			if r.RowCount() > 1 {
				return nil, errors.Newf(errors.ErrorTypeData,
					"apply callback returned %d rows, expected one", r.RowCount())
			}
			if r.RowCount() == 0 {
				for _, name := range r.Names() {
					ensure(name, emitted)
				}
				break
			}
			row := r.Row(0)
			for _, name := range r.Names() {
				ensure(name, emitted)
				colValues[name] = append(colValues[name], row[name])
			}
		case Row:
			names := make([]string, 0, len(r))
			for name := range r {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				ensure(name, emitted)
				colValues[name] = append(colValues[name], r[name])
			}
		default:
			ensure(applyDefaultColumn, emitted)
			colValues[applyDefaultColumn] = append(colValues[applyDefaultColumn], r)
		}

		// Pad columns this partition did not produce.
		for name, vals := range colValues {
			if len(vals) == emitted {
				colValues[name] = append(vals, nil)
			}
		}
	}

	keyValues := make([][]interface{}, len(g.by))
	for i := range keyValues {
		keyValues[i] = make([]interface{}, 0, len(g.order))
	}
	for _, key := range g.order {
		for i, kv := range g.keyTuples[key] {
			keyValues[i] = append(keyValues[i], kv)
		}
	}

	cols := make([]Column, 0, len(g.by)+len(colOrder))
	for i, name := range g.by {
		cols = append(cols, Column{name: name, vec: vector.Select(name, keyValues[i], g.source.opts)})
	}
	for _, name := range colOrder {
		if containsString(g.by, name) {
			continue
		}
		cols = append(cols, Column{name: name, vec: vector.Select(name, colValues[name], g.source.opts)})
	}

	out, err := g.source.withColumns(cols)
	opsCollector.ObserveOperation("apply", len(g.rows), timer.Stop(), err)
	return out, err
}

func containsString(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}
