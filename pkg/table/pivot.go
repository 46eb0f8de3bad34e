package table

import (
	"math"

	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	stringpool "github.com/quiverdata/quiver/pkg/strings"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Pivot cross-tabulates the table into wide form. One output row is
// emitted per distinct index-tuple, in first-seen order. One output
// column is created per combination of distinct spread-column values
// (the Cartesian product when spreading over several columns), named
// "{column}_{value}" for a single spread column and dot-joined per
// dimension ("region_North.quarter_Q1") for several.
//
// Each cell aggregates the values-column entries of the source rows
// matching that exact (index-tuple, spread-tuple) combination with agg,
// which is a registered aggregator name or an AggFunc; nil selects
// "mean". Combinations with no matching source rows are filled with NaN
// when the values column is numeric and nil otherwise, never an error.
func (t *Table) Pivot(index []string, spread []string, values string, agg interface{}) (*Table, error) {
	if len(index) == 0 {
		return nil, errors.New(errors.ErrorTypeArgument, "pivot requires at least one index column")
	}
	if len(spread) == 0 {
		return nil, errors.New(errors.ErrorTypeArgument, "pivot requires at least one spread column")
	}
	for _, name := range index {
		if err := ValidateColumn(t, name); err != nil {
			return nil, err
		}
	}
	for _, name := range spread {
		if err := ValidateColumn(t, name); err != nil {
			return nil, err
		}
	}
	if err := ValidateColumn(t, values); err != nil {
		return nil, err
	}
	if agg == nil {
		agg = "mean"
	}
	_, aggFn, err := resolveAggregator(agg)
	if err != nil {
		return nil, err
	}

	timer := metrics.NewTimer("pivot")

	valuesCol, _ := t.Col(values)
	numericFill := valuesCol.IsNumeric()

	indexCols := make([]*Column, len(index))
	for i, name := range index {
		c, _ := t.Col(name)
		indexCols[i] = c
	}
	spreadCols := make([]*Column, len(spread))
	for i, name := range spread {
		c, _ := t.Col(name)
		spreadCols[i] = c
	}

	// Distinct spread values per dimension, first-seen order.
	dims := make([][]interface{}, len(spread))
	for i, c := range spreadCols {
		dims[i] = c.Unique()
	}

	// Partition the values column by (index-tuple, spread-tuple).
	n := t.RowCount()
	var indexOrder []string
	indexTuples := make(map[string][]interface{})
	cells := make(map[string]map[string][]interface{})

	idxTuple := make([]interface{}, len(index))
	sprTuple := make([]interface{}, len(spread))
	for row := 0; row < n; row++ {
		for j, c := range indexCols {
			idxTuple[j] = c.Value(row)
		}
		for j, c := range spreadCols {
			sprTuple[j] = c.Value(row)
		}
		ik := encodeKey(idxTuple)
		sk := encodeKey(sprTuple)
		if _, seen := cells[ik]; !seen {
			indexOrder = append(indexOrder, ik)
			indexTuples[ik] = append([]interface{}(nil), idxTuple...)
			cells[ik] = make(map[string][]interface{})
		}
		cells[ik][sk] = append(cells[ik][sk], valuesCol.Value(row))
	}

	combos := cartesian(dims)

	// Column names for each spread combination, deterministic and
	// collision-free against the index columns.
	used := make(map[string]struct{}, len(index))
	for _, name := range index {
		used[name] = struct{}{}
	}
	comboNames := make([]string, len(combos))
	comboKeys := make([]string, len(combos))
	for i, combo := range combos {
		comboNames[i] = uniqueName(spreadColumnName(spread, combo), used)
		used[comboNames[i]] = struct{}{}
		comboKeys[i] = encodeKey(combo)
	}

	// Fill cells in index-tuple order.
	indexValues := make([][]interface{}, len(index))
	for i := range indexValues {
		indexValues[i] = make([]interface{}, 0, len(indexOrder))
	}
	comboValues := make([][]interface{}, len(combos))
	for i := range comboValues {
		comboValues[i] = make([]interface{}, 0, len(indexOrder))
	}

	var fill interface{}
	if numericFill {
		fill = math.NaN()
	}

	for _, ik := range indexOrder {
		for i, kv := range indexTuples[ik] {
			indexValues[i] = append(indexValues[i], kv)
		}
		for i, ck := range comboKeys {
			matched := cells[ik][ck]
			if len(matched) == 0 {
				comboValues[i] = append(comboValues[i], fill)
				continue
			}
			cell := Column{name: values, vec: vector.New(matched, nil)}
			v, err := aggFn(&cell)
			if err != nil {
				opsCollector.ObserveOperation("pivot", 0, timer.Stop(), err)
				return nil, err
			}
			comboValues[i] = append(comboValues[i], v)
		}
	}

	cols := make([]Column, 0, len(index)+len(combos))
	for i, name := range index {
		cols = append(cols, Column{name: name, vec: vector.Select(name, indexValues[i], t.opts)})
	}
	for i, name := range comboNames {
		cols = append(cols, Column{name: name, vec: vector.Select(name, comboValues[i], t.opts)})
	}

	out, err := t.withColumns(cols)
	opsCollector.ObserveOperation("pivot", n, timer.Stop(), err)
	logger.Debug("pivot complete",
		zap.Strings("index", index),
		zap.Strings("spread", spread),
		zap.Int("output_rows", len(indexOrder)),
		zap.Int("output_columns", len(cols)))
	return out, err
}

// spreadColumnName composes the output column name for one spread
// combination: "{column}_{value}" per dimension, dot-joined.
func spreadColumnName(spread []string, combo []interface{}) string {
	segments := make([]string, len(spread))
	for i, name := range spread {
		segments[i] = name + "_" + stringpool.ValueToString(combo[i])
	}
	return stringpool.Join(segments, ".")
}

// cartesian expands per-dimension value lists into ordered tuples, the
// first dimension cycling slowest. An empty dimension yields no tuples.
func cartesian(dims [][]interface{}) [][]interface{} {
	total := 1
	for _, d := range dims {
		total *= len(d)
	}
	if total == 0 {
		return nil
	}
	out := make([][]interface{}, 0, total)
	tuple := make([]interface{}, len(dims))
	var walk func(dim int)
	walk = func(dim int) {
		if dim == len(dims) {
			out = append(out, append([]interface{}(nil), tuple...))
			return
		}
		for _, v := range dims[dim] {
			tuple[dim] = v
			walk(dim + 1)
		}
	}
	walk(0)
	return out
}
