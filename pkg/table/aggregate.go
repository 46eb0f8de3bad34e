package table

import (
	"strconv"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Built-in aggregators. All of them skip missing markers; sum and mean
// additionally skip non-numeric values. min and max yield missing when a
// partition has zero valid numeric samples, never an error. count
// counts valid entries of any type; the partition-size count lives on
// GroupBy.Count, which deliberately counts every row instead.
func init() {
	mustRegister(RegisterAggregator("sum", AggSum))
	mustRegister(RegisterAggregator("mean", AggMean))
	mustRegister(RegisterAggregator("min", AggMin))
	mustRegister(RegisterAggregator("max", AggMax))
	mustRegister(RegisterAggregator("count", AggCount))
}

// AggSum sums the valid numeric entries of a column. A column with no
// valid numeric entries sums to 0.
func AggSum(c *Column) (interface{}, error) {
	var total float64
	n := c.Len()
	for i := 0; i < n; i++ {
		v := c.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		if f, ok := vector.ToFloat64(v); ok {
			total += f
		}
	}
	return total, nil
}

// AggMean averages the valid numeric entries, or missing when none
// exist.
func AggMean(c *Column) (interface{}, error) {
	if m, ok := c.Mean(); ok {
		return m, nil
	}
	return nil, nil
}

// AggMin returns the smallest valid numeric entry, or missing when none
// exist.
func AggMin(c *Column) (interface{}, error) {
	if m, ok := c.Min(); ok {
		return m, nil
	}
	return nil, nil
}

// AggMax returns the largest valid numeric entry, or missing when none
// exist.
func AggMax(c *Column) (interface{}, error) {
	if m, ok := c.Max(); ok {
		return m, nil
	}
	return nil, nil
}

// AggCount counts valid (non-missing) entries of any type.
func AggCount(c *Column) (interface{}, error) {
	return c.Count(), nil
}

// aggEntry is one normalized aggregation: source column, resolved
// output name, and the function to run.
type aggEntry struct {
	src string
	out string
	fn  AggFunc
}

// resolveAggregator turns one spec element into a (name, fn) pair. It
// accepts a registered aggregator name or an AggFunc-shaped function;
// anything else is an ArgumentError.
func resolveAggregator(spec interface{}) (string, AggFunc, error) {
	switch s := spec.(type) {
	case string:
		fn, ok := LookupAggregator(s)
		if !ok {
			return "", nil, errors.Newf(errors.ErrorTypeArgument, "unknown aggregator %q", s)
		}
		return s, fn, nil
	case AggFunc:
		return "agg", s, nil
	case func(c *Column) (interface{}, error):
		return "agg", AggFunc(s), nil
	default:
		return "", nil, errors.Newf(errors.ErrorTypeArgument,
			"aggregator must be a name or function, got %T", spec)
	}
}

// expandSpec normalizes one source column's spec value, which may be a
// single aggregator or an ordered list, into entries with
// collision-free output names. Proposed names follow "{column}_{agg}";
// a name already in use gains a numeric suffix, counted per source
// column.
func expandSpec(src string, specValue interface{}, used map[string]struct{}) ([]aggEntry, error) {
	var elements []interface{}
	switch sv := specValue.(type) {
	case []interface{}:
		elements = sv
	case []string:
		elements = make([]interface{}, len(sv))
		for i, s := range sv {
			elements[i] = s
		}
	default:
		elements = []interface{}{specValue}
	}

	entries := make([]aggEntry, 0, len(elements))
	for _, el := range elements {
		name, fn, err := resolveAggregator(el)
		if err != nil {
			return nil, err
		}
		out := uniqueName(src+"_"+name, used)
		used[out] = struct{}{}
		entries = append(entries, aggEntry{src: src, out: out, fn: fn})
	}
	return entries, nil
}

func uniqueName(base string, used map[string]struct{}) string {
	if _, taken := used[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}
