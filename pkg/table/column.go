package table

import (
	"github.com/quiverdata/quiver/pkg/vector"
)

// Column is a named vector: the Series-like wrapper returned by Col.
type Column struct {
	name string
	vec  vector.Vector
}

// NewColumn wraps raw values as a named Column, running storage
// selection on the values.
func NewColumn(name string, values []interface{}, opts *vector.Options) Column {
	return Column{name: name, vec: vector.Select(name, values, opts)}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Vector returns the backing storage.
func (c *Column) Vector() vector.Vector { return c.vec }

// Len returns the number of elements including missing ones.
func (c *Column) Len() int { return c.vec.Len() }

// Value returns the element at i.
func (c *Column) Value(i int) interface{} { return c.vec.Value(i) }

// Values materializes all elements.
func (c *Column) Values() []interface{} { return c.vec.Values() }

// Map applies fn to every element and returns a Column whose storage is
// re-selected from the outputs.
func (c *Column) Map(fn func(interface{}) interface{}) Column {
	return Column{name: c.name, vec: c.vec.Map(fn)}
}

// Slice returns a Column over rows [start, end).
func (c *Column) Slice(start, end int) Column {
	return Column{name: c.name, vec: c.vec.Slice(start, end)}
}

// Sum delegates to the storage variant's sum. For Dense storage NaN is
// skipped; for Generic storage the bounded-prefix sniff applies.
func (c *Column) Sum() (float64, bool) { return c.vec.Sum() }

// Mean returns the mean of the valid numeric elements, or false when
// none exist.
func (c *Column) Mean() (float64, bool) {
	var total float64
	valid := 0
	n := c.vec.Len()
	for i := 0; i < n; i++ {
		v := c.vec.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		if f, ok := vector.ToFloat64(v); ok {
			total += f
			valid++
		}
	}
	if valid == 0 {
		return 0, false
	}
	return total / float64(valid), true
}

// Min returns the smallest valid numeric element, or false when none
// exist.
func (c *Column) Min() (float64, bool) {
	return c.extremum(func(v, best float64) bool { return v < best })
}

// Max returns the largest valid numeric element, or false when none
// exist.
func (c *Column) Max() (float64, bool) {
	return c.extremum(func(v, best float64) bool { return v > best })
}

func (c *Column) extremum(better func(v, best float64) bool) (float64, bool) {
	var best float64
	found := false
	n := c.vec.Len()
	for i := 0; i < n; i++ {
		v := c.vec.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		f, ok := vector.ToFloat64(v)
		if !ok {
			continue
		}
		if !found || better(f, best) {
			best = f
			found = true
		}
	}
	return best, found
}

// Count returns the number of valid elements: everything that is not a
// missing marker, regardless of type.
func (c *Column) Count() int {
	n := c.vec.Len()
	valid := 0
	for i := 0; i < n; i++ {
		if !vector.IsMissing(c.vec.Value(i)) {
			valid++
		}
	}
	return valid
}

// MissingCount returns the number of missing elements.
func (c *Column) MissingCount() int { return c.Len() - c.Count() }

// IsNumeric reports whether the column holds numeric data: Dense
// storage always does, other variants qualify when they contain at
// least one number and nothing non-numeric besides missing markers.
func (c *Column) IsNumeric() bool {
	if c.vec.Kind() == vector.KindDense {
		return true
	}
	n := c.vec.Len()
	numbers := 0
	for i := 0; i < n; i++ {
		v := c.vec.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		if _, ok := vector.ToFloat64(v); !ok {
			return false
		}
		numbers++
	}
	return numbers > 0
}

// Unique returns the distinct elements in first-seen order. Equality is
// structural: all numeric widths compare by value.
func (c *Column) Unique() []interface{} {
	seen := make(map[string]struct{})
	var out []interface{}
	n := c.vec.Len()
	for i := 0; i < n; i++ {
		v := c.vec.Value(i)
		k := encodeValue(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ValueCounts returns a two-column Table (value, count) of distinct
// elements in first-seen order.
func (c *Column) ValueCounts() (*Table, error) {
	counts := make(map[string]int)
	var order []string
	firstSeen := make(map[string]interface{})

	n := c.vec.Len()
	for i := 0; i < n; i++ {
		v := c.vec.Value(i)
		k := encodeValue(v)
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			firstSeen[k] = v
		}
		counts[k]++
	}

	values := make([]interface{}, len(order))
	tallies := make([]interface{}, len(order))
	for i, k := range order {
		values[i] = firstSeen[k]
		tallies[i] = counts[k]
	}
	return newTable([]Column{
		{name: "value", vec: vector.NewGeneric(values)},
		{name: "count", vec: vector.New(tallies, nil)},
	})
}

// clone copies the column so the result shares no mutable storage with
// the source. Arrow storage shares its immutable buffers.
func (c *Column) clone() Column {
	return Column{name: c.name, vec: c.vec.Slice(0, c.vec.Len())}
}
