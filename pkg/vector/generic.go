package vector

import "math"

// sniffLimit bounds how many leading elements Sum inspects when deciding
// whether a Generic vector is numeric.
const sniffLimit = 10

// Generic stores heterogeneous values. A nil element is the missing
// marker.
type Generic struct {
	values []interface{}
}

// NewGeneric builds a Generic vector. The input slice is copied.
func NewGeneric(values []interface{}) *Generic {
	g := &Generic{values: make([]interface{}, len(values))}
	copy(g.values, values)
	return g
}

func (g *Generic) sealed() {}

// Kind reports KindGeneric.
func (g *Generic) Kind() Kind { return KindGeneric }

// Len returns the number of elements.
func (g *Generic) Len() int { return len(g.values) }

// Value returns the element at i.
func (g *Generic) Value(i int) interface{} { return g.values[i] }

// Values materializes the elements into a fresh slice.
func (g *Generic) Values() []interface{} {
	out := make([]interface{}, len(g.values))
	copy(out, g.values)
	return out
}

// Map applies fn to every element and re-selects storage from the
// outputs, so a Generic column mapped through a numeric function
// tightens to Dense.
func (g *Generic) Map(fn func(interface{}) interface{}) Vector {
	out := make([]interface{}, len(g.values))
	for i, v := range g.values {
		out[i] = fn(v)
	}
	return New(out, nil)
}

// Slice returns a Generic vector over [start, end).
func (g *Generic) Slice(start, end int) Vector {
	start, end = clampRange(start, end, len(g.values))
	return NewGeneric(g.values[start:end])
}

// Sum is best-effort: it sniffs at most the first sniffLimit elements,
// and only if that sample is entirely numeric does it sum the whole
// column, treating non-numeric entries as 0 and skipping NaN. A
// non-numeric sample returns missing. The bounded sample keeps Sum from
// paying a full type scan on columns that are obviously textual, at the
// cost of wrong answers on columns whose first elements are numeric but
// whose tail is not.
func (g *Generic) Sum() (float64, bool) {
	limit := len(g.values)
	if limit > sniffLimit {
		limit = sniffLimit
	}
	for i := 0; i < limit; i++ {
		if _, ok := toFloat64(g.values[i]); !ok {
			return 0, false
		}
	}

	var total float64
	for _, v := range g.values {
		f, ok := toFloat64(v)
		if !ok || math.IsNaN(f) {
			continue
		}
		total += f
	}
	return total, true
}

// MemoryUsage reports an estimate of the bytes held by the elements.
func (g *Generic) MemoryUsage() int64 {
	var total int64
	for _, v := range g.values {
		total += 16 // interface header
		switch x := v.(type) {
		case string:
			total += int64(len(x))
		case []byte:
			total += int64(len(x))
		case nil:
		default:
			total += 8
		}
	}
	return total
}
