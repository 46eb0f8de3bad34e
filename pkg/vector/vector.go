// Package vector provides columnar storage for a single column of values.
//
// A Vector is one of three variants: Dense (fixed-width numeric buffer,
// missing encoded as NaN), Generic (heterogeneous values with nil as the
// missing marker), or Arrow (Apache Arrow typed array with a validity
// bitmap). The variant backing a column is chosen by the selection
// strategy in Select; callers normally never construct a variant directly.
//
// Vectors are immutable after construction. Every transform (Map, Slice)
// returns a new Vector and never shares backing storage with its source.
package vector

// Kind identifies the storage variant backing a Vector.
type Kind int

const (
	KindDense Kind = iota
	KindGeneric
	KindArrow
)

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindGeneric:
		return "generic"
	case KindArrow:
		return "arrow"
	default:
		return "unknown"
	}
}

// NumericKind is the element width of a Dense vector.
type NumericKind int

const (
	Float64 NumericKind = iota
	Float32
	Int64
	Int32
)

// String returns the element type name.
func (k NumericKind) String() string {
	switch k {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	case Int64:
		return "int64"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}

// ParseNumericKind maps a type name to its NumericKind. Used by
// construction options loaded from configuration files.
func ParseNumericKind(s string) (NumericKind, bool) {
	switch s {
	case "float64", "double":
		return Float64, true
	case "float32", "float":
		return Float32, true
	case "int64", "long":
		return Int64, true
	case "int32", "int":
		return Int32, true
	default:
		return Float64, false
	}
}

// Vector is the capability set every storage variant implements.
//
// The interface is sealed: the unexported marker method restricts
// implementations to this package, so a type switch over the three
// variants is exhaustive.
type Vector interface {
	// Kind reports the storage variant.
	Kind() Kind

	// Len returns the number of elements.
	Len() int

	// Value returns the element at index i in O(1). Missing elements
	// are reported as nil for Generic and Arrow vectors and as NaN
	// for Dense float vectors. Out-of-range indexes panic, as with a
	// slice.
	Value(i int) interface{}

	// Values materializes all elements into a fresh slice. The result
	// is owned by the caller and never aliases the vector's storage.
	Values() []interface{}

	// Map applies fn to every element and builds a new Vector from the
	// outputs. Storage is re-selected from the output values, not
	// inherited: mapping a Dense vector through a function returning
	// text yields a Generic result, and mapping a Generic vector
	// through a function returning only finite numbers yields a Dense
	// result.
	Map(fn func(interface{}) interface{}) Vector

	// Slice returns a new Vector over the half-open range [start, end).
	// The bounds are clamped to the vector's length; an inverted range
	// yields an empty Vector. The variant is preserved.
	Slice(start, end int) Vector

	// Sum returns the numeric sum of the elements. The boolean is false
	// when the vector cannot be summed (for Generic vectors, when the
	// sampled prefix is not all-numeric; for Arrow vectors, when the
	// array is not numeric).
	Sum() (float64, bool)

	// MemoryUsage reports the approximate heap bytes held by the
	// vector's storage.
	MemoryUsage() int64

	// sealed marks the implementing variants; only this package may
	// satisfy Vector.
	sealed()
}
