package vector

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/quiverdata/quiver/pkg/metrics"
)

const (
	// arrowRowThreshold is the minimum column length before the
	// heuristic considers Arrow storage worthwhile.
	arrowRowThreshold = 4096

	// arrowSampleSize bounds how many leading elements the heuristic
	// inspects when estimating the string share of a column.
	arrowSampleSize = 64
)

// ColumnOption overrides storage selection for a single named column.
// Presence of an entry in Options.Columns forces Dense storage of the
// given element width, bypassing the heuristic for that column.
type ColumnOption struct {
	Type NumericKind
}

// Options control backend selection during construction. The zero value
// (or a nil pointer) applies the default heuristic everywhere.
type Options struct {
	// PreferArrow, when set, overrides the Arrow heuristic: true
	// attempts Arrow storage for every column, false never uses it.
	// A failed attempt falls back silently to in-process storage.
	PreferArrow *bool

	// UseTypedArrays, when set to false, disables Dense selection so
	// numeric columns stay Generic. Unset means enabled.
	UseTypedArrays *bool

	// Columns maps a column name to a forced Dense element width.
	Columns map[string]ColumnOption
}

func (o *Options) preferArrow() *bool {
	if o == nil {
		return nil
	}
	return o.PreferArrow
}

func (o *Options) typedArrays() bool {
	if o == nil || o.UseTypedArrays == nil {
		return true
	}
	return *o.UseTypedArrays
}

func (o *Options) columnOption(name string) (ColumnOption, bool) {
	if o == nil || name == "" {
		return ColumnOption{}, false
	}
	co, ok := o.Columns[name]
	return co, ok
}

// Select chooses a storage variant for one named column's values:
//
//  1. A per-column type override in opts.Columns forces Dense storage
//     of that width.
//  2. An explicit PreferArrow is honored; otherwise a heuristic attempts
//     Arrow only for large, string-heavy columns.
//  3. A failed or skipped Arrow attempt falls back to Dense when every
//     element is a finite number (and typed arrays are enabled), else
//     Generic. The fallback is silent: selection failure is never a
//     user-facing error.
func Select(name string, values []interface{}, opts *Options) Vector {
	if co, ok := opts.columnOption(name); ok {
		return record(NewDense(values, co.Type))
	}

	attemptArrow := false
	if pref := opts.preferArrow(); pref != nil {
		attemptArrow = *pref
	} else {
		attemptArrow = shouldUseArrow(values)
	}
	if attemptArrow {
		if v, err := newArrow(values); err == nil {
			return record(v)
		}
	}

	if opts.typedArrays() && allFiniteNumbers(values) {
		return record(NewDense(values, Float64))
	}
	return record(NewGeneric(values))
}

// New chooses a storage variant for anonymous values. Per-column
// overrides do not apply; Map re-derivation uses this path.
func New(values []interface{}, opts *Options) Vector {
	return Select("", values, opts)
}

func record(v Vector) Vector {
	metrics.VectorBackend.WithLabelValues(v.Kind().String()).Inc()
	return v
}

// shouldUseArrow reports whether a column is large and string-heavy
// enough that Arrow's contiguous string storage pays off. It inspects a
// bounded prefix only.
func shouldUseArrow(values []interface{}) bool {
	if len(values) < arrowRowThreshold {
		return false
	}
	sample := len(values)
	if sample > arrowSampleSize {
		sample = arrowSampleSize
	}
	textual := 0
	for i := 0; i < sample; i++ {
		if _, ok := values[i].(string); ok {
			textual++
		}
	}
	return textual*2 >= sample
}

func allFiniteNumbers(values []interface{}) bool {
	for _, v := range values {
		f, ok := toFloat64(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// ToFloat64 coerces a value to float64. It accepts all Go numeric types
// and json.Number; booleans, strings, and nil are not numeric.
func ToFloat64(v interface{}) (float64, bool) {
	return toFloat64(v)
}

func toFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint8:
		return float64(x), true
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsMissing reports whether v is a missing marker: nil, or NaN in
// either float width. Aggregators treat missing uniformly as "skip".
func IsMissing(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	default:
		return false
	}
}
