package vector

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/pkg/errors"
)

// Arrow delegates storage to an Apache Arrow typed array with a
// validity bitmap. It is selected for large, string-heavy columns or on
// explicit request, and carries per-element null tracking that the
// Dense buffer cannot express.
//
// Arrow arrays are immutable, so slices share buffers zero-copy without
// violating the no-shared-mutable-storage rule.
type Arrow struct {
	arr arrow.Array
}

// newArrow builds an Arrow vector from raw values, inferring a single
// array type. Mixed-type input cannot be represented and returns an
// error; the selection strategy treats that as a silent fallback signal,
// never a user-facing failure.
func newArrow(values []interface{}) (*Arrow, error) {
	if len(values) == 0 {
		return nil, errors.New(errors.ErrorTypeData, "cannot infer arrow type from empty column")
	}

	var numeric, integral, textual, boolean, present int
	for _, v := range values {
		if v == nil {
			continue
		}
		present++
		switch v.(type) {
		case string:
			textual++
		case bool:
			boolean++
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			numeric++
			integral++
		default:
			if _, ok := toFloat64(v); ok {
				numeric++
			} else {
				return nil, errors.Newf(errors.ErrorTypeData, "unsupported arrow element type %T", v)
			}
		}
	}
	if present == 0 {
		return nil, errors.New(errors.ErrorTypeData, "cannot infer arrow type from all-null column")
	}

	mem := memory.NewGoAllocator()
	switch {
	case textual == present:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.Reserve(len(values))
		for _, v := range values {
			if v == nil {
				b.AppendNull()
			} else {
				b.Append(v.(string))
			}
		}
		return &Arrow{arr: b.NewArray()}, nil

	case boolean == present:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.Reserve(len(values))
		for _, v := range values {
			if v == nil {
				b.AppendNull()
			} else {
				b.Append(v.(bool))
			}
		}
		return &Arrow{arr: b.NewArray()}, nil

	case integral == present:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.Reserve(len(values))
		for _, v := range values {
			if v == nil {
				b.AppendNull()
			} else {
				f, _ := toFloat64(v)
				b.Append(int64(f))
			}
		}
		return &Arrow{arr: b.NewArray()}, nil

	case numeric == present:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Reserve(len(values))
		for _, v := range values {
			if v == nil {
				b.AppendNull()
			} else {
				f, _ := toFloat64(v)
				b.Append(f)
			}
		}
		return &Arrow{arr: b.NewArray()}, nil

	default:
		return nil, errors.New(errors.ErrorTypeData, "mixed-type column cannot use arrow storage")
	}
}

// FromArrowArray imports an existing Arrow array as a Vector. The array
// is retained; the caller keeps its own reference. Only boolean, int64,
// float64, and string arrays are supported.
func FromArrowArray(arr arrow.Array) (Vector, error) {
	switch arr.(type) {
	case *array.Boolean, *array.Int64, *array.Float64, *array.String:
		arr.Retain()
		return &Arrow{arr: arr}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeFormat, "unsupported arrow array type %s", arr.DataType().Name())
	}
}

func (a *Arrow) sealed() {}

// Kind reports KindArrow.
func (a *Arrow) Kind() Kind { return KindArrow }

// Len returns the number of elements.
func (a *Arrow) Len() int { return a.arr.Len() }

// ArrowArray exposes the backing array for zero-copy interchange with
// Arrow IPC writers.
func (a *Arrow) ArrowArray() arrow.Array { return a.arr }

// DataType reports the Arrow element type.
func (a *Arrow) DataType() arrow.DataType { return a.arr.DataType() }

// Value returns the element at i, or nil when the validity bitmap marks
// it null.
func (a *Arrow) Value(i int) interface{} {
	if a.arr.IsNull(i) {
		return nil
	}
	switch arr := a.arr.(type) {
	case *array.Boolean:
		return arr.Value(i)
	case *array.Int64:
		return arr.Value(i)
	case *array.Float64:
		return arr.Value(i)
	case *array.String:
		return arr.Value(i)
	default:
		return nil
	}
}

// Values materializes the array into a fresh slice.
func (a *Arrow) Values() []interface{} {
	out := make([]interface{}, a.arr.Len())
	for i := range out {
		out[i] = a.Value(i)
	}
	return out
}

// Map applies fn to every element and re-selects storage from the
// outputs.
func (a *Arrow) Map(fn func(interface{}) interface{}) Vector {
	out := make([]interface{}, a.arr.Len())
	for i := range out {
		out[i] = fn(a.Value(i))
	}
	return New(out, nil)
}

// Slice returns an Arrow vector over [start, end). The slice shares the
// immutable backing buffers.
func (a *Arrow) Slice(start, end int) Vector {
	start, end = clampRange(start, end, a.arr.Len())
	return &Arrow{arr: array.NewSlice(a.arr, int64(start), int64(end))}
}

// Sum returns the sum of valid elements for numeric arrays, skipping
// nulls and NaN. Non-numeric arrays return missing.
func (a *Arrow) Sum() (float64, bool) {
	switch arr := a.arr.(type) {
	case *array.Int64:
		var total float64
		for i := 0; i < arr.Len(); i++ {
			if !arr.IsNull(i) {
				total += float64(arr.Value(i))
			}
		}
		return total, true
	case *array.Float64:
		var total float64
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				continue
			}
			v := arr.Value(i)
			if !math.IsNaN(v) {
				total += v
			}
		}
		return total, true
	default:
		return 0, false
	}
}

// NullCount returns the number of null elements.
func (a *Arrow) NullCount() int { return a.arr.NullN() }

// MemoryUsage reports the bytes held by the array's buffers.
func (a *Arrow) MemoryUsage() int64 {
	var total int64
	for _, buf := range a.arr.Data().Buffers() {
		if buf != nil {
			total += int64(buf.Len())
		}
	}
	return total
}
