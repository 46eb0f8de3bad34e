package vector

import (
	"math"
)

// Dense is a fixed-width numeric buffer with a single element type and no
// validity bitmap. A missing value is stored as NaN in the float widths;
// the integer widths cannot represent missing and store 0 instead, so
// they are only selected through an explicit per-column type override.
type Dense struct {
	kind NumericKind
	f64  []float64
	f32  []float32
	i64  []int64
	i32  []int32
}

// NewDense builds a Dense vector of the given element width from raw
// values. Values that cannot be coerced to a number become NaN (float
// widths) or 0 (integer widths). Fractional values are truncated when
// stored in an integer width.
func NewDense(values []interface{}, kind NumericKind) *Dense {
	d := &Dense{kind: kind}
	switch kind {
	case Float64:
		d.f64 = make([]float64, len(values))
		for i, v := range values {
			f, ok := toFloat64(v)
			if !ok {
				f = math.NaN()
			}
			d.f64[i] = f
		}
	case Float32:
		d.f32 = make([]float32, len(values))
		for i, v := range values {
			f, ok := toFloat64(v)
			if !ok {
				f = math.NaN()
			}
			d.f32[i] = float32(f)
		}
	case Int64:
		d.i64 = make([]int64, len(values))
		for i, v := range values {
			if f, ok := toFloat64(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
				d.i64[i] = int64(f)
			}
		}
	case Int32:
		d.i32 = make([]int32, len(values))
		for i, v := range values {
			if f, ok := toFloat64(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
				d.i32[i] = int32(int64(f))
			}
		}
	}
	return d
}

// NewDenseFloat64 builds a Dense float64 vector from an existing buffer.
// The buffer is copied.
func NewDenseFloat64(data []float64) *Dense {
	d := &Dense{kind: Float64, f64: make([]float64, len(data))}
	copy(d.f64, data)
	return d
}

func (d *Dense) sealed() {}

// Kind reports KindDense.
func (d *Dense) Kind() Kind { return KindDense }

// NumericKind reports the element width.
func (d *Dense) NumericKind() NumericKind { return d.kind }

// Len returns the number of elements.
func (d *Dense) Len() int {
	switch d.kind {
	case Float64:
		return len(d.f64)
	case Float32:
		return len(d.f32)
	case Int64:
		return len(d.i64)
	case Int32:
		return len(d.i32)
	}
	return 0
}

// Value returns the element at i, typed by the element width.
func (d *Dense) Value(i int) interface{} {
	switch d.kind {
	case Float64:
		return d.f64[i]
	case Float32:
		return d.f32[i]
	case Int64:
		return d.i64[i]
	case Int32:
		return d.i32[i]
	}
	return nil
}

// Float64 returns the element at i widened to float64.
func (d *Dense) Float64(i int) float64 {
	switch d.kind {
	case Float64:
		return d.f64[i]
	case Float32:
		return float64(d.f32[i])
	case Int64:
		return float64(d.i64[i])
	case Int32:
		return float64(d.i32[i])
	}
	return math.NaN()
}

// Values materializes the buffer into a fresh []interface{}.
func (d *Dense) Values() []interface{} {
	n := d.Len()
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = d.Value(i)
	}
	return out
}

// Map applies fn to every element and re-selects storage from the
// outputs.
func (d *Dense) Map(fn func(interface{}) interface{}) Vector {
	n := d.Len()
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = fn(d.Value(i))
	}
	return New(out, nil)
}

// Slice returns a Dense vector over [start, end), clamped to the buffer.
func (d *Dense) Slice(start, end int) Vector {
	start, end = clampRange(start, end, d.Len())
	out := &Dense{kind: d.kind}
	switch d.kind {
	case Float64:
		out.f64 = append([]float64(nil), d.f64[start:end]...)
	case Float32:
		out.f32 = append([]float32(nil), d.f32[start:end]...)
	case Int64:
		out.i64 = append([]int64(nil), d.i64[start:end]...)
	case Int32:
		out.i32 = append([]int32(nil), d.i32[start:end]...)
	}
	return out
}

// Sum returns the sum of the buffer with NaN elements skipped, so a
// float column [1, 2, NaN, 4] sums to 7.
func (d *Dense) Sum() (float64, bool) {
	var total float64
	switch d.kind {
	case Float64:
		for _, v := range d.f64 {
			if !math.IsNaN(v) {
				total += v
			}
		}
	case Float32:
		for _, v := range d.f32 {
			f := float64(v)
			if !math.IsNaN(f) {
				total += f
			}
		}
	case Int64:
		for _, v := range d.i64 {
			total += float64(v)
		}
	case Int32:
		for _, v := range d.i32 {
			total += float64(v)
		}
	}
	return total, true
}

// ValidCount returns the number of non-NaN elements.
func (d *Dense) ValidCount() int {
	switch d.kind {
	case Float64:
		n := 0
		for _, v := range d.f64 {
			if !math.IsNaN(v) {
				n++
			}
		}
		return n
	case Float32:
		n := 0
		for _, v := range d.f32 {
			if !math.IsNaN(float64(v)) {
				n++
			}
		}
		return n
	default:
		return d.Len()
	}
}

// MemoryUsage reports the bytes held by the buffer.
func (d *Dense) MemoryUsage() int64 {
	switch d.kind {
	case Float64:
		return int64(len(d.f64) * 8)
	case Float32:
		return int64(len(d.f32) * 4)
	case Int64:
		return int64(len(d.i64) * 8)
	case Int32:
		return int64(len(d.i32) * 4)
	}
	return 0
}

// clampRange normalizes a half-open [start, end) range against length n.
func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		return 0, 0
	}
	return start, end
}
