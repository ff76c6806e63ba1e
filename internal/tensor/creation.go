package tensor

import (
	"fmt"
	"unsafe"
)

// FromSlice creates a CPU tensor from a Go slice.
// The slice is copied into the tensor's memory.
//
// Example:
//
//	b, err := tensor.FromSlice([]float64{8, 45, -3, 3, 19}, tensor.Shape{5})
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, DataTypeOf[T](), CPU)
	if err != nil {
		return nil, err
	}
	copy(Elements[T](raw), data)
	return raw, nil
}

// Scalar creates a rank-0 tensor holding v.
func Scalar[T DType](v T) *RawTensor {
	raw, err := NewRaw(Shape{}, DataTypeOf[T](), CPU)
	if err != nil {
		panic(err) // a scalar shape is always valid
	}
	Elements[T](raw)[0] = v
	return raw
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return NewRaw(shape, dtype, CPU)
}

// Ones creates a tensor filled with ones of the given floating or complex type.
func Ones(shape Shape, dtype DataType) (*RawTensor, error) {
	raw, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		fill(raw.AsFloat32(), 1)
	case Float64:
		fill(raw.AsFloat64(), 1)
	case Int32:
		fill(raw.AsInt32(), 1)
	case Int64:
		fill(raw.AsInt64(), 1)
	case Complex64:
		fill(raw.AsComplex64(), 1)
	case Complex128:
		fill(raw.AsComplex128(), 1)
	default:
		return nil, fmt.Errorf("ones: unsupported dtype %s", dtype)
	}
	return raw, nil
}

// Elements returns the tensor data as []T.
// Panics if T does not match the tensor's dtype.
func Elements[T DType](r *RawTensor) []T {
	if want := DataTypeOf[T](); r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*T)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// ToSlice returns a copy of the tensor data as []T.
func ToSlice[T DType](r *RawTensor) []T {
	out := make([]T, r.NumElements())
	copy(out, Elements[T](r))
	return out
}

func fill[T DType](data []T, v T) {
	for i := range data {
		data[i] = v
	}
}
