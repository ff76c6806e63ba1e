// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/spsolve/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for tensor element types.
// Supported types: float32, float64, int32, int64, complex64, complex128.
type DType = tensor.DType

// DataType represents the underlying element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32    DataType = tensor.Float32
	Float64    DataType = tensor.Float64
	Int32      DataType = tensor.Int32
	Int64      DataType = tensor.Int64
	Complex64  DataType = tensor.Complex64
	Complex128 DataType = tensor.Complex128
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only device: the native kernels run on the host.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
// Example: Shape{5, 2} is a 5-row operand with two right-hand sides.
type Shape = tensor.Shape

// Spec is the abstract description of a tensor: shape and element type.
type Spec = tensor.Spec

// RawTensor is the buffer type every operation consumes and produces.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Spec()
//   - Typed data access via AsFloat64(), AsComplex128(), etc.
//   - Deep copies via Clone()
//
// Example:
//
//	b, _ := tensor.FromSlice([]float64{8, 45, -3, 3, 19}, tensor.Shape{5})
//	data := b.AsFloat64()
type RawTensor = tensor.RawTensor

// Backend is the eager compute interface used by derivative rules.
type Backend = tensor.Backend

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice creates a tensor from a Go slice. The data is copied.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Scalar creates a rank-0 tensor holding v.
func Scalar[T DType](v T) *RawTensor {
	return tensor.Scalar(v)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.Zeros(shape, dtype)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.Ones(shape, dtype)
}

// ToSlice returns a copy of the tensor data as []T.
// Panics if T does not match the tensor's element type.
func ToSlice[T DType](r *RawTensor) []T {
	return tensor.ToSlice[T](r)
}
