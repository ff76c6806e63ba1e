// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public buffer types of spsolve.
//
// # Overview
//
// Every operand of a sparse solve or product is a RawTensor: a contiguous
// row-major buffer with a Shape and a DataType. This package re-exports the
// types and the constructors needed to build operands and read results.
//
// # Basic Usage
//
//	import "github.com/born-ml/spsolve/tensor"
//
//	func main() {
//	    ai, _ := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2})
//	    ax, _ := tensor.FromSlice([]float64{2, 4}, tensor.Shape{2})
//	    b, _ := tensor.FromSlice([]float64{2, 8}, tensor.Shape{2})
//	    // pass to spsolve.Engine.Solve
//	}
//
// # Supported Data Types
//
// The DType constraint admits:
//   - float32, float64 (real values, widened to float64)
//   - complex64, complex128 (complex values, widened to complex128)
//   - int32, int64 (indices, converted to int32)
//
// # Shapes
//
// Matrix values are [nnz] or [batch, nnz]. Operands are [n_col, ...] or
// [batch, n_col, ...]; trailing dimensions are independent right-hand sides.
package tensor
