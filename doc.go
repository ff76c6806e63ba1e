// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package spsolve provides a differentiable, batchable sparse linear solve
// and sparse matrix-vector product for matrices in coordinate (COO) format.
//
// # Overview
//
// A sparse matrix is given by three arrays of equal length nnz: row indices
// Ai, column indices Aj and values Ax. Duplicate coordinates are summed.
// Solve computes x with A x = b; Multiply computes A v. Both accept a
// leading batch dimension on Ax and b, extra trailing right-hand-side
// dimensions on b, and promote real operands to complex128 when either
// operand is complex.
//
// Both operations compose with the transformations of this package:
//
//   - Vmap maps a function over an axis of its arguments
//   - JVP evaluates forward-mode derivatives
//   - Grad and VJP evaluate reverse-mode derivatives
//
// The index arrays are structural: they can be neither mapped nor
// differentiated.
//
// # Basic Usage
//
//	engine, err := spsolve.New(spsolve.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	ai, _ := tensor.FromSlice([]int32{0, 1, 1}, tensor.Shape{3})
//	aj, _ := tensor.FromSlice([]int32{0, 0, 1}, tensor.Shape{3})
//	ax, _ := tensor.FromSlice([]float64{2, 1, 4}, tensor.Shape{3})
//	b, _ := tensor.FromSlice([]float64{2, 9}, tensor.Shape{2})
//
//	x, err := engine.Solve(ctx, ai, aj, ax, b) // [1 2]
//
// # Transformations
//
// Traced code runs under a Context and receives Values:
//
//	c := engine.NewContext(ctx)
//	solve := func(c *spsolve.Context, args ...spsolve.Value) (spsolve.Value, error) {
//	    return spsolve.Solve(c, args[0], args[1], args[2], args[3])
//	}
//	grads, err := spsolve.Grad(c, solve, []int{2, 3}, ai, aj, ax, b)
//
// # Derivative Modes
//
// Config.Derivatives selects the solve derivatives. DerivativesExact (the
// default) differentiates with respect to both the values and the right-hand
// side. DerivativesCompat reproduces the reduced rules of older releases.
//
// # Observability
//
// Logging goes through zerolog, native kernel invocations are counted in
// Prometheus metrics and every compiled execution emits an OpenTelemetry span.
package spsolve
