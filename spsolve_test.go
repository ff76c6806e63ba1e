// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package spsolve_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/spsolve"
	"github.com/born-ml/spsolve/tensor"
)

var (
	ai = []int32{0, 0, 1, 1, 1, 2, 2, 2, 3, 4, 4, 4}
	aj = []int32{0, 1, 0, 2, 4, 1, 2, 3, 2, 1, 2, 4}
	ax = []float64{2, 3, 3, 4, 6, -1, -3, 2, 1, 4, 2, 1}
	b  = []float64{8, 45, -3, 3, 19}
)

func newEngine(t *testing.T, mode spsolve.DerivativeMode) *spsolve.Engine {
	t.Helper()
	logger := zerolog.Nop()
	cfg := spsolve.DefaultConfig()
	cfg.Derivatives = mode
	cfg.Logger = &logger
	e, err := spsolve.New(cfg)
	require.NoError(t, err)
	return e
}

func raw[T tensor.DType](t *testing.T, data []T, dims ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, tensor.Shape(dims))
	require.NoError(t, err)
	return r
}

func solve(c *spsolve.Context, args ...spsolve.Value) (spsolve.Value, error) {
	return spsolve.Solve(c, args[0], args[1], args[2], args[3])
}

func TestNew(t *testing.T) {
	e := newEngine(t, spsolve.DerivativesCompat)
	assert.Equal(t, spsolve.DerivativesCompat, e.Config().Derivatives)

	cfg := spsolve.DefaultConfig()
	cfg.Derivatives = spsolve.DerivativeMode(7)
	_, err := spsolve.New(cfg)
	assert.ErrorIs(t, err, spsolve.ErrConfiguration)
}

func TestEngine_SolveAndMultiply(t *testing.T) {
	e := newEngine(t, spsolve.DerivativesExact)
	ctx := context.Background()
	i, j, a := raw(t, ai, 12), raw(t, aj, 12), raw(t, ax, 12)

	x, err := e.Solve(ctx, i, j, a, raw(t, b, 5))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{5}, x.Shape())
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4, 5}, tensor.ToSlice[float64](x), 1e-12)

	y, err := e.Multiply(ctx, i, j, a, x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, b, tensor.ToSlice[float64](y), 1e-12)
}

func TestEngine_Errors(t *testing.T) {
	e := newEngine(t, spsolve.DerivativesExact)
	ctx := context.Background()
	i, j := raw(t, ai, 12), raw(t, aj, 12)

	// Values may carry at most one batch dimension.
	_, err := e.Solve(ctx, i, j, raw(t, ax, 1, 1, 12), raw(t, b, 5))
	assert.ErrorIs(t, err, spsolve.ErrConfiguration)

	zeros := make([]float64, 12)
	_, err = e.Solve(ctx, i, j, raw(t, zeros, 12), raw(t, b, 5))
	assert.ErrorIs(t, err, spsolve.ErrSingular)

	bad := append([]int32(nil), ai...)
	bad[0] = 9
	_, err = e.Multiply(ctx, raw(t, bad, 12), j, raw(t, ax, 12), raw(t, b, 5))
	assert.ErrorIs(t, err, spsolve.ErrIndexOutOfRange)
}

func TestVmapGrad(t *testing.T) {
	e := newEngine(t, spsolve.DerivativesExact)
	c := e.NewContext(context.Background())
	i, j := raw(t, ai, 12), raw(t, aj, 12)

	// Two systems: A and 2A, sharing the right-hand side.
	batch := append(append([]float64(nil), ax...), ax...)
	for k := 12; k < 24; k++ {
		batch[k] *= 2
	}
	vsolve := spsolve.Vmap(solve, []int{spsolve.NotMapped, spsolve.NotMapped, 0, spsolve.NotMapped}, 0)
	out, err := vsolve(c, i, j, raw(t, batch, 2, 12), raw(t, b, 5))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 5}, out.Shape())
	xs := tensor.ToSlice[float64](out.(*tensor.RawTensor))
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4, 5, 0.5, 1, 1.5, 2, 2.5}, xs, 1e-12)

	// d sum(x) / d b for 2A is half the gradient for A.
	grads, err := spsolve.Grad(c, vsolve, []int{3}, i, j, raw(t, batch, 2, 12), raw(t, b, 5))
	require.NoError(t, err)
	single, err := spsolve.Grad(c, solve, []int{3}, i, j, raw(t, ax, 12), raw(t, b, 5))
	require.NoError(t, err)
	want := tensor.ToSlice[float64](single[0])
	for k := range want {
		want[k] *= 1.5
	}
	assert.InDeltaSlice(t, want, tensor.ToSlice[float64](grads[0]), 1e-10)
}

func TestJVP(t *testing.T) {
	e := newEngine(t, spsolve.DerivativesExact)
	c := e.NewContext(context.Background())

	// d/db solve(A, b) along db = b is the solution itself.
	x, dx, err := spsolve.JVP(c, solve,
		[]spsolve.Value{raw(t, ai, 12), raw(t, aj, 12), raw(t, ax, 12), raw(t, b, 5)},
		[]spsolve.Value{nil, nil, nil, raw(t, b, 5)})
	require.NoError(t, err)
	assert.InDeltaSlice(t,
		tensor.ToSlice[float64](x.(*tensor.RawTensor)),
		tensor.ToSlice[float64](dx.(*tensor.RawTensor)), 1e-12)
}

func TestVJP_Complex(t *testing.T) {
	e := newEngine(t, spsolve.DerivativesExact)
	c := e.NewContext(context.Background())
	bc := make([]complex128, 5)
	for k, v := range b {
		bc[k] = complex(0, v)
	}

	out, grads, err := spsolve.VJP(c, solve, []int{3}, nil,
		raw(t, ai, 12), raw(t, aj, 12), raw(t, ax, 12), raw(t, bc, 5))
	require.NoError(t, err)
	assert.Equal(t, tensor.Complex128, out.DType())
	for k, v := range out.AsComplex128() {
		assert.InDelta(t, float64(k+1), imag(v), 1e-12)
	}
	require.Len(t, grads, 1)
	assert.Equal(t, tensor.Complex128, grads[0].DType())
}
