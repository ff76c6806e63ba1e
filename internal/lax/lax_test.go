package lax_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/lax"
	"github.com/born-ml/spsolve/internal/tensor"
	"github.com/born-ml/spsolve/internal/transform"
)

func newContext(t *testing.T) *core.Context {
	t.Helper()
	reg := core.NewRegistry()
	require.NoError(t, lax.Register(reg))
	reg.Freeze()
	logger := zerolog.Nop()
	return core.NewContext(context.Background(), core.Options{Registry: reg, Logger: &logger})
}

func arange(t *testing.T, dims ...int) *tensor.RawTensor {
	t.Helper()
	shape := tensor.Shape(dims)
	data := make([]float64, shape.NumElements())
	for i := range data {
		data[i] = float64(i)
	}
	raw, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return raw
}

func values(t *testing.T, v core.Value, err error) []float64 {
	t.Helper()
	require.NoError(t, err)
	raw, ok := core.Concrete(v)
	require.True(t, ok)
	return tensor.ToSlice[float64](raw)
}

func TestRegister_Twice(t *testing.T) {
	reg := core.NewRegistry()
	require.NoError(t, lax.Register(reg))
	assert.Error(t, lax.Register(reg))
}

func TestLayoutOps(t *testing.T) {
	c := newContext(t)
	x := arange(t, 2, 3)

	out, err := lax.Reshape(c, x, tensor.Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())

	_, err = lax.Reshape(c, x, tensor.Shape{4})
	assert.Error(t, err)

	out, err = lax.Transpose(c, x, 1, 0)
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, values(t, out, err))

	_, err = lax.Transpose(c, x, 0, 0)
	assert.Error(t, err)

	out, err = lax.BroadcastLeading(c, x, 2)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2, 3}, out.Shape())
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 0, 1, 2, 3, 4, 5}, values(t, out, err))
}

func TestMoveAxis(t *testing.T) {
	c := newContext(t)
	x := arange(t, 2, 3, 4)

	tests := []struct {
		from, to int
		want     tensor.Shape
	}{
		{0, 2, tensor.Shape{3, 4, 2}},
		{2, 0, tensor.Shape{4, 2, 3}},
		{1, 1, tensor.Shape{2, 3, 4}},
		{1, 2, tensor.Shape{2, 4, 3}},
	}
	for _, tt := range tests {
		out, err := lax.MoveAxis(c, x, tt.from, tt.to)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.Shape(), "%d -> %d", tt.from, tt.to)
	}

	_, err := lax.MoveAxis(c, x, 3, 0)
	assert.Error(t, err)

	// Element (i, j, k) of x lands at (k, i, j).
	out, err := lax.MoveAxis(c, x, 2, 0)
	got := values(t, out, err)
	assert.Equal(t, float64(1*12+2*4+3), got[3*6+1*3+2])
}

func TestConvert(t *testing.T) {
	c := newContext(t)
	x := arange(t, 3)

	same, err := lax.Convert(c, x, tensor.Float64)
	require.NoError(t, err)
	assert.Same(t, x, same)

	out, err := lax.Convert(c, x, tensor.Complex128)
	require.NoError(t, err)
	raw, _ := core.Concrete(out)
	assert.Equal(t, []complex128{0, 1, 2}, raw.AsComplex128())
}

func TestAddSub_Broadcasting(t *testing.T) {
	c := newContext(t)
	a := arange(t, 2, 3)
	b := arange(t, 3)

	out, err := lax.Add(c, a, b)
	assert.Equal(t, []float64{0, 2, 4, 3, 5, 7}, values(t, out, err))

	out, err = lax.Sub(c, a, b)
	assert.Equal(t, []float64{0, 0, 0, 3, 3, 3}, values(t, out, err))

	_, err = lax.Add(c, a, arange(t, 2))
	assert.Error(t, err)
}

func TestBatchRules(t *testing.T) {
	c := newContext(t)

	t.Run("transpose", func(t *testing.T) {
		// Map over axis 1 of a [2, 3, 4] array: each example is [2, 4].
		fn := transform.Vmap(func(c *core.Context, args ...core.Value) (core.Value, error) {
			return lax.Transpose(c, args[0], 1, 0)
		}, []int{1}, 0)
		x := arange(t, 2, 3, 4)
		out, err := fn(c, x)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{3, 4, 2}, out.Shape())

		want, err := lax.Transpose(c, x, 1, 2, 0)
		assert.Equal(t, values(t, want, err), values(t, out, nil))
	})

	t.Run("reshape", func(t *testing.T) {
		fn := transform.Vmap(func(c *core.Context, args ...core.Value) (core.Value, error) {
			return lax.Reshape(c, args[0], tensor.Shape{6})
		}, []int{2}, 0)
		x := arange(t, 2, 3, 4)
		out, err := fn(c, x)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{4, 6}, out.Shape())
		got := values(t, out, nil)
		// Example k is x[:, :, k] flattened.
		assert.Equal(t, []float64{1, 5, 9, 13, 17, 21}, got[6:12])
	})

	t.Run("add mixed", func(t *testing.T) {
		fn := transform.Vmap(func(c *core.Context, args ...core.Value) (core.Value, error) {
			return lax.Add(c, args[0], args[1])
		}, []int{0, core.NotMapped}, 0)
		out, err := fn(c, arange(t, 2, 3), arange(t, 3))
		assert.Equal(t, []float64{0, 2, 4, 3, 5, 7}, values(t, out, err))
	})

	t.Run("add lower rank mapped", func(t *testing.T) {
		// Example shapes [3] and [2, 3]: the mapped [4] example must broadcast
		// against the trailing axis, not the mapped one.
		fn := transform.Vmap(func(c *core.Context, args ...core.Value) (core.Value, error) {
			return lax.Add(c, args[0], args[1])
		}, []int{0, core.NotMapped}, 0)
		out, err := fn(c, arange(t, 4, 3), arange(t, 2, 3))
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{4, 2, 3}, out.Shape())
	})

	t.Run("broadcast", func(t *testing.T) {
		fn := transform.Vmap(func(c *core.Context, args ...core.Value) (core.Value, error) {
			return lax.BroadcastLeading(c, args[0], 2)
		}, []int{1}, 0)
		out, err := fn(c, arange(t, 3, 4))
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{4, 2, 3}, out.Shape())
	})
}

func TestLinearJVP(t *testing.T) {
	c := newContext(t)
	fn := func(c *core.Context, args ...core.Value) (core.Value, error) {
		y, err := lax.Transpose(c, args[0], 1, 0)
		if err != nil {
			return nil, err
		}
		return lax.Sub(c, y, args[1])
	}
	x, y := arange(t, 2, 3), arange(t, 3, 2)

	_, dy, err := transform.JVP(c, fn, []core.Value{x, y}, []core.Value{x, nil})
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, values(t, dy, err))
}
