package sparse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/hlo"
	"github.com/born-ml/spsolve/internal/kernel"
	"github.com/born-ml/spsolve/internal/tensor"
)

func spec(dtype tensor.DataType, dims ...int) tensor.Spec {
	return tensor.Spec{Shape: tensor.Shape(dims), DType: dtype}
}

func TestAnalyze(t *testing.T) {
	v := variantOf(OpSolve, tensor.Float64)
	idx := spec(tensor.Int32, 12)

	tests := []struct {
		name  string
		ax, b tensor.Spec
		want  layout
	}{
		{"vector", spec(tensor.Float64, 12), spec(tensor.Float64, 5),
			layout{nLhs: 1, nCol: 5, nRhs: 1, nnz: 12, trailing: tensor.Shape{}}},
		{"multi rhs", spec(tensor.Float64, 12), spec(tensor.Float64, 5, 2, 3),
			layout{nLhs: 1, nCol: 5, nRhs: 6, nnz: 12, trailing: tensor.Shape{2, 3}}},
		{"batched", spec(tensor.Float64, 4, 12), spec(tensor.Float64, 4, 5, 2),
			layout{nLhs: 4, nCol: 5, nRhs: 2, nnz: 12, batched: true, trailing: tensor.Shape{2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := analyze(v, []tensor.Spec{idx, idx, tt.ax, tt.b})
			require.NoError(t, err)
			assert.Equal(t, tt.want.nLhs, l.nLhs)
			assert.Equal(t, tt.want.nCol, l.nCol)
			assert.Equal(t, tt.want.nRhs, l.nRhs)
			assert.Equal(t, tt.want.nnz, l.nnz)
			assert.Equal(t, tt.want.batched, l.batched)
			assert.Equal(t, tt.want.trailing, l.trailing)
			assert.Equal(t, tt.b, l.result)
			assert.Equal(t, tt.want.nLhs*tt.want.nRhs*tt.want.nCol, l.flatSize())
		})
	}
}

func TestAnalyze_ConfigurationErrors(t *testing.T) {
	v := variantOf(OpSolve, tensor.Float64)
	idx := spec(tensor.Int32, 12)

	tests := []struct {
		name  string
		specs []tensor.Spec
	}{
		{"two batch dims", []tensor.Spec{idx, idx, spec(tensor.Float64, 2, 3, 12), spec(tensor.Float64, 2, 3, 5)}},
		{"batch mismatch", []tensor.Spec{idx, idx, spec(tensor.Float64, 2, 12), spec(tensor.Float64, 3, 5)}},
		{"batched values, vector operand", []tensor.Spec{idx, idx, spec(tensor.Float64, 2, 12), spec(tensor.Float64, 5)}},
		{"scalar operand", []tensor.Spec{idx, idx, spec(tensor.Float64, 12), spec(tensor.Float64)}},
		{"index length", []tensor.Spec{spec(tensor.Int32, 11), idx, spec(tensor.Float64, 12), spec(tensor.Float64, 5)}},
		{"index dtype", []tensor.Spec{idx, spec(tensor.Int64, 12), spec(tensor.Float64, 12), spec(tensor.Float64, 5)}},
		{"value dtype", []tensor.Spec{idx, idx, spec(tensor.Complex128, 12), spec(tensor.Float64, 5)}},
		{"operand count", []tensor.Spec{idx, idx, spec(tensor.Float64, 12)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analyze(v, tt.specs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfiguration), "got %v", err)
		})
	}
}

func TestLower_CustomCallLayout(t *testing.T) {
	v := variantOf(OpSolve, tensor.Float64)
	specs := []tensor.Spec{
		spec(tensor.Int32, 12), spec(tensor.Int32, 12),
		spec(tensor.Float64, 2, 12), spec(tensor.Float64, 2, 5, 3),
	}

	b := hlo.NewBuilder("solve")
	params := make([]*hlo.Op, len(specs))
	for i, s := range specs {
		p, err := b.Parameter(s)
		require.NoError(t, err)
		params[i] = p
	}
	root, err := lower(v)(b, nil, params, specs)
	require.NoError(t, err)
	comp, err := b.Build(root)
	require.NoError(t, err)

	calls := comp.CustomCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, kernel.SolveF64, calls[0].Target())
	assert.Equal(t, []tensor.Shape{{}, {}, {}, {}, {12}, {12}, {24}, {30}}, calls[0].OperandShapes())
	assert.Equal(t, spec(tensor.Float64, 2, 5, 3), comp.Result())

	// Operand 0..3 are the size scalars in (n_col, n_lhs, n_rhs, nnz) order.
	assert.Equal(t, hlo.ConstantKind, calls[0].Operands()[0].Kind())
}

func TestLower_ExecutesAgainstKernel(t *testing.T) {
	// Two batches, the second with the matrix doubled, three columns each.
	ai := []int32{0, 0, 1, 1, 1, 2, 2, 2, 3, 4, 4, 4}
	aj := []int32{0, 1, 0, 2, 4, 1, 2, 3, 2, 1, 2, 4}
	ax1 := []float64{2, 3, 3, 4, 6, -1, -3, 2, 1, 4, 2, 1}
	ax := append(append([]float64{}, ax1...), ax1...)
	for i := range ax1 {
		ax[12+i] *= 2
	}
	rhs := []float64{8, 45, -3, 3, 19}
	b := make([]float64, 0, 30)
	for i := 0; i < 2; i++ {
		for _, r := range rhs {
			b = append(b, r, 2*r, -r)
		}
	}

	args := []*tensor.RawTensor{
		mustRaw(t, ai, 12), mustRaw(t, aj, 12), mustRaw(t, ax, 2, 12), mustRaw(t, b, 2, 5, 3),
	}
	specs := make([]tensor.Spec, len(args))
	bld := hlo.NewBuilder("solve")
	params := make([]*hlo.Op, len(args))
	for i, a := range args {
		specs[i] = a.Spec()
		p, err := bld.Parameter(specs[i])
		require.NoError(t, err)
		params[i] = p
	}
	root, err := lower(variantOf(OpSolve, tensor.Float64))(bld, nil, params, specs)
	require.NoError(t, err)
	comp, err := bld.Build(root)
	require.NoError(t, err)

	exe, err := hlo.Compile(comp, Targets(), hlo.Options{})
	require.NoError(t, err)
	out, err := exe.Execute(context.Background(), args...)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 5, 3}, out.Shape())

	got := tensor.ToSlice[float64](out)
	for i, x := range []float64{1, 2, 3, 4, 5} {
		assert.InDeltaSlice(t, []float64{x, 2 * x, -x}, got[i*3:i*3+3], 1e-9, "batch 0 row %d", i)
		assert.InDeltaSlice(t, []float64{x / 2, x, -x / 2}, got[15+i*3:15+i*3+3], 1e-9, "batch 1 row %d", i)
	}
}

func TestTargets(t *testing.T) {
	table := Targets()
	for _, v := range variants {
		_, ok := table.Target(v.target())
		assert.True(t, ok, v.target())
	}
	_, ok := table.Target("missing")
	assert.False(t, ok)
}

func TestVariantOf(t *testing.T) {
	assert.Same(t, SolveC128, variantOf(OpSolve, tensor.Complex128).prim)
	assert.Same(t, CooMulVecF64, variantOf(OpSolve, tensor.Float64).sibling(OpMultiply).prim)
	assert.Panics(t, func() { variantOf(OpSolve, tensor.Float32) })
	assert.Equal(t, "multiply", OpMultiply.String())
	assert.Equal(t, "compat", DerivativesCompat.String())
}

func mustRaw[T tensor.DType](t *testing.T, data []T, dims ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, tensor.Shape(dims))
	require.NoError(t, err)
	return raw
}
