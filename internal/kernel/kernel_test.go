package kernel

import (
	"bytes"
	"context"
	"math"
	"math/cmplx"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/spsolve/internal/parallel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// The 5x5 system from the UMFPACK quick-start; its solution is [1 2 3 4 5].
//
//	[2  3  0 0 0]
//	[3  0  4 0 6]
//	[0 -1 -3 2 0]
//	[0  0  1 0 0]
//	[0  4  2 0 1]
var (
	testAi = []int32{0, 0, 1, 1, 1, 2, 2, 2, 3, 4, 4, 4}
	testAj = []int32{0, 1, 0, 2, 4, 1, 2, 3, 2, 1, 2, 4}
	testAx = []float64{2, 3, 3, 4, 6, -1, -3, 2, 1, 4, 2, 1}
	testB  = []float64{8, 45, -3, 3, 19}
)

func counterValue(t *testing.T, c *prometheus.CounterVec, label string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.WithLabelValues(label).Write(&m))
	return m.GetCounter().GetValue()
}

func TestSolve_Float64(t *testing.T) {
	p := Problem[float64]{NCol: 5, NLhs: 1, NRhs: 1, NNZ: 12, Ai: testAi, Aj: testAj, Ax: testAx, B: testB}
	out := make([]float64, 5)

	require.NoError(t, Solve(p, out, parallel.Sequential(), nil))
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4, 5}, out, 1e-10)
}

func TestSolve_MultipleRHSAndBatches(t *testing.T) {
	// Batch 1 scales the matrix by 2, so its solutions halve.
	ax := append(append([]float64{}, testAx...), scale(testAx, 2)...)
	ones := []float64{1, 1, 1, 1, 1}
	var b []float64
	for i := 0; i < 2; i++ {
		b = append(b, testB...)
		b = append(b, ones...)
	}

	p := Problem[float64]{NCol: 5, NLhs: 2, NRhs: 2, NNZ: 12, Ai: testAi, Aj: testAj, Ax: ax, B: b}
	out := make([]float64, len(b))
	require.NoError(t, Solve(p, out, parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1}, nil))

	assert.InDeltaSlice(t, []float64{1, 2, 3, 4, 5}, out[0:5], 1e-10)
	assert.InDeltaSlice(t, []float64{0.5, 1, 1.5, 2, 2.5}, out[10:15], 1e-10)

	// Second right-hand side: A y = 1 must hold for each batch.
	for k, s := range []float64{1, 2} {
		y := out[k*10+5 : k*10+10]
		got := make([]float64, 5)
		mp := Problem[float64]{NCol: 5, NLhs: 1, NRhs: 1, NNZ: 12, Ai: testAi, Aj: testAj, Ax: scale(testAx, s), B: y}
		require.NoError(t, MulVec(mp, got, parallel.Sequential()))
		assert.InDeltaSlice(t, ones, got, 1e-10)
	}
}

func TestSolve_Complex128(t *testing.T) {
	ax := make([]complex128, len(testAx))
	for i, v := range testAx {
		ax[i] = complex(v, 0)
	}
	ax[0] = 2 + 3i

	want := []complex128{1 + 1i, 2, 3 - 2i, 4, 5i}
	b := make([]complex128, 5)
	mp := Problem[complex128]{NCol: 5, NLhs: 1, NRhs: 1, NNZ: 12, Ai: testAi, Aj: testAj, Ax: ax, B: want}
	require.NoError(t, MulVec(mp, b, parallel.Sequential()))

	p := Problem[complex128]{NCol: 5, NLhs: 1, NRhs: 1, NNZ: 12, Ai: testAi, Aj: testAj, Ax: ax, B: b}
	out := make([]complex128, 5)
	require.NoError(t, Solve(p, out, parallel.Sequential(), nil))

	for i := range want {
		assert.Less(t, cmplx.Abs(out[i]-want[i]), 1e-10, "x[%d] = %v, want %v", i, out[i], want[i])
	}
}

func TestSolve_DuplicateEntriesAreSummed(t *testing.T) {
	// diag(1+2, 4) written with a duplicated (0,0) entry.
	p := Problem[float64]{
		NCol: 2, NLhs: 1, NRhs: 1, NNZ: 3,
		Ai: []int32{0, 0, 1}, Aj: []int32{0, 0, 1},
		Ax: []float64{1, 2, 4}, B: []float64{3, 8},
	}
	out := make([]float64, 2)
	require.NoError(t, Solve(p, out, parallel.Sequential(), nil))
	assert.InDeltaSlice(t, []float64{1, 2}, out, 1e-12)
}

func TestSolve_Singular(t *testing.T) {
	p := Problem[float64]{
		NCol: 2, NLhs: 1, NRhs: 1, NNZ: 2,
		Ai: []int32{0, 1}, Aj: []int32{0, 0},
		Ax: []float64{1, 1}, B: []float64{1, 1},
	}
	err := Solve(p, make([]float64, 2), parallel.Sequential(), nil)
	assert.ErrorIs(t, err, ErrSingular)
}

func TestValidate(t *testing.T) {
	base := Problem[float64]{NCol: 2, NLhs: 1, NRhs: 1, NNZ: 1, Ai: []int32{0}, Aj: []int32{0}, Ax: []float64{1}, B: []float64{1, 1}}
	require.NoError(t, base.Validate())

	outOfRange := base
	outOfRange.Aj = []int32{2}
	assert.ErrorIs(t, outOfRange.Validate(), ErrIndexOutOfRange)

	short := base
	short.B = []float64{1}
	assert.ErrorIs(t, short.Validate(), ErrOperandShape)
}

func TestLookup_EntryPointConvention(t *testing.T) {
	assert.Equal(t, []string{CooMulVecC128, CooMulVecF64, SolveC128, SolveF64}, Names())

	solve, ok := Lookup(SolveF64)
	require.True(t, ok)
	_, ok = Lookup("solve_f32")
	assert.False(t, ok)

	ai, _ := tensor.FromSlice(testAi, tensor.Shape{12})
	aj, _ := tensor.FromSlice(testAj, tensor.Shape{12})
	ax, _ := tensor.FromSlice(testAx, tensor.Shape{12})
	b, _ := tensor.FromSlice(testB, tensor.Shape{5})
	operands := []*tensor.RawTensor{
		tensor.Scalar[int32](5), tensor.Scalar[int32](1), tensor.Scalar[int32](1), tensor.Scalar[int32](12),
		ai, aj, ax, b,
	}
	result, _ := tensor.Zeros(tensor.Shape{5}, tensor.Float64)

	calls := counterValue(t, kernelCalls, SolveF64)
	require.NoError(t, solve(context.Background(), operands, result))
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4, 5}, result.AsFloat64(), 1e-10)
	assert.Equal(t, calls+1, counterValue(t, kernelCalls, SolveF64))

	// Wrong element type for the variant.
	failures := counterValue(t, kernelFailures, SolveC128)
	solveC, _ := Lookup(SolveC128)
	err := solveC(context.Background(), operands, result)
	assert.ErrorIs(t, err, ErrOperandShape)
	assert.Equal(t, failures+1, counterValue(t, kernelFailures, SolveC128))
}

func TestLookup_LogsToContextLogger(t *testing.T) {
	// diag(1, 1e-13) is solvable but ill-conditioned.
	ai, _ := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2})
	aj, _ := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2})
	ax, _ := tensor.FromSlice([]float64{1, 1e-13}, tensor.Shape{2})
	b, _ := tensor.FromSlice([]float64{1, 1e-13}, tensor.Shape{2})
	operands := []*tensor.RawTensor{
		tensor.Scalar[int32](2), tensor.Scalar[int32](1), tensor.Scalar[int32](1), tensor.Scalar[int32](2),
		ai, aj, ax, b,
	}
	solve, _ := Lookup(SolveF64)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	ctx := parallel.WithConfig(logger.WithContext(context.Background()), parallel.Sequential())

	result, _ := tensor.Zeros(tensor.Shape{2}, tensor.Float64)
	require.NoError(t, solve(ctx, operands, result))
	assert.InDeltaSlice(t, []float64{1, 1}, result.AsFloat64(), 1e-6)
	assert.Contains(t, buf.String(), "ill-conditioned")
	assert.Contains(t, buf.String(), SolveF64)

	// A well-conditioned solve logs nothing.
	buf.Reset()
	operands[6], _ = tensor.FromSlice([]float64{1, 2}, tensor.Shape{2})
	require.NoError(t, solve(ctx, operands, result))
	assert.Empty(t, buf.String())
}

func scale(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func TestParts(t *testing.T) {
	re, im := parts(complex(1.5, -2))
	assert.Equal(t, 1.5, re)
	assert.Equal(t, -2.0, im)
	assert.Equal(t, complex(3, 4), compose[complex128](3, 4))
	assert.False(t, math.IsNaN(compose[float64](3, 4)))
	assert.Equal(t, 3.0, compose[float64](3, 4))
}
