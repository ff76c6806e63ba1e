// Package kernel provides the native sparse kernels: an LU-based solve and a
// COO matrix-vector product for float64 and complex128 elements.
//
// The four entry points are registered once per process and never change
// afterwards. Every entry point shares the calling convention
//
//	(n_col, n_lhs, n_rhs, nnz int32 scalars,
//	 Ai, Aj int32[nnz], Ax T[n_lhs*nnz], b T[n_lhs*n_rhs*n_col]) -> T[n_lhs*n_rhs*n_col]
//
// where b and the result are laid out lhs-major, rhs-second, column-minor:
// for batch k and right-hand side r the n_col entries are contiguous.
package kernel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/born-ml/spsolve/internal/parallel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Target names.
const (
	SolveF64      = "solve_f64"
	SolveC128     = "solve_c128"
	CooMulVecF64  = "coo_mul_vec_f64"
	CooMulVecC128 = "coo_mul_vec_c128"
)

// Func is a native entry point. operands follow the calling convention in the
// package documentation; result is preallocated with the shape of operand 7.
//
// The parallel configuration is taken from ctx (parallel.FromContext) and
// diagnostics go to the logger attached to ctx (zerolog.Ctx).
type Func func(ctx context.Context, operands []*tensor.RawTensor, result *tensor.RawTensor) error

var (
	registerOnce sync.Once
	targets      map[string]Func
)

func register() {
	targets = map[string]Func{
		SolveF64:      entry(SolveF64, Solve[float64]),
		SolveC128:     entry(SolveC128, Solve[complex128]),
		CooMulVecF64:  entry(CooMulVecF64, mulVec[float64]),
		CooMulVecC128: entry(CooMulVecC128, mulVec[complex128]),
	}
}

// Lookup returns the entry point registered under name.
func Lookup(name string) (Func, bool) {
	registerOnce.Do(register)
	f, ok := targets[name]
	return f, ok
}

// Names returns the registered target names in sorted order.
func Names() []string {
	registerOnce.Do(register)
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entry adapts a typed kernel to the buffer calling convention and records metrics.
func entry[T Scalar](name string, op func(Problem[T], []T, parallel.Config, *zerolog.Logger) error) Func {
	return func(ctx context.Context, operands []*tensor.RawTensor, result *tensor.RawTensor) error {
		start := time.Now()
		kernelCalls.WithLabelValues(name).Inc()

		err := func() error {
			p, err := unpack[T](operands)
			if err != nil {
				return err
			}
			if result.DType() != tensor.DataTypeOf[T]() || result.NumElements() != len(p.B) {
				return fmt.Errorf("%w: result %s, want %d elements of %s",
					ErrOperandShape, result.Spec(), len(p.B), tensor.DataTypeOf[T]())
			}
			logger := zerolog.Ctx(ctx).With().Str("target", name).Logger()
			return op(p, tensor.Elements[T](result), parallel.FromContext(ctx), &logger)
		}()

		kernelDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			kernelFailures.WithLabelValues(name).Inc()
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// unpack reads the scalar sizes and typed buffers from the operand list.
func unpack[T Scalar](operands []*tensor.RawTensor) (Problem[T], error) {
	var p Problem[T]
	if len(operands) != 8 {
		return p, fmt.Errorf("%w: got %d operands, want 8", ErrOperandShape, len(operands))
	}

	sizes := make([]int, 4)
	for i, op := range operands[:4] {
		if op.DType() != tensor.Int32 || op.NumElements() != 1 {
			return p, fmt.Errorf("%w: size operand %d is %s, want int32 scalar", ErrOperandShape, i, op.Spec())
		}
		sizes[i] = int(op.AsInt32()[0])
	}
	p.NCol, p.NLhs, p.NRhs, p.NNZ = sizes[0], sizes[1], sizes[2], sizes[3]

	if operands[4].DType() != tensor.Int32 || operands[5].DType() != tensor.Int32 {
		return p, fmt.Errorf("%w: index operands must be int32", ErrOperandShape)
	}
	want := tensor.DataTypeOf[T]()
	if operands[6].DType() != want || operands[7].DType() != want {
		return p, fmt.Errorf("%w: value operands must be %s", ErrOperandShape, want)
	}

	p.Ai = operands[4].AsInt32()
	p.Aj = operands[5].AsInt32()
	p.Ax = tensor.Elements[T](operands[6])
	p.B = tensor.Elements[T](operands[7])
	return p, p.Validate()
}
