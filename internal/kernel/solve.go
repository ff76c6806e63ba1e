package kernel

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/spsolve/internal/parallel"
)

// warnCondition is the condition number above which a solve is logged at warn level.
const warnCondition = 1e12

// Scalar is the set of element types the kernels are compiled for.
type Scalar interface {
	float64 | complex128
}

// Problem is one kernel invocation: a batch of n_lhs COO matrices sharing the
// sparsity pattern (Ai, Aj) and, per matrix, n_rhs operand vectors.
type Problem[T Scalar] struct {
	NCol, NLhs, NRhs, NNZ int
	Ai, Aj                []int32
	Ax                    []T // [NLhs*NNZ]
	B                     []T // [NLhs*NRhs*NCol]
}

// Validate checks buffer lengths and index ranges against the declared sizes.
func (p Problem[T]) Validate() error {
	if p.NCol <= 0 || p.NLhs <= 0 || p.NRhs <= 0 || p.NNZ <= 0 {
		return fmt.Errorf("%w: sizes n_col=%d n_lhs=%d n_rhs=%d nnz=%d must be positive",
			ErrOperandShape, p.NCol, p.NLhs, p.NRhs, p.NNZ)
	}
	if len(p.Ai) != p.NNZ || len(p.Aj) != p.NNZ {
		return fmt.Errorf("%w: index lengths %d/%d, want %d", ErrOperandShape, len(p.Ai), len(p.Aj), p.NNZ)
	}
	if len(p.Ax) != p.NLhs*p.NNZ {
		return fmt.Errorf("%w: %d values, want %d", ErrOperandShape, len(p.Ax), p.NLhs*p.NNZ)
	}
	if len(p.B) != p.NLhs*p.NRhs*p.NCol {
		return fmt.Errorf("%w: operand has %d elements, want %d", ErrOperandShape, len(p.B), p.NLhs*p.NRhs*p.NCol)
	}
	for e := range p.Ai {
		if i, j := int(p.Ai[e]), int(p.Aj[e]); i < 0 || i >= p.NCol || j < 0 || j >= p.NCol {
			return fmt.Errorf("%w: entry %d at (%d, %d) in a %dx%d matrix", ErrIndexOutOfRange, e, i, j, p.NCol, p.NCol)
		}
	}
	return nil
}

// Solve solves A_k x = b_{k,r} for every batch k and right-hand side r and
// writes the solutions into out with the same layout as p.B.
//
// Each A_k is assembled from its COO triplets (duplicates summed) and
// LU-factorized once. Complex systems are solved through the equivalent real
// system [[Re A, -Im A], [Im A, Re A]] of twice the size.
//
// Systems whose condition number exceeds warnCondition are solved and
// reported on logger, which may be nil.
func Solve[T Scalar](p Problem[T], out []T, cfg parallel.Config, logger *zerolog.Logger) error {
	if err := p.Validate(); err != nil {
		return err
	}

	n := p.NCol
	dim := n
	if isComplex[T]() {
		dim = 2 * n
	}
	block := p.NRhs * n

	return parallel.ForErr(p.NLhs, func(k int) error {
		a := assemble(p, k, dim)

		var lu mat.LU
		lu.Factorize(a)
		cond := lu.Cond()
		if math.IsInf(cond, 1) || math.IsNaN(cond) || cond > mat.ConditionTolerance {
			return fmt.Errorf("batch %d (condition number %g): %w", k, cond, ErrSingular)
		}
		if cond > warnCondition && logger != nil {
			logger.Warn().Int("batch", k).Float64("cond", cond).Msg("sparse system is ill-conditioned")
		}

		rhs := mat.NewDense(dim, p.NRhs, nil)
		for r := 0; r < p.NRhs; r++ {
			for c := 0; c < n; c++ {
				re, im := parts(p.B[k*block+r*n+c])
				rhs.Set(c, r, re)
				if dim > n {
					rhs.Set(n+c, r, im)
				}
			}
		}

		var x mat.Dense
		if err := lu.SolveTo(&x, false, rhs); err != nil {
			return fmt.Errorf("batch %d: %v: %w", k, err, ErrSingular)
		}

		for r := 0; r < p.NRhs; r++ {
			for c := 0; c < n; c++ {
				im := 0.0
				if dim > n {
					im = x.At(n+c, r)
				}
				out[k*block+r*n+c] = compose[T](x.At(c, r), im)
			}
		}
		return nil
	}, cfg)
}

// assemble builds the dense (real-embedded for complex) matrix of batch k.
func assemble[T Scalar](p Problem[T], k, dim int) *mat.Dense {
	n := p.NCol
	a := mat.NewDense(dim, dim, nil)
	values := p.Ax[k*p.NNZ : (k+1)*p.NNZ]
	for e, v := range values {
		i, j := int(p.Ai[e]), int(p.Aj[e])
		re, im := parts(v)
		a.Set(i, j, a.At(i, j)+re)
		if dim > n {
			a.Set(n+i, n+j, a.At(n+i, n+j)+re)
			a.Set(i, n+j, a.At(i, n+j)-im)
			a.Set(n+i, j, a.At(n+i, j)+im)
		}
	}
	return a
}

func isComplex[T Scalar]() bool {
	var z T
	_, ok := any(z).(complex128)
	return ok
}

// parts splits v into real and imaginary parts.
func parts[T Scalar](v T) (float64, float64) {
	switch x := any(v).(type) {
	case float64:
		return x, 0
	case complex128:
		return real(x), imag(x)
	}
	panic("unreachable")
}

// compose builds a T from real and imaginary parts; im is dropped for float64.
func compose[T Scalar](re, im float64) T {
	var z T
	switch any(z).(type) {
	case float64:
		return any(re).(T)
	case complex128:
		return any(complex(re, im)).(T)
	}
	panic("unreachable")
}
