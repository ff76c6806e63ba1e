// Package sparse implements the differentiable, batchable sparse solve and
// sparse matrix-vector product on top of the core framework.
//
// A call resolves the element type, binds one of four primitives
// ({solve, multiply} x {float64, complex128}) and lets the framework pick the
// batching rule, the forward-mode rule or the lowering to the native kernel.
package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
)

// DerivativeMode selects the derivative rules of the solve primitives.
type DerivativeMode int

const (
	// DerivativesExact differentiates solve with respect to both the matrix
	// values and the right-hand side, using the transposed system in reverse
	// mode.
	DerivativesExact DerivativeMode = iota

	// DerivativesCompat uses the reduced rules: the forward tangent ignores
	// the matrix-value perturbation and the reverse pass solves with A
	// instead of its transpose. Only the
	// right-hand side can be differentiated in reverse mode.
	DerivativesCompat
)

// String returns the mode name.
func (m DerivativeMode) String() string {
	switch m {
	case DerivativesExact:
		return "exact"
	case DerivativesCompat:
		return "compat"
	default:
		return "unknown"
	}
}

// Options configure the registered rules.
type Options struct {
	Derivatives DerivativeMode
}

// structural lists the index operands, which are never batched or differentiated.
var structural = []int{0, 1}

// Register installs the rules of the four sparse primitives.
func Register(reg *core.Registry, opts Options) error {
	for _, v := range variants {
		rules := core.Rules{
			AbstractEval: abstractEval(v),
			Lower:        lower(v),
			Batch:        batchRule(v),
			Structural:   structural,
		}
		switch {
		case v.op == OpMultiply:
			rules.JVP = multiplyJVP(v)
			rules.Transpose = multiplyTranspose(v)
		case opts.Derivatives == DerivativesCompat:
			rules.JVP = solveJVPCompat(v)
			rules.Transpose = solveTransposeCompat(v)
			rules.CheckTranspose = checkTransposeCompat(v)
		default:
			rules.JVP = solveJVP(v)
			rules.Transpose = solveTranspose(v)
		}
		if err := reg.Register(v.prim, rules); err != nil {
			return err
		}
	}
	return nil
}
