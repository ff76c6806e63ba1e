package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
)

// Solve returns x with A x = b for the COO matrix A = (ai, aj, ax).
//
// ax is [nnz] or [batch, nnz]; b is [n_col, ...] or [batch, n_col, ...] and x
// has the shape of b. The element type is float64, or complex128 when ax or b
// is complex.
func Solve(c *core.Context, ai, aj, ax, b core.Value) (core.Value, error) {
	return apply(c, OpSolve, ai, aj, ax, b)
}

// Multiply returns A v for the COO matrix A = (ai, aj, ax), with the same
// shape contract as Solve.
func Multiply(c *core.Context, ai, aj, ax, v core.Value) (core.Value, error) {
	return apply(c, OpMultiply, ai, aj, ax, v)
}

func apply(c *core.Context, op Operation, ai, aj, ax, b core.Value) (core.Value, error) {
	v, args, err := resolve(c, op, ai, aj, ax, b)
	if err != nil {
		return nil, err
	}
	c.Logger().Debug().
		Str("op", op.String()).
		Str("variant", v.target()).
		Ints("values", args[2].Shape()).
		Ints("operand", args[3].Shape()).
		Int("level", c.Level()).
		Msg("sparse call")
	return c.Bind(v.prim, nil, args...)
}
