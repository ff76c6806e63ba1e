package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/lax"
	"github.com/born-ml/spsolve/internal/tensor"
)

// batchRule rewrites a call whose matrix values and/or operand carry a mapped
// axis into a direct call of the primitive. The index operands are never
// mapped; the framework rejects that before the rule runs.
//
//  1. Ax and b mapped: both mapped axes move to the front, where the layout
//     already treats them as the matrix batch. Result axis 0.
//  2. Only Ax mapped: b is replicated along a new leading axis, then as 1.
//  3. Only b mapped: the mapped axis is folded into the operand columns of the
//     single matrix and split off the result afterwards. It ends up after the
//     column axis: result axis 1, or 2 when the matrix has its own batch axis.
//  4. Neither mapped: a configuration error.
func batchRule(v variant) core.BatchFunc {
	return func(c *core.Context, _ any, args []core.Value, axes []int) (core.Value, int, error) {
		ai, aj, ax, b := args[0], args[1], args[2], args[3]
		axAxis, bAxis := axes[2], axes[3]

		if err := checkExample(v, args, axes); err != nil {
			return nil, 0, err
		}

		call := func(ax, b core.Value) (core.Value, error) {
			return c.Bind(v.prim, nil, ai, aj, ax, b)
		}

		switch {
		case axAxis != core.NotMapped && bAxis != core.NotMapped:
			ax0, err := lax.MoveAxis(c, ax, axAxis, 0)
			if err != nil {
				return nil, 0, err
			}
			b0, err := lax.MoveAxis(c, b, bAxis, 0)
			if err != nil {
				return nil, 0, err
			}
			out, err := batchAligned(c, v, call, ax0, b0)
			return out, 0, err

		case axAxis != core.NotMapped:
			ax0, err := lax.MoveAxis(c, ax, axAxis, 0)
			if err != nil {
				return nil, 0, err
			}
			b0, err := lax.BroadcastLeading(c, b, ax0.Shape()[0])
			if err != nil {
				return nil, 0, err
			}
			out, err := batchAligned(c, v, call, ax0, b0)
			return out, 0, err

		case bAxis != core.NotMapped:
			b0, err := lax.MoveAxis(c, b, bAxis, 0)
			if err != nil {
				return nil, 0, err
			}
			return batchOperand(c, call, ax, b0)

		default:
			return nil, 0, core.Configf("%s: batching rule invoked without a mapped matrix or operand", v.prim)
		}
	}
}

// checkExample validates the per-example call before any rewriting.
func checkExample(v variant, args []core.Value, axes []int) error {
	specs := make([]tensor.Spec, len(args))
	for i, arg := range args {
		specs[i] = core.SpecOf(arg)
		if axes[i] != core.NotMapped {
			specs[i].Shape = specs[i].Shape.Remove(axes[i])
		}
	}
	_, err := analyze(v, specs)
	return err
}

// batchAligned calls the primitive with the mapped axis leading both ax and b.
// A per-example matrix batch is merged into the mapped axis for the call.
func batchAligned(c *core.Context, v variant, call func(ax, b core.Value) (core.Value, error), ax, b core.Value) (core.Value, error) {
	axShape, bShape := ax.Shape(), b.Shape()
	n := axShape[0]
	if bShape[0] != n {
		return nil, core.Configf("%s: mapped sizes of values (%d) and operand (%d) don't match", v.prim, n, bShape[0])
	}
	if len(axShape) == 2 {
		return call(ax, b)
	}

	// [n, k, nnz] and [n, k, n_col, ...] become one batch of n*k matrices.
	nk := n * axShape[1]
	axFlat, err := lax.Reshape(c, ax, tensor.Shape{nk, axShape[2]})
	if err != nil {
		return nil, err
	}
	bFlat, err := lax.Reshape(c, b, append(tensor.Shape{nk}, bShape[2:]...))
	if err != nil {
		return nil, err
	}
	out, err := call(axFlat, bFlat)
	if err != nil {
		return nil, err
	}
	return lax.Reshape(c, out, bShape)
}

// batchOperand folds the leading mapped axis of b into the operand columns.
func batchOperand(c *core.Context, call func(ax, b core.Value) (core.Value, error), ax, b core.Value) (core.Value, int, error) {
	shape := b.Shape()
	batch := len(ax.Shape()) == 2

	// [m, k?, n_col, trailing...] -> [k?, n_col, m*n_rhs]
	lead := 1
	if batch {
		lead = 2
	}
	m, nCol, trailing := shape[0], shape[lead], shape[lead+1:]
	nRhs := trailing.NumElements()

	var (
		grouped, folded tensor.Shape
		perm            []int
		outShape        tensor.Shape
		outAxis         int
	)
	if batch {
		k := shape[1]
		grouped = tensor.Shape{m, k, nCol, nRhs}
		perm = []int{1, 2, 0, 3}
		folded = tensor.Shape{k, nCol, m * nRhs}
		outShape = append(tensor.Shape{k, nCol, m}, trailing...)
		outAxis = 2
	} else {
		grouped = tensor.Shape{m, nCol, nRhs}
		perm = []int{1, 0, 2}
		folded = tensor.Shape{nCol, m * nRhs}
		outShape = append(tensor.Shape{nCol, m}, trailing...)
		outAxis = 1
	}

	x, err := lax.Reshape(c, b, grouped)
	if err != nil {
		return nil, 0, err
	}
	if x, err = lax.Transpose(c, x, perm...); err != nil {
		return nil, 0, err
	}
	if x, err = lax.Reshape(c, x, folded); err != nil {
		return nil, 0, err
	}
	out, err := call(ax, x)
	if err != nil {
		return nil, 0, err
	}
	out, err = lax.Reshape(c, out, outShape)
	if err != nil {
		return nil, 0, err
	}
	return out, outAxis, nil
}
