package sparse

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/hlo"
	"github.com/born-ml/spsolve/internal/kernel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Targets returns the native entry points as a custom-call target table.
func Targets() hlo.TargetTable {
	table := make(hlo.TargetMap, 4)
	for _, name := range kernel.Names() {
		f, _ := kernel.Lookup(name)
		table[name] = hlo.Target(f)
	}
	return table
}

// abstractEval returns the abstract evaluation rule of v: the result has the
// shape of the operand.
func abstractEval(v variant) core.AbstractEvalFunc {
	return func(_ any, specs []tensor.Spec) (tensor.Spec, error) {
		l, err := analyze(v, specs)
		if err != nil {
			return tensor.Spec{}, err
		}
		return l.result, nil
	}
}

// lower returns the lowering rule of v. It emits the size constants, the
// operand layout changes, exactly one custom call to the native target and
// the inverse layout change of the result.
func lower(v variant) core.LowerFunc {
	return func(b *hlo.Builder, _ any, args []*hlo.Op, specs []tensor.Spec) (*hlo.Op, error) {
		l, err := analyze(v, specs)
		if err != nil {
			return nil, err
		}

		sizes := make([]*hlo.Op, 0, 4)
		for _, n := range []int{l.nCol, l.nLhs, l.nRhs, l.nnz} {
			op, err := b.ConstantLiteral(tensor.Scalar(int32(n)))
			if err != nil {
				return nil, err
			}
			sizes = append(sizes, op)
		}

		ax, rhs, err := l.lowerOperands(b, args[2], args[3])
		if err != nil {
			return nil, err
		}

		operands := append(sizes, args[0], args[1], ax, rhs)
		shapes := make([]tensor.Shape, len(operands))
		for i, op := range operands {
			shapes[i] = op.Shape()
		}
		flat := tensor.Spec{Shape: tensor.Shape{l.flatSize()}, DType: v.dtype}

		call, err := b.CustomCallWithLayout(v.target(), operands, shapes, flat)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.prim, err)
		}
		return l.restoreResult(b, call)
	}
}
