package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/lax"
	"github.com/born-ml/spsolve/internal/tensor"
)

// resolve selects the variant of op for the operands and converts them to its
// element types: complex128 values when either the matrix values or the
// operand is complex, float64 otherwise, and int32 indices. Conversions never
// fail; narrower inputs are widened.
func resolve(c *core.Context, op Operation, ai, aj, ax, b core.Value) (variant, []core.Value, error) {
	dtype := tensor.Float64
	if ax.DType().IsComplex() || b.DType().IsComplex() {
		dtype = tensor.Complex128
	}
	v := variantOf(op, dtype)

	targets := []tensor.DataType{tensor.Int32, tensor.Int32, dtype, dtype}
	args := []core.Value{ai, aj, ax, b}
	for i, arg := range args {
		converted, err := lax.Convert(c, arg, targets[i])
		if err != nil {
			return v, nil, err
		}
		args[i] = converted
	}
	return v, args, nil
}
