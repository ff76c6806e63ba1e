package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/kernel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Operation selects the kernel family.
type Operation int

// Operations.
const (
	OpSolve Operation = iota
	OpMultiply
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpSolve:
		return "solve"
	case OpMultiply:
		return "multiply"
	default:
		return "unknown"
	}
}

// The four variants: {solve, multiply} x {float64, complex128}. Each is a
// primitive lowered to the native target of the same name.
var (
	SolveF64      = core.NewPrimitive(kernel.SolveF64)
	SolveC128     = core.NewPrimitive(kernel.SolveC128)
	CooMulVecF64  = core.NewPrimitive(kernel.CooMulVecF64)
	CooMulVecC128 = core.NewPrimitive(kernel.CooMulVecC128)
)

// variant describes one primitive of the family.
type variant struct {
	prim  *core.Primitive
	op    Operation
	dtype tensor.DataType
}

var variants = []variant{
	{SolveF64, OpSolve, tensor.Float64},
	{SolveC128, OpSolve, tensor.Complex128},
	{CooMulVecF64, OpMultiply, tensor.Float64},
	{CooMulVecC128, OpMultiply, tensor.Complex128},
}

// variantOf returns the variant for an operation and resolved element type.
func variantOf(op Operation, dtype tensor.DataType) variant {
	for _, v := range variants {
		if v.op == op && v.dtype == dtype {
			return v
		}
	}
	panic("sparse: no variant for " + op.String() + "/" + dtype.String())
}

// sibling returns the variant of op with the same element type.
func (v variant) sibling(op Operation) variant {
	return variantOf(op, v.dtype)
}

// target returns the native entry point name.
func (v variant) target() string {
	return v.prim.Name()
}
