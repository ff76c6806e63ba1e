package ops

import "github.com/born-ml/spsolve/internal/tensor"

// unaryOp holds the input and output shared by the single-input ops.
type unaryOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensors.
func (op *unaryOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *unaryOp) Output() *tensor.RawTensor {
	return op.output
}

// ReshapeOp records a reshape operation for autodiff.
//
// Backward: reshape the output gradient back to the input shape.
type ReshapeOp struct {
	unaryOp
	origShape tensor.Shape
}

// NewReshapeOp creates a new Reshape operation.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unaryOp: unaryOp{input: input, output: output}, origShape: input.Shape()}
}

// Backward computes gradients for Reshape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error) {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.origShape)}, nil
}

// TransposeOp represents a transpose operation.
//
// Backward:
//
//	∂L/∂input = transpose(∂L/∂output, inverse_axes)
type TransposeOp struct {
	unaryOp
	axes []int // Axes used for forward transpose
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	if len(axes) == 0 {
		axes = make([]int, len(input.Shape()))
		for i := range axes {
			axes[i] = len(axes) - 1 - i
		}
	}
	return &TransposeOp{unaryOp: unaryOp{input: input, output: output}, axes: axes}
}

// Backward transposes the output gradient with the inverse permutation.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error) {
	return []*tensor.RawTensor{backend.Transpose(outputGrad, InversePermutation(op.axes)...)}, nil
}

// ExpandOp records a broadcast of input to a larger shape.
//
// Backward: sum the output gradient over the broadcast dimensions.
type ExpandOp struct{ unaryOp }

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(input, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{unaryOp{input: input, output: output}}
}

// Backward reduces the output gradient to the input shape.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error) {
	return []*tensor.RawTensor{reduceBroadcast(outputGrad, op.input.Shape(), backend)}, nil
}

// SumLeadingOp records a sum over the first n axes.
//
// Backward: broadcast the output gradient back over the summed axes.
type SumLeadingOp struct{ unaryOp }

// NewSumLeadingOp creates a new SumLeadingOp.
func NewSumLeadingOp(input, output *tensor.RawTensor) *SumLeadingOp {
	return &SumLeadingOp{unaryOp{input: input, output: output}}
}

// Backward expands the output gradient to the input shape.
func (op *SumLeadingOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error) {
	return []*tensor.RawTensor{backend.Expand(outputGrad, op.input.Shape())}, nil
}

// CastOp records an element-type conversion.
//
// Backward: convert the output gradient back to the input element type.
// Converting a complex cotangent to a real type keeps its real part.
type CastOp struct{ unaryOp }

// NewCastOp creates a new CastOp.
func NewCastOp(input, output *tensor.RawTensor) *CastOp {
	return &CastOp{unaryOp{input: input, output: output}}
}

// Backward casts the output gradient to the input dtype.
func (op *CastOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error) {
	return []*tensor.RawTensor{backend.Cast(outputGrad, op.input.DType())}, nil
}
