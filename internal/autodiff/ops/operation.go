// Package ops defines the operations recorded on the gradient tape and their
// backward (transpose) rules.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: maps the output cotangent to input cotangents
//
// Backward rules are linear transposes: for complex tensors no conjugation is
// applied, so the result is the cotangent of a holomorphic map.
//
// Supported operations:
//   - AddOp, SubOp, MulOp, NegOp: element-wise arithmetic with broadcasting
//   - ReshapeOp, TransposeOp: layout changes
//   - ExpandOp, SumLeadingOp: broadcasting and its adjoint reduction
//   - CastOp: element-type conversion
package ops

import "github.com/born-ml/spsolve/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input cotangents during the backward pass.
type Operation interface {
	// Backward computes cotangents for inputs given the output cotangent.
	// The result has one entry per input; a nil entry means no cotangent
	// flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) ([]*tensor.RawTensor, error)

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
