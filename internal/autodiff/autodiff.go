// Package autodiff implements reverse-mode automatic differentiation using the
// decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records every eager
// operation that touches a tracked tensor on a GradientTape. Primitives that
// are not executed through the backend (compiled custom calls) record their
// own ops.Operation on the same tape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: each op implements its backward (transpose) rule
//   - Reverse-mode AD: Computes gradients efficiently using chain rule
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	backend.Tape().Watch(x)
//	y := backend.Mul(x, x)
//	grads, err := backend.Tape().Backward(y, ones, backend.Inner())
//	// grads[x] == 2x
package autodiff

import (
	"github.com/born-ml/spsolve/internal/autodiff/ops"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Verify that AutodiffBackend implements tensor.Backend.
var _ tensor.Backend = (*AutodiffBackend[tensor.Backend])(nil)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// record adds op to the tape unless the backend returned an input unchanged.
func (b *AutodiffBackend[B]) record(op ops.Operation) {
	for _, in := range op.Inputs() {
		if in == op.Output() {
			return
		}
	}
	b.tape.Record(op)
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.record(ops.NewMulOp(a, c, result))
	return result
}

// Neg negates x and records the operation.
func (b *AutodiffBackend[B]) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Neg(x)
	b.record(ops.NewNegOp(x, result))
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape returns a new tensor header even though it shares the buffer, so it
// must be recorded for gradients to reach the original tensor.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose transposes a tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	result := b.inner.Transpose(t, axes...)
	b.record(ops.NewTransposeOp(t, result, axes))
	return result
}

// Expand broadcasts a tensor and records the operation.
func (b *AutodiffBackend[B]) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Expand(x, shape)
	b.record(ops.NewExpandOp(x, result))
	return result
}

// SumLeading sums over the first n axes and records the operation.
func (b *AutodiffBackend[B]) SumLeading(x *tensor.RawTensor, n int) *tensor.RawTensor {
	result := b.inner.SumLeading(x, n)
	b.record(ops.NewSumLeadingOp(x, result))
	return result
}

// Cast converts the element type and records the operation.
func (b *AutodiffBackend[B]) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	result := b.inner.Cast(x, dtype)
	b.record(ops.NewCastOp(x, result))
	return result
}
