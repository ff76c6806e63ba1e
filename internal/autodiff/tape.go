package autodiff

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/autodiff/ops"
	"github.com/born-ml/spsolve/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Only operations that consume a tracked tensor are recorded; their outputs
// become tracked in turn. Tensors are tracked explicitly with Watch.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	tape.Watch(x)
//	// ... perform operations ...
//	gradients, err := tape.Backward(output, seed, backend)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	tracked    map[*tensor.RawTensor]struct{}
	recording  bool // Whether tape is currently recording
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64), // Pre-allocate for common case
		tracked:    make(map[*tensor.RawTensor]struct{}),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Watch marks x as a differentiation input.
func (t *GradientTape) Watch(x *tensor.RawTensor) {
	t.tracked[x] = struct{}{}
}

// IsTracked reports whether gradients can flow to x through recorded operations.
func (t *GradientTape) IsTracked(x *tensor.RawTensor) bool {
	_, ok := t.tracked[x]
	return ok
}

// AnyTracked reports whether any of xs is tracked.
func (t *GradientTape) AnyTracked(xs ...*tensor.RawTensor) bool {
	for _, x := range xs {
		if t.IsTracked(x) {
			return true
		}
	}
	return false
}

// Record adds an operation to the tape.
// Only records if the tape is recording and some input is tracked.
func (t *GradientTape) Record(op ops.Operation) {
	if !t.recording || !t.AnyTracked(op.Inputs()...) {
		return
	}
	t.operations = append(t.operations, op)
	t.tracked[op.Output()] = struct{}{}
}

// Clear resets the tape, removing all recorded operations and tracked tensors.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
	clear(t.tracked)
}

// Backward computes gradients by walking the tape in reverse, starting from
// output with cotangent seed.
//
// Algorithm:
//  1. Start with the seed as the gradient of output
//  2. Walk operations in reverse order
//  3. For each operation, compute input gradients using the chain rule
//  4. Accumulate gradients when the same tensor is used multiple times
//
// Returns a map from RawTensor to its accumulated gradient. Recording is
// suspended while the backward rules run.
func (t *GradientTape) Backward(output, seed *tensor.RawTensor, backend tensor.Backend) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	if !seed.Shape().Equal(output.Shape()) {
		return nil, fmt.Errorf("backward: seed shape %v does not match output shape %v", seed.Shape(), output.Shape())
	}

	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: seed}

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outputGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputGrads, err := op.Backward(outputGrad, backend)
		if err != nil {
			return nil, fmt.Errorf("backward: %T: %w", op, err)
		}
		t.accumulateGrads(op, inputGrads, grads, backend)
	}

	return grads, nil
}

// accumulateGrads accumulates gradients for each tracked input tensor.
func (t *GradientTape) accumulateGrads(
	op ops.Operation,
	inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range op.Inputs() {
		if j >= len(inputGrads) {
			break
		}
		inputGrad := inputGrads[j]
		if inputGrad == nil || !t.IsTracked(input) {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrad)
		} else {
			grads[input] = inputGrad
		}
	}
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}
