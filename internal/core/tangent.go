package core

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/tensor"
)

// Tangent is the tangent of one primitive operand in a forward-mode rule:
// either a value (Some) or a symbolic zero carrying the operand's spec.
type Tangent struct {
	value Value
	spec  tensor.Spec
}

// Some returns a present tangent.
func Some(v Value) Tangent {
	return Tangent{value: v, spec: SpecOf(v)}
}

// ZeroOf returns a symbolic zero tangent for an operand described by spec.
func ZeroOf(spec tensor.Spec) Tangent {
	return Tangent{spec: spec}
}

// IsZero reports whether the tangent is a symbolic zero.
func (t Tangent) IsZero() bool {
	return t.value == nil
}

// Spec returns the abstract description of the tangent.
func (t Tangent) Spec() tensor.Spec {
	return t.spec
}

// Value returns the tangent, materializing a symbolic zero as a zero-filled buffer.
func (t Tangent) Value() (Value, error) {
	if t.value != nil {
		return t.value, nil
	}
	zeros, err := tensor.Zeros(t.spec.Shape, t.spec.DType)
	if err != nil {
		return nil, fmt.Errorf("zero tangent %s: %w", t.spec, err)
	}
	return zeros, nil
}

// String formats the tangent for logs.
func (t Tangent) String() string {
	if t.IsZero() {
		return "Zero(" + t.spec.String() + ")"
	}
	return "Some(" + t.spec.String() + ")"
}
