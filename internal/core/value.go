package core

import (
	"math"

	"github.com/born-ml/spsolve/internal/tensor"
)

// NotMapped marks an operand or result that carries no batch axis. It is
// never a valid axis, negative axes included.
const NotMapped = math.MinInt

// Value is an array-like operand of a primitive: either a concrete
// *tensor.RawTensor or a tracer introduced by a transformation.
type Value interface {
	Shape() tensor.Shape
	DType() tensor.DataType
}

// SpecOf returns the abstract description of v.
func SpecOf(v Value) tensor.Spec {
	return tensor.Spec{Shape: v.Shape().Clone(), DType: v.DType()}
}

// Concrete returns v as a buffer if it is not traced.
func Concrete(v Value) (*tensor.RawTensor, bool) {
	raw, ok := v.(*tensor.RawTensor)
	return raw, ok
}

// dual is a forward-mode tracer: a primal value paired with its tangent.
type dual struct {
	level   int
	primal  Value
	tangent Value
}

func (d *dual) Shape() tensor.Shape    { return d.primal.Shape() }
func (d *dual) DType() tensor.DataType { return d.primal.DType() }

// batched is a vectorization tracer: val carries an extra axis that is
// invisible to the function being mapped.
type batched struct {
	level int
	val   Value
	axis  int
}

func (b *batched) Shape() tensor.Shape    { return b.val.Shape().Remove(b.axis) }
func (b *batched) DType() tensor.DataType { return b.val.DType() }

// NewDual wraps primal and tangent into a tracer of the given level.
func NewDual(level int, primal, tangent Value) Value {
	return &dual{level: level, primal: primal, tangent: tangent}
}

// UnwrapDual returns the primal and tangent of v if it is a dual of level.
func UnwrapDual(v Value, level int) (Value, Value, bool) {
	if d, ok := v.(*dual); ok && d.level == level {
		return d.primal, d.tangent, true
	}
	return v, nil, false
}

// NewBatched wraps val, whose axis is mapped, into a tracer of the given level.
func NewBatched(level int, val Value, axis int) Value {
	return &batched{level: level, val: val, axis: axis}
}

// UnwrapBatched returns the underlying value and mapped axis of v if it is a
// batched tracer of level, or (v, NotMapped) otherwise.
func UnwrapBatched(v Value, level int) (Value, int) {
	if b, ok := v.(*batched); ok && b.level == level {
		return b.val, b.axis
	}
	return v, NotMapped
}

// levelOf returns the trace level of v; concrete values are level 0.
func levelOf(v Value) int {
	switch t := v.(type) {
	case *dual:
		return t.level
	case *batched:
		return t.level
	default:
		return 0
	}
}
