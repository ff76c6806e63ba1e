// Package lax provides the layout and arithmetic primitives that differentiation
// and batching rules are written in: reshape, transpose, broadcast, convert,
// add and sub.
//
// Every primitive evaluates eagerly on the context backend, so reverse-mode
// recording happens there. Each carries forward-mode and batching rules, which
// makes rules written in terms of these functions composable under any nesting
// of transformations.
package lax

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Primitives.
var (
	ReshapeP   = core.NewPrimitive("reshape")
	TransposeP = core.NewPrimitive("transpose")
	BroadcastP = core.NewPrimitive("broadcast_leading")
	ConvertP   = core.NewPrimitive("convert")
	AddP       = core.NewPrimitive("add")
	SubP       = core.NewPrimitive("sub")
)

// Primitive parameters.
type (
	ReshapeParams   struct{ Shape tensor.Shape }
	TransposeParams struct{ Perm []int }
	BroadcastParams struct{ N int }
	ConvertParams   struct{ DType tensor.DataType }
)

// Register installs the rules of every lax primitive.
func Register(reg *core.Registry) error {
	entries := []struct {
		p     *core.Primitive
		rules core.Rules
	}{
		{ReshapeP, core.Rules{AbstractEval: reshapeAbstract, Impl: reshapeImpl, JVP: linearJVP(ReshapeP), Batch: reshapeBatch}},
		{TransposeP, core.Rules{AbstractEval: transposeAbstract, Impl: transposeImpl, JVP: linearJVP(TransposeP), Batch: transposeBatch}},
		{BroadcastP, core.Rules{AbstractEval: broadcastAbstract, Impl: broadcastImpl, JVP: linearJVP(BroadcastP), Batch: broadcastBatch}},
		{ConvertP, core.Rules{AbstractEval: convertAbstract, Impl: convertImpl, JVP: linearJVP(ConvertP), Batch: convertBatch}},
		{AddP, core.Rules{AbstractEval: binaryAbstract, Impl: binaryImpl(addKind), JVP: linearJVP(AddP), Batch: binaryBatch(AddP)}},
		{SubP, core.Rules{AbstractEval: binaryAbstract, Impl: binaryImpl(subKind), JVP: linearJVP(SubP), Batch: binaryBatch(SubP)}},
	}
	for _, e := range entries {
		if err := reg.Register(e.p, e.rules); err != nil {
			return err
		}
	}
	return nil
}

// Reshape reinterprets x with the given shape.
func Reshape(c *core.Context, x core.Value, shape tensor.Shape) (core.Value, error) {
	return c.Bind(ReshapeP, ReshapeParams{Shape: shape.Clone()}, x)
}

// Transpose permutes the axes of x: output axis i is input axis perm[i].
func Transpose(c *core.Context, x core.Value, perm ...int) (core.Value, error) {
	return c.Bind(TransposeP, TransposeParams{Perm: append([]int(nil), perm...)}, x)
}

// MoveAxis moves axis from of x to position to, keeping the order of the others.
func MoveAxis(c *core.Context, x core.Value, from, to int) (core.Value, error) {
	if from == to {
		return x, nil
	}
	rank := len(x.Shape())
	if from < 0 || from >= rank || to < 0 || to >= rank {
		return nil, fmt.Errorf("moveaxis: axes %d -> %d out of range for rank %d", from, to, rank)
	}
	return Transpose(c, x, moveAxisPerm(rank, from, to)...)
}

// BroadcastLeading returns x repeated n times along a new leading axis.
func BroadcastLeading(c *core.Context, x core.Value, n int) (core.Value, error) {
	return c.Bind(BroadcastP, BroadcastParams{N: n}, x)
}

// Convert changes the element type of x. It is the identity when x already has dtype.
func Convert(c *core.Context, x core.Value, dtype tensor.DataType) (core.Value, error) {
	if x.DType() == dtype {
		return x, nil
	}
	return c.Bind(ConvertP, ConvertParams{DType: dtype}, x)
}

// Add returns a + b with NumPy broadcasting.
func Add(c *core.Context, a, b core.Value) (core.Value, error) {
	return c.Bind(AddP, nil, a, b)
}

// Sub returns a - b with NumPy broadcasting.
func Sub(c *core.Context, a, b core.Value) (core.Value, error) {
	return c.Bind(SubP, nil, a, b)
}

// ZerosLike returns a concrete zero-filled buffer with the shape and dtype of x.
func ZerosLike(x core.Value) (*tensor.RawTensor, error) {
	return tensor.Zeros(x.Shape(), x.DType())
}

// moveAxisPerm returns the permutation of rank axes moving from to to.
func moveAxisPerm(rank, from, to int) []int {
	perm := make([]int, 0, rank)
	for i := 0; i < rank; i++ {
		if i != from {
			perm = append(perm, i)
		}
	}
	perm = append(perm, 0)
	copy(perm[to+1:], perm[to:])
	perm[to] = from
	return perm
}

// linearJVP is the forward rule of a primitive that is linear in all operands:
// the tangent is the primitive applied to the tangents.
func linearJVP(p *core.Primitive) core.JVPFunc {
	return func(c *core.Context, params any, primals []core.Value, tangents []core.Tangent) (core.Value, core.Value, error) {
		out, err := c.Bind(p, params, primals...)
		if err != nil {
			return nil, nil, err
		}
		ts := make([]core.Value, len(tangents))
		for i, t := range tangents {
			if ts[i], err = t.Value(); err != nil {
				return nil, nil, err
			}
		}
		tout, err := c.Bind(p, params, ts...)
		if err != nil {
			return nil, nil, err
		}
		return out, tout, nil
	}
}
