package lax

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/tensor"
)

// reshape

func reshapeAbstract(params any, args []tensor.Spec) (tensor.Spec, error) {
	shape := params.(ReshapeParams).Shape
	if err := shape.Validate(); err != nil {
		return tensor.Spec{}, fmt.Errorf("reshape: %w", err)
	}
	if shape.NumElements() != args[0].Shape.NumElements() {
		return tensor.Spec{}, fmt.Errorf("reshape: cannot reshape %v to %v", args[0].Shape, shape)
	}
	return tensor.Spec{Shape: shape.Clone(), DType: args[0].DType}, nil
}

func reshapeImpl(c *core.Context, params any, args []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return c.Backend().Reshape(args[0], params.(ReshapeParams).Shape), nil
}

// reshapeBatch moves the mapped axis to the front and reshapes the rest.
func reshapeBatch(c *core.Context, params any, args []core.Value, axes []int) (core.Value, int, error) {
	x, err := MoveAxis(c, args[0], axes[0], 0)
	if err != nil {
		return nil, 0, err
	}
	n := x.Shape()[0]
	out, err := Reshape(c, x, params.(ReshapeParams).Shape.Insert(0, n))
	return out, 0, err
}

// transpose

func transposeAbstract(params any, args []tensor.Spec) (tensor.Spec, error) {
	perm := params.(TransposeParams).Perm
	in := args[0].Shape
	if len(perm) != len(in) {
		return tensor.Spec{}, fmt.Errorf("transpose: permutation %v for rank %d", perm, len(in))
	}
	seen := make([]bool, len(in))
	shape := make(tensor.Shape, len(in))
	for i, ax := range perm {
		if ax < 0 || ax >= len(in) || seen[ax] {
			return tensor.Spec{}, fmt.Errorf("transpose: invalid permutation %v", perm)
		}
		seen[ax] = true
		shape[i] = in[ax]
	}
	return tensor.Spec{Shape: shape, DType: args[0].DType}, nil
}

func transposeImpl(c *core.Context, params any, args []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return c.Backend().Transpose(args[0], params.(TransposeParams).Perm...), nil
}

// transposeBatch keeps the mapped axis in front of the permuted axes.
func transposeBatch(c *core.Context, params any, args []core.Value, axes []int) (core.Value, int, error) {
	bdim := axes[0]
	perm := params.(TransposeParams).Perm
	full := make([]int, 0, len(perm)+1)
	full = append(full, bdim)
	for _, ax := range perm {
		if ax >= bdim {
			ax++
		}
		full = append(full, ax)
	}
	out, err := Transpose(c, args[0], full...)
	return out, 0, err
}

// broadcast_leading

func broadcastAbstract(params any, args []tensor.Spec) (tensor.Spec, error) {
	n := params.(BroadcastParams).N
	if n <= 0 {
		return tensor.Spec{}, fmt.Errorf("broadcast: size %d must be positive", n)
	}
	return tensor.Spec{Shape: args[0].Shape.Insert(0, n), DType: args[0].DType}, nil
}

func broadcastImpl(c *core.Context, params any, args []*tensor.RawTensor) (*tensor.RawTensor, error) {
	n := params.(BroadcastParams).N
	return c.Backend().Expand(args[0], args[0].Shape().Insert(0, n)), nil
}

// broadcastBatch prepends the new axis, which shifts the mapped axis by one.
func broadcastBatch(c *core.Context, params any, args []core.Value, axes []int) (core.Value, int, error) {
	out, err := c.Bind(BroadcastP, params, args[0])
	return out, axes[0] + 1, err
}

// convert

func convertAbstract(params any, args []tensor.Spec) (tensor.Spec, error) {
	return tensor.Spec{Shape: args[0].Shape.Clone(), DType: params.(ConvertParams).DType}, nil
}

func convertImpl(c *core.Context, params any, args []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return c.Backend().Cast(args[0], params.(ConvertParams).DType), nil
}

func convertBatch(c *core.Context, params any, args []core.Value, axes []int) (core.Value, int, error) {
	out, err := c.Bind(ConvertP, params, args[0])
	return out, axes[0], err
}

// add, sub

type binaryKind int

const (
	addKind binaryKind = iota
	subKind
)

func binaryAbstract(_ any, args []tensor.Spec) (tensor.Spec, error) {
	if args[0].DType != args[1].DType {
		return tensor.Spec{}, fmt.Errorf("binary op: dtype mismatch %s vs %s", args[0].DType, args[1].DType)
	}
	shape, _, err := tensor.BroadcastShapes(args[0].Shape, args[1].Shape)
	if err != nil {
		return tensor.Spec{}, err
	}
	return tensor.Spec{Shape: shape, DType: args[0].DType}, nil
}

func binaryImpl(kind binaryKind) core.ImplFunc {
	return func(c *core.Context, _ any, args []*tensor.RawTensor) (*tensor.RawTensor, error) {
		if kind == subKind {
			return c.Backend().Sub(args[0], args[1]), nil
		}
		return c.Backend().Add(args[0], args[1]), nil
	}
}

// binaryBatch moves every mapped axis to the front and pads mapped operands of
// lower logical rank with unit axes, so broadcasting from the right lines up.
func binaryBatch(p *core.Primitive) core.BatchFunc {
	return func(c *core.Context, params any, args []core.Value, axes []int) (core.Value, int, error) {
		rank := 0
		for i, arg := range args {
			r := len(arg.Shape())
			if axes[i] != core.NotMapped {
				r--
			}
			rank = max(rank, r)
		}

		operands := make([]core.Value, len(args))
		for i, arg := range args {
			if axes[i] == core.NotMapped {
				operands[i] = arg
				continue
			}
			x, err := MoveAxis(c, arg, axes[i], 0)
			if err != nil {
				return nil, 0, err
			}
			if pad := rank - (len(x.Shape()) - 1); pad > 0 {
				shape := x.Shape().Clone()
				for j := 0; j < pad; j++ {
					shape = shape.Insert(1, 1)
				}
				if x, err = Reshape(c, x, shape); err != nil {
					return nil, 0, err
				}
			}
			operands[i] = x
		}

		out, err := c.Bind(p, params, operands...)
		return out, 0, err
	}
}
