// Package transform implements the function transformations over primitives:
// vectorizing map, forward-mode JVP and tape-based reverse mode.
//
// Vmap and JVP trace the function with tracers of a fresh level and compose
// freely with each other. Grad and VJP evaluate eagerly on the gradient tape;
// they may wrap Vmap and JVP but cannot run inside them.
package transform

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/lax"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Func is a function of primitive values.
type Func func(c *core.Context, args ...core.Value) (core.Value, error)

// Vmap returns fn mapped over axis inAxes[i] of argument i (core.NotMapped for
// arguments shared by every example). The mapped axis of the result is placed
// at outAxis.
func Vmap(fn Func, inAxes []int, outAxis int) Func {
	return func(c *core.Context, args ...core.Value) (core.Value, error) {
		if len(inAxes) != len(args) {
			return nil, core.Configf("vmap: %d in_axes for %d arguments", len(inAxes), len(args))
		}

		size := 0
		axes := make([]int, len(args))
		for i, arg := range args {
			axes[i] = inAxes[i]
			if axes[i] == core.NotMapped {
				continue
			}
			rank := len(arg.Shape())
			if axes[i] < 0 {
				axes[i] += rank
			}
			if axes[i] < 0 || axes[i] >= rank {
				return nil, core.Configf("vmap: in_axis %d out of range for argument %d of rank %d", inAxes[i], i, rank)
			}
			n := arg.Shape()[axes[i]]
			if size != 0 && n != size {
				return nil, core.Configf("vmap: argument %d has mapped size %d, others %d", i, n, size)
			}
			size = n
		}
		if size == 0 {
			return nil, core.Configf("vmap: no argument is mapped")
		}

		level := c.EnterLevel()
		wrapped := make([]core.Value, len(args))
		for i, arg := range args {
			if axes[i] == core.NotMapped {
				wrapped[i] = arg
				continue
			}
			wrapped[i] = core.NewBatched(level, arg, axes[i])
		}

		out, err := fn(c, wrapped...)
		c.ExitLevel()
		if err != nil {
			return nil, err
		}

		val, axis := core.UnwrapBatched(out, level)
		if axis == core.NotMapped {
			if val, err = lax.BroadcastLeading(c, val, size); err != nil {
				return nil, err
			}
			axis = 0
		}

		target := outAxis
		if target < 0 {
			target += len(val.Shape())
		}
		return lax.MoveAxis(c, val, axis, target)
	}
}

// JVP evaluates fn at primals and its directional derivative along tangents.
// A nil tangent means the argument is held constant.
func JVP(c *core.Context, fn Func, primals, tangents []core.Value) (core.Value, core.Value, error) {
	if len(primals) != len(tangents) {
		return nil, nil, core.Configf("jvp: %d primals, %d tangents", len(primals), len(tangents))
	}

	level := c.EnterLevel()
	args := make([]core.Value, len(primals))
	for i, p := range primals {
		t := tangents[i]
		if t == nil {
			args[i] = p
			continue
		}
		if !core.SpecOf(t).Equal(core.SpecOf(p)) {
			c.ExitLevel()
			return nil, nil, core.Configf("jvp: tangent %d is %s, primal %s", i, core.SpecOf(t), core.SpecOf(p))
		}
		args[i] = core.NewDual(level, p, t)
	}

	out, err := fn(c, args...)
	c.ExitLevel()
	if err != nil {
		return nil, nil, err
	}

	primal, tangent, ok := core.UnwrapDual(out, level)
	if !ok {
		zeros, err := lax.ZerosLike(out)
		if err != nil {
			return nil, nil, err
		}
		return out, zeros, nil
	}
	return primal, tangent, nil
}

// Grad returns the gradient of sum(fn(args...)) with respect to args[argnums[i]].
func Grad(c *core.Context, fn Func, argnums []int, args ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	_, grads, err := VJP(c, fn, argnums, nil, args...)
	return grads, err
}

// VJP evaluates fn at args and pulls the cotangent ct back to args[argnums[i]].
// A nil ct is a cotangent of ones.
func VJP(c *core.Context, fn Func, argnums []int, ct *tensor.RawTensor, args ...*tensor.RawTensor) (*tensor.RawTensor, []*tensor.RawTensor, error) {
	if c.Level() != 0 {
		return nil, nil, core.Configf("reverse mode cannot run inside vmap or jvp")
	}
	tape := c.Tape()
	if tape.IsRecording() {
		return nil, nil, core.Configf("reverse mode cannot be nested")
	}
	for _, i := range argnums {
		if i < 0 || i >= len(args) {
			return nil, nil, core.Configf("argnum %d out of range for %d arguments", i, len(args))
		}
	}

	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	vals := make([]core.Value, len(args))
	for i, a := range args {
		vals[i] = a
	}
	for _, i := range argnums {
		tape.Watch(args[i])
	}

	out, err := fn(c, vals...)
	if err != nil {
		return nil, nil, err
	}
	result, ok := core.Concrete(out)
	if !ok {
		return nil, nil, fmt.Errorf("vjp: function returned a traced value %T", out)
	}
	tape.StopRecording()

	seed := ct
	if seed == nil {
		if seed, err = tensor.Ones(result.Shape(), result.DType()); err != nil {
			return nil, nil, err
		}
	} else if !seed.Spec().Equal(result.Spec()) {
		return nil, nil, core.Configf("vjp: cotangent %s does not match output %s", seed.Spec(), result.Spec())
	}

	grads, err := tape.Backward(result, seed, c.PlainBackend())
	if err != nil {
		return nil, nil, err
	}

	inputGrads := make([]*tensor.RawTensor, len(argnums))
	for k, i := range argnums {
		g, ok := grads[args[i]]
		if !ok {
			if g, err = tensor.Zeros(args[i].Shape(), args[i].DType()); err != nil {
				return nil, nil, err
			}
		}
		inputGrads[k] = g
	}
	return result, inputGrads, nil
}
