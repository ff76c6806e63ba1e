package core

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/hlo"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Bind applies p to args.
//
// The operand traced at the highest level decides how: a batched tracer runs
// the batching rule, a dual tracer runs the forward-mode rule, and when every
// operand is concrete the primitive is evaluated eagerly. Rules bind further
// primitives on the unwrapped operands, which recurses through lower levels.
func (c *Context) Bind(p *Primitive, params any, args ...Value) (Value, error) {
	rules, ok := c.registry.Lookup(p)
	if !ok {
		return nil, fmt.Errorf("bind %s: %w", p, ErrUnregistered)
	}

	top := 0
	var lead Value
	for i, arg := range args {
		if arg == nil {
			return nil, fmt.Errorf("bind %s: operand %d is nil", p, i)
		}
		if l := levelOf(arg); l > top {
			top, lead = l, arg
		}
	}

	switch lead.(type) {
	case *batched:
		return c.bindBatched(p, rules, params, args, top)
	case *dual:
		return c.bindDual(p, rules, params, args, top)
	}

	raws := make([]*tensor.RawTensor, len(args))
	for i, arg := range args {
		raw, ok := arg.(*tensor.RawTensor)
		if !ok {
			return nil, fmt.Errorf("bind %s: operand %d has unsupported type %T", p, i, arg)
		}
		raws[i] = raw
	}
	out, err := c.evalEager(p, rules, params, raws)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BindRaw applies p to concrete operands and returns a concrete result.
func (c *Context) BindRaw(p *Primitive, params any, args ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	vals := make([]Value, len(args))
	for i, a := range args {
		vals[i] = a
	}
	out, err := c.Bind(p, params, vals...)
	if err != nil {
		return nil, err
	}
	raw, ok := out.(*tensor.RawTensor)
	if !ok {
		return nil, fmt.Errorf("bind %s: result is traced (%T)", p, out)
	}
	return raw, nil
}

func (c *Context) bindBatched(p *Primitive, rules Rules, params any, args []Value, level int) (Value, error) {
	if rules.Batch == nil {
		return nil, Configf("%s has no batching rule", p)
	}

	vals := make([]Value, len(args))
	axes := make([]int, len(args))
	for i, arg := range args {
		vals[i], axes[i] = UnwrapBatched(arg, level)
		if axes[i] != NotMapped && rules.isStructural(i) {
			return nil, Configf("%s: structural operand %d cannot be batched", p, i)
		}
	}

	c.logger.Debug().Str("primitive", p.name).Int("level", level).Ints("axes", axes).Msg("batching rule")

	out, outAxis, err := rules.Batch(c, params, vals, axes)
	if err != nil {
		return nil, err
	}
	if outAxis == NotMapped {
		return out, nil
	}
	return NewBatched(level, out, outAxis), nil
}

func (c *Context) bindDual(p *Primitive, rules Rules, params any, args []Value, level int) (Value, error) {
	if rules.JVP == nil {
		return nil, Configf("%s has no forward-mode rule", p)
	}

	primals := make([]Value, len(args))
	tangents := make([]Tangent, len(args))
	for i, arg := range args {
		primal, tangent, ok := UnwrapDual(arg, level)
		primals[i] = primal
		if !ok {
			tangents[i] = ZeroOf(SpecOf(arg))
			continue
		}
		if rules.isStructural(i) {
			return nil, Configf("%s: structural operand %d cannot receive a tangent", p, i)
		}
		tangents[i] = Some(tangent)
	}

	c.logger.Debug().Str("primitive", p.name).Int("level", level).Msg("forward-mode rule")

	primalOut, tangentOut, err := rules.JVP(c, params, primals, tangents)
	if err != nil {
		return nil, err
	}
	return NewDual(level, primalOut, tangentOut), nil
}

// evalEager evaluates p on concrete operands and records it on the tape when
// a tracked tensor participates.
func (c *Context) evalEager(p *Primitive, rules Rules, params any, args []*tensor.RawTensor) (*tensor.RawTensor, error) {
	specs := make([]tensor.Spec, len(args))
	for i, a := range args {
		specs[i] = a.Spec()
	}
	outSpec, err := rules.AbstractEval(params, specs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	// Impl runs on the recording backend, which tapes its own operations.
	if rules.Impl != nil {
		return rules.Impl(c, params, args)
	}

	tape := c.Tape()
	var wanted []bool
	if tape.IsRecording() && tape.AnyTracked(args...) {
		wanted = make([]bool, len(args))
		for i, a := range args {
			wanted[i] = tape.IsTracked(a)
			if wanted[i] && rules.isStructural(i) {
				return nil, Configf("%s: cannot differentiate with respect to structural operand %d", p, i)
			}
		}
		if rules.Transpose == nil {
			return nil, Configf("%s has no reverse-mode rule", p)
		}
		if rules.CheckTranspose != nil {
			if err := rules.CheckTranspose(params, wanted); err != nil {
				return nil, err
			}
		}
	}

	out, err := c.execute(p, rules, params, args, specs)
	if err != nil {
		return nil, err
	}
	if !out.Spec().Equal(outSpec) {
		return nil, fmt.Errorf("%s: lowering produced %s, abstract evaluation %s", p, out.Spec(), outSpec)
	}

	if wanted != nil {
		tape.Record(&primitiveOp{c: c, prim: p, rules: rules, params: params, inputs: args, output: out, wanted: wanted})
	}
	return out, nil
}

// execute lowers p into a fresh computation, compiles it and runs it.
// Nothing is cached between calls.
func (c *Context) execute(p *Primitive, rules Rules, params any, args []*tensor.RawTensor, specs []tensor.Spec) (*tensor.RawTensor, error) {
	b := hlo.NewBuilder(p.name)
	ops := make([]*hlo.Op, len(args))
	for i, spec := range specs {
		op, err := b.Parameter(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		ops[i] = op
	}

	root, err := rules.Lower(b, params, ops, specs)
	if err != nil {
		return nil, fmt.Errorf("lower %s: %w", p, err)
	}
	comp, err := b.Build(root)
	if err != nil {
		return nil, fmt.Errorf("lower %s: %w", p, err)
	}
	if e := c.logger.Trace(); e.Enabled() {
		e.Str("primitive", p.name).Msg(comp.String())
	}

	exe, err := hlo.Compile(comp, c.targets, hlo.Options{Backend: c.backend.Inner(), Tracer: c.tracer})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", p, err)
	}
	return exe.Execute(c.ctx, args...)
}

// primitiveOp records a lowered primitive on the gradient tape; its backward
// pass is the primitive's transpose rule.
type primitiveOp struct {
	c      *Context
	prim   *Primitive
	rules  Rules
	params any
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	wanted []bool
}

func (op *primitiveOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) ([]*tensor.RawTensor, error) {
	grads, err := op.rules.Transpose(op.c, op.params, outputGrad, op.inputs, op.output, op.wanted)
	if err != nil {
		return nil, fmt.Errorf("transpose %s: %w", op.prim, err)
	}
	return grads, nil
}

func (op *primitiveOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

func (op *primitiveOp) Output() *tensor.RawTensor {
	return op.output
}
