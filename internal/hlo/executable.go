package hlo

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/spsolve/internal/backend/cpu"
	"github.com/born-ml/spsolve/internal/tensor"
)

// DefaultTracerName is the instrumentation name used when no tracer is configured.
const DefaultTracerName = "github.com/born-ml/spsolve/internal/hlo"

// Target is a native custom-call entry point. result is preallocated with the
// op's result spec and must be filled in place. ctx is the context passed to
// Execute.
type Target func(ctx context.Context, operands []*tensor.RawTensor, result *tensor.RawTensor) error

// TargetTable resolves custom-call target names.
type TargetTable interface {
	Target(name string) (Target, bool)
}

// TargetMap is a TargetTable backed by a map.
type TargetMap map[string]Target

// Target implements TargetTable.
func (m TargetMap) Target(name string) (Target, bool) {
	t, ok := m[name]
	return t, ok
}

// Options configure compilation.
type Options struct {
	Backend tensor.Backend // layout ops; defaults to cpu.New()
	Tracer  trace.Tracer   // defaults to the global provider's DefaultTracerName tracer
}

// Executable is a compiled computation with every custom call resolved.
type Executable struct {
	comp    *Computation
	targets map[string]Target
	backend tensor.Backend
	tracer  trace.Tracer
}

// Compile resolves every custom call of comp against targets. An unknown
// target is a compile error.
func Compile(comp *Computation, targets TargetTable, opts Options) (*Executable, error) {
	if comp == nil {
		return nil, errors.New("hlo: Compile of nil computation")
	}
	resolved := make(map[string]Target)
	for _, call := range comp.CustomCalls() {
		if _, done := resolved[call.target]; done {
			continue
		}
		var fn Target
		var ok bool
		if targets != nil {
			fn, ok = targets.Target(call.target)
		}
		if !ok {
			return nil, errors.Wrapf(ErrUnknownTarget, "computation %q calls %q", comp.name, call.target)
		}
		resolved[call.target] = fn
	}

	if opts.Backend == nil {
		opts.Backend = cpu.New()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(DefaultTracerName)
	}
	return &Executable{comp: comp, targets: resolved, backend: opts.Backend, tracer: opts.Tracer}, nil
}

// Computation returns the compiled computation.
func (e *Executable) Computation() *Computation {
	return e.comp
}

// Execute runs the computation on args, which must match the parameter specs.
func (e *Executable) Execute(ctx context.Context, args ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	ctx, span := e.tracer.Start(ctx, "hlo.Execute", trace.WithAttributes(
		attribute.String("computation", e.comp.name),
		attribute.Int("ops", len(e.comp.nodes)),
	))
	defer span.End()

	out, err := e.run(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (e *Executable) run(ctx context.Context, args []*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(args) != len(e.comp.params) {
		return nil, errors.Errorf("hlo: %q takes %d arguments, got %d", e.comp.name, len(e.comp.params), len(args))
	}
	for i, arg := range args {
		if arg == nil || !arg.Spec().Equal(e.comp.params[i]) {
			return nil, errors.Errorf("hlo: %q argument %d is %v, want %s", e.comp.name, i, specOf(arg), e.comp.params[i])
		}
	}

	values := make([]*tensor.RawTensor, len(e.comp.nodes))
	for _, op := range e.comp.nodes {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "hlo: %q interrupted", e.comp.name)
		}
		switch op.kind {
		case ParameterKind:
			values[op.id] = args[op.param]
		case ConstantKind:
			values[op.id] = op.literal
		case ReshapeKind:
			values[op.id] = e.backend.Reshape(values[op.operands[0].id], op.spec.Shape)
		case TransposeKind:
			values[op.id] = e.backend.Transpose(values[op.operands[0].id], op.perm...)
		case CustomCallKind:
			out, err := e.customCall(ctx, op, values)
			if err != nil {
				return nil, err
			}
			values[op.id] = out
		default:
			return nil, errors.Errorf("hlo: unknown op kind %d", op.kind)
		}
	}
	return values[e.comp.root.id], nil
}

func (e *Executable) customCall(ctx context.Context, op *Op, values []*tensor.RawTensor) (*tensor.RawTensor, error) {
	ctx, span := e.tracer.Start(ctx, "hlo.CustomCall", trace.WithAttributes(
		attribute.String("target", op.target),
		attribute.Int("operands", len(op.operands)),
		attribute.Int("result_elements", op.spec.Shape.NumElements()),
	))
	defer span.End()

	operands := make([]*tensor.RawTensor, len(op.operands))
	for i, in := range op.operands {
		v := values[in.id]
		if !v.Shape().Equal(op.operandShapes[i]) {
			err := errors.Errorf("hlo: custom call %q operand %d has shape %v, layout declares %v",
				op.target, i, v.Shape(), op.operandShapes[i])
			span.RecordError(err)
			return nil, err
		}
		operands[i] = v
	}

	result, err := tensor.NewRaw(op.spec.Shape, op.spec.DType, tensor.CPU)
	if err != nil {
		return nil, errors.Wrapf(err, "hlo: custom call %q result", op.target)
	}
	if err := e.targets[op.target](ctx, operands, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrapf(err, "hlo: custom call %q", op.target)
	}
	return result, nil
}

func specOf(t *tensor.RawTensor) any {
	if t == nil {
		return "nil"
	}
	return t.Spec()
}
