// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package spsolve

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/hlo"
	"github.com/born-ml/spsolve/internal/kernel"
	"github.com/born-ml/spsolve/internal/lax"
	"github.com/born-ml/spsolve/internal/parallel"
	"github.com/born-ml/spsolve/internal/sparse"
	"github.com/born-ml/spsolve/internal/tensor"
	"github.com/born-ml/spsolve/internal/transform"
)

// DefaultTracerName is the instrumentation name used when Config.TracerName is empty.
const DefaultTracerName = "github.com/born-ml/spsolve"

// Value is an argument or result of a traced function: a concrete
// *tensor.RawTensor or a tracer introduced by a transformation.
type Value = core.Value

// Context carries the state of one traced computation.
// A Context is not safe for concurrent use.
type Context = core.Context

// Func is a function that can be transformed.
type Func = transform.Func

// NotMapped marks an argument that Vmap broadcasts instead of mapping.
const NotMapped = core.NotMapped

// DerivativeMode selects the derivative rules of Solve.
type DerivativeMode = sparse.DerivativeMode

// Derivative modes.
const (
	DerivativesExact  DerivativeMode = sparse.DerivativesExact
	DerivativesCompat DerivativeMode = sparse.DerivativesCompat
)

// ParallelConfig controls parallel execution of the eager backend and the
// derivative kernels.
type ParallelConfig = parallel.Config

// Errors returned by Solve and Multiply. Match them with errors.Is.
var (
	// ErrConfiguration reports an invalid call: wrong operand shapes or
	// element types, mapped or differentiated indices, bad axes.
	ErrConfiguration = core.ErrConfiguration

	// ErrSingular reports a singular system.
	ErrSingular = kernel.ErrSingular

	// ErrIndexOutOfRange reports a COO coordinate outside the matrix.
	ErrIndexOutOfRange = kernel.ErrIndexOutOfRange

	// ErrOperandShape reports a native kernel buffer of the wrong size.
	ErrOperandShape = kernel.ErrOperandShape
)

// Config configures an Engine.
type Config struct {
	// Parallel configures the eager backend, the native kernels and the
	// derivative kernels.
	Parallel ParallelConfig

	// Derivatives selects the solve derivative rules.
	Derivatives DerivativeMode

	// Logger receives debug logs of every call and warnings about
	// ill-conditioned systems. Defaults to the global zerolog logger.
	Logger *zerolog.Logger

	// TracerName names the OpenTelemetry tracer of compiled executions.
	// Defaults to DefaultTracerName.
	TracerName string
}

// DefaultConfig returns the default configuration: exact derivatives and
// parallel execution on all CPUs.
func DefaultConfig() Config {
	return Config{
		Parallel:    parallel.DefaultConfig(),
		Derivatives: DerivativesExact,
	}
}

// Engine owns the frozen primitive registry and the native target table.
// An Engine is safe for concurrent use; each goroutine creates its own
// Context with NewContext.
type Engine struct {
	cfg      Config
	registry *core.Registry
	targets  hlo.TargetTable
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// New registers the primitives and returns a ready Engine.
func New(cfg Config) (*Engine, error) {
	switch cfg.Derivatives {
	case DerivativesExact, DerivativesCompat:
	default:
		return nil, errors.Wrapf(ErrConfiguration, "unknown derivative mode %d", int(cfg.Derivatives))
	}

	registry := core.NewRegistry()
	if err := lax.Register(registry); err != nil {
		return nil, errors.Wrap(err, "register layout primitives")
	}
	if err := sparse.Register(registry, sparse.Options{Derivatives: cfg.Derivatives}); err != nil {
		return nil, errors.Wrap(err, "register sparse primitives")
	}
	registry.Freeze()

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	name := cfg.TracerName
	if name == "" {
		name = DefaultTracerName
	}

	e := &Engine{
		cfg:      cfg,
		registry: registry,
		targets:  sparse.Targets(),
		tracer:   otel.Tracer(name),
		logger:   logger,
	}
	e.logger.Debug().
		Stringer("derivatives", cfg.Derivatives).
		Strs("primitives", registry.Names()).
		Strs("targets", kernel.Names()).
		Msg("spsolve engine ready")
	return e, nil
}

// Config returns the configuration the engine was created with.
func (e *Engine) Config() Config {
	return e.cfg
}

// NewContext returns a fresh Context bound to ctx.
func (e *Engine) NewContext(ctx context.Context) *Context {
	logger := e.logger
	return core.NewContext(ctx, core.Options{
		Registry: e.registry,
		Targets:  e.targets,
		Parallel: e.cfg.Parallel,
		Logger:   &logger,
		Tracer:   e.tracer,
	})
}

// Solve returns x with A x = b for the COO matrix A = (ai, aj, ax).
//
// ax is [nnz] or [batch, nnz]; b is [n_col, ...] or [batch, n_col, ...] and
// x has the shape of b.
//
// Example:
//
//	x, err := engine.Solve(ctx, ai, aj, ax, b)
//	if errors.Is(err, spsolve.ErrSingular) {
//	    // handle singular system
//	}
func (e *Engine) Solve(ctx context.Context, ai, aj, ax, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return e.eager(ctx, Solve, ai, aj, ax, b)
}

// Multiply returns A v for the COO matrix A = (ai, aj, ax).
func (e *Engine) Multiply(ctx context.Context, ai, aj, ax, v *tensor.RawTensor) (*tensor.RawTensor, error) {
	return e.eager(ctx, Multiply, ai, aj, ax, v)
}

func (e *Engine) eager(ctx context.Context, op func(c *Context, ai, aj, ax, b Value) (Value, error), ai, aj, ax, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	out, err := op(e.NewContext(ctx), ai, aj, ax, b)
	if err != nil {
		return nil, err
	}
	raw, ok := core.Concrete(out)
	if !ok {
		return nil, errors.Errorf("spsolve: eager call produced a traced value %T", out)
	}
	return raw, nil
}

// Solve binds the solve primitive under c. Use it inside functions passed to
// Vmap, JVP, Grad and VJP.
func Solve(c *Context, ai, aj, ax, b Value) (Value, error) {
	return sparse.Solve(c, ai, aj, ax, b)
}

// Multiply binds the multiply primitive under c.
func Multiply(c *Context, ai, aj, ax, v Value) (Value, error) {
	return sparse.Multiply(c, ai, aj, ax, v)
}

// Vmap maps fn over the given axes of its arguments. inAxes holds one axis
// (or NotMapped) per argument; the mapped axis of the result is outAxis.
// Negative axes count from the end.
func Vmap(fn Func, inAxes []int, outAxis int) Func {
	return transform.Vmap(fn, inAxes, outAxis)
}

// JVP evaluates fn at primals and pushes tangents forward. A nil tangent is
// a symbolic zero.
func JVP(c *Context, fn Func, primals, tangents []Value) (Value, Value, error) {
	return transform.JVP(c, fn, primals, tangents)
}

// Grad returns the gradients of sum(fn(args...)) with respect to the
// arguments listed in argnums.
func Grad(c *Context, fn Func, argnums []int, args ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	return transform.Grad(c, fn, argnums, args...)
}

// VJP evaluates fn and pulls the cotangent ct back to the arguments listed
// in argnums. A nil ct is treated as ones.
func VJP(c *Context, fn Func, argnums []int, ct *tensor.RawTensor, args ...*tensor.RawTensor) (*tensor.RawTensor, []*tensor.RawTensor, error) {
	return transform.VJP(c, fn, argnums, ct, args...)
}
