// Package core is the host framework for the sparse primitives: a registry of
// primitives and their rules, level-based dispatch of primitive applications
// through forward-mode, batching and eager evaluation, and the reverse-mode
// recording hook into the gradient tape.
package core

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/spsolve/internal/autodiff"
	"github.com/born-ml/spsolve/internal/backend/cpu"
	"github.com/born-ml/spsolve/internal/hlo"
	"github.com/born-ml/spsolve/internal/parallel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Options configure a Context.
type Options struct {
	Registry *Registry
	Targets  hlo.TargetTable
	Parallel parallel.Config
	Logger   *zerolog.Logger // defaults to the global zerolog logger
	Tracer   trace.Tracer    // defaults to the hlo package tracer
}

// Context carries the state of one traced computation: the eager backend and
// its gradient tape, the trace level counter and the native target table.
//
// A Context is not safe for concurrent use; create one per goroutine.
type Context struct {
	ctx      context.Context
	registry *Registry
	backend  *autodiff.AutodiffBackend[*cpu.CPUBackend]
	targets  hlo.TargetTable
	tracer   trace.Tracer
	par      parallel.Config
	logger   zerolog.Logger
	level    int
}

// NewContext creates a context bound to ctx for cancellation and tracing.
// Native kernels see opts.Parallel and opts.Logger through the Go context
// (parallel.FromContext, zerolog.Ctx).
func NewContext(ctx context.Context, opts Options) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ctx = logger.With().Str("component", "kernel").Logger().WithContext(ctx)
	ctx = parallel.WithConfig(ctx, opts.Parallel)
	return &Context{
		ctx:      ctx,
		registry: registry,
		backend:  autodiff.New(cpu.NewWithConfig(opts.Parallel)),
		targets:  opts.Targets,
		tracer:   opts.Tracer,
		par:      opts.Parallel,
		logger:   logger.With().Str("component", "core").Logger(),
	}
}

// Ctx returns the Go context the computation runs under.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Registry returns the primitive registry.
func (c *Context) Registry() *Registry {
	return c.registry
}

// Backend returns the eager backend. Operations on it are recorded on the
// tape when they touch a tracked tensor.
func (c *Context) Backend() tensor.Backend {
	return c.backend
}

// Tape returns the gradient tape.
func (c *Context) Tape() *autodiff.GradientTape {
	return c.backend.Tape()
}

// PlainBackend returns the backend without recording.
func (c *Context) PlainBackend() tensor.Backend {
	return c.backend.Inner()
}

// Parallel returns the parallel configuration of the eager backend and the
// derivative kernels.
func (c *Context) Parallel() parallel.Config {
	return c.par
}

// Logger returns the context logger.
func (c *Context) Logger() *zerolog.Logger {
	return &c.logger
}

// Level returns the current trace level; 0 means no transformation is active.
func (c *Context) Level() int {
	return c.level
}

// EnterLevel opens a new transformation level and returns it.
func (c *Context) EnterLevel() int {
	c.level++
	return c.level
}

// ExitLevel closes the innermost transformation level.
func (c *Context) ExitLevel() {
	c.level--
}
