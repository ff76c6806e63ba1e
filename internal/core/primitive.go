package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/born-ml/spsolve/internal/hlo"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Primitive is a named operator of the framework. Primitives are compared by
// identity; the name is used for registration checks and logs.
type Primitive struct {
	name string
}

// NewPrimitive creates a primitive.
func NewPrimitive(name string) *Primitive {
	return &Primitive{name: name}
}

// Name returns the primitive name.
func (p *Primitive) Name() string {
	return p.name
}

// String implements fmt.Stringer.
func (p *Primitive) String() string {
	return p.name
}

// Rule signatures. params is the primitive-specific parameter value passed to Bind.
type (
	// AbstractEvalFunc infers the result from the operand specs and validates them.
	AbstractEvalFunc func(params any, args []tensor.Spec) (tensor.Spec, error)

	// ImplFunc evaluates the primitive eagerly on the context backend.
	ImplFunc func(c *Context, params any, args []*tensor.RawTensor) (*tensor.RawTensor, error)

	// LowerFunc emits the primitive into a computation under construction.
	LowerFunc func(b *hlo.Builder, params any, args []*hlo.Op, specs []tensor.Spec) (*hlo.Op, error)

	// JVPFunc returns the primal output and its tangent.
	JVPFunc func(c *Context, params any, primals []Value, tangents []Tangent) (Value, Value, error)

	// TransposeFunc maps the output cotangent to cotangents of the wanted
	// inputs. Entries for unwanted inputs must be nil.
	TransposeFunc func(c *Context, params any, ct *tensor.RawTensor, inputs []*tensor.RawTensor, output *tensor.RawTensor, wanted []bool) ([]*tensor.RawTensor, error)

	// CheckTransposeFunc validates a reverse-mode request when the primitive is recorded.
	CheckTransposeFunc func(params any, wanted []bool) error

	// BatchFunc evaluates the primitive on operands whose axes[i] is mapped
	// (NotMapped for unbatched operands) and returns the result and its mapped axis.
	BatchFunc func(c *Context, params any, args []Value, axes []int) (Value, int, error)
)

// Rules is the set of hooks registered for one primitive.
//
// A primitive is evaluated eagerly with Impl when present, otherwise by
// lowering, compiling and executing. Structural lists operand positions that
// may never be differentiated or batched.
type Rules struct {
	AbstractEval   AbstractEvalFunc
	Impl           ImplFunc
	Lower          LowerFunc
	JVP            JVPFunc
	Transpose      TransposeFunc
	CheckTranspose CheckTransposeFunc
	Batch          BatchFunc
	Structural     []int
}

func (r Rules) isStructural(i int) bool {
	for _, s := range r.Structural {
		if s == i {
			return true
		}
	}
	return false
}

// Registry maps primitives to their rules. It is populated once and then
// frozen; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	rules  map[*Primitive]Rules
	names  map[string]*Primitive
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[*Primitive]Rules),
		names: make(map[string]*Primitive),
	}
}

// Register installs the rules of p. Registering a name twice or after Freeze
// is an error.
func (r *Registry) Register(p *Primitive, rules Rules) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s: %w", p, ErrFrozen)
	}
	if _, dup := r.names[p.name]; dup {
		return fmt.Errorf("register %s: primitive already registered", p)
	}
	if rules.AbstractEval == nil {
		return fmt.Errorf("register %s: abstract evaluation rule is required", p)
	}
	if rules.Impl == nil && rules.Lower == nil {
		return fmt.Errorf("register %s: either an implementation or a lowering is required", p)
	}
	r.rules[p] = rules
	r.names[p.name] = p
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the rules of p.
func (r *Registry) Lookup(p *Primitive) (Rules, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules, ok := r.rules[p]
	return rules, ok
}

// Names returns the registered primitive names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
