// Package hlo is a small compiled backend: lowering rules record operations on
// a Builder, the resulting Computation is compiled against a table of native
// custom-call targets and executed on the CPU.
//
// The operation set is deliberately narrow. It covers what the sparse lowering
// rules emit: parameters, literal constants, reshapes, transposes and custom
// calls with an explicit operand layout.
package hlo

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/spsolve/internal/tensor"
)

// OpKind identifies the operation an Op node performs.
type OpKind int

// Operation kinds.
const (
	ParameterKind OpKind = iota
	ConstantKind
	ReshapeKind
	TransposeKind
	CustomCallKind
)

// String returns the lower-case operation name.
func (k OpKind) String() string {
	switch k {
	case ParameterKind:
		return "parameter"
	case ConstantKind:
		return "constant"
	case ReshapeKind:
		return "reshape"
	case TransposeKind:
		return "transpose"
	case CustomCallKind:
		return "custom-call"
	default:
		return "unknown"
	}
}

// Op is a node of a computation under construction.
type Op struct {
	builder  *Builder
	id       int
	kind     OpKind
	spec     tensor.Spec
	operands []*Op

	param         int
	literal       *tensor.RawTensor
	perm          []int
	target        string
	operandShapes []tensor.Shape
}

// Spec returns the abstract value the op produces.
func (o *Op) Spec() tensor.Spec {
	return o.spec
}

// Shape returns the shape of the op's result.
func (o *Op) Shape() tensor.Shape {
	return o.spec.Shape
}

// DType returns the element type of the op's result.
func (o *Op) DType() tensor.DataType {
	return o.spec.DType
}

// Kind returns the operation kind.
func (o *Op) Kind() OpKind {
	return o.kind
}

// Target returns the custom-call target name, or "" for other kinds.
func (o *Op) Target() string {
	return o.target
}

// Operands returns the op's inputs.
func (o *Op) Operands() []*Op {
	return o.operands
}

// OperandShapes returns the layout declared on a custom call.
func (o *Op) OperandShapes() []tensor.Shape {
	return o.operandShapes
}

// Builder records operations for one computation.
type Builder struct {
	name   string
	nodes  []*Op
	params []*Op
	built  bool
}

// NewBuilder creates an empty builder.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Name returns the computation name.
func (b *Builder) Name() string {
	return b.name
}

// CheckValid returns an error if the builder can no longer be used.
func (b *Builder) CheckValid() error {
	if b == nil {
		return errors.New("hlo: nil builder")
	}
	if b.built {
		return errors.Errorf("hlo: builder %q already built its computation", b.name)
	}
	return nil
}

func (b *Builder) newNode(kind OpKind, spec tensor.Spec, operands ...*Op) *Op {
	op := &Op{builder: b, id: len(b.nodes), kind: kind, spec: spec, operands: operands}
	b.nodes = append(b.nodes, op)
	return op
}

// verifyOperands checks the ops belong to this builder.
func (b *Builder) verifyOperands(opName string, ops ...*Op) error {
	if err := b.CheckValid(); err != nil {
		return err
	}
	for i, op := range ops {
		if op == nil {
			return errors.Errorf("hlo: %s: operand %d is nil", opName, i)
		}
		if op.builder != b {
			return errors.Errorf("hlo: %s: operand %d belongs to builder %q, not %q", opName, i, op.builder.name, b.name)
		}
	}
	return nil
}

// Parameter declares the next positional input of the computation.
func (b *Builder) Parameter(spec tensor.Spec) (*Op, error) {
	if err := b.CheckValid(); err != nil {
		return nil, err
	}
	if err := spec.Shape.Validate(); err != nil {
		return nil, errors.Wrapf(err, "hlo: parameter %d", len(b.params))
	}
	op := b.newNode(ParameterKind, tensor.Spec{Shape: spec.Shape.Clone(), DType: spec.DType})
	op.param = len(b.params)
	b.params = append(b.params, op)
	return op, nil
}

// ConstantLiteral embeds a literal value in the computation.
func (b *Builder) ConstantLiteral(value *tensor.RawTensor) (*Op, error) {
	if err := b.CheckValid(); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, errors.New("hlo: constant literal is nil")
	}
	op := b.newNode(ConstantKind, value.Spec())
	op.literal = value
	return op, nil
}

// Reshape reinterprets x with the given dimensions; the element count must not change.
func (b *Builder) Reshape(x *Op, dimensions ...int) (*Op, error) {
	if err := b.verifyOperands("Reshape", x); err != nil {
		return nil, err
	}
	shape := tensor.Shape(dimensions).Clone()
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrapf(err, "hlo: Reshape to %v", dimensions)
	}
	if shape.NumElements() != x.spec.Shape.NumElements() {
		return nil, errors.Errorf("hlo: Reshape %v to %v changes the element count", x.spec.Shape, shape)
	}
	return b.newNode(ReshapeKind, tensor.Spec{Shape: shape, DType: x.spec.DType}, x), nil
}

// Transpose permutes the axes of x: output axis i is input axis perm[i].
func (b *Builder) Transpose(x *Op, perm ...int) (*Op, error) {
	if err := b.verifyOperands("Transpose", x); err != nil {
		return nil, err
	}
	rank := len(x.spec.Shape)
	if len(perm) != rank {
		return nil, errors.Errorf("hlo: Transpose of rank-%d operand needs %d axes, got %v", rank, rank, perm)
	}
	seen := make([]bool, rank)
	shape := make(tensor.Shape, rank)
	for i, axis := range perm {
		if axis < 0 || axis >= rank || seen[axis] {
			return nil, errors.Errorf("hlo: Transpose permutation %v is invalid for rank %d", perm, rank)
		}
		seen[axis] = true
		shape[i] = x.spec.Shape[axis]
	}
	op := b.newNode(TransposeKind, tensor.Spec{Shape: shape, DType: x.spec.DType}, x)
	op.perm = append([]int(nil), perm...)
	return op, nil
}

// CustomCallWithLayout calls the native target with the given operands.
//
// operandShapes declares the exact layout the target expects for every
// operand; it must match the operand ops and is checked again against the
// actual buffers at execution time. result describes the single output.
func (b *Builder) CustomCallWithLayout(target string, operands []*Op, operandShapes []tensor.Shape, result tensor.Spec) (*Op, error) {
	if err := b.verifyOperands("CustomCall", operands...); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, errors.New("hlo: CustomCall target name is empty")
	}
	if len(operandShapes) != len(operands) {
		return nil, errors.Errorf("hlo: CustomCall %q declares %d operand shapes for %d operands",
			target, len(operandShapes), len(operands))
	}
	for i, op := range operands {
		if !op.spec.Shape.Equal(operandShapes[i]) {
			return nil, errors.Errorf("hlo: CustomCall %q operand %d has shape %v, layout declares %v",
				target, i, op.spec.Shape, operandShapes[i])
		}
	}
	if err := result.Shape.Validate(); err != nil {
		return nil, errors.Wrapf(err, "hlo: CustomCall %q result", target)
	}

	op := b.newNode(CustomCallKind, tensor.Spec{Shape: result.Shape.Clone(), DType: result.DType}, operands...)
	op.target = target
	op.operandShapes = make([]tensor.Shape, len(operandShapes))
	for i, s := range operandShapes {
		op.operandShapes[i] = s.Clone()
	}
	return op, nil
}

// Build finalizes the computation with root as its single output.
// The builder cannot be used afterwards.
func (b *Builder) Build(root *Op) (*Computation, error) {
	if err := b.verifyOperands("Build", root); err != nil {
		return nil, err
	}
	b.built = true

	params := make([]tensor.Spec, len(b.params))
	for i, p := range b.params {
		params[i] = p.spec
	}
	return &Computation{name: b.name, params: params, nodes: b.nodes[:root.id+1], root: root}, nil
}

// Computation is a finalized, immutable sequence of operations.
type Computation struct {
	name   string
	params []tensor.Spec
	nodes  []*Op
	root   *Op
}

// Name returns the computation name.
func (c *Computation) Name() string {
	return c.name
}

// Parameters returns the specs of the positional inputs.
func (c *Computation) Parameters() []tensor.Spec {
	return c.params
}

// Result returns the spec of the computation output.
func (c *Computation) Result() tensor.Spec {
	return c.root.spec
}

// CustomCalls returns the custom-call ops in program order.
func (c *Computation) CustomCalls() []*Op {
	var calls []*Op
	for _, op := range c.nodes {
		if op.kind == CustomCallKind {
			calls = append(calls, op)
		}
	}
	return calls
}

// String renders the computation one op per line, for debug logs.
func (c *Computation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "computation %s {\n", c.name)
	for _, op := range c.nodes {
		fmt.Fprintf(&sb, "  %%%d = %s %s", op.id, op.kind, op.spec)
		switch op.kind {
		case ParameterKind:
			fmt.Fprintf(&sb, " param=%d", op.param)
		case TransposeKind:
			fmt.Fprintf(&sb, " perm=%v", op.perm)
		case CustomCallKind:
			fmt.Fprintf(&sb, " target=%s", op.target)
		}
		for _, in := range op.operands {
			fmt.Fprintf(&sb, " %%%d", in.id)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "  root %%%d\n}", c.root.id)
	return sb.String()
}
