package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/hlo"
	"github.com/born-ml/spsolve/internal/tensor"
)

// layout is the kernel-facing view of one call: n_lhs matrices of size
// n_col x n_col with nnz entries each, and n_rhs operand columns per matrix.
type layout struct {
	nLhs, nCol, nRhs, nnz int
	batched               bool         // values carry a leading batch axis
	trailing              tensor.Shape // operand dims after n_col
	result                tensor.Spec
}

// analyze derives the layout from the operand specs (Ai, Aj, Ax, b), all
// already resolved to the element types of v.
//
// Values are [batch?, nnz] and the operand is [batch?, n_col, trailing...].
// Every violation is a configuration error.
func analyze(v variant, specs []tensor.Spec) (layout, error) {
	var l layout
	if len(specs) != 4 {
		return l, core.Configf("%s takes 4 operands, got %d", v.prim, len(specs))
	}
	ai, aj, ax, b := specs[0], specs[1], specs[2], specs[3]

	switch len(ax.Shape) {
	case 1:
		l.nLhs, l.nnz = 1, ax.Shape[0]
	case 2:
		l.batched = true
		l.nLhs, l.nnz = ax.Shape[0], ax.Shape[1]
	default:
		return l, core.Configf("%s: values %v: at most one batch dimension is supported", v.prim, ax.Shape)
	}

	for i, idx := range []tensor.Spec{ai, aj} {
		if idx.DType != tensor.Int32 || len(idx.Shape) != 1 || idx.Shape[0] != l.nnz {
			return l, core.Configf("%s: index operand %d is %s, want int32[%d]", v.prim, i, idx, l.nnz)
		}
	}
	if ax.DType != v.dtype || b.DType != v.dtype {
		return l, core.Configf("%s: values %s and operand %s must be %s", v.prim, ax, b, v.dtype)
	}

	dims := b.Shape
	if l.batched {
		if len(dims) < 2 {
			return l, core.Configf("%s: batched values need an operand [batch, n_col, ...], got %v", v.prim, dims)
		}
		if dims[0] != l.nLhs {
			return l, core.Configf("%s: batch dimension of values (%d) and operand (%d) don't match", v.prim, l.nLhs, dims[0])
		}
		dims = dims[1:]
	}
	if len(dims) < 1 {
		return l, core.Configf("%s: operand must have at least one dimension", v.prim)
	}

	l.nCol = dims[0]
	l.trailing = dims[1:].Clone()
	l.nRhs = l.trailing.NumElements()
	l.result = tensor.Spec{Shape: b.Shape.Clone(), DType: v.dtype}
	return l, nil
}

// flatSize is the length of the flattened operand and result buffers.
func (l layout) flatSize() int {
	return l.nLhs * l.nRhs * l.nCol
}

// lowerOperands flattens the values to [n_lhs*nnz] and reorders the operand
// from [n_lhs, n_col, n_rhs] to [n_lhs, n_rhs, n_col] before flattening, so
// the n_col entries of one operand column are contiguous.
func (l layout) lowerOperands(b *hlo.Builder, ax, rhs *hlo.Op) (*hlo.Op, *hlo.Op, error) {
	flatAx, err := b.Reshape(ax, l.nLhs*l.nnz)
	if err != nil {
		return nil, nil, err
	}
	rhs, err = b.Reshape(rhs, l.nLhs, l.nCol, l.nRhs)
	if err != nil {
		return nil, nil, err
	}
	if rhs, err = b.Transpose(rhs, 0, 2, 1); err != nil {
		return nil, nil, err
	}
	flatRhs, err := b.Reshape(rhs, l.flatSize())
	if err != nil {
		return nil, nil, err
	}
	return flatAx, flatRhs, nil
}

// restoreResult undoes the operand reordering on the flat kernel result.
func (l layout) restoreResult(b *hlo.Builder, flat *hlo.Op) (*hlo.Op, error) {
	out, err := b.Reshape(flat, l.nLhs, l.nRhs, l.nCol)
	if err != nil {
		return nil, err
	}
	if out, err = b.Transpose(out, 0, 2, 1); err != nil {
		return nil, err
	}
	return b.Reshape(out, l.result.Shape...)
}
