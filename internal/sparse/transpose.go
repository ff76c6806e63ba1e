package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/parallel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Reverse-mode rules. They run while the gradient tape is replayed, on
// concrete operands (Ai, Aj, Ax, b) and the recorded output.

// solveTranspose pulls ct back through x = A^-1 b:
//
//	ct_b = solve(A^T, ct)
//	ct_Ax[k, e] = -sum_r ct_b[k, Ai[e], r] * x[k, Aj[e], r]
//
// A^T is the same COO matrix with the index operands swapped.
func solveTranspose(v variant) core.TransposeFunc {
	return func(c *core.Context, _ any, ct *tensor.RawTensor, inputs []*tensor.RawTensor, output *tensor.RawTensor, wanted []bool) ([]*tensor.RawTensor, error) {
		ai, aj, ax := inputs[0], inputs[1], inputs[2]
		grads := make([]*tensor.RawTensor, len(inputs))

		ctB, err := c.BindRaw(v.prim, nil, aj, ai, ax, ct)
		if err != nil {
			return nil, err
		}
		if wanted[3] {
			grads[3] = ctB
		}
		if wanted[2] {
			if grads[2], err = pairProduct(c, v, inputs, ctB, output, -1); err != nil {
				return nil, err
			}
		}
		return grads, nil
	}
}

// solveTransposeCompat solves with A itself: ct_b = solve(A, ct). The matrix
// values receive no cotangent.
func solveTransposeCompat(v variant) core.TransposeFunc {
	return func(c *core.Context, _ any, ct *tensor.RawTensor, inputs []*tensor.RawTensor, _ *tensor.RawTensor, wanted []bool) ([]*tensor.RawTensor, error) {
		grads := make([]*tensor.RawTensor, len(inputs))
		ctB, err := c.BindRaw(v.prim, nil, inputs[0], inputs[1], inputs[2], ct)
		if err != nil {
			return nil, err
		}
		grads[3] = ctB
		return grads, nil
	}
}

// checkTransposeCompat rejects reverse passes that do not differentiate the
// right-hand side.
func checkTransposeCompat(v variant) core.CheckTransposeFunc {
	return func(_ any, wanted []bool) error {
		if !wanted[3] {
			return core.Configf("%s: compat derivatives only support reverse mode with respect to the right-hand side", v.prim)
		}
		return nil
	}
}

// multiplyTranspose pulls ct back through y = A v:
//
//	ct_v = multiply(A^T, ct)
//	ct_Ax[k, e] = sum_r ct[k, Ai[e], r] * v[k, Aj[e], r]
func multiplyTranspose(v variant) core.TransposeFunc {
	return func(c *core.Context, _ any, ct *tensor.RawTensor, inputs []*tensor.RawTensor, _ *tensor.RawTensor, wanted []bool) ([]*tensor.RawTensor, error) {
		ai, aj, ax, vec := inputs[0], inputs[1], inputs[2], inputs[3]
		grads := make([]*tensor.RawTensor, len(inputs))

		var err error
		if wanted[3] {
			if grads[3], err = c.BindRaw(v.prim, nil, aj, ai, ax, ct); err != nil {
				return nil, err
			}
		}
		if wanted[2] {
			if grads[2], err = pairProduct(c, v, inputs, ct, vec, 1); err != nil {
				return nil, err
			}
		}
		return grads, nil
	}
}

// pairProduct returns the cotangent of the matrix values of a bilinear COO
// product, sign * sum_r u[k, Ai[e], r] * w[k, Aj[e], r], shaped like Ax.
// u and w are shaped like the operand.
func pairProduct(c *core.Context, v variant, inputs []*tensor.RawTensor, u, w *tensor.RawTensor, sign float64) (*tensor.RawTensor, error) {
	specs := make([]tensor.Spec, len(inputs))
	for i, in := range inputs {
		specs[i] = in.Spec()
	}
	l, err := analyze(v, specs)
	if err != nil {
		return nil, err
	}

	out, err := tensor.Zeros(inputs[2].Shape(), v.dtype)
	if err != nil {
		return nil, err
	}
	ai, aj := inputs[0].AsInt32(), inputs[1].AsInt32()
	switch v.dtype {
	case tensor.Float64:
		accumulatePairs(l, ai, aj, u.AsFloat64(), w.AsFloat64(), out.AsFloat64(), sign, c.Parallel())
	case tensor.Complex128:
		accumulatePairs(l, ai, aj, u.AsComplex128(), w.AsComplex128(), out.AsComplex128(), complex(sign, 0), c.Parallel())
	}
	return out, nil
}

func accumulatePairs[T float64 | complex128](l layout, ai, aj []int32, u, w, out []T, sign T, cfg parallel.Config) {
	block := l.nCol * l.nRhs
	parallel.For(l.nLhs, func(k int) {
		uk, wk := u[k*block:(k+1)*block], w[k*block:(k+1)*block]
		outK := out[k*l.nnz : (k+1)*l.nnz]
		for e := 0; e < l.nnz; e++ {
			row := uk[int(ai[e])*l.nRhs : (int(ai[e])+1)*l.nRhs]
			col := wk[int(aj[e])*l.nRhs : (int(aj[e])+1)*l.nRhs]
			var acc T
			for r := 0; r < l.nRhs; r++ {
				acc += row[r] * col[r]
			}
			outK[e] = sign * acc
		}
	}, cfg)
}
