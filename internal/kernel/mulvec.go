package kernel

import (
	"github.com/rs/zerolog"

	"github.com/born-ml/spsolve/internal/parallel"
)

// MulVec computes out_{k,r} = A_k · b_{k,r} for every batch k and operand r.
// Duplicate COO entries contribute additively.
func MulVec[T Scalar](p Problem[T], out []T, cfg parallel.Config) error {
	if err := p.Validate(); err != nil {
		return err
	}

	n := p.NCol

	parallel.For(p.NLhs*p.NRhs, func(kr int) {
		k := kr / p.NRhs
		base := kr * n // k*n_rhs*n + r*n
		values := p.Ax[k*p.NNZ : (k+1)*p.NNZ]
		dst := out[base : base+n]
		src := p.B[base : base+n]

		for i := range dst {
			dst[i] = 0
		}
		for e, v := range values {
			dst[p.Ai[e]] += v * src[p.Aj[e]]
		}
	}, cfg)
	return nil
}

func mulVec[T Scalar](p Problem[T], out []T, cfg parallel.Config, _ *zerolog.Logger) error {
	return MulVec(p, out, cfg)
}
