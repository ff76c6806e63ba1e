package sparse

import (
	"github.com/born-ml/spsolve/internal/core"
	"github.com/born-ml/spsolve/internal/lax"
)

// Forward-mode rules. Operands are (Ai, Aj, Ax, b); index tangents are
// rejected by the framework before a rule runs, so only tangents[2] and
// tangents[3] can be present.

// solveJVP differentiates A x = b:
//
//	dA x + A dx = db  =>  dx = solve(A, db - dA x)
func solveJVP(v variant) core.JVPFunc {
	return func(c *core.Context, _ any, primals []core.Value, tangents []core.Tangent) (core.Value, core.Value, error) {
		ai, aj, ax := primals[0], primals[1], primals[2]
		x, err := c.Bind(v.prim, nil, primals...)
		if err != nil {
			return nil, nil, err
		}

		rhs, err := tangents[3].Value()
		if err != nil {
			return nil, nil, err
		}
		if !tangents[2].IsZero() {
			dax, err := tangents[2].Value()
			if err != nil {
				return nil, nil, err
			}
			dAx, err := c.Bind(v.sibling(OpMultiply).prim, nil, ai, aj, dax, x)
			if err != nil {
				return nil, nil, err
			}
			if rhs, err = lax.Sub(c, rhs, dAx); err != nil {
				return nil, nil, err
			}
		}

		dx, err := c.Bind(v.prim, nil, ai, aj, ax, rhs)
		if err != nil {
			return nil, nil, err
		}
		return x, dx, nil
	}
}

// solveJVPCompat re-solves against the right-hand side tangent only:
// dx = solve(A, db). The matrix-value tangent does not contribute.
func solveJVPCompat(v variant) core.JVPFunc {
	return func(c *core.Context, _ any, primals []core.Value, tangents []core.Tangent) (core.Value, core.Value, error) {
		x, err := c.Bind(v.prim, nil, primals...)
		if err != nil {
			return nil, nil, err
		}
		db, err := tangents[3].Value()
		if err != nil {
			return nil, nil, err
		}
		dx, err := c.Bind(v.prim, nil, primals[0], primals[1], primals[2], db)
		if err != nil {
			return nil, nil, err
		}
		return x, dx, nil
	}
}

// multiplyJVP differentiates y = A v, which is bilinear in (Ax, v):
//
//	dy = dA v + A dv
func multiplyJVP(v variant) core.JVPFunc {
	return func(c *core.Context, _ any, primals []core.Value, tangents []core.Tangent) (core.Value, core.Value, error) {
		ai, aj, ax, vec := primals[0], primals[1], primals[2], primals[3]
		y, err := c.Bind(v.prim, nil, primals...)
		if err != nil {
			return nil, nil, err
		}

		var dy core.Value
		if !tangents[2].IsZero() {
			dax, err := tangents[2].Value()
			if err != nil {
				return nil, nil, err
			}
			if dy, err = c.Bind(v.prim, nil, ai, aj, dax, vec); err != nil {
				return nil, nil, err
			}
		}
		if !tangents[3].IsZero() {
			dv, err := tangents[3].Value()
			if err != nil {
				return nil, nil, err
			}
			term, err := c.Bind(v.prim, nil, ai, aj, ax, dv)
			if err != nil {
				return nil, nil, err
			}
			if dy == nil {
				dy = term
			} else if dy, err = lax.Add(c, dy, term); err != nil {
				return nil, nil, err
			}
		}
		if dy == nil {
			zeros, err := lax.ZerosLike(y)
			if err != nil {
				return nil, nil, err
			}
			dy = zeros
		}
		return y, dy, nil
	}
}
