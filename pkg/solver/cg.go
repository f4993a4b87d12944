package solver

import (
	"time"

	"gonum.org/v1/gonum/blas/cblas128"

	"ptxshim/pkg/operator"
)

// LeastSquares solves
//
//	minimize_x (1/2) |A*x - b|^2
//
// by conjugate-gradient iteration on the normal equations A^H*A*x = A^H*b
// (the CGLS recurrences, which apply A and A^H once per iteration without
// forming A^H*A). The reported residual is the field-space norm |b - A*x|,
// which is non-increasing across iterations.
//
// If A has a null space, the solution is the minimum-norm least-squares
// solution reachable from the initial guess. Reaching the iteration cap
// terminates the solve normally with Converged set to false.
func LeastSquares(a operator.Linear, b []complex128, settings Settings) (Result, error) {
	start := time.Now()

	if err := checkDims(a, len(b), settings.X0); err != nil {
		return Result{}, err
	}
	n, m := a.In(), a.Out()
	defaultSettings(&settings, n)

	x := make([]complex128, n)
	r := make([]complex128, m)
	if settings.X0 != nil {
		copy(x, settings.X0)
		a.Apply(r, x)
		for i := range r {
			r[i] = b[i] - r[i]
		}
	} else {
		copy(r, b)
	}

	// s = A^H r is the gradient of the objective, p the search direction.
	s := make([]complex128, n)
	a.Adjoint(s, r)
	p := make([]complex128, n)
	copy(p, s)
	t := make([]complex128, m)

	bnorm := cblas128.Nrm2(cvec(b))
	if bnorm == 0 {
		bnorm = 1
	}
	gamma := real(cblas128.Dotc(cvec(s), cvec(s)))

	res := Result{X: x, ResidualNorm: cblas128.Nrm2(cvec(r))}
	if res.ResidualNorm <= settings.Tolerance*bnorm {
		res.Converged = true
		res.Runtime = time.Since(start)
		return res, nil
	}

	for res.Iterations < settings.MaxIterations {
		if settings.Cancel != nil && settings.Cancel() {
			res.Runtime = time.Since(start)
			return res, ErrCanceled
		}
		if gamma == 0 {
			// Gradient vanished: x already minimizes the objective.
			res.Converged = true
			break
		}

		a.Apply(t, p)
		tt := real(cblas128.Dotc(cvec(t), cvec(t)))
		if tt == 0 {
			// Search direction lies in the null space of A.
			break
		}
		alpha := complex(gamma/tt, 0)
		cblas128.Axpy(alpha, cvec(p), cvec(x))
		cblas128.Axpy(-alpha, cvec(t), cvec(r))

		a.Adjoint(s, r)
		gammaNext := real(cblas128.Dotc(cvec(s), cvec(s)))

		res.Iterations++
		res.ResidualNorm = cblas128.Nrm2(cvec(r))
		if settings.Progress != nil {
			settings.Progress(res.Iterations, res.ResidualNorm)
		}
		if res.ResidualNorm <= settings.Tolerance*bnorm {
			res.Converged = true
			break
		}

		beta := complex(gammaNext/gamma, 0)
		for i := range p {
			p[i] = s[i] + beta*p[i]
		}
		gamma = gammaNext
	}

	res.Runtime = time.Since(start)
	return res, nil
}
