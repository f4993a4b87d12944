// Package solver provides the iterative solvers used for RF shimming: a
// conjugate-gradient least-squares solver for the linear problem and a
// Gerchberg-Saxton alternating-projection solver for the magnitude-only
// problem. Both run as sequential loops with a termination predicate;
// reaching the iteration cap is a normal best-effort outcome, not an error.
package solver

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/blas/cblas128"

	"ptxshim/pkg/operator"
)

// ErrCanceled is returned when a solve is stopped through the Cancel hook.
var ErrCanceled = errors.New("solver: canceled")

// ProgressFunc reports the iteration number and current residual norm.
type ProgressFunc func(iteration int, residual float64)

// Settings holds the parameters of a least-squares solve.
type Settings struct {
	// X0 is an initial guess. If it is nil, the zero vector is used.
	// If it is not nil, its length must equal the operator's input
	// dimension.
	X0 []complex128

	// Tolerance is the relative residual tolerance: the solve converges
	// when |b - A*x| <= Tolerance * |b|. Zero means the default 1e-6.
	Tolerance float64

	// MaxIterations is the limit on the number of iterations. Zero means
	// twice the input dimension.
	MaxIterations int

	// Progress, if non-nil, is called once per iteration.
	Progress ProgressFunc

	// Cancel, if non-nil, is polled at the top of each iteration; when it
	// returns true the solve stops with ErrCanceled.
	Cancel func() bool
}

// Result holds the outcome of a solve.
type Result struct {
	// X is the final iterate.
	X []complex128

	// ResidualNorm is the final residual norm. For the least-squares
	// solver this is |b - A*x|; for the magnitude solver it is
	// ||A*x| - target|.
	ResidualNorm float64

	// Iterations is the number of iterations performed.
	Iterations int

	// Converged reports whether the tolerance was met before the
	// iteration cap.
	Converged bool

	// Runtime is the approximate duration of the solve.
	Runtime time.Duration
}

func defaultSettings(s *Settings, dim int) {
	if s.Tolerance == 0 {
		s.Tolerance = 1e-6
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = 2 * dim
	}
}

// cvec adapts a complex slice to a BLAS level-1 vector.
func cvec(x []complex128) cblas128.Vector {
	return cblas128.Vector{N: len(x), Inc: 1, Data: x}
}

func checkDims(a operator.Linear, rhsLen int, x0 []complex128) error {
	if rhsLen != a.Out() {
		return fmt.Errorf("solver: right-hand side length %d does not match operator output dimension %d: %w",
			rhsLen, a.Out(), operator.ErrDimensionMismatch)
	}
	if x0 != nil && len(x0) != a.In() {
		return fmt.Errorf("solver: initial guess length %d does not match operator input dimension %d: %w",
			len(x0), a.In(), operator.ErrDimensionMismatch)
	}
	return nil
}
