package solver

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"ptxshim/pkg/operator"
)

// MagnitudeSettings holds the parameters of a magnitude least-squares solve.
type MagnitudeSettings struct {
	// X0 is an initial guess. If it is nil, the zero vector is used and
	// the first projection assumes zero phase everywhere.
	X0 []complex128

	// Tolerance is the threshold on residual improvement between outer
	// iterations. Zero means the default 1e-8.
	Tolerance float64

	// MaxIterations is the outer iteration cap. Zero means the default 100.
	MaxIterations int

	// InnerIterations caps the warm-started least-squares solve performed
	// at each outer iteration. Zero means the default 10.
	InnerIterations int

	// InnerTolerance is the relative tolerance of the inner solve. Zero
	// means the default 1e-8.
	InnerTolerance float64

	// Progress, if non-nil, is called once per outer iteration.
	Progress ProgressFunc

	// Cancel, if non-nil, is polled at the top of each outer iteration.
	Cancel func() bool
}

func defaultMagnitudeSettings(s *MagnitudeSettings) {
	if s.Tolerance == 0 {
		s.Tolerance = 1e-8
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = 100
	}
	if s.InnerIterations == 0 {
		s.InnerIterations = 10
	}
	if s.InnerTolerance == 0 {
		s.InnerTolerance = 1e-8
	}
}

// Magnitude solves the non-convex problem
//
//	minimize_x (1/2) ||A*x| - target|^2
//
// by Gerchberg-Saxton alternating projection: the current field A*x keeps
// its phase but has its magnitude replaced by the target, and a
// warm-started conjugate-gradient least-squares solve pulls the weights
// toward that retargeted field. The outer loop stops when the residual
// improvement drops below the tolerance or the iteration cap is reached.
//
// The problem is non-convex; convergence to a global minimum is not
// guaranteed and final values are not exactly reproducible across
// floating-point environments. The residual trend is the meaningful
// output.
func Magnitude(a operator.Linear, target []float64, settings MagnitudeSettings) (Result, error) {
	start := time.Now()

	if len(target) != a.Out() {
		return Result{}, fmt.Errorf("solver: target length %d does not match operator output dimension %d: %w",
			len(target), a.Out(), operator.ErrDimensionMismatch)
	}
	if settings.X0 != nil && len(settings.X0) != a.In() {
		return Result{}, fmt.Errorf("solver: initial guess length %d does not match operator input dimension %d: %w",
			len(settings.X0), a.In(), operator.ErrDimensionMismatch)
	}
	defaultMagnitudeSettings(&settings)

	n, m := a.In(), a.Out()
	x := make([]complex128, n)
	field := make([]complex128, m)
	if settings.X0 != nil {
		copy(x, settings.X0)
		a.Apply(field, x)
	}
	retarget := make([]complex128, m)

	res := Result{X: x, ResidualNorm: magnitudeResidual(field, target)}
	prev := math.Inf(1)

	for res.Iterations < settings.MaxIterations {
		if settings.Cancel != nil && settings.Cancel() {
			res.Runtime = time.Since(start)
			return res, ErrCanceled
		}
		if math.Abs(prev-res.ResidualNorm) <= settings.Tolerance {
			res.Converged = true
			break
		}

		// Project onto the magnitude-constraint set: keep the current
		// phase, impose the target magnitude. Zero-field pixels get
		// phase zero.
		for i, f := range field {
			if r := cmplx.Abs(f); r > 0 {
				retarget[i] = complex(target[i]/r, 0) * f
			} else {
				retarget[i] = complex(target[i], 0)
			}
		}

		inner, err := LeastSquares(a, retarget, Settings{
			X0:            x,
			Tolerance:     settings.InnerTolerance,
			MaxIterations: settings.InnerIterations,
		})
		if err != nil {
			res.Runtime = time.Since(start)
			return res, err
		}
		copy(x, inner.X)
		a.Apply(field, x)

		prev = res.ResidualNorm
		res.Iterations++
		res.ResidualNorm = magnitudeResidual(field, target)
		if settings.Progress != nil {
			settings.Progress(res.Iterations, res.ResidualNorm)
		}
	}

	res.Runtime = time.Since(start)
	return res, nil
}

// magnitudeResidual computes ||A*x| - target| over the field.
func magnitudeResidual(field []complex128, target []float64) float64 {
	var sum float64
	for i, f := range field {
		d := cmplx.Abs(f) - target[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
