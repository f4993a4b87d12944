// Package shim provides the high-level RF-shimming drivers: static shim
// solves over one or more slices, either with a single weight vector shared
// by every slice or with independent per-slice weight vectors solved
// concurrently. It also evaluates the achieved fields and their homogeneity.
package shim

import (
	"fmt"
	"math"
	"math/cmplx"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"ptxshim/internal/models"
	"ptxshim/pkg/operator"
	"ptxshim/pkg/solver"
)

// Mode selects how slices are coupled in a multi-slice solve.
type Mode int

const (
	// Joint solves for one weight vector shared by all slices.
	Joint Mode = iota

	// PerSlice solves every slice independently, in parallel.
	PerSlice
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "joint", "":
		return Joint, nil
	case "perslice", "per-slice":
		return PerSlice, nil
	default:
		return 0, fmt.Errorf("shim: unknown mode %q (must be joint or perslice)", s)
	}
}

// Options holds solver parameters for a shim run.
type Options struct {
	// Mode selects joint or per-slice solving.
	Mode Mode

	// Tolerance and MaxIterations are passed to the solver; zero values
	// select the solver defaults.
	Tolerance     float64
	MaxIterations int

	// InnerIterations and InnerTolerance control the nested
	// least-squares solve of the magnitude method.
	InnerIterations int
	InnerTolerance  float64

	// Workers caps the number of concurrent per-slice solves. Zero means
	// one goroutine per slice.
	Workers int

	// Progress, if non-nil, receives iteration reports. In per-slice
	// mode it is only attached to the first slice to keep the output
	// readable.
	Progress solver.ProgressFunc
}

// SliceResult holds the outcome of the solve for one slice.
type SliceResult struct {
	// Weights is the weight vector applied to this slice. In joint mode
	// every slice shares the same vector.
	Weights []complex128

	// Field is the achieved complex field over the slice.
	Field []complex128

	// ResidualNorm, Iterations and Converged mirror the solver result
	// for this slice. In joint mode they are identical across slices.
	ResidualNorm float64
	Iterations   int
	Converged    bool
}

// Homogeneity summarizes the achieved field magnitude over the target
// support: its mean, standard deviation and coefficient of variation.
type Homogeneity struct {
	Mean   float64
	StdDev float64
	CV     float64
}

// Result holds the outcome of a shim run.
type Result struct {
	// Weights is the full optimization variable: length Channels in
	// joint mode, Channels*Slices in per-slice mode.
	Weights []complex128

	// Slices holds the per-slice solve outcomes.
	Slices []SliceResult

	// ResidualNorm is the residual over all slices combined.
	ResidualNorm float64

	// Converged reports whether every solve met its tolerance.
	Converged bool

	// Homogeneity summarizes |field| over the target support.
	Homogeneity Homogeneity
}

// SolveLLS computes a linear least-squares shim: it finds weights whose
// forward field best matches the complex target on every slice.
func SolveLLS(maps []*models.SensitivityMap, target []complex128, opts Options) (*Result, error) {
	fwds, err := buildForwards(maps, len(target))
	if err != nil {
		return nil, err
	}

	if opts.Mode == Joint {
		shared, err := operator.NewShared(asLinear(fwds)...)
		if err != nil {
			return nil, err
		}
		b := tileComplex(target, len(fwds))
		r, err := solver.LeastSquares(shared, b, solver.Settings{
			Tolerance:     opts.Tolerance,
			MaxIterations: opts.MaxIterations,
			Progress:      opts.Progress,
		})
		if err != nil {
			return nil, err
		}
		return assembleJoint(fwds, r, magnitudes(target)), nil
	}

	results := make([]solver.Result, len(fwds))
	g := new(errgroup.Group)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i := range fwds {
		i := i
		g.Go(func() error {
			set := solver.Settings{
				Tolerance:     opts.Tolerance,
				MaxIterations: opts.MaxIterations,
			}
			if i == 0 {
				set.Progress = opts.Progress
			}
			r, err := solver.LeastSquares(fwds[i], target, set)
			if err != nil {
				return fmt.Errorf("slice %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assemblePerSlice(fwds, results, magnitudes(target)), nil
}

// SolveMLS computes a magnitude least-squares shim: it finds weights whose
// forward field matches the target magnitude on every slice, ignoring
// phase.
func SolveMLS(maps []*models.SensitivityMap, target []float64, opts Options) (*Result, error) {
	fwds, err := buildForwards(maps, len(target))
	if err != nil {
		return nil, err
	}

	magSettings := func(progress solver.ProgressFunc) solver.MagnitudeSettings {
		return solver.MagnitudeSettings{
			Tolerance:       opts.Tolerance,
			MaxIterations:   opts.MaxIterations,
			InnerIterations: opts.InnerIterations,
			InnerTolerance:  opts.InnerTolerance,
			Progress:        progress,
		}
	}

	if opts.Mode == Joint {
		shared, err := operator.NewShared(asLinear(fwds)...)
		if err != nil {
			return nil, err
		}
		b := tileFloats(target, len(fwds))
		r, err := solver.Magnitude(shared, b, magSettings(opts.Progress))
		if err != nil {
			return nil, err
		}
		return assembleJoint(fwds, r, target), nil
	}

	results := make([]solver.Result, len(fwds))
	g := new(errgroup.Group)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i := range fwds {
		i := i
		g.Go(func() error {
			var progress solver.ProgressFunc
			if i == 0 {
				progress = opts.Progress
			}
			r, err := solver.Magnitude(fwds[i], target, magSettings(progress))
			if err != nil {
				return fmt.Errorf("slice %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assemblePerSlice(fwds, results, target), nil
}

// Fields evaluates the achieved field on every slice for a given weight
// vector: length Channels in joint mode, Channels*Slices in per-slice
// mode.
func Fields(maps []*models.SensitivityMap, weights []complex128, mode Mode) ([][]complex128, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("shim: no slices: %w", operator.ErrDimensionMismatch)
	}
	fwds, err := buildForwards(maps, maps[0].Pixels())
	if err != nil {
		return nil, err
	}

	channels := fwds[0].In()
	wantLen := channels
	if mode == PerSlice {
		wantLen = channels * len(fwds)
	}
	if len(weights) != wantLen {
		return nil, fmt.Errorf("shim: weight vector length %d, want %d: %w",
			len(weights), wantLen, operator.ErrDimensionMismatch)
	}

	fields := make([][]complex128, len(fwds))
	for i, f := range fwds {
		w := weights
		if mode == PerSlice {
			w = weights[i*channels : (i+1)*channels]
		}
		fields[i] = make([]complex128, f.Out())
		f.Apply(fields[i], w)
	}
	return fields, nil
}

// Uniformity computes homogeneity statistics of |field| over the pixels
// where the target support is nonzero, pooled across slices.
func Uniformity(fields [][]complex128, support []float64) Homogeneity {
	var vals []float64
	for _, field := range fields {
		for p, v := range field {
			if support[p] != 0 {
				vals = append(vals, cmplx.Abs(v))
			}
		}
	}
	if len(vals) == 0 {
		return Homogeneity{}
	}
	h := Homogeneity{
		Mean:   stat.Mean(vals, nil),
		StdDev: stat.StdDev(vals, nil),
	}
	if len(vals) < 2 {
		h.StdDev = 0
	}
	if h.Mean != 0 {
		h.CV = h.StdDev / h.Mean
	}
	return h
}

func buildForwards(maps []*models.SensitivityMap, pixels int) ([]*operator.Forward, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("shim: no slices: %w", operator.ErrDimensionMismatch)
	}
	fwds := make([]*operator.Forward, len(maps))
	for i, m := range maps {
		f, err := operator.NewForward(m)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		if f.Out() != pixels {
			return nil, fmt.Errorf("shim: slice %d has %d pixels, target has %d: %w",
				i, f.Out(), pixels, operator.ErrDimensionMismatch)
		}
		if i > 0 && f.In() != fwds[0].In() {
			return nil, fmt.Errorf("shim: slice %d has %d channels, slice 0 has %d: %w",
				i, f.In(), fwds[0].In(), operator.ErrDimensionMismatch)
		}
		fwds[i] = f
	}
	return fwds, nil
}

func asLinear(fwds []*operator.Forward) []operator.Linear {
	ls := make([]operator.Linear, len(fwds))
	for i, f := range fwds {
		ls[i] = f
	}
	return ls
}

func tileComplex(v []complex128, n int) []complex128 {
	out := make([]complex128, 0, len(v)*n)
	for i := 0; i < n; i++ {
		out = append(out, v...)
	}
	return out
}

func tileFloats(v []float64, n int) []float64 {
	out := make([]float64, 0, len(v)*n)
	for i := 0; i < n; i++ {
		out = append(out, v...)
	}
	return out
}

func magnitudes(v []complex128) []float64 {
	out := make([]float64, len(v))
	for i, c := range v {
		out[i] = cmplx.Abs(c)
	}
	return out
}

func assembleJoint(fwds []*operator.Forward, r solver.Result, support []float64) *Result {
	res := &Result{
		Weights:      r.X,
		Slices:       make([]SliceResult, len(fwds)),
		ResidualNorm: r.ResidualNorm,
		Converged:    r.Converged,
	}
	fields := make([][]complex128, len(fwds))
	for i, f := range fwds {
		field := make([]complex128, f.Out())
		f.Apply(field, r.X)
		fields[i] = field
		res.Slices[i] = SliceResult{
			Weights:      r.X,
			Field:        field,
			ResidualNorm: r.ResidualNorm,
			Iterations:   r.Iterations,
			Converged:    r.Converged,
		}
	}
	res.Homogeneity = Uniformity(fields, support)
	return res
}

func assemblePerSlice(fwds []*operator.Forward, results []solver.Result, support []float64) *Result {
	channels := fwds[0].In()
	res := &Result{
		Weights:   make([]complex128, 0, channels*len(fwds)),
		Slices:    make([]SliceResult, len(fwds)),
		Converged: true,
	}
	var sumSq float64
	fields := make([][]complex128, len(fwds))
	for i, f := range fwds {
		r := results[i]
		field := make([]complex128, f.Out())
		f.Apply(field, r.X)
		fields[i] = field
		res.Weights = append(res.Weights, r.X...)
		res.Slices[i] = SliceResult{
			Weights:      r.X,
			Field:        field,
			ResidualNorm: r.ResidualNorm,
			Iterations:   r.Iterations,
			Converged:    r.Converged,
		}
		sumSq += r.ResidualNorm * r.ResidualNorm
		if !r.Converged {
			res.Converged = false
		}
	}
	res.ResidualNorm = math.Sqrt(sumSq)
	res.Homogeneity = Uniformity(fields, support)
	return res
}
