// Package operator constructs the linear forward model used in RF shimming:
// the complex map from per-channel transmit weights to the resulting spatial
// field, via weighted superposition of the channel sensitivities. Operators
// are applied lazily; no dense matrix is materialized.
package operator

import (
	"errors"
	"fmt"

	"ptxshim/internal/models"
)

// ErrDimensionMismatch is returned when the shapes of sensitivity maps,
// weight vectors and field vectors are inconsistent.
var ErrDimensionMismatch = errors.New("operator: dimension mismatch")

// Linear is a complex-valued linear map with an adjoint.
//
// Apply computes dst = A*x and Adjoint computes dst = A^H*y. Both panic if
// the slice lengths do not match In() and Out(); shape validation against
// input data happens once, at construction time.
type Linear interface {
	// In returns the length of the weight (input) vector.
	In() int

	// Out returns the length of the field (output) vector.
	Out() int

	// Apply stores A*x into dst.
	Apply(dst, x []complex128)

	// Adjoint stores A^H*y into dst.
	Adjoint(dst, y []complex128)
}

// Forward is the per-slice forward operator built from a sensitivity map.
// It maps a weight vector of length Channels to a field of length
// Width*Height.
type Forward struct {
	sens     []complex128
	channels int
	pixels   int
}

// NewForward builds the forward operator for one slice. The sensitivity
// data length must equal Channels*Width*Height.
func NewForward(m *models.SensitivityMap) (*Forward, error) {
	if m == nil {
		return nil, fmt.Errorf("operator: nil sensitivity map: %w", ErrDimensionMismatch)
	}
	if m.Channels <= 0 || m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("operator: invalid map shape %dx%dx%d: %w",
			m.Channels, m.Height, m.Width, ErrDimensionMismatch)
	}
	if len(m.Data) != m.Channels*m.Pixels() {
		return nil, fmt.Errorf("operator: sensitivity data length %d does not match shape %dx%dx%d: %w",
			len(m.Data), m.Channels, m.Height, m.Width, ErrDimensionMismatch)
	}
	return &Forward{
		sens:     m.Data,
		channels: m.Channels,
		pixels:   m.Pixels(),
	}, nil
}

// In returns the number of transmit channels.
func (f *Forward) In() int { return f.channels }

// Out returns the number of spatial pixels.
func (f *Forward) Out() int { return f.pixels }

// Apply computes the weighted superposition field
//
//	dst[p] = sum_c x[c] * S[c][p]
func (f *Forward) Apply(dst, x []complex128) {
	if len(x) != f.channels || len(dst) != f.pixels {
		panic("operator: mismatched vector length in Apply")
	}
	for p := range dst {
		dst[p] = 0
	}
	for c := 0; c < f.channels; c++ {
		w := x[c]
		if w == 0 {
			continue
		}
		sc := f.sens[c*f.pixels : (c+1)*f.pixels]
		for p, s := range sc {
			dst[p] += w * s
		}
	}
}

// Adjoint computes the conjugate-transpose action
//
//	dst[c] = sum_p conj(S[c][p]) * y[p]
func (f *Forward) Adjoint(dst, y []complex128) {
	if len(y) != f.pixels || len(dst) != f.channels {
		panic("operator: mismatched vector length in Adjoint")
	}
	for c := 0; c < f.channels; c++ {
		sc := f.sens[c*f.pixels : (c+1)*f.pixels]
		var acc complex128
		for p, s := range sc {
			acc += complex(real(s), -imag(s)) * y[p]
		}
		dst[c] = acc
	}
}

// BlockDiag combines per-slice operators into a single map over the
// concatenation of all slices' weight vectors. Each block acts on its own
// weight sub-vector and outputs are concatenated.
type BlockDiag struct {
	blocks []Linear
	in     int
	out    int
}

// NewBlockDiag builds a block-diagonal operator from per-slice operators.
func NewBlockDiag(blocks ...Linear) (*BlockDiag, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("operator: block-diagonal operator needs at least one block: %w", ErrDimensionMismatch)
	}
	d := &BlockDiag{blocks: blocks}
	for _, b := range blocks {
		d.in += b.In()
		d.out += b.Out()
	}
	return d, nil
}

// In returns the total weight dimension across all blocks.
func (d *BlockDiag) In() int { return d.in }

// Out returns the total field dimension across all blocks.
func (d *BlockDiag) Out() int { return d.out }

// Apply applies every block to its own weight sub-vector.
func (d *BlockDiag) Apply(dst, x []complex128) {
	if len(x) != d.in || len(dst) != d.out {
		panic("operator: mismatched vector length in Apply")
	}
	xi, yi := 0, 0
	for _, b := range d.blocks {
		b.Apply(dst[yi:yi+b.Out()], x[xi:xi+b.In()])
		xi += b.In()
		yi += b.Out()
	}
}

// Adjoint applies every block's adjoint to its own field sub-vector.
func (d *BlockDiag) Adjoint(dst, y []complex128) {
	if len(y) != d.out || len(dst) != d.in {
		panic("operator: mismatched vector length in Adjoint")
	}
	xi, yi := 0, 0
	for _, b := range d.blocks {
		b.Adjoint(dst[xi:xi+b.In()], y[yi:yi+b.Out()])
		xi += b.In()
		yi += b.Out()
	}
}

// Shared broadcasts a single weight vector across all slices and
// concatenates the per-slice outputs. Its adjoint sums the per-slice
// adjoint contributions.
type Shared struct {
	blocks []Linear
	in     int
	out    int
}

// NewShared builds a shared-weight operator. All blocks must accept the
// same weight dimension.
func NewShared(blocks ...Linear) (*Shared, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("operator: shared operator needs at least one block: %w", ErrDimensionMismatch)
	}
	in := blocks[0].In()
	s := &Shared{blocks: blocks, in: in}
	for _, b := range blocks {
		if b.In() != in {
			return nil, fmt.Errorf("operator: shared operator blocks disagree on weight dimension (%d vs %d): %w",
				in, b.In(), ErrDimensionMismatch)
		}
		s.out += b.Out()
	}
	return s, nil
}

// In returns the shared weight dimension.
func (s *Shared) In() int { return s.in }

// Out returns the total field dimension across all slices.
func (s *Shared) Out() int { return s.out }

// Apply broadcasts x to every block and concatenates outputs.
func (s *Shared) Apply(dst, x []complex128) {
	if len(x) != s.in || len(dst) != s.out {
		panic("operator: mismatched vector length in Apply")
	}
	yi := 0
	for _, b := range s.blocks {
		b.Apply(dst[yi:yi+b.Out()], x)
		yi += b.Out()
	}
}

// Adjoint sums the adjoint action of every block on its field sub-vector.
func (s *Shared) Adjoint(dst, y []complex128) {
	if len(y) != s.out || len(dst) != s.in {
		panic("operator: mismatched vector length in Adjoint")
	}
	for i := range dst {
		dst[i] = 0
	}
	tmp := make([]complex128, s.in)
	yi := 0
	for _, b := range s.blocks {
		b.Adjoint(tmp, y[yi:yi+b.Out()])
		for i, v := range tmp {
			dst[i] += v
		}
		yi += b.Out()
	}
}

// Normal applies the normal-equations operator A^H*A. The result is
// Hermitian positive semi-definite for any A. Not safe for concurrent use;
// each solve owns its own Normal.
type Normal struct {
	a   Linear
	tmp []complex128
}

// NewNormal wraps an operator with its normal-equations form.
func NewNormal(a Linear) *Normal {
	return &Normal{a: a, tmp: make([]complex128, a.Out())}
}

// In returns the weight dimension.
func (n *Normal) In() int { return n.a.In() }

// Out returns the weight dimension; the normal operator is square.
func (n *Normal) Out() int { return n.a.In() }

// Apply computes dst = A^H*A*x.
func (n *Normal) Apply(dst, x []complex128) {
	n.a.Apply(n.tmp, x)
	n.a.Adjoint(dst, n.tmp)
}

// Adjoint is identical to Apply; the normal operator is Hermitian.
func (n *Normal) Adjoint(dst, y []complex128) {
	n.Apply(dst, y)
}
