// Package phantom generates synthetic parallel-transmit inputs: birdcage
// style sensitivity maps, support masks and uniform targets. It is used by
// the demo binary and by tests that need realistic map shapes without
// measured data.
package phantom

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"ptxshim/internal/models"
)

// Birdcage returns a sensitivity map for a circular array of transmit
// elements placed around the slice. coilRadius is the element circle
// radius as a fraction of the slice half-extent. Each channel has a
// magnitude falling off with distance from its element and a phase
// combining the element's azimuthal position with field propagation.
func Birdcage(channels, width, height int, coilRadius float64) *models.SensitivityMap {
	data := make([]complex128, channels*width*height)
	cx := float64(width-1) / 2
	cy := float64(height-1) / 2
	r0 := coilRadius * math.Min(cx, cy) * 2
	// Wavenumber chosen so the phase varies by about a radian across the
	// slice, similar in scale to B1 maps at 7T.
	k := 1.0 / math.Max(cx, cy)

	pixels := width * height
	for c := 0; c < channels; c++ {
		theta := 2 * math.Pi * float64(c) / float64(channels)
		ex := cx + r0*math.Cos(theta)
		ey := cy + r0*math.Sin(theta)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx := float64(x) - ex
				dy := float64(y) - ey
				d := math.Sqrt(dx*dx + dy*dy)
				mag := r0 / (r0 + d)
				phase := theta + k*d
				data[c*pixels+y*width+x] = cmplx.Rect(mag, phase)
			}
		}
	}
	return &models.SensitivityMap{
		Data:     data,
		Channels: channels,
		Width:    width,
		Height:   height,
	}
}

// Uniform returns a map with unit sensitivity on every channel and pixel.
func Uniform(channels, width, height int) *models.SensitivityMap {
	data := make([]complex128, channels*width*height)
	for i := range data {
		data[i] = 1
	}
	return &models.SensitivityMap{
		Data:     data,
		Channels: channels,
		Width:    width,
		Height:   height,
	}
}

// DiscMask returns a binary support mask that is 1 inside a centered disc
// whose radius is the given fraction of the slice half-extent.
func DiscMask(width, height int, radius float64) []float64 {
	mask := make([]float64, width*height)
	cx := float64(width-1) / 2
	cy := float64(height-1) / 2
	r := radius * math.Min(cx, cy)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			if math.Sqrt(dx*dx+dy*dy) <= r {
				mask[y*width+x] = 1
			}
		}
	}
	return mask
}

// Smooth low-pass filters every channel of a sensitivity map in the
// Fourier domain, keeping spatial frequencies up to cutoff times the
// Nyquist frequency. cutoff 1 keeps everything; smaller values mimic the
// smoothness of measured B1 maps.
func Smooth(m *models.SensitivityMap, cutoff float64) *models.SensitivityMap {
	w, h := m.Width, m.Height
	rowFFT := fourier.NewCmplxFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	out := &models.SensitivityMap{
		Data:     make([]complex128, len(m.Data)),
		Channels: m.Channels,
		Width:    w,
		Height:   h,
		Index:    m.Index,
		Position: m.Position,
	}

	grid := make([]complex128, w*h)
	col := make([]complex128, h)
	for c := 0; c < m.Channels; c++ {
		copy(grid, m.Channel(c))

		// Row-wise forward transform.
		for y := 0; y < h; y++ {
			row := grid[y*w : (y+1)*w]
			rowFFT.Coefficients(row, row)
		}
		// Column-wise forward transform.
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				col[y] = grid[y*w+x]
			}
			colFFT.Coefficients(col, col)
			for y := 0; y < h; y++ {
				grid[y*w+x] = col[y]
			}
		}

		// Zero coefficients beyond the cutoff frequency.
		maxFX := cutoff * float64(w) / 2
		maxFY := cutoff * float64(h) / 2
		for ky := 0; ky < h; ky++ {
			fy := float64(min(ky, h-ky))
			for kx := 0; kx < w; kx++ {
				fx := float64(min(kx, w-kx))
				if fx > maxFX || fy > maxFY {
					grid[ky*w+kx] = 0
				}
			}
		}

		// Inverse transforms; the round trip scales by w*h.
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				col[y] = grid[y*w+x]
			}
			colFFT.Sequence(col, col)
			for y := 0; y < h; y++ {
				grid[y*w+x] = col[y]
			}
		}
		scale := complex(1/float64(w*h), 0)
		for y := 0; y < h; y++ {
			row := grid[y*w : (y+1)*w]
			rowFFT.Sequence(row, row)
			for x := range row {
				row[x] *= scale
			}
		}

		copy(out.Channel(c), grid)
	}
	return out
}
