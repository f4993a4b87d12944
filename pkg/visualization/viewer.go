package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
)

// Viewer renders the per-slice field magnitude maps produced by a shim
// run as grayscale images.
type Viewer struct {
	// fields holds the complex field of every slice
	fields [][]complex128

	// dimensions of each slice
	width  int
	height int
}

// NewViewer creates a field-map viewer. Every slice must hold
// width*height pixels.
func NewViewer(fields [][]complex128, width, height int) (*Viewer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid slice dimensions %dx%d", width, height)
	}
	for i, f := range fields {
		if len(f) != width*height {
			return nil, fmt.Errorf("slice %d has %d pixels, expected %d", i, len(f), width*height)
		}
	}
	return &Viewer{
		fields: fields,
		width:  width,
		height: height,
	}, nil
}

// RenderSlice renders the magnitude of one slice's field as a 16-bit
// grayscale image, normalized to the slice maximum.
func (v *Viewer) RenderSlice(index int) (image.Image, error) {
	if index < 0 || index >= len(v.fields) {
		return nil, fmt.Errorf("slice index %d out of range [0,%d)", index, len(v.fields))
	}

	field := v.fields[index]
	var max float64
	for _, c := range field {
		if m := cmplx.Abs(c); m > max {
			max = m
		}
	}

	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	if max == 0 {
		return img, nil
	}
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			m := cmplx.Abs(field[y*v.width+x]) / max
			value := uint16(math.Max(0, math.Min(65535, m*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SaveSlice saves a rendered slice as a JPEG image.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveFieldMaps renders and saves every slice's field magnitude into
// outputDir, one file per slice.
func (v *Viewer) SaveFieldMaps(outputDir, prefix string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for i := range v.fields {
		img, err := v.RenderSlice(i)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_slice_%03d.jpg", prefix, i))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
