// Package maskio loads target support masks for shimming: binary patterns
// marking the region where the field should be homogenized. Masks come
// either from a .npy array or from a DICOM magnitude image thresholded at
// a fraction of its maximum intensity.
package maskio

import (
	"fmt"
	"image"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"ptxshim/pkg/arrayio"
)

// FromNPY loads a 2-D array and binarizes it at threshold times its
// maximum value. Returns the mask together with its width and height.
func FromNPY(path string, threshold float64) ([]float64, int, int, error) {
	vals, width, height, err := arrayio.ReadTarget(path)
	if err != nil {
		return nil, 0, 0, err
	}
	return binarize(vals, threshold), width, height, nil
}

// FromDICOM loads the first frame of a DICOM file as a magnitude image
// and binarizes it at threshold times its maximum intensity.
func FromDICOM(path string, threshold float64) ([]float64, int, int, error) {
	dataset, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("error parsing DICOM file %s: %w", path, err)
	}

	el, err := dataset.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s has no pixel data: %w", path, err)
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, 0, 0, fmt.Errorf("%s contains no image frames", path)
	}

	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("error decoding frame from %s: %w", path, err)
	}

	mask, width, height := FromImage(img, threshold)
	return mask, width, height, nil
}

// FromImage binarizes a magnitude image at threshold times its maximum
// intensity. Exposed separately so decoded frames from any source can be
// turned into masks.
func FromImage(img image.Image, threshold float64) ([]float64, int, int) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	vals := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Magnitude images are grayscale; the red channel carries
			// the 16-bit intensity.
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			vals[y*width+x] = float64(r)
		}
	}
	return binarize(vals, threshold), width, height
}

func binarize(vals []float64, threshold float64) []float64 {
	var max float64
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	mask := make([]float64, len(vals))
	if max == 0 {
		return mask
	}
	cut := threshold * max
	for i, v := range vals {
		if v >= cut {
			mask[i] = 1
		}
	}
	return mask
}
