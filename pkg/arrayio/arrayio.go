// Package arrayio loads and saves the numeric arrays consumed and produced
// by a shim run: complex sensitivity maps and real target patterns come in
// as NumPy .npy files, solved weight vectors go out the same way.
package arrayio

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"

	"ptxshim/internal/models"
)

// ReadComplex reads a .npy file holding complex128 data and returns the
// flattened data together with the array shape.
func ReadComplex(path string) ([]complex128, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening array file: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading npy header from %s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, nil, fmt.Errorf("%s: Fortran-ordered arrays are not supported", path)
	}

	var data []complex128
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("error reading complex data from %s: %w", path, err)
	}
	return data, r.Header.Descr.Shape, nil
}

// ReadFloats reads a .npy file holding float64 data and returns the
// flattened data together with the array shape.
func ReadFloats(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening array file: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading npy header from %s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, nil, fmt.Errorf("%s: Fortran-ordered arrays are not supported", path)
	}

	var data []float64
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("error reading float data from %s: %w", path, err)
	}
	return data, r.Header.Descr.Shape, nil
}

// WriteComplex saves a complex vector as a 1-D .npy file.
func WriteComplex(path string, data []complex128) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating array file: %w", err)
	}
	defer f.Close()

	if err := npyio.Write(f, data); err != nil {
		return fmt.Errorf("error writing complex data to %s: %w", path, err)
	}
	return nil
}

// WriteFloats saves a real vector as a 1-D .npy file.
func WriteFloats(path string, data []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating array file: %w", err)
	}
	defer f.Close()

	if err := npyio.Write(f, data); err != nil {
		return fmt.Errorf("error writing float data to %s: %w", path, err)
	}
	return nil
}

// ReadSensitivityMaps loads per-slice sensitivity maps from a .npy file.
// A 3-D array is interpreted as (channel, y, x) for a single slice, a 4-D
// array as (slice, channel, y, x).
func ReadSensitivityMaps(path string) ([]*models.SensitivityMap, error) {
	data, shape, err := ReadComplex(path)
	if err != nil {
		return nil, err
	}

	var slices, channels, height, width int
	switch len(shape) {
	case 3:
		slices, channels, height, width = 1, shape[0], shape[1], shape[2]
	case 4:
		slices, channels, height, width = shape[0], shape[1], shape[2], shape[3]
	default:
		return nil, fmt.Errorf("%s: expected a 3-D (channel, y, x) or 4-D (slice, channel, y, x) array, got shape %v",
			path, shape)
	}

	per := channels * height * width
	maps := make([]*models.SensitivityMap, slices)
	for s := 0; s < slices; s++ {
		maps[s] = &models.SensitivityMap{
			Data:     data[s*per : (s+1)*per],
			Channels: channels,
			Width:    width,
			Height:   height,
			Index:    s,
		}
	}
	return maps, nil
}

// ReadTarget loads a 2-D real target pattern from a .npy file and returns
// it together with its width and height.
func ReadTarget(path string) ([]float64, int, int, error) {
	data, shape, err := ReadFloats(path)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(shape) != 2 {
		return nil, 0, 0, fmt.Errorf("%s: expected a 2-D target array, got shape %v", path, shape)
	}
	return data, shape[1], shape[0], nil
}
