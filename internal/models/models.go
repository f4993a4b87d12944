package models

// SensitivityMap holds the complex transmit sensitivity of every channel
// over one anatomical slice. Data is stored row-major as (channel, y, x).
type SensitivityMap struct {
	// Data is the per-channel sensitivity data as a 1D array
	Data []complex128

	// Channels is the number of transmit channels
	Channels int

	// Width and Height are the spatial dimensions of the slice in pixels
	Width  int
	Height int

	// Index is the position of this slice in the acquisition sequence
	Index int

	// Position is the physical position of the slice along the axis in mm
	Position float64
}

// Pixels returns the number of spatial locations in one slice.
func (m *SensitivityMap) Pixels() int {
	return m.Width * m.Height
}

// Channel returns the sensitivity data of a single channel as a subslice
// of the underlying array.
func (m *SensitivityMap) Channel(c int) []complex128 {
	n := m.Pixels()
	return m.Data[c*n : (c+1)*n]
}

// At returns the sensitivity of channel c at pixel (x, y).
func (m *SensitivityMap) At(c, x, y int) complex128 {
	return m.Data[c*m.Pixels()+y*m.Width+x]
}

// Target represents the desired spatial excitation pattern for one slice.
type Target struct {
	// Magnitude is the desired field magnitude per pixel
	Magnitude []float64

	// Width and Height are the spatial dimensions in pixels
	Width  int
	Height int
}

// Support returns the number of pixels with nonzero target magnitude.
func (t *Target) Support() int {
	n := 0
	for _, v := range t.Magnitude {
		if v != 0 {
			n++
		}
	}
	return n
}
