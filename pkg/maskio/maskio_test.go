package maskio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptxshim/pkg/arrayio"
)

// TestFromImage verifies thresholding of a grayscale magnitude image with
// a bright square on a dark background.
func TestFromImage(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 8, 8))
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			img.SetGray16(x, y, color.Gray16{Y: 60000})
		}
	}
	// Dim background texture that must fall below the threshold.
	img.SetGray16(0, 0, color.Gray16{Y: 1000})

	mask, width, height := FromImage(img, 0.5)
	require.Equal(t, 8, width)
	require.Equal(t, 8, height)

	inside := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := mask[y*width+x]
			if x >= 2 && x < 6 && y >= 2 && y < 6 {
				assert.Equal(t, 1.0, v, "pixel (%d,%d) must be inside the mask", x, y)
				inside++
			} else {
				assert.Equal(t, 0.0, v, "pixel (%d,%d) must be outside the mask", x, y)
			}
		}
	}
	assert.Equal(t, 16, inside)
}

// TestFromImageAllDark verifies that an all-zero image yields an empty
// mask rather than dividing by zero.
func TestFromImageAllDark(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 4, 4))

	mask, _, _ := FromImage(img, 0.5)
	for i, v := range mask {
		assert.Equal(t, 0.0, v, "pixel %d must be empty", i)
	}
}

// TestFromNPY verifies thresholding of an on-disk 2-D float array.
func TestFromNPY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.npy")
	vals := []float64{
		0, 0.2, 0.9, 1.0,
		0.6, 0.4, 0, 0.5,
	}
	writeFloat2D(t, path, 2, 4, vals)

	mask, width, height, err := FromNPY(path, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 4, width)
	assert.Equal(t, 2, height)
	assert.Equal(t, []float64{0, 0, 1, 1, 1, 0, 0, 1}, mask)
}

// TestFromNPYRejects1D verifies that a flat array is not a valid target.
func TestFromNPYRejects1D(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.npy")
	require.NoError(t, arrayio.WriteFloats(path, []float64{0, 1, 2}))

	_, _, _, err := FromNPY(path, 0.5)
	assert.Error(t, err)
}

// writeFloat2D writes a minimal 2-D '<f8' .npy fixture.
func writeFloat2D(t *testing.T, path string, rows, cols int, data []float64) {
	t.Helper()

	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	pad := 64 - (10+len(header)+1)%64
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))))
	buf.WriteString(header)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, data))

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

// TestFromDICOMMissing verifies the error path for an absent file.
func TestFromDICOMMissing(t *testing.T) {
	_, _, _, err := FromDICOM(filepath.Join(t.TempDir(), "missing.dcm"), 0.5)
	assert.Error(t, err)
}
