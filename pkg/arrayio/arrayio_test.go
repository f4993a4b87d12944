package arrayio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeNPY writes a minimal version-1.0 .npy file with the given dtype
// descriptor and shape, used to build shaped fixtures that the 1-D writer
// cannot produce.
func writeNPY(t *testing.T, path, descr string, shape []int, data interface{}) {
	t.Helper()

	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, shapeStr)
	// Pad so that the total header size is a multiple of 64, newline last.
	prefixLen := 6 + 2 + 2
	pad := 64 - (prefixLen+len(header)+1)%64
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

// TestWriteReadComplexRoundTrip verifies that a weight vector survives a
// save/load cycle.
func TestWriteReadComplexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.npy")
	want := []complex128{1, 2 + 3i, -4i, 0.5 - 0.25i}

	require.NoError(t, WriteComplex(path, want))

	got, shape, err := ReadComplex(path)
	require.NoError(t, err)
	assert.Equal(t, []int{len(want)}, shape)
	assert.Equal(t, want, got)
}

// TestWriteReadFloatsRoundTrip verifies the real-valued path.
func TestWriteReadFloatsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mask.npy")
	want := []float64{0, 1, 1, 0.5}

	require.NoError(t, WriteFloats(path, want))

	got, shape, err := ReadFloats(path)
	require.NoError(t, err)
	assert.Equal(t, []int{len(want)}, shape)
	assert.Equal(t, want, got)
}

// TestReadSensitivityMaps3D verifies single-slice (channel, y, x) loading.
func TestReadSensitivityMaps3D(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b1.npy")
	channels, h, w := 2, 3, 4
	data := make([]complex128, channels*h*w)
	for i := range data {
		data[i] = complex(float64(i), -float64(i))
	}
	writeNPY(t, path, "<c16", []int{channels, h, w}, data)

	maps, err := ReadSensitivityMaps(path)
	require.NoError(t, err)
	require.Len(t, maps, 1)

	m := maps[0]
	assert.Equal(t, channels, m.Channels)
	assert.Equal(t, w, m.Width)
	assert.Equal(t, h, m.Height)
	assert.Equal(t, data, m.Data)
}

// TestReadSensitivityMaps4D verifies multi-slice (slice, channel, y, x)
// loading and per-slice data offsets.
func TestReadSensitivityMaps4D(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b1.npy")
	slices, channels, h, w := 3, 2, 4, 4
	data := make([]complex128, slices*channels*h*w)
	for i := range data {
		data[i] = complex(float64(i), 0)
	}
	writeNPY(t, path, "<c16", []int{slices, channels, h, w}, data)

	maps, err := ReadSensitivityMaps(path)
	require.NoError(t, err)
	require.Len(t, maps, slices)

	per := channels * h * w
	for s, m := range maps {
		assert.Equal(t, s, m.Index)
		assert.Equal(t, data[s*per:(s+1)*per], m.Data)
	}
}

// TestReadSensitivityMapsBadShape verifies that 2-D input is rejected.
func TestReadSensitivityMapsBadShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b1.npy")
	writeNPY(t, path, "<c16", []int{4, 4}, make([]complex128, 16))

	_, err := ReadSensitivityMaps(path)
	assert.Error(t, err)
}

// TestReadTarget verifies 2-D target loading and shape reporting.
func TestReadTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.npy")
	h, w := 3, 5
	data := make([]float64, h*w)
	for i := range data {
		data[i] = float64(i)
	}
	writeNPY(t, path, "<f8", []int{h, w}, data)

	got, gotW, gotH, err := ReadTarget(path)
	require.NoError(t, err)
	assert.Equal(t, w, gotW)
	assert.Equal(t, h, gotH)
	assert.Equal(t, data, got)
}

// TestReadMissingFile verifies the error path for absent inputs.
func TestReadMissingFile(t *testing.T) {
	_, _, err := ReadComplex(filepath.Join(t.TempDir(), "missing.npy"))
	assert.Error(t, err)
}
