package visualization

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

// TestNewViewer verifies construction and shape validation.
func TestNewViewer(t *testing.T) {
	width, height := 8, 8
	fields := [][]complex128{
		make([]complex128, width*height),
		make([]complex128, width*height),
	}

	viewer, err := NewViewer(fields, width, height)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if viewer.width != width {
		t.Errorf("Expected width %d, got %d", width, viewer.width)
	}
	if viewer.height != height {
		t.Errorf("Expected height %d, got %d", height, viewer.height)
	}
	if len(viewer.fields) != len(fields) {
		t.Errorf("Expected %d slices, got %d", len(fields), len(viewer.fields))
	}

	// Mismatched slice length must be rejected.
	bad := [][]complex128{make([]complex128, 3)}
	if _, err := NewViewer(bad, width, height); err == nil {
		t.Errorf("Expected error for mismatched slice length")
	}
}

// TestRenderSlice verifies normalization: the brightest pixel of the
// field maps to full white.
func TestRenderSlice(t *testing.T) {
	width, height := 4, 4
	field := make([]complex128, width*height)
	field[5] = 2i // brightest pixel, magnitude 2
	field[10] = 1 // half intensity

	viewer, err := NewViewer([][]complex128{field}, width, height)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := viewer.RenderSlice(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bright := color.Gray16Model.Convert(img.At(1, 1)).(color.Gray16)
	if bright.Y != 65535 {
		t.Errorf("Expected brightest pixel to be 65535, got %d", bright.Y)
	}

	half := color.Gray16Model.Convert(img.At(2, 2)).(color.Gray16)
	if half.Y < 32000 || half.Y > 33500 {
		t.Errorf("Expected half-intensity pixel near 32767, got %d", half.Y)
	}

	dark := color.Gray16Model.Convert(img.At(0, 0)).(color.Gray16)
	if dark.Y != 0 {
		t.Errorf("Expected empty pixel to be 0, got %d", dark.Y)
	}

	if _, err := viewer.RenderSlice(5); err == nil {
		t.Errorf("Expected error for out-of-range slice index")
	}
}

// TestSaveFieldMaps verifies that one image file per slice is written.
func TestSaveFieldMaps(t *testing.T) {
	width, height := 4, 4
	fields := [][]complex128{
		make([]complex128, width*height),
		make([]complex128, width*height),
		make([]complex128, width*height),
	}
	for _, f := range fields {
		f[0] = 1
	}

	viewer, err := NewViewer(fields, width, height)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := t.TempDir()
	if err := viewer.SaveFieldMaps(dir, "shimmed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range fields {
		path := filepath.Join(dir, fmt.Sprintf("shimmed_slice_%03d.jpg", i))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected field map %s to exist: %v", path, err)
		}
	}
}
