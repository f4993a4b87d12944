package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies the default solver and shim parameters.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1e-6, cfg.Solver.Tolerance)
	assert.Equal(t, 100, cfg.Solver.MaxIterations)
	assert.Equal(t, 10, cfg.Solver.InnerIterations)
	assert.Equal(t, "joint", cfg.Shim.Mode)
	assert.Equal(t, 0.5, cfg.Shim.MaskThreshold)
	assert.Equal(t, 1.0, cfg.Shim.TargetValue)
	assert.Greater(t, cfg.Shim.Workers, 0)
	assert.False(t, cfg.Output.SaveFieldMaps)
}

// TestLoadConfigMissingFile verifies that an absent file yields defaults.
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Solver.Tolerance, cfg.Solver.Tolerance)
}

// TestSaveLoadRoundTrip verifies that a modified configuration survives a
// save/load cycle.
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "ptxshim.yaml")

	cfg := DefaultConfig()
	cfg.Solver.Tolerance = 1e-9
	cfg.Solver.MaxIterations = 42
	cfg.Shim.Mode = "perslice"
	cfg.Output.SaveFieldMaps = true

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1e-9, loaded.Solver.Tolerance)
	assert.Equal(t, 42, loaded.Solver.MaxIterations)
	assert.Equal(t, "perslice", loaded.Shim.Mode)
	assert.True(t, loaded.Output.SaveFieldMaps)
}

// TestLoadConfigPartialFile verifies that fields absent from the file
// keep their defaults.
func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  maxIterations: 7\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Solver.MaxIterations)
	assert.Equal(t, 1e-6, cfg.Solver.Tolerance, "unset fields keep defaults")
}

// TestLoadConfigBadYAML verifies the parse error path.
func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver: ["), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
