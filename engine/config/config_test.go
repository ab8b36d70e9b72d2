package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Limits.Validate)
	assert.True(t, cfg.Device.PreferDiscrete)
	assert.Equal(t, uint32(1024), cfg.Descriptor.MaxSets)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vortex.toml")
	data := `
driver = "software"
log_level = "debug"

[device]
prefer_discrete = false
validation = true

[descriptor]
max_sets = 64

[limits]
validate = false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "software", cfg.Driver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Device.PreferDiscrete)
	assert.True(t, cfg.Device.Validation)
	assert.Equal(t, uint32(64), cfg.Descriptor.MaxSets)
	assert.False(t, cfg.Limits.Validate)
	// untouched sections keep their defaults
	assert.Equal(t, uint32(1024), cfg.Descriptor.StorageBuffers)
}

func TestLoadRejectsZeroMaxSets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vortex.toml")
	require.NoError(t, os.WriteFile(path, []byte("[descriptor]\nmax_sets = 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
