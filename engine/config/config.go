package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DeviceConfig controls physical-device selection for the Vulkan driver.
type DeviceConfig struct {
	// Prefer a discrete GPU when more than one device is present.
	PreferDiscrete bool `toml:"prefer_discrete"`
	// Enable the Khronos validation layer when available.
	Validation bool `toml:"validation"`
}

// DescriptorConfig sizes the descriptor pool for one recording period.
type DescriptorConfig struct {
	// Maximum number of descriptor sets allocatable between two resets.
	MaxSets uint32 `toml:"max_sets"`
	// Descriptors of each kind backing those sets.
	UniformBuffers uint32 `toml:"uniform_buffers"`
	StorageBuffers uint32 `toml:"storage_buffers"`
	StorageImages  uint32 `toml:"storage_images"`
}

// LimitsConfig controls dispatch-time validation of device limits.
type LimitsConfig struct {
	// Validate push-constant size and workgroup dimensions on every
	// dispatch. Turning this off restores the raw unchecked path.
	Validate bool `toml:"validate"`
}

type Config struct {
	Driver     string           `toml:"driver"`
	LogLevel   string           `toml:"log_level"`
	KernelDir  string           `toml:"kernel_dir"`
	Device     DeviceConfig     `toml:"device"`
	Descriptor DescriptorConfig `toml:"descriptor"`
	Limits     LimitsConfig     `toml:"limits"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Driver:    "",
		LogLevel:  "info",
		KernelDir: "kernels",
		Device: DeviceConfig{
			PreferDiscrete: true,
			Validation:     false,
		},
		Descriptor: DescriptorConfig{
			MaxSets:        1024,
			UniformBuffers: 1024,
			StorageBuffers: 1024,
			StorageImages:  1024,
		},
		Limits: LimitsConfig{
			Validate: true,
		},
	}
}

// Load reads a TOML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Descriptor.MaxSets == 0 {
		return nil, fmt.Errorf("config: descriptor.max_sets must be greater than zero")
	}
	return cfg, nil
}
