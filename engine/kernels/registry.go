package kernels

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spaghettifunk/vortex/engine/core"
)

// Registry maps kernel names to their executable forms. Safe for
// concurrent use.
type Registry struct {
	mutex   sync.RWMutex
	kernels map[string]Kernel
}

func NewRegistry() *Registry {
	return &Registry{
		kernels: make(map[string]Kernel),
	}
}

// Register adds or replaces a kernel. Replacing is deliberate: the
// development watcher re-registers kernels when their binaries change.
func (r *Registry) Register(k Kernel) error {
	if k.Name == "" {
		return fmt.Errorf("kernels: kernel name must not be empty")
	}
	if k.SPIRV == nil && k.Fn == nil {
		return fmt.Errorf("kernels: kernel %q has no executable form", k.Name)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if prev, ok := r.kernels[k.Name]; ok {
		// Merge so that registering a SPIR-V binary does not drop a
		// previously registered software form, and vice versa.
		if k.SPIRV == nil {
			k.SPIRV = prev.SPIRV
		}
		if k.Fn == nil {
			k.Fn = prev.Fn
		}
	}
	r.kernels[k.Name] = k
	return nil
}

// Lookup returns the kernel registered under name.
func (r *Registry) Lookup(name string) (Kernel, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	k, ok := r.kernels[name]
	return k, ok
}

// Names returns all registered kernel names.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	return names
}

// LoadDir registers every .spv file in dir under its base name, so
// "clamp.comp.spv" and "clamp.spv" both register kernel "clamp".
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("kernels: reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".spv") {
			continue
		}
		if err := r.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("kernels: reading %s: %w", path, err)
	}
	name := kernelName(path)
	if err := r.Register(Kernel{Name: name, SPIRV: data}); err != nil {
		return err
	}
	core.LogDebug("registered kernel binary '%s' (%d bytes)", name, len(data))
	return nil
}

func kernelName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".spv")
	name = strings.TrimSuffix(name, ".comp")
	return name
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a kernel to the process-wide registry.
func Register(k Kernel) error {
	return defaultRegistry.Register(k)
}

// Lookup reads from the process-wide registry.
func Lookup(name string) (Kernel, bool) {
	return defaultRegistry.Lookup(name)
}
