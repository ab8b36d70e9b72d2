package compute

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/vortex/engine/compute/cache"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/kernels"
)

// serials hands out process-unique IDs for cached objects. The IDs make
// wrapper objects usable as comparable cache-key components.
var serials atomic.Uint64

func nextSerial() uint64 {
	return serials.Add(1)
}

// SetLayout is a cached descriptor set layout. Dispatches with equal
// binding signatures receive the identical *SetLayout.
type SetLayout struct {
	serial    uint64
	handle    driver.SetLayout
	signature BindingSignature
}

// Signature returns the binding signature this layout was built from.
func (l *SetLayout) Signature() BindingSignature {
	return l.signature
}

// ShaderModule is a cached compiled kernel. Dispatches with equal
// kernel descriptors receive the identical *ShaderModule.
type ShaderModule struct {
	serial     uint64
	handle     driver.ShaderModule
	descriptor KernelDescriptor
}

// Descriptor returns the kernel descriptor this module was built from.
func (m *ShaderModule) Descriptor() KernelDescriptor {
	return m.descriptor
}

// Shaders caches descriptor set layouts and shader modules for the
// lifetime of a context. Neither cache evicts.
type Shaders struct {
	device   driver.Device
	registry *kernels.Registry
	layouts  *cache.Sharded[string, *SetLayout]
	modules  *cache.Sharded[string, *ShaderModule]
}

// NewShaders creates the shader caches over device, resolving kernel
// names through registry.
func NewShaders(device driver.Device, registry *kernels.Registry) *Shaders {
	return &Shaders{
		device:   device,
		registry: registry,
		layouts:  cache.NewSharded[string, *SetLayout](cache.StringHasher),
		modules:  cache.NewSharded[string, *ShaderModule](cache.StringHasher),
	}
}

// Layout returns the set layout for sig, creating it on first use.
func (s *Shaders) Layout(sig BindingSignature) (*SetLayout, error) {
	return s.layouts.GetOrCreate(sig.Key(), func() (*SetLayout, error) {
		handle, err := s.device.CreateSetLayout(sig)
		if err != nil {
			return nil, fmt.Errorf("creating set layout: %w", err)
		}
		return &SetLayout{
			serial:    nextSerial(),
			handle:    handle,
			signature: append(BindingSignature(nil), sig...),
		}, nil
	})
}

// Module returns the shader module for desc, compiling the registered
// kernel on first use.
func (s *Shaders) Module(desc KernelDescriptor) (*ShaderModule, error) {
	return s.modules.GetOrCreate(desc.Key(), func() (*ShaderModule, error) {
		kernel, ok := s.registry.Lookup(desc.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, desc.Name)
		}
		handle, err := s.device.CreateShaderModule(kernel)
		if err != nil {
			return nil, fmt.Errorf("creating shader module for %q: %w", desc.Name, err)
		}
		return &ShaderModule{
			serial:     nextSerial(),
			handle:     handle,
			descriptor: desc,
		}, nil
	})
}

// Stats returns (layout cache, module cache) statistics.
func (s *Shaders) Stats() (cache.Stats, cache.Stats) {
	return s.layouts.Stats(), s.modules.Stats()
}

// Destroy releases every cached module and layout.
func (s *Shaders) Destroy() {
	s.modules.Range(func(_ string, m *ShaderModule) bool {
		m.handle.Destroy()
		return true
	})
	s.modules.Clear()
	s.layouts.Range(func(_ string, l *SetLayout) bool {
		l.handle.Destroy()
		return true
	})
	s.layouts.Clear()
}
