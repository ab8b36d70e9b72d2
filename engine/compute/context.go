// Package compute is the dispatch runtime: one logical device with a
// single compute queue, persistent caches for shader modules, set
// layouts, pipeline layouts and pipelines, and transient descriptor
// sets and command buffers recycled in bulk on every flush.
package compute

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/config"
	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/kernels"
)

// Options configures context construction. Zero values fall back to the
// default config, the best available driver and the package-level
// kernel registry.
type Options struct {
	Config   *config.Config
	Driver   driver.Driver
	Registry *kernels.Registry
}

// Context owns everything dispatches need. Construct with New, record
// with Dispatch, recycle with Flush, tear down with Destroy.
type Context struct {
	id       string
	cfg      *config.Config
	adapter  *Adapter
	device   driver.Device
	registry *kernels.Registry

	shaders     *Shaders
	pipelines   *Pipelines
	descriptors *Descriptors
	commands    *Commands

	flushMu sync.Mutex
}

// New builds a context: driver selection, adapter, logical device, then
// the caches and pools. On error every partially constructed piece is
// torn down before returning.
func New(opts Options) (c *Context, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	core.SetLogLevel(cfg.LogLevel)
	core.EventInitialize()
	if err := core.MetricsInitialize(); err != nil {
		return nil, err
	}

	drv := opts.Driver
	if drv == nil {
		if cfg.Driver != "" {
			d := driver.Get(cfg.Driver)
			if d == nil || !d.Available() {
				return nil, fmt.Errorf("%w: %q", ErrNoDriver, cfg.Driver)
			}
			drv = d
		} else if drv = driver.Default(); drv == nil {
			return nil, ErrNoDriver
		}
	}

	registry := opts.Registry
	if registry == nil {
		registry = kernels.Default()
	}
	if cfg.KernelDir != "" {
		if _, statErr := os.Stat(cfg.KernelDir); statErr == nil {
			if err := registry.LoadDir(cfg.KernelDir); err != nil {
				return nil, err
			}
		}
	}

	c = &Context{
		id:       uuid.New().String(),
		cfg:      cfg,
		registry: registry,
	}
	defer func() {
		if err != nil {
			c.Destroy()
			c = nil
		}
	}()

	if c.adapter, err = NewAdapter(drv, cfg.Device.PreferDiscrete); err != nil {
		return nil, err
	}
	if c.device, err = c.adapter.Open(driver.DeviceOptions{Validation: cfg.Device.Validation}); err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}

	c.shaders = NewShaders(c.device, registry)
	c.pipelines = NewPipelines(c.device)
	if c.descriptors, err = NewDescriptors(c.device, driver.PoolSizes{
		MaxSets:        cfg.Descriptor.MaxSets,
		UniformBuffers: cfg.Descriptor.UniformBuffers,
		StorageBuffers: cfg.Descriptor.StorageBuffers,
		StorageImages:  cfg.Descriptor.StorageImages,
	}); err != nil {
		return nil, err
	}
	if c.commands, err = NewCommands(c.device); err != nil {
		return nil, err
	}

	core.LogDebug("compute context %s ready on %s", c.id, drv.Name())
	return c, nil
}

// ID returns the context's unique identifier.
func (c *Context) ID() string { return c.id }

// Adapter returns the adapter the context was built on.
func (c *Context) Adapter() *Adapter { return c.adapter }

// Device returns the logical device.
func (c *Context) Device() driver.Device { return c.device }

// Limits returns the selected device's limits.
func (c *Context) Limits() driver.Limits { return c.device.Limits() }

// Registry returns the kernel registry dispatches resolve names in.
func (c *Context) Registry() *kernels.Registry { return c.registry }

// Shaders returns the layout and module caches.
func (c *Context) Shaders() *Shaders { return c.shaders }

// Pipelines returns the pipeline-layout and pipeline caches.
func (c *Context) Pipelines() *Pipelines { return c.pipelines }

// Descriptors returns the transient descriptor pool.
func (c *Context) Descriptors() *Descriptors { return c.descriptors }

// Commands returns the command pool, fence and stream buffer.
func (c *Context) Commands() *Commands { return c.commands }

// Stream returns the shared recording command buffer, beginning it if
// needed.
func (c *Context) Stream() (*CommandBuffer, error) {
	return c.commands.Stream()
}

// LocalSize picks a local workgroup size suited to the shape of the
// global extent: wide in x for flat work, square for planar, cubic for
// volumetric.
func LocalSize(global Extent3D) Extent3D {
	switch {
	case global[1] == 1 && global[2] == 1:
		return Extent3D{64, 1, 1}
	case global[2] == 1:
		return Extent3D{8, 8, 1}
	default:
		return Extent3D{4, 4, 4}
	}
}

// Dispatch records one kernel launch into buf: resolves the cached
// layout, module and pipeline, pushes params, allocates and binds a
// transient descriptor set over resources in signature order, and
// records ceil(global/local) workgroups. The recorded work runs when
// buf is submitted.
//
// A zero local size selects LocalSize(global).
func (c *Context) Dispatch(
	buf *CommandBuffer,
	sig BindingSignature,
	desc KernelDescriptor,
	global, local Extent3D,
	params []byte,
	resources ...Bindable,
) error {
	core.Assert(c.device != nil, "dispatch on destroyed context %s", c.id)

	if buf == nil {
		return ErrNotRecording
	}
	if len(resources) != len(sig) {
		return fmt.Errorf("%w: kernel %q wants %d, got %d",
			ErrArityMismatch, desc.Name, len(sig), len(resources))
	}
	for i, r := range resources {
		if r.Kind() != sig[i].Kind {
			return fmt.Errorf("%w: slot %d wants %s, got %s",
				ErrKindMismatch, i, sig[i].Kind, r.Kind())
		}
	}

	if local == (Extent3D{}) {
		local = LocalSize(global)
	}
	if c.cfg.Limits.Validate {
		if err := c.validateLimits(local, len(params)); err != nil {
			return err
		}
	}

	layout, err := c.shaders.Layout(sig)
	if err != nil {
		return err
	}
	module, err := c.shaders.Module(desc)
	if err != nil {
		return err
	}
	pipeLayout, err := c.pipelines.Layout(layout, uint32(len(params)))
	if err != nil {
		return err
	}
	pipe, err := c.pipelines.Get(pipeLayout, module, local)
	if err != nil {
		return err
	}

	set, err := c.descriptors.Allocate(layout)
	if err != nil {
		return err
	}
	for i, r := range resources {
		if err := r.bindTo(set, uint32(i)); err != nil {
			return fmt.Errorf("binding slot %d: %w", i, err)
		}
	}

	err = buf.recordDispatch(func(h driver.CommandBuffer) error {
		if err := h.BindPipeline(pipe.handle); err != nil {
			return err
		}
		if len(params) > 0 {
			if err := h.PushConstants(pipeLayout.handle, params); err != nil {
				return err
			}
		}
		if err := h.BindDescriptorSet(pipeLayout.handle, set.handle); err != nil {
			return err
		}
		return h.Dispatch(global.GroupCount(local))
	})
	if err != nil {
		return err
	}
	core.MetricsDispatch()
	return nil
}

func (c *Context) validateLimits(local Extent3D, paramBytes int) error {
	limits := c.device.Limits()
	if uint32(paramBytes) > limits.MaxPushConstantBytes {
		return fmt.Errorf("%w: %d > %d bytes",
			ErrPushConstantRange, paramBytes, limits.MaxPushConstantBytes)
	}
	for i := range local {
		if local[i] == 0 || local[i] > limits.MaxWorkgroupSize[i] {
			return fmt.Errorf("%w: local[%d]=%d, limit %d",
				ErrWorkgroupLimit, i, local[i], limits.MaxWorkgroupSize[i])
		}
	}
	if inv := local.Invocations(); inv > uint64(limits.MaxWorkgroupInvocations) {
		return fmt.Errorf("%w: %d invocations per group, limit %d",
			ErrWorkgroupLimit, inv, limits.MaxWorkgroupInvocations)
	}
	return nil
}

// Flush submits the stream buffer if it has recorded work, waits for
// the queue to drain, and recycles the transient descriptor sets and
// command buffers in bulk. Cached layouts, modules and pipelines
// survive.
func (c *Context) Flush() error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	clock := core.NewClock()
	clock.Start()

	if err := c.commands.flushStream(); err != nil {
		return err
	}
	if err := c.device.WaitIdle(); err != nil {
		core.EventFire(core.EVENT_CODE_DEVICE_LOST, c, core.EventContext{})
		return fmt.Errorf("waiting for queue: %w", err)
	}
	if err := c.descriptors.Reset(); err != nil {
		return err
	}

	clock.Update()
	elapsed := clock.Elapsed() / float64(time.Second)
	core.MetricsFlush(elapsed)

	_, _, flushes := core.MetricsCounts()
	evt := core.EventContext{}
	evt.Data.U64[0] = flushes
	evt.Data.F64[0] = elapsed * 1000.0
	core.EventFire(core.EVENT_CODE_CONTEXT_FLUSHED, c, evt)
	return nil
}

// Destroy tears the context down: descriptor pool first, then
// pipelines, shader caches, the command pool, the device, and finally
// the adapter's process-level state. Safe on a partially constructed
// context.
func (c *Context) Destroy() {
	if c == nil {
		return
	}
	if c.device != nil {
		if err := c.device.WaitIdle(); err != nil {
			core.LogWarn("wait-idle during teardown: %v", err)
		}
	}
	if c.descriptors != nil {
		c.descriptors.Destroy()
		c.descriptors = nil
	}
	if c.pipelines != nil {
		c.pipelines.Destroy()
		c.pipelines = nil
	}
	if c.shaders != nil {
		c.shaders.Destroy()
		c.shaders = nil
	}
	if c.commands != nil {
		c.commands.Destroy()
		c.commands = nil
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	core.LogDebug("compute context %s destroyed", c.id)
}

var (
	acquireOnce  sync.Once
	singleton    *Context
	singletonErr error
)

// Available reports whether any registered driver can run here.
func Available() bool {
	return driver.Default() != nil
}

// Acquire returns the process-wide context, constructing it with
// default options on first call. Every caller shares the same instance
// (or the same construction error).
func Acquire() (*Context, error) {
	acquireOnce.Do(func() {
		singleton, singletonErr = New(Options{})
	})
	return singleton, singletonErr
}
