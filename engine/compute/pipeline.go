package compute

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/spaghettifunk/vortex/engine/compute/cache"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/core"
)

// PipelineLayout is a cached pipeline layout: one set layout plus a
// push-constant range size.
type PipelineLayout struct {
	serial   uint64
	handle   driver.PipelineLayout
	layout   *SetLayout
	pushSize uint32
}

// PushSize returns the push-constant range size in bytes.
func (l *PipelineLayout) PushSize() uint32 {
	return l.pushSize
}

// Pipeline is a cached compute pipeline with its local workgroup size
// baked in as specialization constants.
type Pipeline struct {
	handle driver.Pipeline
	layout *PipelineLayout
	module *ShaderModule
	local  Extent3D
}

// Local returns the baked local workgroup size.
func (p *Pipeline) Local() Extent3D {
	return p.local
}

// Layout returns the pipeline layout this pipeline was built with.
func (p *Pipeline) Layout() *PipelineLayout {
	return p.layout
}

type pipelineLayoutKey struct {
	layout   uint64
	pushSize uint32
}

type pipelineKey struct {
	layout uint64
	module uint64
	local  Extent3D
}

func hashPipelineLayoutKey(k pipelineLayoutKey) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:], k.layout)
	binary.LittleEndian.PutUint32(buf[8:], k.pushSize)
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func hashPipelineKey(k pipelineKey) uint64 {
	var buf [28]byte
	binary.LittleEndian.PutUint64(buf[0:], k.layout)
	binary.LittleEndian.PutUint64(buf[8:], k.module)
	binary.LittleEndian.PutUint32(buf[16:], k.local[0])
	binary.LittleEndian.PutUint32(buf[20:], k.local[1])
	binary.LittleEndian.PutUint32(buf[24:], k.local[2])
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// Pipelines caches pipeline layouts and compute pipelines for the
// lifetime of a context. Neither cache evicts.
type Pipelines struct {
	device    driver.Device
	layouts   *cache.Sharded[pipelineLayoutKey, *PipelineLayout]
	pipelines *cache.Sharded[pipelineKey, *Pipeline]
}

// NewPipelines creates the pipeline caches over device.
func NewPipelines(device driver.Device) *Pipelines {
	return &Pipelines{
		device:    device,
		layouts:   cache.NewSharded[pipelineLayoutKey, *PipelineLayout](hashPipelineLayoutKey),
		pipelines: cache.NewSharded[pipelineKey, *Pipeline](hashPipelineKey),
	}
}

// Layout returns the pipeline layout over set with the given
// push-constant size, creating it on first use.
func (p *Pipelines) Layout(set *SetLayout, pushSize uint32) (*PipelineLayout, error) {
	key := pipelineLayoutKey{layout: set.serial, pushSize: pushSize}
	return p.layouts.GetOrCreate(key, func() (*PipelineLayout, error) {
		handle, err := p.device.CreatePipelineLayout(set.handle, pushSize)
		if err != nil {
			return nil, fmt.Errorf("creating pipeline layout: %w", err)
		}
		return &PipelineLayout{
			serial:   nextSerial(),
			handle:   handle,
			layout:   set,
			pushSize: pushSize,
		}, nil
	})
}

// Get returns the compute pipeline for (layout, module, local),
// creating it on first use. The module's extra specialization
// constants follow the local size at constant IDs 3 and up.
func (p *Pipelines) Get(layout *PipelineLayout, module *ShaderModule, local Extent3D) (*Pipeline, error) {
	key := pipelineKey{layout: layout.serial, module: module.serial, local: local}
	return p.pipelines.GetOrCreate(key, func() (*Pipeline, error) {
		handle, err := p.device.CreateComputePipeline(layout.handle, module.handle, local, module.descriptor.Constants)
		if err != nil {
			return nil, fmt.Errorf("creating pipeline for %q: %w", module.descriptor.Name, err)
		}
		core.MetricsPipelineBuild()
		return &Pipeline{
			handle: handle,
			layout: layout,
			module: module,
			local:  local,
		}, nil
	})
}

// Stats returns (pipeline layout cache, pipeline cache) statistics.
func (p *Pipelines) Stats() (cache.Stats, cache.Stats) {
	return p.layouts.Stats(), p.pipelines.Stats()
}

// Destroy releases every cached pipeline, then every layout.
func (p *Pipelines) Destroy() {
	p.pipelines.Range(func(_ pipelineKey, pl *Pipeline) bool {
		pl.handle.Destroy()
		return true
	})
	p.pipelines.Clear()
	p.layouts.Range(func(_ pipelineLayoutKey, l *PipelineLayout) bool {
		l.handle.Destroy()
		return true
	})
	p.layouts.Clear()
}
