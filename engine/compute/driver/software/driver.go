// Package software provides a CPU reference driver. Kernels run as Go
// functions, one call per global invocation, which makes the full
// dispatch path executable on machines without a GPU.
package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/kernels"
)

const DriverName = "software"

func init() {
	driver.Register(DriverName, func() driver.Driver {
		return &Driver{}
	})
}

type Driver struct {
	mutex      sync.Mutex
	lastDevice *Device
}

func New() *Driver {
	return &Driver{}
}

// LastDevice returns the most recently opened device. Test hook for
// inspecting teardown after construction failures.
func (d *Driver) LastDevice() *Device {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.lastDevice
}

func (d *Driver) Name() string {
	return DriverName
}

// Available always holds: the software driver is the fallback.
func (d *Driver) Available() bool {
	return true
}

func (d *Driver) SelectAdapter(preferDiscrete bool) (driver.AdapterInfo, error) {
	return driver.AdapterInfo{
		Name:       "CPU reference device",
		DeviceType: "cpu",
		Discrete:   false,
		Limits: driver.Limits{
			MaxPushConstantBytes:    128,
			MaxWorkgroupSize:        [3]uint32{1024, 1024, 64},
			MaxWorkgroupInvocations: 1024,
			MaxWorkgroupCount:       [3]uint32{65535, 65535, 65535},
		},
	}, nil
}

func (d *Driver) Open(adapter driver.AdapterInfo, opts driver.DeviceOptions) (driver.Device, error) {
	dev := &Device{limits: adapter.Limits}
	d.mutex.Lock()
	d.lastDevice = dev
	d.mutex.Unlock()
	return dev, nil
}

// Device is the software logical device. It executes submitted command
// buffers synchronously on the calling goroutine and keeps a log of
// object destruction for lifetime verification.
type Device struct {
	limits driver.Limits

	mutex      sync.Mutex
	destroyLog []string
	destroyed  bool
}

func (dv *Device) Limits() driver.Limits {
	return dv.limits
}

func (dv *Device) logDestroy(class string) {
	dv.mutex.Lock()
	defer dv.mutex.Unlock()
	dv.destroyLog = append(dv.destroyLog, class)
}

// DestroyLog returns the classes of every destroyed object in
// destruction order. Test hook.
func (dv *Device) DestroyLog() []string {
	dv.mutex.Lock()
	defer dv.mutex.Unlock()
	out := make([]string, len(dv.destroyLog))
	copy(out, dv.destroyLog)
	return out
}

func (dv *Device) CreateShaderModule(k kernels.Kernel) (driver.ShaderModule, error) {
	if k.Fn == nil {
		return nil, fmt.Errorf("software: kernel %q has no software form", k.Name)
	}
	return &shaderModule{device: dv, name: k.Name, fn: k.Fn}, nil
}

func (dv *Device) CreateSetLayout(slots []driver.BindingSlot) (driver.SetLayout, error) {
	out := make([]driver.BindingSlot, len(slots))
	copy(out, slots)
	return &setLayout{device: dv, slots: out}, nil
}

func (dv *Device) CreatePipelineLayout(layout driver.SetLayout, pushSize uint32) (driver.PipelineLayout, error) {
	sl, ok := layout.(*setLayout)
	if !ok {
		return nil, fmt.Errorf("software: foreign set layout %T", layout)
	}
	return &pipelineLayout{device: dv, setLayout: sl, pushSize: pushSize}, nil
}

func (dv *Device) CreateComputePipeline(layout driver.PipelineLayout, module driver.ShaderModule, local [3]uint32, constants []uint32) (driver.Pipeline, error) {
	pl, ok := layout.(*pipelineLayout)
	if !ok {
		return nil, fmt.Errorf("software: foreign pipeline layout %T", layout)
	}
	sm, ok := module.(*shaderModule)
	if !ok {
		return nil, fmt.Errorf("software: foreign shader module %T", module)
	}
	if local[0] == 0 || local[1] == 0 || local[2] == 0 {
		return nil, fmt.Errorf("software: local workgroup size must be non-zero, got %v", local)
	}
	cs := make([]uint32, len(constants))
	copy(cs, constants)
	return &pipeline{device: dv, layout: pl, module: sm, local: local, constants: cs}, nil
}

func (dv *Device) CreateDescriptorPool(sizes driver.PoolSizes) (driver.DescriptorPool, error) {
	if sizes.MaxSets == 0 {
		return nil, fmt.Errorf("software: descriptor pool needs max_sets > 0")
	}
	return &descriptorPool{device: dv, maxSets: sizes.MaxSets}, nil
}

func (dv *Device) CreateCommandPool() (driver.CommandPool, error) {
	return &commandPool{device: dv}, nil
}

func (dv *Device) CreateFence(signaled bool) (driver.Fence, error) {
	return &fence{device: dv, signaled: signaled}, nil
}

func (dv *Device) CreateBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("software: buffer size must be non-zero")
	}
	return &buffer{device: dv, data: make([]byte, size), usage: usage}, nil
}

// Submit executes the recorded operations synchronously, then signals
// the fence. Errors recorded during execution surface here.
func (dv *Device) Submit(buf driver.CommandBuffer, fc driver.Fence) error {
	cb, ok := buf.(*commandBuffer)
	if !ok {
		return fmt.Errorf("software: foreign command buffer %T", buf)
	}
	for _, op := range cb.ops {
		if err := op(); err != nil {
			return err
		}
	}
	if fc != nil {
		f, ok := fc.(*fence)
		if !ok {
			return fmt.Errorf("software: foreign fence %T", fc)
		}
		f.signal()
	}
	return nil
}

// WaitIdle is trivial: submission already ran everything.
func (dv *Device) WaitIdle() error {
	return nil
}

func (dv *Device) Destroy() {
	dv.mutex.Lock()
	if dv.destroyed {
		dv.mutex.Unlock()
		return
	}
	dv.destroyed = true
	dv.mutex.Unlock()
	dv.logDestroy("device")
}

type shaderModule struct {
	device *Device
	name   string
	fn     kernels.Func
}

func (m *shaderModule) Destroy() {
	m.device.logDestroy("shader_module")
}

type setLayout struct {
	device *Device
	slots  []driver.BindingSlot
}

func (l *setLayout) Slots() []driver.BindingSlot {
	return l.slots
}

func (l *setLayout) Destroy() {
	l.device.logDestroy("set_layout")
}

type pipelineLayout struct {
	device    *Device
	setLayout *setLayout
	pushSize  uint32
}

func (l *pipelineLayout) Destroy() {
	l.device.logDestroy("pipeline_layout")
}

type pipeline struct {
	device    *Device
	layout    *pipelineLayout
	module    *shaderModule
	local     [3]uint32
	constants []uint32
}

func (p *pipeline) Destroy() {
	p.device.logDestroy("pipeline")
}

type fence struct {
	device   *Device
	mutex    sync.Mutex
	signaled bool
}

func (f *fence) signal() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.signaled = true
}

func (f *fence) Wait(timeoutNs uint64) error {
	deadline := time.Now().Add(time.Duration(timeoutNs))
	for {
		f.mutex.Lock()
		ok := f.signaled
		f.mutex.Unlock()
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("software: fence wait timed out")
		}
		time.Sleep(time.Microsecond)
	}
}

func (f *fence) Reset() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.signaled = false
	return nil
}

func (f *fence) Destroy() {
	f.device.logDestroy("fence")
}

type buffer struct {
	device *Device
	data   []byte
	usage  driver.BufferUsage
}

func (b *buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *buffer) Write(data []byte, offset uint64) error {
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("software: write of %d bytes at %d exceeds buffer size %d", len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *buffer) Read(dst []byte, offset uint64) error {
	if offset+uint64(len(dst)) > uint64(len(b.data)) {
		return fmt.Errorf("software: read of %d bytes at %d exceeds buffer size %d", len(dst), offset, len(b.data))
	}
	copy(dst, b.data[offset:])
	return nil
}

func (b *buffer) Destroy() {
	b.device.logDestroy("buffer")
}
